package prompts

import (
	_ "embed"
	"strings"
	"sync"
)

//go:embed system_jarvis.txt
var baseSystemPrompt string

const (
	environmentHeader = "## Environment Context"
	operatorHeader    = "## Operator Instructions"
)

var (
	metadataMu sync.RWMutex
	metadata   string
)

// Base returns the built-in Terminal Jarvis system prompt.
func Base() string {
	return strings.TrimSpace(baseSystemPrompt)
}

// Combine joins the built-in prompt, the environment context and the
// optional system_prompt addition from config, each under its own header.
func Combine(user string) string {
	sections := []string{Base()}

	if meta := getMetadata(); meta != "" {
		sections = append(sections, environmentHeader+"\n"+meta)
	}
	if trimmed := strings.TrimSpace(user); trimmed != "" {
		sections = append(sections, operatorHeader+"\n"+trimmed)
	}
	return strings.Join(sections, "\n\n")
}

// SetMetadata defines the environment metadata appended to the system prompt.
func SetMetadata(info string) {
	metadataMu.Lock()
	defer metadataMu.Unlock()
	metadata = strings.TrimSpace(info)
}

func getMetadata() string {
	metadataMu.RLock()
	defer metadataMu.RUnlock()
	return metadata
}
