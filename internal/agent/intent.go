package agent

import (
	"regexp"
	"strings"
)

// launchAliases maps spoken names onto terminal-jarvis tool names. Longer
// aliases come first so "claude code" wins over "claude".
var launchAliases = []struct {
	alias string
	tool  string
}{
	{"claude code", "claude"},
	{"claude", "claude"},
	{"gemini", "gemini"},
	{"codex", "codex"},
	{"aider", "aider"},
	{"goose", "goose"},
	{"amp", "amp"},
	{"open code", "opencode"},
	{"opencode", "opencode"},
	{"llxprt", "llxprt"},
	{"qwen code", "qwen"},
	{"qwen", "qwen"},
	{"cursor agent", "cursor-agent"},
	{"copilot cli", "copilot"},
	{"copilot", "copilot"},
	{"crush", "crush"},
	{"ollama", "ollama"},
	{"vibe", "vibe"},
	{"forge", "forge"},
	{"droid", "droid"},
	{"kilocode", "kilocode"},
	{"nanocoder", "nanocoder"},
	{"letta", "letta"},
	{"eca", "eca"},
	{"jules", "jules"},
	{"pi", "pi"},
}

var launchVerbs = []string{"launch", "run", "open", "start", "execute", "boot", "fire up"}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// LaunchIntent returns the tool a line asks to start, such as "fire up claude
// code". Both a launch verb and a known tool alias must appear as whole words.
func LaunchIntent(line string) (string, bool) {
	norm := strings.Join(strings.Fields(nonWord.ReplaceAllString(strings.ToLower(line), " ")), " ")
	if norm == "" {
		return "", false
	}
	padded := " " + norm + " "

	hasVerb := false
	for _, v := range launchVerbs {
		if strings.Contains(padded, " "+v+" ") {
			hasVerb = true
			break
		}
	}
	if !hasVerb {
		return "", false
	}
	for _, a := range launchAliases {
		if strings.Contains(padded, " "+a.alias+" ") {
			return a.tool, true
		}
	}
	return "", false
}
