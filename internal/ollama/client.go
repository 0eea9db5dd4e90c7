package ollama

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"jarvis/internal/logging"
	"jarvis/internal/openrouter"
)

const (
	// DefaultHost is where a local Ollama daemon listens.
	DefaultHost = "http://localhost:11434"
	// DefaultModel is the model pulled by the chain's local entry.
	DefaultModel = "llama3.2"
	// DefaultProbeTimeout bounds the reachability check.
	DefaultProbeTimeout = 2 * time.Second
)

// Host returns OLLAMA_HOST when set, otherwise DefaultHost. A bare host:port
// is given an http scheme.
func Host(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	host := strings.TrimSpace(getenv("OLLAMA_HOST"))
	if host == "" {
		return DefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/")
}

// NewClient returns a chat client for Ollama's OpenAI-compatible API.
func NewClient(host string) *openrouter.Client {
	if host == "" {
		host = DefaultHost
	}
	return openrouter.NewClient(openrouter.Options{
		Provider: "ollama",
		APIKey:   "ollama",
		BaseURL:  strings.TrimRight(host, "/") + "/v1",
	})
}

// Probe reports whether a daemon answers GET /api/tags within timeout.
func Probe(ctx context.Context, host string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/tags", strings.TrimRight(host, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logging.DevLog("ollama probe %s: %v", url, err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
