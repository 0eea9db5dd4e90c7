package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"jarvis/internal/classify"
	"jarvis/internal/llm"
)

func newTestConsole() (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewConsole(&buf, NewTheme(false), false), &buf
}

func TestConsoleResponse(t *testing.T) {
	c, buf := newTestConsole()
	c.Response(classify.Result{Reasoning: "The user wants a list.", Answer: "You have claude."})
	out := buf.String()
	assert.Contains(t, out, "thinking")
	assert.Contains(t, out, "   The user wants a list.")
	assert.Contains(t, out, "   You have claude.")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("thinking")), bytes.Index(buf.Bytes(), []byte("You have claude.")))

	buf.Reset()
	c.Response(classify.Result{Answer: "plain"})
	assert.NotContains(t, buf.String(), "thinking")
	assert.Contains(t, buf.String(), "plain")
}

func TestConsoleFallbackNotices(t *testing.T) {
	tests := []struct {
		kind llm.Kind
		want string
	}{
		{llm.KindAuth, "[auth] Gemini (gemini-2.0-flash): bad key -- trying OpenRouter..."},
		{llm.KindTimeout, "[timeout] Gemini (gemini-2.0-flash) took too long -- trying OpenRouter..."},
		{llm.KindTransient, "[Gemini (gemini-2.0-flash) failed] Falling back to OpenRouter..."},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c, buf := newTestConsole()
			c.Fallback(tt.kind, "Gemini (gemini-2.0-flash)", "OpenRouter")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestConsoleTerminalMessages(t *testing.T) {
	c, buf := newTestConsole()
	c.NoResponse(60 * time.Second)
	assert.Contains(t, buf.String(), "No response after 60s")

	buf.Reset()
	c.AllFailed(errors.New("boom"))
	assert.Contains(t, buf.String(), "All providers failed. Last error: boom")

	buf.Reset()
	c.AuthGuide("OpenRouter (google/gemini-flash-1.5)")
	out := buf.String()
	assert.Contains(t, out, "OpenRouter (google/gemini-flash-1.5) rejected the API key.")
	assert.Contains(t, out, "https://aistudio.google.com/app/apikey")
	assert.Contains(t, out, "https://openrouter.ai/keys")
	assert.Contains(t, out, "ollama pull llama3.2")

	buf.Reset()
	c.Goodbye()
	assert.Contains(t, buf.String(), "Goodbye.")
}

func TestConsoleHomeAndHelp(t *testing.T) {
	c, buf := newTestConsole()
	c.Home("Ollama llama3.2 (local)", "/tmp/work")
	assert.Contains(t, buf.String(), "Provider: Ollama llama3.2 (local)")
	assert.Contains(t, buf.String(), "/tmp/work")

	buf.Reset()
	c.Help()
	for _, e := range helpEntries {
		assert.Contains(t, buf.String(), e.usage)
	}
}
