package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/llm"
	"jarvis/internal/state"
)

func TestHost(t *testing.T) {
	env := func(v string) func(string) string {
		return func(string) string { return v }
	}
	assert.Equal(t, DefaultHost, Host(env("")))
	assert.Equal(t, "http://10.0.0.2:11434", Host(env("10.0.0.2:11434")))
	assert.Equal(t, "https://ollama.lan", Host(env("https://ollama.lan/")))
}

func TestProbe(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer up.Close()
	assert.True(t, Probe(context.Background(), up.URL, time.Second))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	assert.False(t, Probe(context.Background(), broken.URL, time.Second))

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	start := time.Now()
	assert.False(t, Probe(context.Background(), slow.URL, 50*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)
}

func TestClientUsesV1Endpoint(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Chat(context.Background(), llm.ChatRequest{
		Model:    "ollama/" + DefaultModel,
		Messages: []state.Message{{Role: state.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "hello", resp.First().Content)
}
