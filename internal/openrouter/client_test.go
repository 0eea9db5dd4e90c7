package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/llm"
	"jarvis/internal/state"
	"jarvis/internal/tooling"
)

func TestChatSendsToolsAndParsesToolCalls(t *testing.T) {
	var got map[string]any
	var referer, title, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "1",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "c1", "type": "function", "function": {"name": "list_tools", "arguments": "{}"}}]
				}
			}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`))
	}))
	defer srv.Close()

	client := NewClient(Options{
		APIKey:  "sk-or-v1-test",
		BaseURL: srv.URL,
		Referer: "https://github.com/terminal-jarvis",
		Title:   "Terminal Jarvis",
	})
	registry := tooling.NewRegistry(tooling.DefaultTools(tooling.NewCollaborator("terminal-jarvis", nil))...)
	resp, err := client.Chat(context.Background(), llm.ChatRequest{
		Model: "openrouter/" + DefaultModel,
		Messages: []state.Message{
			{Role: state.RoleSystem, Content: "sys"},
			{Role: state.RoleUser, Content: "what do I have?"},
		},
		Tools: registry.Definitions(),
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, got["model"])
	assert.Len(t, got["tools"], len(registry.Names()))
	assert.Equal(t, "https://github.com/terminal-jarvis", referer)
	assert.Equal(t, "Terminal Jarvis", title)
	assert.Equal(t, "Bearer sk-or-v1-test", auth)

	msg := resp.First()
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "c1", msg.ToolCalls[0].ID)
	assert.Equal(t, "list_tools", msg.ToolCalls[0].Function.Name)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestChatReplaysToolHistory(t *testing.T) {
	var got struct {
		Messages []struct {
			Role       string `json:"role"`
			Name       string `json:"name"`
			ToolCallID string `json:"tool_call_id"`
			ToolCalls  []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	resp, err := client.Chat(context.Background(), llm.ChatRequest{
		Model: DefaultModel,
		Messages: []state.Message{
			{Role: state.RoleUser, Content: "status"},
			{Role: state.RoleAssistant, ToolCalls: []state.ToolCall{{ID: "x", Type: "function", Function: state.FunctionCall{Name: "show_status"}}}},
			{Role: state.RoleTool, ToolCallID: "x", Name: "show_status", Content: "all good"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.First().Content)
	assert.Nil(t, resp.Usage)

	require.Len(t, got.Messages, 3)
	assert.Equal(t, "{}", got.Messages[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "x", got.Messages[2].ToolCallID)
	assert.Equal(t, "show_status", got.Messages[2].Name)
}

func TestChatTranslatesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   llm.Kind
	}{
		{"auth", http.StatusUnauthorized, `{"error":{"message":"User not found.","code":401}}`, llm.KindAuth},
		{"corruption", http.StatusBadRequest, `{"error":{"message":"Missing tool results for tool_call_id abc","code":400}}`, llm.KindSessionCorruption},
		{"upstream", http.StatusBadGateway, `{"error":{"message":"upstream unavailable","code":502}}`, llm.KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
			_, err := client.Chat(context.Background(), llm.ChatRequest{
				Model:    DefaultModel,
				Messages: []state.Message{{Role: state.RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			_, ok := llm.IsProviderError(err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, llm.Classify(err))
		})
	}
}

func TestChatHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	_, err := client.Chat(ctx, llm.ChatRequest{Model: DefaultModel})
	require.Error(t, err)
	assert.Equal(t, llm.KindCancelled, llm.Classify(err))
}
