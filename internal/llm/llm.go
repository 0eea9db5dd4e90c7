// Package llm defines the contract between a conversation session and the
// model backends behind the provider chain (Gemini, OpenRouter, Ollama).
//
// Backends translate their SDK types to and from these structures and turn
// SDK failures into *ProviderError so the executor can classify them.
package llm

import (
	"context"

	"jarvis/internal/state"
	"jarvis/internal/tooling"
)

// Finish reasons reported by backends. Providers may return others.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
)

// Client is one model backend.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// ChatRequest carries the whole conversation; backends are stateless.
// A zero Temperature leaves the provider default in place.
type ChatRequest struct {
	Model       string                   `json:"model"`
	Messages    []state.Message          `json:"messages"`
	Tools       []tooling.ToolDefinition `json:"tools,omitempty"`
	Temperature float64                  `json:"temperature,omitempty"`
}

type ChatChoice struct {
	Index        int           `json:"index"`
	Message      state.Message `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// Usage is reported when the backend returns token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// First returns the first choice's message, or an empty assistant message.
func (r ChatResponse) First() state.Message {
	if len(r.Choices) == 0 {
		return state.Message{Role: state.RoleAssistant}
	}
	return r.Choices[0].Message
}

// WantsTools reports whether the reply asks for tool calls instead of
// answering.
func (r ChatResponse) WantsTools() bool {
	return len(r.First().ToolCalls) > 0
}
