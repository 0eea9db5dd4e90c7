package mockclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"jarvis/internal/llm"
	"jarvis/internal/state"
)

// Client is a deterministic llm.Client used for tests and CI.
type Client struct {
	prefix string
}

// New returns a mock client that echoes the last user message.
func New() *Client {
	return &Client{prefix: "MOCK"}
}

// Chat satisfies the llm.Client interface.
func (c *Client) Chat(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == state.RoleUser {
			last = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	content := fmt.Sprintf("%s RESPONSE", c.prefix)
	if last != "" {
		content = fmt.Sprintf("%s RESPONSE: %s", c.prefix, last)
	}
	resp := Text(content)
	resp.Usage = &llm.Usage{PromptTokens: 42, CompletionTokens: 7, TotalTokens: 49}
	return resp, nil
}

// Step is one scripted reply. Delay makes the call wait (honouring ctx)
// before answering; Hang makes it wait until ctx is done.
type Step struct {
	Response llm.ChatResponse
	Err      error
	Delay    time.Duration
	Hang     bool
}

// Scripted replays a fixed list of steps, then repeats the last one.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.ChatRequest
}

// NewScripted returns a client that answers with steps in order.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Chat satisfies the llm.Client interface.
func (s *Scripted) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	var step Step
	switch len(s.steps) {
	case 0:
		step = Step{Response: Text("ok")}
	case 1:
		step = s.steps[0]
	default:
		step = s.steps[0]
		s.steps = s.steps[1:]
	}
	s.mu.Unlock()

	if step.Hang {
		<-ctx.Done()
		return llm.ChatResponse{}, ctx.Err()
	}
	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return llm.ChatResponse{}, ctx.Err()
		case <-timer.C:
		}
	}
	if step.Err != nil {
		return llm.ChatResponse{}, step.Err
	}
	return step.Response, nil
}

// Calls reports how many requests were received.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every request received.
func (s *Scripted) Requests() []llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.ChatRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Text builds a plain assistant reply.
func Text(content string) llm.ChatResponse {
	return llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			Message:      state.Message{Role: state.RoleAssistant, Content: content},
			FinishReason: llm.FinishStop,
		}},
	}
}

// ToolCall builds a reply that asks for one tool call.
func ToolCall(id, name, arguments string) llm.ChatResponse {
	return llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			Message: state.Message{
				Role: state.RoleAssistant,
				ToolCalls: []state.ToolCall{{
					ID:   id,
					Type: "function",
					Function: state.FunctionCall{
						Name:      name,
						Arguments: arguments,
					},
				}},
			},
			FinishReason: llm.FinishToolCalls,
		}},
	}
}
