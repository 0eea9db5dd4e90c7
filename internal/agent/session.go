package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/state"
	"jarvis/internal/tooling"
)

const (
	// AppName scopes session identities.
	AppName = "terminal_jarvis"
	// UserID is the single local user every session belongs to.
	UserID = "local"
)

// Runner is the part of a session the executor depends on.
type Runner interface {
	Descriptor() Descriptor
	Run(ctx context.Context, text string, on llm.EventHandler) error
	// NeedsRebuild reports whether a completed tool handed the terminal to
	// another program since the session was created.
	NeedsRebuild() bool
}

// SessionFactory builds a fresh session bound to one chain entry.
type SessionFactory interface {
	NewSession(ctx context.Context, d Descriptor) (Runner, error)
}

// Session is a conversation with one provider. It is discarded, never
// repaired, when the provider changes or rejects its history.
type Session struct {
	ID      string
	AppName string
	UserID  string

	descriptor  Descriptor
	client      llm.Client
	conv        *state.Conversation
	tools       *tooling.Registry
	temperature float64
	maxRounds   int
	log         *logging.StructuredLogger

	// runMu serialises turns so an abandoned run finishes before the next
	// one touches the history.
	runMu     sync.Mutex
	mu        sync.Mutex
	disturbed bool
}

// Descriptor returns the chain entry the session talks to.
func (s *Session) Descriptor() Descriptor { return s.descriptor }

// Conversation exposes the history for inspection.
func (s *Session) Conversation() *state.Conversation { return s.conv }

// NeedsRebuild implements Runner.
func (s *Session) NeedsRebuild() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disturbed
}

// ErrEmptyReply is returned when the model produced no answer text and no
// tool calls, including replies that carry only reasoning.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Run sends text and drives the tool loop until the model answers in text.
// Events are delivered to on in order. The history is rolled back when the
// turn fails so a retry starts from a consistent state.
func (s *Session) Run(ctx context.Context, text string, on llm.EventHandler) (err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if on == nil {
		on = func(llm.Event) {}
	}

	mark := s.conv.Len()
	defer func() {
		if err != nil {
			s.conv.Truncate(mark)
		}
	}()
	s.conv.Append(state.Message{Role: state.RoleUser, Content: text})

	author := s.descriptor.Label
	for round := 0; ; round++ {
		req := llm.ChatRequest{
			Model:       s.descriptor.Model(),
			Messages:    s.conv.Messages(),
			Temperature: s.temperature,
		}
		// Past the round limit the model must answer without tools.
		if round < s.maxRounds {
			req.Tools = s.tools.Definitions()
		}

		resp, err := s.client.Chat(ctx, req)
		if err != nil {
			return err
		}
		msg := resp.First()
		msg.Role = state.RoleAssistant
		if msg.Thinking != "" {
			on(llm.Event{Kind: llm.EventThinking, Author: author, Parts: []string{msg.Thinking}})
		}
		wantsTools := resp.WantsTools() && round < s.maxRounds
		if !wantsTools {
			msg.ToolCalls = nil
		}
		s.conv.Append(msg)

		if !wantsTools {
			// Reasoning alone is not an answer.
			if strings.TrimSpace(msg.Content) == "" {
				return ErrEmptyReply
			}
			on(llm.Event{Kind: llm.EventFinal, Author: author, Parts: []string{msg.Content}})
			return nil
		}

		for _, call := range msg.ToolCalls {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := call.Function.Name
			on(llm.Event{Kind: llm.EventToolCall, Author: author, ToolName: name, Parts: []string{call.Function.Arguments}})
			s.log.Debug("tool call", "tool", name, "round", round+1)

			output, disturbed := s.tools.Dispatch(ctx, name, call.Function.Arguments)
			if disturbed {
				s.mu.Lock()
				s.disturbed = true
				s.mu.Unlock()
			}
			s.conv.Append(state.Message{
				Role:       state.RoleTool,
				Name:       name,
				ToolCallID: call.ID,
				Content:    output,
			})
			on(llm.Event{Kind: llm.EventToolResult, Author: name, ToolName: name, Parts: []string{output}})
		}
	}
}

// Factory builds sessions against the backends.
type Factory struct {
	Backends      Backends
	Tools         *tooling.Registry
	SystemPrompt  string
	Temperature   float64
	MaxToolRounds int
}

// NewSession implements SessionFactory.
func (f *Factory) NewSession(ctx context.Context, d Descriptor) (Runner, error) {
	client, err := f.Backends.Resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	return newSession(d, client, f.Tools, f.SystemPrompt, f.Temperature, f.MaxToolRounds), nil
}

func newSession(d Descriptor, client llm.Client, tools *tooling.Registry, systemPrompt string, temperature float64, maxRounds int) *Session {
	if tools == nil {
		tools = tooling.NewRegistry()
	}
	if maxRounds <= 0 {
		maxRounds = 5
	}
	conv := state.NewConversation(systemPrompt)
	s := &Session{
		ID:          conv.ID(),
		AppName:     AppName,
		UserID:      UserID,
		descriptor:  d,
		client:      client,
		conv:        conv,
		tools:       tools,
		temperature: temperature,
		maxRounds:   maxRounds,
	}
	s.log = logging.NewStructuredLogger("session").With("session", s.ID, "provider", d.Label)
	s.log.Debug("session created", "app", AppName, "user", UserID)
	return s
}

func (s *Session) String() string {
	return fmt.Sprintf("%s/%s/%s", s.AppName, s.UserID, s.ID)
}
