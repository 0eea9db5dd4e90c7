package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message mirrors the OpenAI chat schema so that history can be reused
// verbatim in requests to any OpenAI-compatible backend.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Thinking   string     `json:"thinking,omitempty"`
}

// ToolCall represents a function call request emitted by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is embedded inside ToolCall for OpenAI-compatible schemas.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Conversation is the in-memory dialogue held by one session. It is never
// persisted: a broken conversation is thrown away and a new one started.
type Conversation struct {
	mu        sync.RWMutex
	id        string
	messages  []Message
	createdAt time.Time
	updatedAt time.Time
}

// NewConversation starts a conversation seeded with the system prompt.
func NewConversation(systemPrompt string) *Conversation {
	now := time.Now()
	c := &Conversation{
		id:        uuid.NewString(),
		createdAt: now,
		updatedAt: now,
	}
	if systemPrompt != "" {
		c.messages = append(c.messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return c
}

// ID returns the identity assigned when the conversation was created.
func (c *Conversation) ID() string {
	return c.id
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports how many messages are stored, system prompt included.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Append adds messages to the history.
func (c *Conversation) Append(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
	c.updatedAt = time.Now()
}

// Truncate drops everything after the first n messages. It is used to roll
// back a user turn whose request never completed.
func (c *Conversation) Truncate(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.messages) {
		return
	}
	c.messages = c.messages[:n]
	c.updatedAt = time.Now()
}

// CreatedAt returns when the conversation was started.
func (c *Conversation) CreatedAt() time.Time {
	return c.createdAt
}

// UpdatedAt returns when the conversation last changed.
func (c *Conversation) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
