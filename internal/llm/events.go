package llm

import "strings"

// EventKind distinguishes intermediate progress from final content.
type EventKind int

const (
	// EventThinking carries reasoning the backend reported separately.
	EventThinking EventKind = iota
	// EventToolCall is emitted when the model asks for a tool.
	EventToolCall
	// EventToolResult carries what a tool returned to the model.
	EventToolResult
	// EventFinal carries the text of the reply.
	EventFinal
)

func (k EventKind) String() string {
	switch k {
	case EventThinking:
		return "thinking"
	case EventToolCall:
		return "tool_call"
	case EventToolResult:
		return "tool_result"
	case EventFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Event is one step of a turn as seen by the caller.
type Event struct {
	Kind     EventKind
	Author   string
	ToolName string
	Parts    []string
}

// IsFinal reports whether the event carries reply content.
func (e Event) IsFinal() bool {
	return e.Kind == EventFinal
}

// Text concatenates the event's fragments.
func (e Event) Text() string {
	return strings.Join(e.Parts, "")
}

// EventHandler receives events in the order they happen.
type EventHandler func(Event)

// Collector keeps only final content from an event stream.
type Collector struct {
	b strings.Builder
}

// Handle implements EventHandler.
func (c *Collector) Handle(e Event) {
	if !e.IsFinal() {
		return
	}
	for _, part := range e.Parts {
		c.b.WriteString(part)
	}
}

// Text returns everything collected so far.
func (c *Collector) Text() string {
	return c.b.String()
}
