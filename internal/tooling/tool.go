package tooling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"jarvis/internal/logging"
)

type ToolDefinition struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Tool interface {
	Definition() ToolDefinition
	Call(ctx context.Context, args map[string]any) (string, error)
}

// SessionDisturber is implemented by tools that hand the terminal to another
// process. After such a tool succeeds, the conversation that requested it is
// no longer trusted and must be replaced before the next turn.
type SessionDisturber interface {
	DisturbsSession() bool
}

type Registry struct {
	tools       map[string]Tool
	definitions []ToolDefinition
}

func NewRegistry(tools ...Tool) *Registry {
	bucket := make(map[string]Tool, len(tools))
	defs := make([]ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		def := tool.Definition()
		bucket[def.Function.Name] = tool
		defs = append(defs, def)
	}
	return &Registry{tools: bucket, definitions: defs}
}

func (r *Registry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names lists registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named tool and always produces text for the model.
// Failures are reported inline rather than returned. disturbed is true when
// a session-disturbing tool completed without error.
func (r *Registry) Dispatch(ctx context.Context, name string, rawArgs string) (output string, disturbed bool) {
	tool, ok := r.Lookup(name)
	if !ok {
		logging.DevLog("tool dispatch: unknown tool %q", name)
		return "unknown tool: " + name, false
	}
	args, err := DecodeArgs(rawArgs)
	if err != nil {
		return fmt.Sprintf("invalid arguments for %s: %v", name, err), false
	}
	out, err := tool.Call(ctx, args)
	if err != nil {
		if errors.Is(err, ErrCollaboratorNotFound) {
			return NotFoundMessage, false
		}
		logging.ErrorLog("tool %s failed: %v", name, err)
		if out != "" {
			return out, false
		}
		return fmt.Sprintf("error: %v", err), false
	}
	if d, ok := tool.(SessionDisturber); ok && d.DisturbsSession() {
		disturbed = true
	}
	return out, disturbed
}

// DecodeArgs parses the JSON argument object sent by the model. An empty
// string is treated as no arguments.
func DecodeArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// StringArg returns the named argument as a trimmed string. Non-string values
// are formatted with %v.
func StringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
