package logging

import (
	"fmt"
)

// StructuredLogger tags every entry with a component and accepts key/value
// pairs, e.g. log.Warn("fallback", "from", a, "to", b).
type StructuredLogger struct {
	component string
	fields    []any
}

// NewStructuredLogger creates a logger for the named component.
func NewStructuredLogger(component string) *StructuredLogger {
	return &StructuredLogger{component: component}
}

// WithComponent returns a logger with component context
func (s *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return &StructuredLogger{component: component, fields: s.fields}
}

// With returns a logger that adds keyvals to every entry.
func (s *StructuredLogger) With(keyvals ...any) *StructuredLogger {
	fields := make([]any, 0, len(s.fields)+len(keyvals))
	fields = append(fields, s.fields...)
	fields = append(fields, keyvals...)
	return &StructuredLogger{component: s.component, fields: fields}
}

func (s *StructuredLogger) kv(keyvals []any) []any {
	out := make([]any, 0, 2+len(s.fields)+len(keyvals))
	if s.component != "" {
		out = append(out, "component", s.component)
	}
	out = append(out, s.fields...)
	return append(out, keyvals...)
}

// Info logs an info message
func (s *StructuredLogger) Info(msg string, keyvals ...any) {
	current().Info(msg, s.kv(keyvals)...)
}

// Warn logs a warning message
func (s *StructuredLogger) Warn(msg string, keyvals ...any) {
	current().Warn(msg, s.kv(keyvals)...)
}

// Error logs an error message
func (s *StructuredLogger) Error(msg string, keyvals ...any) {
	current().Error(msg, s.kv(keyvals)...)
}

// Debug logs a debug message
func (s *StructuredLogger) Debug(msg string, keyvals ...any) {
	current().Debug(msg, s.kv(keyvals)...)
}

// Printf provides compatibility with standard logger interface
func (s *StructuredLogger) Printf(format string, args ...interface{}) {
	s.Info(fmt.Sprintf(format, args...))
}
