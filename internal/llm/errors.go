package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType classifies provider errors for UI handling
type ErrorType string

const (
	ErrorTypeRateLimit    ErrorType = "rate_limit"    // 429 - too many requests
	ErrorTypeProviderDown ErrorType = "provider_down" // 5xx - upstream issue
	ErrorTypeAuth         ErrorType = "auth"          // 401/403 - bad or missing key
	ErrorTypeFormat       ErrorType = "format"        // history rejected (tool bookkeeping)
	ErrorTypeUnknown      ErrorType = "unknown"       // Fallback
)

// ProviderError is a structured error returned by LLM clients
type ProviderError struct {
	Type       ErrorType      // Classification
	Provider   string         // "gemini", "openrouter", "ollama"
	Code       string         // Raw error code ("429", "PERMISSION_DENIED")
	Message    string         // Human-readable message
	RetryAfter *time.Duration // How long to wait (if known)
	Retryable  bool           // Transient on the provider side
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap allows errors.Is/As to work through wrapped errors
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsProviderError checks if err is a ProviderError and returns it
func IsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// NewProviderError creates a new ProviderError with the given parameters
func NewProviderError(provider string, errType ErrorType, code, message string) *ProviderError {
	return &ProviderError{
		Type:     errType,
		Provider: provider,
		Code:     code,
		Message:  message,
	}
}

// TypeForStatus maps an HTTP status code onto an ErrorType. The message is
// consulted for session-format problems, which arrive as 400s.
func TypeForStatus(status int, message string) ErrorType {
	switch {
	case status == 401 || status == 403:
		return ErrorTypeAuth
	case status == 429:
		return ErrorTypeRateLimit
	case status >= 500:
		return ErrorTypeProviderDown
	case IsCorruptionMessage(message):
		return ErrorTypeFormat
	case IsAuthMessage(message):
		return ErrorTypeAuth
	default:
		return ErrorTypeUnknown
	}
}

// Kind is the outcome class of one attempt at a turn.
type Kind string

const (
	KindNone              Kind = ""
	KindTimeout           Kind = "timeout"
	KindAuth              Kind = "auth"
	KindSessionCorruption Kind = "session_corruption"
	KindTransient         Kind = "transient"
	KindCancelled         Kind = "cancelled"
)

var authSignals = []string{
	"authenticationerror",
	"401",
	"403",
	"user not found",
	"invalid_api_key",
	"unauthorized",
	"authentication failed",
	"no auth credentials",
	"api key not valid",
	"forbidden",
	"invalid key",
}

var corruptionSignals = []string{
	"missing tool results",
	"tool_call_id",
	"tool_use.id",
	"roles must alternate",
}

var timeoutSignals = []string{
	"deadline exceeded",
	"timed out",
	"timeout",
}

func containsAny(msg string, signals []string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, s := range signals {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// IsAuthMessage reports whether text carries an authentication failure
// signal. Matching is case-insensitive.
func IsAuthMessage(msg string) bool {
	return containsAny(msg, authSignals)
}

// IsCorruptionMessage reports whether the backend rejected the history
// because tool-call bookkeeping is missing or mismatched.
func IsCorruptionMessage(msg string) bool {
	return containsAny(msg, corruptionSignals)
}

// IsTimeoutMessage checks if a message indicates a timeout.
func IsTimeoutMessage(msg string) bool {
	return containsAny(msg, timeoutSignals)
}

// Classify maps an attempt's error onto a Kind. A nil error is KindNone.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if pe, ok := IsProviderError(err); ok {
		switch pe.Type {
		case ErrorTypeAuth:
			return KindAuth
		case ErrorTypeFormat:
			return KindSessionCorruption
		}
	}
	msg := err.Error()
	switch {
	case IsAuthMessage(msg):
		return KindAuth
	case IsCorruptionMessage(msg):
		return KindSessionCorruption
	case IsTimeoutMessage(msg):
		return KindTimeout
	default:
		return KindTransient
	}
}
