package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/state"
	"jarvis/internal/tooling"
)

const (
	// DefaultBaseURL is OpenRouter's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel is the model id used by the OpenRouter chain entry.
	DefaultModel = "google/gemini-flash-1.5"
)

// Options configures an OpenAI-compatible client.
type Options struct {
	// Provider names the backend in errors and logs. Defaults to "openrouter".
	Provider string
	APIKey   string
	BaseURL  string
	// Referer and Title are sent as HTTP-Referer and X-Title for OpenRouter
	// attribution. Empty values are omitted.
	Referer    string
	Title      string
	HTTPClient *http.Client
}

// Client is a thin wrapper over go-openai for any OpenAI-compatible
// chat completions endpoint.
type Client struct {
	api      *openai.Client
	provider string
	log      *logging.StructuredLogger
}

// NewClient wires together the dependencies for API access.
func NewClient(opts Options) *Client {
	if opts.Provider == "" {
		opts.Provider = "openrouter"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	headers := map[string]string{}
	if opts.Referer != "" {
		headers["HTTP-Referer"] = opts.Referer
	}
	if opts.Title != "" {
		headers["X-Title"] = opts.Title
	}
	if len(headers) > 0 {
		wrapped := *base
		wrapped.Transport = &headerTransport{base: base.Transport, headers: headers}
		base = &wrapped
	}
	cfg.HTTPClient = base

	return &Client{
		api:      openai.NewClientWithConfig(cfg),
		provider: opts.Provider,
		log:      logging.NewStructuredLogger(opts.Provider),
	}
}

// Chat executes a single completion request.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	model := strings.TrimPrefix(req.Model, c.provider+"/")
	payload := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toMessages(req.Messages),
		Tools:       toTools(req.Tools),
		Temperature: float32(req.Temperature),
	}

	c.log.Debug("sending request", "model", model, "messages", len(payload.Messages))
	resp, err := c.api.CreateChatCompletion(ctx, payload)
	if err != nil {
		return llm.ChatResponse{}, c.translateError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, llm.NewProviderError(c.provider, llm.ErrorTypeUnknown, "", "no choices returned")
	}
	c.log.Debug("received response", "choices", len(resp.Choices))
	return fromResponse(resp), nil
}

func toMessages(history []state.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		m := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role == state.RoleTool {
			m.Name = msg.Name
		}
		for _, call := range msg.ToolCalls {
			args := call.Function.Arguments
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Function.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, m)
	}
	return out
}

func toTools(defs []tooling.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(defs))
	for i, def := range defs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Function.Name,
				Description: def.Function.Description,
				Parameters:  def.Function.Parameters,
			},
		}
	}
	return out
}

func fromResponse(resp openai.ChatCompletionResponse) llm.ChatResponse {
	out := llm.ChatResponse{Choices: make([]llm.ChatChoice, 0, len(resp.Choices))}
	for _, choice := range resp.Choices {
		msg := state.Message{
			Role:    state.RoleAssistant,
			Content: choice.Message.Content,
		}
		for _, call := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, state.ToolCall{
				ID:   call.ID,
				Type: "function",
				Function: state.FunctionCall{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}
		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: string(choice.FinishReason),
		})
	}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out
}

// translateError turns go-openai failures into *llm.ProviderError. Context
// errors pass through untouched.
func (c *Client) translateError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		errType := llm.TypeForStatus(apiErr.HTTPStatusCode, apiErr.Message)
		logging.ErrorLog("%s API error: %d - %s", c.provider, apiErr.HTTPStatusCode, apiErr.Message)
		return &llm.ProviderError{
			Type:      errType,
			Provider:  c.provider,
			Code:      strconv.Itoa(apiErr.HTTPStatusCode),
			Message:   apiErr.Message,
			Retryable: errType == llm.ErrorTypeRateLimit || errType == llm.ErrorTypeProviderDown,
			Cause:     err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := fmt.Sprint(reqErr.Err)
		if reqErr.Err == nil {
			msg = http.StatusText(reqErr.HTTPStatusCode)
		}
		errType := llm.TypeForStatus(reqErr.HTTPStatusCode, msg)
		return &llm.ProviderError{
			Type:      errType,
			Provider:  c.provider,
			Code:      strconv.Itoa(reqErr.HTTPStatusCode),
			Message:   msg,
			Retryable: errType != llm.ErrorTypeAuth && errType != llm.ErrorTypeFormat,
			Cause:     err,
		}
	}
	return &llm.ProviderError{
		Type:      llm.ErrorTypeUnknown,
		Provider:  c.provider,
		Message:   err.Error(),
		Retryable: true,
		Cause:     err,
	}
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}
