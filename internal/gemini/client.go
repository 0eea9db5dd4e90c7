package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/state"
	"jarvis/internal/tooling"
)

const providerName = "gemini"

// DefaultModel is used when neither config nor JARVIS_MODEL names one.
const DefaultModel = "gemini-2.0-flash"

// Client adapts the Google GenAI SDK to llm.Client.
type Client struct {
	models *genai.Models
	log    *logging.StructuredLogger
}

// NewClient builds a Gemini API client. It performs no network I/O.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		models: client.Models,
		log:    logging.NewStructuredLogger("gemini"),
	}, nil
}

// Chat satisfies the llm.Client interface.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	system, contents := toContents(req.Messages)
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	if tools := toTools(req.Tools); tools != nil {
		cfg.Tools = tools
	}

	c.log.Debug("sending request", "model", req.Model, "messages", len(req.Messages))
	resp, err := c.models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return llm.ChatResponse{}, translateError(err)
	}
	out, err := fromResponse(resp)
	if err != nil {
		return llm.ChatResponse{}, err
	}
	c.log.Debug("received response", "tool_calls", len(out.First().ToolCalls))
	return out, nil
}

// toContents splits out the system prompt and maps the rest of the history
// onto Gemini's user/model turns. Consecutive tool results are folded into
// one user turn.
func toContents(messages []state.Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case state.RoleSystem:
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
		case state.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case state.RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				args, _ := tooling.DecodeArgs(call.Function.Arguments)
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   call.ID,
						Name: call.Function.Name,
						Args: args,
					},
				})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case state.RoleTool:
			part := &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.Name,
					Response: map[string]any{"output": msg.Content},
				},
			}
			if n := len(contents); n > 0 && contents[n-1].Role == genai.RoleUser && isFunctionResponses(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func isFunctionResponses(c *genai.Content) bool {
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return len(c.Parts) > 0
}

func toTools(defs []tooling.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.Function.Name,
			Description: def.Function.Description,
			Parameters:  toSchema(def.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toSchema converts a JSON-schema map into genai.Schema. Only the subset the
// tool registry uses is understood.
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	switch fmt.Sprint(m["type"]) {
	case "object":
		s.Type = genai.TypeObject
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	return s
}

func fromResponse(resp *genai.GenerateContentResponse) (llm.ChatResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return llm.ChatResponse{}, llm.NewProviderError(providerName, llm.ErrorTypeUnknown,
				string(resp.PromptFeedback.BlockReason), "prompt blocked")
		}
		return llm.ChatResponse{}, llm.NewProviderError(providerName, llm.ErrorTypeUnknown, "", "no candidates returned")
	}
	cand := resp.Candidates[0]
	msg := state.Message{Role: state.RoleAssistant}
	var text, thought strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				args = []byte("{}")
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			msg.ToolCalls = append(msg.ToolCalls, state.ToolCall{
				ID:   id,
				Type: "function",
				Function: state.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case part.Thought:
			thought.WriteString(part.Text)
		default:
			text.WriteString(part.Text)
		}
	}
	msg.Content = text.String()
	msg.Thinking = thought.String()

	out := llm.ChatResponse{
		Choices: []llm.ChatChoice{{
			Message:      msg,
			FinishReason: strings.ToLower(string(cand.FinishReason)),
		}},
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// translateError turns SDK failures into *llm.ProviderError. Context errors
// pass through so cancellation and deadlines stay recognisable.
func translateError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return &llm.ProviderError{
				Type:      llm.ErrorTypeUnknown,
				Provider:  providerName,
				Message:   err.Error(),
				Retryable: true,
				Cause:     err,
			}
		}
		apiErr = *ptr
	}
	code := apiErr.Status
	if code == "" {
		code = strconv.Itoa(apiErr.Code)
	}
	errType := llm.TypeForStatus(apiErr.Code, apiErr.Message)
	if apiErr.Status == "PERMISSION_DENIED" || apiErr.Status == "UNAUTHENTICATED" {
		errType = llm.ErrorTypeAuth
	}
	return &llm.ProviderError{
		Type:      errType,
		Provider:  providerName,
		Code:      code,
		Message:   apiErr.Message,
		Retryable: errType == llm.ErrorTypeRateLimit || errType == llm.ErrorTypeProviderDown,
		Cause:     err,
	}
}
