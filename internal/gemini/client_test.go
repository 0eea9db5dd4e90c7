package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"jarvis/internal/llm"
	"jarvis/internal/state"
	"jarvis/internal/tooling"
)

func TestToContentsFoldsToolResults(t *testing.T) {
	history := []state.Message{
		{Role: state.RoleSystem, Content: "be brief"},
		{Role: state.RoleUser, Content: "what is installed?"},
		{Role: state.RoleAssistant, ToolCalls: []state.ToolCall{
			{ID: "a", Type: "function", Function: state.FunctionCall{Name: "list_tools", Arguments: "{}"}},
			{ID: "b", Type: "function", Function: state.FunctionCall{Name: "show_status", Arguments: ""}},
		}},
		{Role: state.RoleTool, ToolCallID: "a", Name: "list_tools", Content: "claude"},
		{Role: state.RoleTool, ToolCallID: "b", Name: "show_status", Content: "ok"},
		{Role: state.RoleAssistant, Content: "You have claude."},
	}

	system, contents := toContents(history)
	assert.Equal(t, "be brief", system)
	require.Len(t, contents, 4)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "list_tools", contents[1].Parts[0].FunctionCall.Name)

	assert.Equal(t, genai.RoleUser, contents[2].Role)
	require.Len(t, contents[2].Parts, 2)
	assert.Equal(t, "show_status", contents[2].Parts[1].FunctionResponse.Name)
	assert.Equal(t, "ok", contents[2].Parts[1].FunctionResponse.Response["output"])

	assert.Equal(t, "You have claude.", contents[3].Parts[0].Text)
}

func TestToToolsSchema(t *testing.T) {
	registry := tooling.NewRegistry(tooling.DefaultTools(tooling.NewCollaborator("terminal-jarvis", nil))...)
	tools := toTools(registry.Definitions())
	require.Len(t, tools, 1)

	var launch *genai.FunctionDeclaration
	for _, d := range tools[0].FunctionDeclarations {
		if d.Name == "launch_tool" {
			launch = d
		}
	}
	require.NotNil(t, launch)
	assert.Equal(t, genai.TypeObject, launch.Parameters.Type)
	assert.Equal(t, genai.TypeString, launch.Parameters.Properties["tool_name"].Type)
	assert.Contains(t, launch.Parameters.Required, "tool_name")

	assert.Nil(t, toTools(nil))
}

func TestFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "weighing options", Thought: true},
				{Text: "Launching claude."},
				{FunctionCall: &genai.FunctionCall{Name: "launch_tool", Args: map[string]any{"tool_name": "claude"}}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 3, TotalTokenCount: 13},
	}

	out, err := fromResponse(resp)
	require.NoError(t, err)
	msg := out.First()
	assert.Equal(t, "Launching claude.", msg.Content)
	assert.Equal(t, "weighing options", msg.Thinking)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "launch_tool", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"tool_name":"claude"}`, msg.ToolCalls[0].Function.Arguments)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
	assert.Equal(t, 13, out.Usage.TotalTokens)

	_, err = fromResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestTranslateError(t *testing.T) {
	denied := translateError(genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid. Please pass a valid API key."})
	assert.Equal(t, llm.KindAuth, llm.Classify(denied))

	limited := translateError(fmt.Errorf("wrapped: %w", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}))
	pe, ok := llm.IsProviderError(limited)
	require.True(t, ok)
	assert.Equal(t, llm.ErrorTypeRateLimit, pe.Type)
	assert.True(t, pe.Retryable)
	assert.Equal(t, llm.KindTransient, llm.Classify(limited))

	assert.ErrorIs(t, translateError(context.DeadlineExceeded), context.DeadlineExceeded)

	other := translateError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, llm.KindTransient, llm.Classify(other))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "  ")
	assert.Error(t, err)
}
