package gemini

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestMapGeminiError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   provider.ErrorCode
		wantStatus int
		retryable  bool
	}{
		{"auth 401", genai.APIError{Code: 401}, provider.ErrorCodeAuth, 401, false},
		{"auth 403 pointer", &genai.APIError{Code: 403}, provider.ErrorCodeAuth, 403, false},
		{"rate limit", genai.APIError{Code: 429}, provider.ErrorCodeRateLimit, 429, true},
		{"bad request", genai.APIError{Code: 400, Message: "bad field"}, provider.ErrorCodeInvalidRequest, 400, false},
		{"unavailable", genai.APIError{Code: 503}, provider.ErrorCodeUnavailable, 503, true},
		{"other api", genai.APIError{Code: 418}, provider.ErrorCodeNetwork, 418, true},
		{"wrapped api", fmt.Errorf("stream: %w", genai.APIError{Code: 500}), provider.ErrorCodeUnavailable, 500, true},
		{"plain", errors.New("dial tcp: refused"), provider.ErrorCodeNetwork, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapGeminiError(tt.err)

			var pe *provider.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantCode, pe.Code)
			assert.Equal(t, tt.wantStatus, pe.StatusCode)
			assert.Equal(t, tt.retryable, pe.Retryable)
			assert.Equal(t, tt.err, pe.Underlying)
		})
	}

	assert.NoError(t, mapGeminiError(nil))
}

func TestToGeminiContents_RolesAndBlocks(t *testing.T) {
	conv := provider.Conversation{
		{Role: provider.RoleUser, Content: []provider.ContentBlock{provider.TextBlock("read a.txt")}},
		{Role: provider.RoleAssistant, Content: []provider.ContentBlock{
			provider.TextBlock("ok"),
			provider.InvocationBlock(provider.ToolInvocation{ID: "c1", Name: "read_file", Arguments: map[string]any{"path": "a.txt"}}),
		}},
		{Role: provider.RoleUser, Content: []provider.ContentBlock{
			provider.ResultBlock(provider.ToolResultBlock{InvocationID: "c1", Name: "read_file", Content: "hello"}),
			provider.ResultBlock(provider.ToolResultBlock{InvocationID: "c2", Name: "grep", Content: "permission denied", IsError: true}),
		}},
		{Role: provider.RoleAssistant, Content: []provider.ContentBlock{provider.TextBlock("")}},
	}

	contents := toGeminiContents(conv)

	require.Len(t, contents, 3, "empty turn is skipped")
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)

	fc := contents[1].Parts[1].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "c1", fc.ID)
	assert.Equal(t, "read_file", fc.Name)
	assert.Equal(t, "a.txt", fc.Args["path"])

	ok := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, ok)
	assert.Equal(t, "c1", ok.ID)
	assert.Equal(t, map[string]any{"output": "hello"}, ok.Response)

	failed := contents[2].Parts[1].FunctionResponse
	assert.Equal(t, map[string]any{"error": "permission denied"}, failed.Response)
}

func TestToGeminiSchema_Nested(t *testing.T) {
	schema := &tool.Schema{
		Type: tool.TypeObject,
		Properties: map[string]*tool.Schema{
			"paths": {Type: tool.TypeArray, Items: &tool.Schema{Type: tool.TypeString, Description: "a path"}},
			"mode":  {Type: tool.TypeString, Enum: []string{"quick", "medium"}},
			"opts":  {Type: tool.TypeObject, Properties: map[string]*tool.Schema{"depth": {Type: tool.TypeInteger}}},
		},
		Required: []string{"paths"},
	}

	out := toGeminiSchema(schema)

	assert.Equal(t, genai.TypeObject, out.Type)
	assert.Equal(t, []string{"paths"}, out.Required)
	assert.Equal(t, genai.TypeArray, out.Properties["paths"].Type)
	assert.Equal(t, genai.TypeString, out.Properties["paths"].Items.Type)
	assert.Equal(t, "a path", out.Properties["paths"].Items.Description)
	assert.Equal(t, []string{"quick", "medium"}, out.Properties["mode"].Enum)
	assert.Equal(t, genai.TypeInteger, out.Properties["opts"].Properties["depth"].Type)
	assert.Nil(t, toGeminiSchema(nil))
}

func TestToGeminiType(t *testing.T) {
	assert.Equal(t, genai.TypeNumber, toGeminiType(tool.TypeNumber))
	assert.Equal(t, genai.TypeBoolean, toGeminiType(tool.TypeBoolean))
	assert.Equal(t, genai.TypeString, toGeminiType(tool.Type("weird")))
}

func TestToGeminiConfig_Defaults(t *testing.T) {
	cfg := toGeminiConfig(&provider.Request{})

	assert.Len(t, cfg.SafetySettings, 4)
	assert.Zero(t, cfg.MaxOutputTokens)
	assert.Nil(t, cfg.SystemInstruction)
	assert.Nil(t, cfg.Tools)
}
