package gemini

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func userConv(text string) provider.Conversation {
	return provider.Conversation{
		{Role: provider.RoleUser, Content: []provider.ContentBlock{provider.TextBlock(text)}},
	}
}

func TestComplete_StreamsTextDeltas(t *testing.T) {
	var gotModel string
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			gotModel = model
			return streamOf([]*genai.GenerateContentResponse{
				textChunk("Hello "),
				textChunk("there!"),
				finalChunk(genai.FinishReasonStop, 10, 5),
			}, nil)
		},
	}
	p := New(mockClient, "gemini-mock", nil)

	var deltas []string
	resp, err := p.Complete(context.Background(), &provider.Request{Messages: userConv("Hello")},
		provider.Callbacks{OnText: func(d string) { deltas = append(deltas, d) }})

	require.NoError(t, err)
	assert.Equal(t, "gemini-mock", gotModel)
	assert.Equal(t, []string{"Hello ", "there!"}, deltas)
	assert.Equal(t, provider.StopEndTurn, resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "Hello there!", resp.Content[0].Text)
	assert.Equal(t, provider.Usage{InputTokens: 10, OutputTokens: 5}, resp.Usage)
}

func TestComplete_FunctionCall_AssignsIDWhenMissing(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return streamOf([]*genai.GenerateContentResponse{
				textChunk("Let me look."),
				{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
					{FunctionCall: &genai.FunctionCall{Name: "read_file", Args: map[string]any{"path": "a.txt"}}},
					{FunctionCall: &genai.FunctionCall{ID: "given", Name: "grep"}},
				}}}}},
				finalChunk(genai.FinishReasonStop, 3, 4),
			}, nil)
		},
	}
	p := New(mockClient, "gemini-mock", nil)
	p.newID = func() string { return "generated" }

	var used []provider.ToolInvocation
	resp, err := p.Complete(context.Background(), &provider.Request{Messages: userConv("read")},
		provider.Callbacks{OnToolUse: func(inv provider.ToolInvocation) { used = append(used, inv) }})

	require.NoError(t, err)
	assert.Equal(t, provider.StopToolUse, resp.StopReason)

	turn := resp.Turn()
	assert.Equal(t, "Let me look.", turn.Text())
	invs := turn.Invocations()
	require.Len(t, invs, 2)
	assert.Equal(t, "generated", invs[0].ID)
	assert.Equal(t, "read_file", invs[0].Name)
	assert.Equal(t, "a.txt", invs[0].Arguments["path"])
	assert.Equal(t, "given", invs[1].ID)
	assert.NotNil(t, invs[1].Arguments)
	assert.Equal(t, invs, used)

	// Text precedes the calls in block order.
	assert.Equal(t, provider.BlockText, resp.Content[0].Type)
}

func TestComplete_MaxTokensStopReason(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return streamOf([]*genai.GenerateContentResponse{
				textChunk("partial"),
				finalChunk(genai.FinishReasonMaxTokens, 1, 1),
			}, nil)
		},
	}
	p := New(mockClient, "gemini-mock", nil)

	resp, err := p.Complete(context.Background(), &provider.Request{Messages: userConv("x")}, provider.Callbacks{})

	require.NoError(t, err)
	assert.Equal(t, provider.StopMaxTokens, resp.StopReason)
	assert.Equal(t, "partial", resp.Turn().Text())
}

func TestComplete_SafetyBlock(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return streamOf([]*genai.GenerateContentResponse{finalChunk(genai.FinishReasonSafety, 1, 0)}, nil)
		},
	}
	p := New(mockClient, "gemini-mock", nil)

	_, err := p.Complete(context.Background(), &provider.Request{Messages: userConv("x")}, provider.Callbacks{})

	assert.ErrorIs(t, err, provider.ErrContentBlocked)
}

func TestComplete_PromptBlocked(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return streamOf([]*genai.GenerateContentResponse{{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
			}}, nil)
		},
	}
	p := New(mockClient, "gemini-mock", nil)

	_, err := p.Complete(context.Background(), &provider.Request{Messages: userConv("x")}, provider.Callbacks{})

	assert.ErrorIs(t, err, provider.ErrContentBlocked)
}

func TestComplete_EmptyStream(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return streamOf(nil, nil)
		},
	}
	p := New(mockClient, "gemini-mock", nil)

	_, err := p.Complete(context.Background(), &provider.Request{Messages: userConv("x")}, provider.Callbacks{})

	assert.ErrorIs(t, err, provider.ErrInvalidResponse)
}

func TestComplete_RateLimitFailsImmediately(t *testing.T) {
	calls := 0
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			calls++
			return streamOf(nil, genai.APIError{Code: 429, Message: "slow down"})
		},
	}
	p := New(mockClient, "gemini-mock", nil)

	_, err := p.Complete(context.Background(), &provider.Request{Messages: userConv("x")}, provider.Callbacks{})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, provider.ErrRateLimit)
	assert.Equal(t, 429, provider.StatusCode(err))
}

func TestComplete_ErrorMidStreamDiscardsPartial(t *testing.T) {
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			return streamOf([]*genai.GenerateContentResponse{textChunk("half")}, errors.New("connection reset"))
		},
	}
	p := New(mockClient, "gemini-mock", nil)

	var deltas []string
	resp, err := p.Complete(context.Background(), &provider.Request{Messages: userConv("x")},
		provider.Callbacks{OnText: func(d string) { deltas = append(deltas, d) }})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, provider.ErrNetwork)
	assert.Equal(t, []string{"half"}, deltas)
}

func TestComplete_PassesConfig(t *testing.T) {
	var gotConfig *genai.GenerateContentConfig
	var gotContents []*genai.Content
	mockClient := &MockGeminiClient{
		GenerateContentStreamFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
			gotConfig = config
			gotContents = contents
			return streamOf([]*genai.GenerateContentResponse{textChunk("ok"), finalChunk(genai.FinishReasonStop, 1, 1)}, nil)
		},
	}
	p := New(mockClient, "gemini-mock", nil)

	_, err := p.Complete(context.Background(), &provider.Request{
		Messages:     userConv("hi"),
		SystemPrompt: "be brief",
		MaxTokens:    100,
		Tools: []tool.Declaration{{
			Name:        "read_file",
			Description: "Read a file",
			Parameters: &tool.Schema{
				Type:       tool.TypeObject,
				Properties: map[string]*tool.Schema{"path": {Type: tool.TypeString}},
				Required:   []string{"path"},
			},
		}},
	}, provider.Callbacks{})

	require.NoError(t, err)
	require.NotNil(t, gotConfig)
	assert.Equal(t, int32(100), gotConfig.MaxOutputTokens)
	require.NotNil(t, gotConfig.SystemInstruction)
	assert.Equal(t, "be brief", gotConfig.SystemInstruction.Parts[0].Text)
	require.Len(t, gotConfig.Tools, 1)
	require.Len(t, gotConfig.Tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "read_file", gotConfig.Tools[0].FunctionDeclarations[0].Name)
	require.Len(t, gotContents, 1)
	assert.Equal(t, genai.RoleUser, gotContents[0].Role)
}

func TestListModels_StripsPrefixAndSorts(t *testing.T) {
	mockClient := &MockGeminiClient{
		ListModelsFunc: func(ctx context.Context) ([]ModelInfo, error) {
			return []ModelInfo{{Name: "models/gemini-2.5-pro"}, {Name: "models/gemini-2.5-flash"}}, nil
		},
	}
	p := New(mockClient, "gemini-mock", nil)

	models, err := p.ListModels(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-pro"}, models)
}

func TestSetModel(t *testing.T) {
	p := New(&MockGeminiClient{}, "a", nil)
	p.SetModel("b")
	assert.Equal(t, "b", p.GetModel())
}

func TestIsChatModel(t *testing.T) {
	assert.True(t, isChatModel("models/gemini-2.5-flash"))
	assert.False(t, isChatModel("models/gemini-embedding-001"))
	assert.False(t, isChatModel("models/gemini-2.0-flash-live-001"))
	assert.False(t, isChatModel("models/text-bison"))
}
