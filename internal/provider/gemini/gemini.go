package gemini

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiProvider implements provider.Backend for Google Gemini.
type GeminiProvider struct {
	client    GeminiClient
	logger    *slog.Logger
	newID     func() string
	mu        sync.RWMutex
	modelName string
}

// New creates a new GeminiProvider with the specified client and model.
func New(client GeminiClient, modelName string, logger *slog.Logger) *GeminiProvider {
	if client == nil {
		panic("client is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GeminiProvider{
		client:    client,
		logger:    logger,
		newID:     uuid.NewString,
		modelName: modelName,
	}
}

// Complete streams one completion. Text deltas reach cb.OnText as they
// arrive; function calls are reported once each chunk carrying them is seen.
func (p *GeminiProvider) Complete(ctx context.Context, req *provider.Request, cb provider.Callbacks) (*provider.Response, error) {
	model := p.GetModel()
	contents := toGeminiContents(req.Messages)
	config := toGeminiConfig(req)

	p.logger.Debug("gemini request", "model", model, "turns", len(contents), "tools", len(req.Tools))

	var (
		blocks  []provider.ContentBlock
		text    strings.Builder
		usage   provider.Usage
		finish  genai.FinishReason
		hasCall bool
		chunks  int
	)
	flushText := func() {
		if text.Len() > 0 {
			blocks = append(blocks, provider.TextBlock(text.String()))
			text.Reset()
		}
	}

	for resp, err := range p.client.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return nil, mapGeminiError(err)
		}
		chunks++
		if resp.UsageMetadata != nil {
			usage = fromGeminiUsage(resp.UsageMetadata)
		}
		if len(resp.Candidates) == 0 {
			if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
				return nil, &provider.ProviderError{
					Code:    provider.ErrorCodeContentBlocked,
					Message: "prompt blocked: " + string(resp.PromptFeedback.BlockReason),
				}
			}
			continue
		}

		candidate := resp.Candidates[0]
		if candidate.FinishReason != "" {
			finish = candidate.FinishReason
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
				cb.EmitText(part.Text)
			}
			if part.FunctionCall != nil {
				flushText()
				inv := p.toInvocation(part.FunctionCall)
				blocks = append(blocks, provider.InvocationBlock(inv))
				hasCall = true
				cb.EmitToolUse(inv)
			}
		}
	}
	flushText()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if finish == genai.FinishReasonSafety {
		return nil, &provider.ProviderError{
			Code:    provider.ErrorCodeContentBlocked,
			Message: "content blocked by safety filters",
		}
	}
	if chunks == 0 {
		return nil, &provider.ProviderError{
			Code:    provider.ErrorCodeInvalidResponse,
			Message: "empty response stream",
		}
	}

	stop := provider.StopEndTurn
	switch {
	case hasCall:
		stop = provider.StopToolUse
	case finish == genai.FinishReasonMaxTokens:
		stop = provider.StopMaxTokens
	}

	p.logger.Debug("gemini response", "model", model, "stop_reason", stop,
		"input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)

	return &provider.Response{
		Content:    blocks,
		StopReason: stop,
		Usage:      usage,
	}, nil
}

// toInvocation converts a function call, assigning an id when Gemini omits one.
func (p *GeminiProvider) toInvocation(fc *genai.FunctionCall) provider.ToolInvocation {
	id := fc.ID
	if id == "" {
		id = p.newID()
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	return provider.ToolInvocation{ID: id, Name: fc.Name, Arguments: args}
}

// SetModel changes the active model at runtime.
func (p *GeminiProvider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modelName = model
}

// GetModel returns the currently active model name.
func (p *GeminiProvider) GetModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modelName
}

// ListModels returns the available chat model names without the "models/" prefix, sorted.
func (p *GeminiProvider) ListModels(ctx context.Context) ([]string, error) {
	infos, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, mapGeminiError(err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, strings.TrimPrefix(info.Name, "models/"))
	}
	sort.Strings(names)
	return names, nil
}
