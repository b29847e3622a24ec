package gemini

import (
	"errors"
	"fmt"

	"github.com/Cyclone1070/agentcore/internal/provider"
	"github.com/Cyclone1070/agentcore/internal/tool"
	"google.golang.org/genai"
)

// toGeminiContents converts the conversation to Gemini Content format.
func toGeminiContents(conv provider.Conversation) []*genai.Content {
	contents := make([]*genai.Content, 0, len(conv))
	for _, turn := range conv {
		if content := turnToGeminiContent(turn); content != nil {
			contents = append(contents, content)
		}
	}
	return contents
}

// turnToGeminiContent converts a single turn to Gemini Content format.
func turnToGeminiContent(turn provider.Turn) *genai.Content {
	role := genai.RoleUser
	if turn.Role == provider.RoleAssistant {
		role = genai.RoleModel
	}

	parts := make([]*genai.Part, 0, len(turn.Content))
	for _, block := range turn.Content {
		switch block.Type {
		case provider.BlockText:
			if block.Text != "" {
				parts = append(parts, genai.NewPartFromText(block.Text))
			}
		case provider.BlockToolInvocation:
			if block.Invocation == nil {
				continue
			}
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   block.Invocation.ID,
					Name: block.Invocation.Name,
					Args: block.Invocation.Arguments,
				},
			})
		case provider.BlockToolResult:
			if block.Result == nil {
				continue
			}
			key := "output"
			if block.Result.IsError {
				key = "error"
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       block.Result.InvocationID,
					Name:     block.Result.Name,
					Response: map[string]any{key: block.Result.Content},
				},
			})
		}
	}

	// Skip empty turns
	if len(parts) == 0 {
		return nil
	}

	return &genai.Content{Role: role, Parts: parts}
}

// toGeminiConfig builds the generation config for a request.
func toGeminiConfig(req *provider.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SafetySettings: defaultSafetySettings(),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		config.Tools = toGeminiTools(req.Tools)
	}
	return config
}

// defaultSafetySettings returns safety settings with BLOCK_NONE for all categories.
func defaultSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHateSpeech,
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategorySexuallyExplicit,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdOff})
	}
	return settings
}

// toGeminiTools converts tool declarations to Gemini tools.
func toGeminiTools(decls []tool.Declaration) []*genai.Tool {
	functionDeclarations := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		fd := &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
		}
		if d.Parameters != nil {
			fd.Parameters = toGeminiSchema(d.Parameters)
		}
		functionDeclarations = append(functionDeclarations, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: functionDeclarations}}
}

// toGeminiSchema converts a tool schema to a Gemini schema, recursively.
func toGeminiSchema(s *tool.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toGeminiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toGeminiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGeminiSchema(prop)
		}
	}
	return out
}

// toGeminiType converts a schema type to a Gemini Type.
func toGeminiType(t tool.Type) genai.Type {
	switch t {
	case tool.TypeString:
		return genai.TypeString
	case tool.TypeNumber:
		return genai.TypeNumber
	case tool.TypeInteger:
		return genai.TypeInteger
	case tool.TypeBoolean:
		return genai.TypeBoolean
	case tool.TypeArray:
		return genai.TypeArray
	case tool.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func fromGeminiUsage(usage *genai.GenerateContentResponseUsageMetadata) provider.Usage {
	return provider.Usage{
		InputTokens:  int(usage.PromptTokenCount),
		OutputTokens: int(usage.CandidatesTokenCount),
	}
}

// mapGeminiError maps Gemini API errors to provider errors.
// Rate limits are reported, not retried.
func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}

	// The SDK returns APIError by value; tests and wrappers may use a pointer.
	var (
		apiErr    genai.APIError
		apiErrPtr *genai.APIError
	)
	switch {
	case errors.As(err, &apiErrPtr):
		apiErr = *apiErrPtr
	case errors.As(err, &apiErr):
	default:
		return &provider.ProviderError{
			Code:       provider.ErrorCodeNetwork,
			Message:    "network error",
			Underlying: err,
			Retryable:  true,
		}
	}

	pe := &provider.ProviderError{
		StatusCode: apiErr.Code,
		Underlying: err,
	}
	switch apiErr.Code {
	case 401, 403:
		pe.Code = provider.ErrorCodeAuth
		pe.Message = "authentication failed"
	case 429:
		pe.Code = provider.ErrorCodeRateLimit
		pe.Message = "rate limit exceeded"
		pe.Retryable = true
	case 400:
		pe.Code = provider.ErrorCodeInvalidRequest
		pe.Message = fmt.Sprintf("invalid request: %s", apiErr.Message)
	case 500, 502, 503, 504:
		pe.Code = provider.ErrorCodeUnavailable
		pe.Message = "service unavailable"
		pe.Retryable = true
	default:
		pe.Code = provider.ErrorCodeNetwork
		pe.Message = fmt.Sprintf("API error: %s", apiErr.Message)
		pe.Retryable = true
	}
	return pe
}
