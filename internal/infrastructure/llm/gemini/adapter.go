// Package gemini adapts the Google Gen AI SDK to output.LLMPort.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/infrastructure/llm"
	"engagement-advisor/internal/infrastructure/logger"
)

const providerName = "gemini"

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  output.LoggerPort
}

var _ output.LLMPort = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	models    generator
	model     string
	transport *llm.StatusTransport
	logger    output.LoggerPort
}

func NewGeminiAdapter(ctx context.Context, cfg Config) (*GeminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w: API key is required", providerName, output.ErrAuthentication)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	transport := llm.NewStatusTransport(nil, cfg.Logger)
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: transport.Client(cfg.Timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiAdapter{
		models:    client.Models,
		model:     cfg.Model,
		transport: transport,
		logger:    cfg.Logger,
	}, nil
}

func (a *GeminiAdapter) Name() string { return providerName }

func (a *GeminiAdapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	system, contents := convertMessages(req.Messages)

	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(req.Temperature),
		MaxOutputTokens:   int32(req.MaxTokens),
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: convertTools(req.Tools)}}
	}

	a.logger.Debug("Generating content", "model", a.model, "contentsCount", len(contents), "toolsCount", len(req.Tools))

	resp, err := a.models.GenerateContent(ctx, a.model, contents, config)
	if err != nil {
		return nil, llm.Classify(providerName, a.transport.LastStatus(), fmt.Errorf("generate content failed: %w", err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%s: %w: no candidates in response", providerName, output.ErrModel)
	}

	candidate := resp.Candidates[0]
	message, err := convertResponseContent(candidate.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", providerName, output.ErrModel, err)
	}

	result := &output.ChatResponse{
		Message:    message,
		StopReason: string(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		result.Usage = entity.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return result, nil
}

func convertMessages(messages []entity.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	var contents []*genai.Content

	appendParts := func(role string, parts ...*genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	for _, msg := range messages {
		switch msg.Role {
		case entity.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: msg.Content})

		case entity.RoleUser:
			appendParts(genai.RoleUser, &genai.Part{Text: msg.Content})

		case entity.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			if len(parts) > 0 {
				appendParts(genai.RoleModel, parts...)
			}

		case entity.RoleTool:
			key := "output"
			if msg.IsError {
				key = "error"
			}
			appendParts(genai.RoleUser, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     msg.Name,
				Response: map[string]any{key: msg.Content},
			}})
		}
	}

	return system, contents
}

func convertTools(tools []entity.ToolDefinition) []*genai.FunctionDeclaration {
	result := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		result = append(result, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.Parameters),
		})
	}
	return result
}

// convertSchema maps the JSON schema subset used by tool parameters onto
// genai.Schema.
func convertSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		result.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := schema["description"].(string); ok {
		result.Description = d
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		result.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if ps, ok := p.(map[string]interface{}); ok {
				result.Properties[name] = convertSchema(ps)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		result.Items = convertSchema(items)
	}
	switch req := schema["required"].(type) {
	case []string:
		result.Required = req
	case []interface{}:
		for _, r := range req {
			if s, ok := r.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}
	return result
}

func convertResponseContent(content *genai.Content) (entity.Message, error) {
	result := entity.Message{Role: entity.RoleAssistant}

	var text []string
	for i, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.Thought {
			continue
		}
		if part.Text != "" {
			text = append(text, part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			args, err := json.Marshal(fc.Args)
			if err != nil {
				return entity.Message{}, fmt.Errorf("encode function args: %w", err)
			}
			if fc.Args == nil {
				args = []byte("{}")
			}
			id := fc.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			result.ToolCalls = append(result.ToolCalls, entity.ToolCall{ID: id, Name: fc.Name, Arguments: string(args)})
		}
	}
	result.Content = strings.Join(text, "")

	return result, nil
}
