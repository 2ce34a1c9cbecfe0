package openrouter

import (
	"context"
	"fmt"
	"time"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/infrastructure/llm"
	"engagement-advisor/internal/infrastructure/logger"

	"github.com/sashabaranov/go-openai"
)

const providerName = "openrouter"

var _ output.LLMPort = (*OpenRouterAdapter)(nil)

// OpenRouterAdapter talks to any OpenAI-compatible chat completions endpoint.
type OpenRouterAdapter struct {
	client    *openai.Client
	model     string
	transport *llm.StatusTransport
	logger    output.LoggerPort
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Logger  output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://openrouter.ai/api/v1",
		Timeout: 120 * time.Second,
	}
}

func NewOpenRouterAdapter(cfg Config) *OpenRouterAdapter {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	transport := llm.NewStatusTransport(nil, cfg.Logger)

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	config.HTTPClient = transport.Client(cfg.Timeout)

	return &OpenRouterAdapter{
		client:    openai.NewClientWithConfig(config),
		model:     cfg.Model,
		transport: transport,
		logger:    cfg.Logger,
	}
}

func (a *OpenRouterAdapter) Name() string { return providerName }

func (a *OpenRouterAdapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	request := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if tools := convertTools(req.Tools); len(tools) > 0 {
		request.Tools = tools
		request.ToolChoice = "auto"
	}

	a.logger.Debug("Creating chat completion",
		"model", a.model,
		"messagesCount", len(request.Messages),
		"toolsCount", len(request.Tools),
	)

	resp, err := a.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, llm.Classify(providerName, a.transport.LastStatus(), fmt.Errorf("chat completion failed: %w", err))
	}

	if len(resp.Choices) == 0 {
		return nil, llm.Classify(providerName, 0, fmt.Errorf("%w: no choices in response", output.ErrModel))
	}

	choice := resp.Choices[0]
	return &output.ChatResponse{
		Message:    convertResponseMessage(choice.Message),
		StopReason: string(choice.FinishReason),
		Usage: entity.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role == entity.RoleTool {
			oaiMsg.Name = msg.Name
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		result = append(result, oaiMsg)
	}
	return result
}

func convertTools(tools []entity.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return result
}

func convertResponseMessage(msg openai.ChatCompletionMessage) entity.Message {
	result := entity.Message{
		Role:    entity.RoleAssistant,
		Content: msg.Content,
	}

	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, entity.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return result
}
