// Package langchain adapts any langchaingo llms.Model to output.LLMPort. The
// CLI uses it for local Ollama models.
package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/infrastructure/llm"
	"engagement-advisor/internal/infrastructure/logger"
)

var _ output.LLMPort = (*LangchainAdapter)(nil)

type LangchainAdapter struct {
	model     llms.Model
	name      string
	transport *llm.StatusTransport
	logger    output.LoggerPort
}

// New wraps model. transport may be nil when the model does not speak HTTP
// through it.
func New(name string, model llms.Model, transport *llm.StatusTransport, log output.LoggerPort) *LangchainAdapter {
	if log == nil {
		log = logger.NewNop()
	}
	return &LangchainAdapter{model: model, name: name, transport: transport, logger: log}
}

type OllamaConfig struct {
	ServerURL string
	Model     string
	Timeout   time.Duration
	Logger    output.LoggerPort
}

func NewOllamaAdapter(cfg OllamaConfig) (*LangchainAdapter, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	transport := llm.NewStatusTransport(nil, cfg.Logger)

	model, err := ollama.New(
		ollama.WithServerURL(cfg.ServerURL),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(transport.Client(cfg.Timeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return New("ollama", model, transport, cfg.Logger), nil
}

func (a *LangchainAdapter) Name() string { return a.name }

func (a *LangchainAdapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	opts := []llms.CallOption{llms.WithTemperature(float64(req.Temperature))}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		opts = append(opts, llms.WithTools(convertTools(req.Tools)))
	}

	messages := convertMessages(req.Messages)
	a.logger.Debug("Generating content", "provider", a.name, "messagesCount", len(messages), "toolsCount", len(req.Tools))

	resp, err := a.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		status := 0
		if a.transport != nil {
			status = a.transport.LastStatus()
		}
		return nil, llm.Classify(a.name, status, fmt.Errorf("generate content failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w: no choices in response", a.name, output.ErrModel)
	}

	choice := resp.Choices[0]
	message := entity.Message{Role: entity.RoleAssistant, Content: choice.Content}
	for i, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		args := tc.FunctionCall.Arguments
		if args == "" {
			args = "{}"
		}
		message.ToolCalls = append(message.ToolCalls, entity.ToolCall{ID: id, Name: tc.FunctionCall.Name, Arguments: args})
	}

	return &output.ChatResponse{
		Message:    message,
		StopReason: choice.StopReason,
		Usage: entity.Usage{
			InputTokens:  intInfo(choice.GenerationInfo, "PromptTokens"),
			OutputTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
		},
	}, nil
}

func convertMessages(messages []entity.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case entity.RoleSystem:
			result = append(result, llms.TextParts(llms.ChatMessageTypeSystem, msg.Content))

		case entity.RoleUser:
			result = append(result, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))

		case entity.RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if msg.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			result = append(result, mc)

		case entity.RoleTool:
			result = append(result, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.Name,
					Content:    msg.Content,
				}},
			})
		}
	}
	return result
}

func convertTools(tools []entity.ToolDefinition) []llms.Tool {
	result := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return result
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
