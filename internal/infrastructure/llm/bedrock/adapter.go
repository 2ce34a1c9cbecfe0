// Package bedrock adapts the AWS Bedrock Converse API to output.LLMPort.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/infrastructure/llm"
	"engagement-advisor/internal/infrastructure/logger"
)

const providerName = "bedrock"

type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Model           string
	Timeout         time.Duration
	Logger          output.LoggerPort
}

var _ output.LLMPort = (*BedrockAdapter)(nil)

type BedrockAdapter struct {
	client    converseAPI
	model     string
	transport *llm.StatusTransport
	logger    output.LoggerPort
}

func NewBedrockAdapter(ctx context.Context, cfg Config) (*BedrockAdapter, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	transport := llm.NewStatusTransport(nil, cfg.Logger)

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(transport.Client(cfg.Timeout)),
		// Completion failures are terminal.
		config.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cfg.Logger.Info("Bedrock client initialized", "region", cfg.Region, "model", cfg.Model)

	return &BedrockAdapter{
		client:    bedrockruntime.NewFromConfig(awsCfg),
		model:     cfg.Model,
		transport: transport,
		logger:    cfg.Logger,
	}, nil
}

func (a *BedrockAdapter) Name() string { return providerName }

func (a *BedrockAdapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	system, messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", providerName, output.ErrModel, err)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(a.model),
		System:   system,
		Messages: messages,
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(req.Temperature),
		},
	}
	if req.MaxTokens > 0 {
		input.InferenceConfig.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = &types.ToolConfiguration{Tools: convertTools(req.Tools)}
	}

	a.logger.Debug("Calling Converse", "model", a.model, "messagesCount", len(messages), "toolsCount", len(req.Tools))

	out, err := a.client.Converse(ctx, input)
	if err != nil {
		return nil, llm.Classify(providerName, a.transport.LastStatus(), mapAPIError(err))
	}

	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("%s: %w: unexpected output type %T", providerName, output.ErrModel, out.Output)
	}

	message, err := convertResponseMessage(msgOut.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", providerName, output.ErrModel, err)
	}

	resp := &output.ChatResponse{
		Message:    message,
		StopReason: string(out.StopReason),
	}
	if out.Usage != nil {
		resp.Usage = entity.Usage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}
	return resp, nil
}

// convertMessages splits off system prompts and folds tool results into user
// turns, since Converse requires alternating user and assistant messages.
func convertMessages(messages []entity.Message) ([]types.SystemContentBlock, []types.Message, error) {
	var system []types.SystemContentBlock
	var result []types.Message

	appendBlocks := func(role types.ConversationRole, blocks ...types.ContentBlock) {
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = append(result[n-1].Content, blocks...)
			return
		}
		result = append(result, types.Message{Role: role, Content: blocks})
	}

	for _, msg := range messages {
		switch msg.Role {
		case entity.RoleSystem:
			system = append(system, &types.SystemContentBlockMemberText{Value: msg.Content})

		case entity.RoleUser:
			appendBlocks(types.ConversationRoleUser, &types.ContentBlockMemberText{Value: msg.Content})

		case entity.RoleAssistant:
			var blocks []types.ContentBlock
			if msg.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args interface{} = map[string]interface{}{}
				if strings.TrimSpace(tc.Arguments) != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return nil, nil, fmt.Errorf("tool call %s arguments: %w", tc.ID, err)
					}
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(args),
				}})
			}
			if len(blocks) > 0 {
				appendBlocks(types.ConversationRoleAssistant, blocks...)
			}

		case entity.RoleTool:
			status := types.ToolResultStatusSuccess
			if msg.IsError {
				status = types.ToolResultStatusError
			}
			appendBlocks(types.ConversationRoleUser, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
				ToolUseId: aws.String(msg.ToolCallID),
				Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: msg.Content}},
				Status:    status,
			}})

		default:
			return nil, nil, fmt.Errorf("unsupported role %q", msg.Role)
		}
	}

	return system, result, nil
}

func convertTools(tools []entity.ToolDefinition) []types.Tool {
	result := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(t.Name),
			Description: aws.String(t.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(t.Parameters)},
		}})
	}
	return result
}

func convertResponseMessage(msg types.Message) (entity.Message, error) {
	result := entity.Message{Role: entity.RoleAssistant}

	var text []string
	for _, block := range msg.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			text = append(text, b.Value)
		case *types.ContentBlockMemberToolUse:
			args := []byte("{}")
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return entity.Message{}, fmt.Errorf("decode tool input: %w", err)
				}
				args = raw
			}
			result.ToolCalls = append(result.ToolCalls, entity.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: string(args),
			})
		}
	}
	result.Content = strings.Join(text, "")

	return result, nil
}

func mapAPIError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException", "InvalidSignatureException":
		return fmt.Errorf("%w: %w", output.ErrAuthentication, err)
	case "ThrottlingException", "ServiceUnavailableException", "InternalServerException", "ServiceQuotaExceededException", "ModelNotReadyException":
		return fmt.Errorf("%w: %w", output.ErrServiceUnavailable, err)
	case "ModelTimeoutException":
		return fmt.Errorf("%w: %w", output.ErrTimeout, err)
	case "ValidationException", "ModelErrorException", "ResourceNotFoundException":
		return fmt.Errorf("%w: %w", output.ErrModel, err)
	}
	return err
}
