package executor

import (
	"context"
	"errors"
	"fmt"

	"engagement-advisor/internal/application/port/input"
	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
)

var _ input.TaskExecutor = (*UseCase)(nil)

const (
	defaultMaxIterations = 20
	maxObservationLen    = 20000
)

// ErrMaxIterations means the model kept calling tools without answering.
var ErrMaxIterations = fmt.Errorf("%w: max iterations exceeded", output.ErrModel)

type Config struct {
	MaxIterations int
	MaxTokens     int
	Temperature   float32
}

type UseCase struct {
	llm      output.LLMPort
	tools    output.ToolRegistry
	progress output.ProgressPort
	logger   output.LoggerPort
	cfg      Config
}

func New(
	llm output.LLMPort,
	tools output.ToolRegistry,
	progress output.ProgressPort,
	logger output.LoggerPort,
	cfg Config,
) *UseCase {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if progress == nil {
		progress = noProgress{}
	}
	return &UseCase{
		llm:      llm,
		tools:    tools,
		progress: progress,
		logger:   logger.Named("executor"),
		cfg:      cfg,
	}
}

func (uc *UseCase) Execute(ctx context.Context, req input.TaskRequest) (*input.ExecuteResult, error) {
	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: req.SystemPrompt},
		{Role: entity.RoleUser, Content: req.Task},
	}

	toolDefs := uc.tools.Definitions()
	result := &input.ExecuteResult{}

	for iteration := 1; iteration <= uc.cfg.MaxIterations; iteration++ {
		uc.logger.Debug("Starting iteration", "iteration", iteration, "provider", uc.llm.Name())
		uc.progress.ShowIteration(ctx, iteration, uc.cfg.MaxIterations)

		resp, err := uc.llm.Chat(ctx, output.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   uc.cfg.MaxTokens,
			Temperature: uc.cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("llm request failed: %w", err)
		}

		result.Iterations = iteration
		result.Usage = result.Usage.Add(resp.Usage)
		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			uc.logger.Info("Final answer received",
				"iterations", iteration,
				"toolCalls", result.ToolCalls,
				"inputTokens", result.Usage.InputTokens,
				"outputTokens", result.Usage.OutputTokens,
				"stopReason", resp.StopReason,
			)
			result.FinalAnswer = resp.Message.Content
			return result, nil
		}

		if resp.Message.Content != "" {
			uc.progress.ShowThinking(ctx, resp.Message.Content)
		}

		for _, tc := range resp.Message.ToolCalls {
			result.ToolCalls++
			observation, failed := uc.executeTool(ctx, tc)

			messages = append(messages, entity.Message{
				Role:       entity.RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    observation,
				IsError:    failed,
			})
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w (%d)", ErrMaxIterations, uc.cfg.MaxIterations)
}

// executeTool never fails: errors become observations the model can react to.
// The flag reports whether the observation describes an error.
func (uc *UseCase) executeTool(ctx context.Context, tc entity.ToolCall) (string, bool) {
	uc.progress.ShowToolStart(ctx, tc.Name, tc.Arguments)

	tool, ok := uc.tools.Get(entity.ToolName(tc.Name))
	if !ok {
		uc.logger.Warn("Unknown tool called", "name", tc.Name)
		observation := fmt.Sprintf("Error: unknown tool '%s'", tc.Name)
		uc.progress.ShowToolResult(ctx, tc.Name, observation, true)
		return observation, true
	}

	uc.logger.Info("Executing tool", "name", tc.Name)

	result, err := tool.Execute(ctx, tc.Arguments)
	if err != nil {
		level := uc.logger.Warn
		if errors.Is(err, context.Canceled) {
			level = uc.logger.Debug
		}
		level("Tool execution failed", "name", tc.Name, "error", err)

		observation := "Error: " + err.Error()
		uc.progress.ShowToolResult(ctx, tc.Name, observation, true)
		return observation, true
	}

	if len(result) > maxObservationLen {
		result = result[:maxObservationLen] + "\n... (truncated)"
	}

	uc.logger.Debug("Tool completed", "name", tc.Name, "resultLen", len(result))
	uc.progress.ShowToolResult(ctx, tc.Name, result, false)
	return result, false
}

type noProgress struct{}

func (noProgress) ShowIteration(context.Context, int, int)              {}
func (noProgress) ShowThinking(context.Context, string)                 {}
func (noProgress) ShowToolStart(context.Context, string, string)        {}
func (noProgress) ShowToolResult(context.Context, string, string, bool) {}
