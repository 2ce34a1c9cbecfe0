package advisor

import (
	"context"
	"fmt"
	"io"

	"engagement-advisor/internal/application/port/input"
	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/usecase/validator"
)

var _ input.Advisor = (*UseCase)(nil)

type ResponseValidator interface {
	Validate(content string) validator.Result
}

// UseCase runs one advisor invocation: build prompts, run the reasoning loop
// once, validate its final message and print exactly one line.
type UseCase struct {
	prompts   output.PromptPort
	executor  input.TaskExecutor
	validator ResponseValidator
	logger    output.LoggerPort
}

func New(
	prompts output.PromptPort,
	executor input.TaskExecutor,
	validator ResponseValidator,
	logger output.LoggerPort,
) *UseCase {
	return &UseCase{
		prompts:   prompts,
		executor:  executor,
		validator: validator,
		logger:    logger.Named("advisor"),
	}
}

// Advise returns an error only when nothing was printed: prompt rendering,
// completion service or write failures.
func (uc *UseCase) Advise(ctx context.Context, out io.Writer) (*input.AdviceResult, error) {
	result := &input.AdviceResult{}
	uc.transition(result, entity.StateInit)

	prompts, err := uc.prompts.Build()
	if err != nil {
		return result, fmt.Errorf("build prompts: %w", err)
	}
	uc.transition(result, entity.StatePromptBuilt)

	exec, err := uc.executor.Execute(ctx, input.TaskRequest{
		SystemPrompt: prompts.System,
		Task:         prompts.Task,
	})
	if err != nil {
		return result, fmt.Errorf("completion service: %w", err)
	}
	result.Iterations = exec.Iterations
	uc.transition(result, entity.StateServiceCalled)

	validated := uc.validator.Validate(exec.FinalAnswer)
	result.Kind = validated.Kind
	result.Status = validated.Status
	result.Line = validated.Line
	uc.transition(result, parsedState(validated))

	line := make([]byte, 0, len(validated.Line)+1)
	line = append(line, validated.Line...)
	line = append(line, '\n')
	if _, err := out.Write(line); err != nil {
		return result, fmt.Errorf("write recommendation: %w", err)
	}
	uc.transition(result, entity.StatePrinted)

	uc.logger.Info("Recommendation printed",
		"status", result.Status,
		"kind", result.Kind,
		"iterations", exec.Iterations,
		"toolCalls", exec.ToolCalls,
	)
	return result, nil
}

func (uc *UseCase) transition(result *input.AdviceResult, next entity.RunState) {
	uc.logger.Debug("State transition", "from", result.State, "to", next)
	result.State = next
}

func parsedState(res validator.Result) entity.RunState {
	switch {
	case res.Kind == entity.KindParseFailure:
		return entity.StateParseFailed
	case res.Kind == entity.KindSchemaViolation:
		return entity.StateSchemaViolation
	case res.Status == entity.StatusSuccess:
		return entity.StateParsedSuccess
	default:
		return entity.StateParsedError
	}
}
