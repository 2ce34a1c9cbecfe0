package input

import (
	"context"

	"engagement-advisor/internal/domain/entity"
)

type TaskRequest struct {
	SystemPrompt string
	Task         string
}

type ExecuteResult struct {
	FinalAnswer string
	Iterations  int
	ToolCalls   int
	Usage       entity.Usage
}

// TaskExecutor drives one reasoning loop to its final answer.
type TaskExecutor interface {
	Execute(ctx context.Context, req TaskRequest) (*ExecuteResult, error)
}
