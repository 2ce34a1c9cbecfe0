package input

import (
	"context"
	"io"

	"engagement-advisor/internal/domain/entity"
)

type AdviceResult struct {
	State      entity.RunState
	Kind       entity.ValidationKind
	Status     entity.Status
	Iterations int
	Line       []byte
}

// Advisor produces exactly one recommendation line per call.
type Advisor interface {
	Advise(ctx context.Context, out io.Writer) (*AdviceResult, error)
}
