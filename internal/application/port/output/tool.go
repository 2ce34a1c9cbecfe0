package output

import (
	"context"

	"engagement-advisor/internal/domain/entity"
)

type ToolPort interface {
	Name() entity.ToolName
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, arguments string) (string, error)
}

type ToolRegistry interface {
	Register(tool ToolPort)
	Get(name entity.ToolName) (ToolPort, bool)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
}

// CodeRunner evaluates analysis code against the engagement dataset and
// returns a JSON-compatible value.
type CodeRunner interface {
	Run(ctx context.Context, code string) (interface{}, error)
}
