package output

import (
	"context"
	"errors"

	"engagement-advisor/internal/domain/entity"
)

// LLMPort is a completion service backend. Chat is non-streaming: it blocks
// until the full assistant message is available.
type LLMPort interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.ToolDefinition
	MaxTokens   int
	Temperature float32
}

type ChatResponse struct {
	Message    entity.Message
	StopReason string
	Usage      entity.Usage
}

// Completion service failures. Adapters wrap one of these together with the
// provider error; all of them are terminal for a run.
var (
	ErrAuthentication     = errors.New("completion service authentication failed")
	ErrServiceUnavailable = errors.New("completion service unavailable")
	ErrTimeout            = errors.New("completion service timed out")
	ErrModel              = errors.New("completion model error")
)
