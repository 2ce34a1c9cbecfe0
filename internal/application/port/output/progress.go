package output

import "context"

// ProgressPort renders the reasoning loop for a human watching stderr.
type ProgressPort interface {
	ShowIteration(ctx context.Context, iteration, maxIterations int)
	ShowThinking(ctx context.Context, content string)
	ShowToolStart(ctx context.Context, toolName, arguments string)
	ShowToolResult(ctx context.Context, toolName, result string, isError bool)
}
