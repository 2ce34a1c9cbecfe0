package entity

// RunState tracks one advisor invocation. Every path ends in StatePrinted
// unless the completion service fails.
type RunState string

const (
	StateInit            RunState = "init"
	StatePromptBuilt     RunState = "prompt_built"
	StateServiceCalled   RunState = "service_called"
	StateParsedSuccess   RunState = "parsed_success"
	StateParsedError     RunState = "parsed_error"
	StateParseFailed     RunState = "parse_failed"
	StateSchemaViolation RunState = "schema_violation"
	StatePrinted         RunState = "printed"
)

// ValidationKind classifies a final model message.
type ValidationKind string

const (
	KindValid           ValidationKind = "valid"
	KindSchemaViolation ValidationKind = "schema_violation"
	KindParseFailure    ValidationKind = "parse_failure"
)

// Prompts is the pair of instructions sent to the reasoning loop.
type Prompts struct {
	System string
	Task   string
}
