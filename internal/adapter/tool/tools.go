package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
)

var ErrInvalidTimezone = errors.New("invalid timezone")

var (
	_ output.ToolPort = (*CurrentTimeTool)(nil)
	_ output.ToolPort = (*ExecuteCodeTool)(nil)
)

type CurrentTimeTool struct {
	defaultZone *time.Location
	now         func() time.Time
	logger      output.LoggerPort
}

// NewCurrentTimeTool answers with the wall clock; an empty timezone argument
// falls back to defaultZone.
func NewCurrentTimeTool(defaultZone *time.Location, now func() time.Time, logger output.LoggerPort) *CurrentTimeTool {
	if defaultZone == nil {
		defaultZone = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &CurrentTimeTool{defaultZone: defaultZone, now: now, logger: logger}
}

func (t *CurrentTimeTool) Name() entity.ToolName { return entity.ToolCurrentTime }
func (t *CurrentTimeTool) Description() string {
	return "Returns the current date and time in the given IANA timezone as an RFC3339 timestamp with offset."
}
func (t *CurrentTimeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"timezone": map[string]interface{}{
				"type":        "string",
				"description": "IANA timezone name, e.g. US/Pacific",
			},
		},
		"required": []string{"timezone"},
	}
}

func (t *CurrentTimeTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Timezone string `json:"timezone"`
	}
	if strings.TrimSpace(args) != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
	}

	loc, err := t.location(input.Timezone)
	if err != nil {
		return "", err
	}

	now := t.now().In(loc).Format(time.RFC3339)
	t.logger.Debug("current time", "timezone", loc.String(), "time", now)
	return now, nil
}

func (t *CurrentTimeTool) location(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return t.defaultZone, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

type ExecuteCodeTool struct {
	runner  output.CodeRunner
	imports []string
	logger  output.LoggerPort
}

// NewExecuteCodeTool exposes runner to the model. imports is advertised in the
// tool description.
func NewExecuteCodeTool(runner output.CodeRunner, imports []string, logger output.LoggerPort) *ExecuteCodeTool {
	return &ExecuteCodeTool{runner: runner, imports: imports, logger: logger}
}

func (t *ExecuteCodeTool) Name() entity.ToolName { return entity.ToolExecuteCode }
func (t *ExecuteCodeTool) Description() string {
	var b strings.Builder
	b.WriteString("Executes Go source code and returns the JSON encoding of its result. ")
	b.WriteString("The code must define func Run() (interface{}, error) in package main and must not start goroutines. ")
	b.WriteString("The dataset package provides Path() string, Timezone() string, Load() ([]dataset.Record, error), ")
	b.WriteString("HourlyAverages([]dataset.Record) []dataset.Hourly, ")
	b.WriteString("Best([]dataset.Hourly) (dataset.Hourly, bool), HourLabel(int) string, ")
	b.WriteString("IsFileNotFound(error) bool, IsPermissionDenied(error) bool and IsMalformedData(error) bool. ")
	b.WriteString("Record has Timestamp time.Time, Claps int, Comments int. ")
	b.WriteString("Hourly has Hour int, Label string, Posts int, AverageClaps, AverageComments and AverageEngagement float64.")
	if len(t.imports) > 0 {
		b.WriteString(" Allowed imports: ")
		b.WriteString(strings.Join(t.imports, ", "))
		b.WriteString(".")
	}
	return b.String()
}
func (t *ExecuteCodeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Go source defining func Run() (interface{}, error)",
			},
		},
		"required": []string{"code"},
	}
}

func (t *ExecuteCodeTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if strings.TrimSpace(input.Code) == "" {
		return "", errors.New("code is required")
	}

	value, err := t.runner.Run(ctx, input.Code)
	if err != nil {
		t.logger.Debug("code execution failed", "error", err)
		return "", err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
