package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/infrastructure/logger"
)

func fixedClock() time.Time {
	return time.Date(2025, 5, 30, 16, 30, 0, 0, time.UTC)
}

func TestCurrentTimeTool_Execute(t *testing.T) {
	tool := NewCurrentTimeTool(time.UTC, fixedClock, logger.NewNop())
	assert.Equal(t, entity.ToolCurrentTime, tool.Name())

	got, err := tool.Execute(context.Background(), `{"timezone":"US/Pacific"}`)
	require.NoError(t, err)
	assert.Equal(t, "2025-05-30T09:30:00-07:00", got)
}

func TestCurrentTimeTool_DefaultZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	tool := NewCurrentTimeTool(tokyo, fixedClock, logger.NewNop())

	for _, args := range []string{"", `{}`, `{"timezone":" "}`} {
		got, err := tool.Execute(context.Background(), args)
		require.NoError(t, err)
		assert.Equal(t, "2025-05-31T01:30:00+09:00", got)
	}
}

func TestCurrentTimeTool_InvalidTimezone(t *testing.T) {
	tool := NewCurrentTimeTool(time.UTC, fixedClock, logger.NewNop())

	_, err := tool.Execute(context.Background(), `{"timezone":"Mars/Olympus"}`)
	assert.True(t, errors.Is(err, ErrInvalidTimezone))

	_, err = tool.Execute(context.Background(), `{"timezone":`)
	assert.Error(t, err)
}

type stubRunner struct {
	code  string
	value interface{}
	err   error
}

func (s *stubRunner) Run(ctx context.Context, code string) (interface{}, error) {
	s.code = code
	return s.value, s.err
}

func TestExecuteCodeTool_Execute(t *testing.T) {
	runner := &stubRunner{value: map[string]interface{}{"best_hour": "20:00", "average": 165.0}}
	tool := NewExecuteCodeTool(runner, []string{"dataset", "fmt"}, logger.NewNop())

	args, err := json.Marshal(map[string]string{"code": "func Run() (interface{}, error) { return nil, nil }"})
	require.NoError(t, err)

	got, err := tool.Execute(context.Background(), string(args))
	require.NoError(t, err)
	assert.JSONEq(t, `{"best_hour":"20:00","average":165}`, got)
	assert.Contains(t, runner.code, "func Run()")
	assert.Contains(t, tool.Description(), "Allowed imports: dataset, fmt.")
}

func TestExecuteCodeTool_Errors(t *testing.T) {
	runErr := errors.New("file_not_found: dataset file not found")
	tool := NewExecuteCodeTool(&stubRunner{err: runErr}, nil, logger.NewNop())

	_, err := tool.Execute(context.Background(), `{"code":"x"}`)
	assert.ErrorIs(t, err, runErr)

	_, err = tool.Execute(context.Background(), `{"code":"  "}`)
	assert.EqualError(t, err, "code is required")

	_, err = tool.Execute(context.Background(), `not json`)
	assert.Error(t, err)
}
