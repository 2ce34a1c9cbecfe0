package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engagement-advisor/internal/infrastructure/logger"
)

const engagementCSV = `timestamp,claps,comments
2025-05-28T20:05:00Z,150,20
2025-05-29T20:40:00Z,140,20
2025-05-29T09:15:00Z,40,5
`

const bestHourCode = `
import "dataset"

func Run() (interface{}, error) {
	records, err := dataset.Load()
	if err != nil {
		return nil, err
	}
	best, ok := dataset.Best(dataset.HourlyAverages(records))
	if !ok {
		return nil, nil
	}
	return map[string]interface{}{
		"best_hour": best.Label,
		"average":   best.AverageEngagement,
		"posts":     best.Posts,
	}, nil
}
`

func newSandbox(t *testing.T, path string, timeout time.Duration) *Sandbox {
	t.Helper()
	return New(Config{DatasetPath: path, Location: time.UTC, Timeout: timeout}, logger.NewNop())
}

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engagement_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(engagementCSV), 0o644))
	return path
}

func TestRun_ComputesBestHour(t *testing.T) {
	sb := newSandbox(t, writeDataset(t), 5*time.Second)

	value, err := sb.Run(context.Background(), bestHourCode)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"best_hour": "20:00",
		"average":   165.0,
		"posts":     2.0,
	}, value)
}

func TestRun_MissingDatasetIsClassified(t *testing.T) {
	sb := newSandbox(t, filepath.Join(t.TempDir(), "missing.csv"), 5*time.Second)

	_, err := sb.Run(context.Background(), bestHourCode)
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, KindFileNotFound, execErr.Kind)
}

func TestRun_MalformedDatasetIsClassified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,claps\n"), 0o644))
	sb := newSandbox(t, path, 5*time.Second)

	_, err := sb.Run(context.Background(), bestHourCode)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, KindMalformedData, execErr.Kind)
}

func TestRun_RejectsForbiddenImports(t *testing.T) {
	sb := newSandbox(t, writeDataset(t), 5*time.Second)

	_, err := sb.Run(context.Background(), `
import "os"

func Run() (interface{}, error) { return os.Getwd() }
`)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, KindOther, execErr.Kind)
	assert.Contains(t, err.Error(), "forbidden imports")
}

func TestRun_RejectsGoStatements(t *testing.T) {
	sb := newSandbox(t, writeDataset(t), 5*time.Second)

	_, err := sb.Run(context.Background(), `
import "time"

func Run() (interface{}, error) {
	go func() { panic("boom") }()
	time.Sleep(200 * time.Millisecond)
	return 1, nil
}
`)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, KindOther, execErr.Kind)
	assert.Contains(t, err.Error(), "go statements are not allowed")
}

func TestRun_AfterFuncIsUnavailable(t *testing.T) {
	sb := newSandbox(t, writeDataset(t), 5*time.Second)

	_, err := sb.Run(context.Background(), `
import "time"

func Run() (interface{}, error) {
	time.AfterFunc(time.Millisecond, func() { panic("boom") })
	time.Sleep(200 * time.Millisecond)
	return 1, nil
}
`)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, KindOther, execErr.Kind)
}

func TestRun_DatasetPackageOnlyReadsConfiguredFile(t *testing.T) {
	sb := newSandbox(t, writeDataset(t), 5*time.Second)

	_, err := sb.Run(context.Background(), `
import "dataset"

func Run() (interface{}, error) { return dataset.LoadFile("/etc/passwd") }
`)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, KindOther, execErr.Kind)
	assert.NotContains(t, err.Error(), "root:")
}

func TestRun_RequiresEntryPoint(t *testing.T) {
	sb := newSandbox(t, writeDataset(t), 5*time.Second)

	_, err := sb.Run(context.Background(), `func Analyze() int { return 1 }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "func Run()")
}

func TestRun_ReturnsPrintedOutputWhenResultIsNil(t *testing.T) {
	sb := newSandbox(t, writeDataset(t), 5*time.Second)

	value, err := sb.Run(context.Background(), `
import "fmt"

func Run() (interface{}, error) {
	fmt.Println("hello from the sandbox")
	return nil, nil
}
`)
	require.NoError(t, err)
	assert.Equal(t, "hello from the sandbox", value)
}

func TestRun_Timeout(t *testing.T) {
	sb := newSandbox(t, writeDataset(t), 100*time.Millisecond)

	start := time.Now()
	_, err := sb.Run(context.Background(), `
var spin = func() int {
	for {
	}
}()

func Run() (interface{}, error) { return spin, nil }
`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindPermissionDenied, classify(errors.New("open: dataset permission denied: /x")))
	assert.Equal(t, KindOther, classify(errors.New("index out of range")))
}

func TestAllowedImports_Sorted(t *testing.T) {
	pkgs := AllowedImports()
	assert.Contains(t, pkgs, "dataset")
	assert.NotContains(t, pkgs, "os")
	assert.IsIncreasing(t, pkgs)
}
