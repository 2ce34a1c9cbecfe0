package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerAdapter_WritesJSONToConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLoggerAdapter(Config{Level: "debug", Console: &buf})
	require.NoError(t, err)

	log.Named("llm").WithField("provider", "bedrock").Info("request sent", "iteration", 2)
	require.NoError(t, log.Close())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "request sent", entry["message"])
	assert.Equal(t, "llm", entry["logger"])
	assert.Equal(t, "bedrock", entry["provider"])
	assert.Equal(t, float64(2), entry["iteration"])
}

func TestLoggerAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLoggerAdapter(Config{Level: "warn", Console: &buf})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	require.NoError(t, log.Close())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestLoggerAdapter_FileSink(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	log, err := NewLoggerAdapter(Config{Level: "error", Dir: dir, TaskName: "best hour / may 30", Console: &console})
	require.NoError(t, err)

	log.Debug("file only")
	require.NoError(t, log.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_best_hour___may_30.log"))

	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "file only")
	assert.Empty(t, console.String())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "task", sanitize("///"))
	assert.Equal(t, "a_b-c", sanitize("a b-c"))
	assert.Len(t, sanitize(strings.Repeat("x", 100)), 60)
}
