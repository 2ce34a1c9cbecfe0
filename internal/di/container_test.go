package di

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/infrastructure/config"
)

type nopLLM struct{}

func (nopLLM) Name() string { return "nop" }
func (nopLLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, Content: "{}"}}, nil
}

func testConfig() config.Config {
	return config.Config{
		Provider: config.ProviderOllama,
		ModelID:  "llama3.1",
		Ollama:   config.OllamaConfig{ServerURL: "http://localhost:11434"},
		Generation: config.GenerationConfig{
			MaxTokens:      1000,
			RequestTimeout: time.Minute,
		},
		Agent:   config.AgentConfig{MaxIterations: 5, ExecTimeout: time.Second},
		Dataset: config.DatasetConfig{Path: "engagement_data.csv", Timezone: "UTC", TargetDate: "2025-05-30"},
		Log:     config.LogConfig{Level: "error"},
	}
}

func TestNewContainer_RegistersBothTools(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig(), Options{Stderr: &bytes.Buffer{}, LLM: nopLLM{}})
	require.NoError(t, err)
	defer c.Close()

	var names []string
	for _, def := range c.Tools.Definitions() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"current_time", "execute_code"}, names)
	assert.Equal(t, "nop", c.LLM.Name())
	assert.NotNil(t, c.Advisor)
}

func TestNewContainer_BuildsOllamaClient(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig(), Options{Stderr: &bytes.Buffer{}})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "ollama", c.LLM.Name())
}

func TestNewContainer_RejectsUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = "nope"

	_, err := NewContainer(context.Background(), cfg, Options{Stderr: &bytes.Buffer{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewContainer_RejectsBadTargetDate(t *testing.T) {
	cfg := testConfig()
	cfg.Dataset.TargetDate = "May 30"

	_, err := NewContainer(context.Background(), cfg, Options{Stderr: &bytes.Buffer{}, LLM: nopLLM{}})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
