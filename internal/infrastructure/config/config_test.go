package config

import (
	"errors"
	"testing"
	"time"

	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapEnv map[string]string

func (m mapEnv) Get(key string) string { return m[key] }

func (m mapEnv) GetWithDefault(key, def string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return def
}

func (m mapEnv) GetBool(key string, def bool) bool {
	switch m[key] {
	case "true":
		return true
	case "false":
		return false
	}
	return def
}

func (m mapEnv) GetInt(key string, def int) int                        { return def }
func (m mapEnv) GetFloat(key string, def float64) float64              { return def }
func (m mapEnv) GetDuration(key string, d time.Duration) time.Duration { return d }
func (m mapEnv) Invalid() []string                                     { return nil }

// rejectingEnv reports values its getters could not parse.
type rejectingEnv struct {
	mapEnv
	invalid []string
}

func (r rejectingEnv) Invalid() []string { return r.invalid }

func bedrockEnv() mapEnv {
	return mapEnv{
		"AWS_ACCESS_KEY_ID":     "AKIAEXAMPLEKEY",
		"AWS_SECRET_ACCESS_KEY": "secret-example-value",
		"modelid":               "anthropic.claude-3-5-sonnet-20240620-v1:0",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load(bedrockEnv())

	assert.Equal(t, ProviderBedrock, cfg.Provider)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20240620-v1:0", cfg.ModelID)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, 1000, cfg.Generation.MaxTokens)
	assert.False(t, cfg.Generation.Streaming)
	assert.Equal(t, "US/Pacific", cfg.Dataset.Timezone)
	assert.Equal(t, "2025-05-30", cfg.Dataset.TargetDate)
	assert.Equal(t, "engagement_data.csv", cfg.Dataset.Path)
	assert.Equal(t, 20, cfg.Agent.MaxIterations)

	require.NoError(t, cfg.Validate())
}

func TestLoad_ModelIDPrefersUpperCase(t *testing.T) {
	env := bedrockEnv()
	env["MODEL_ID"] = "amazon.nova-pro-v1:0"

	cfg := Load(env)
	assert.Equal(t, "amazon.nova-pro-v1:0", cfg.ModelID)
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := Load(mapEnv{})

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, "MODEL_ID is required")
	assert.Contains(t, verr.Problems, "AWS_ACCESS_KEY_ID is required")
	assert.Contains(t, verr.Problems, "AWS_SECRET_ACCESS_KEY is required")
}

func TestValidate_ProviderSpecificCredentials(t *testing.T) {
	env := mapEnv{
		"COMPLETION_PROVIDER": "openrouter",
		"MODEL_ID":            "openai/gpt-4o-mini",
	}

	err := Load(env).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY is required")
	assert.NotContains(t, err.Error(), "AWS_ACCESS_KEY_ID")

	env["OPENROUTER_API_KEY"] = "sk-or-example"
	require.NoError(t, Load(env).Validate())

	ollama := mapEnv{"COMPLETION_PROVIDER": "ollama", "MODEL_ID": "llama3.1"}
	require.NoError(t, Load(ollama).Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	env := bedrockEnv()
	env["COMPLETION_PROVIDER"] = "carrier-pigeon"
	env["ADVISOR_TIMEZONE"] = "Mars/Olympus_Mons"
	env["TARGET_DATE"] = "30/05/2025"
	env["STREAMING"] = "true"

	err := Load(env).Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "COMPLETION_PROVIDER must be one of")
	assert.Contains(t, msg, "ADVISOR_TIMEZONE: unknown timezone")
	assert.Contains(t, msg, "TARGET_DATE must use layout 2006-01-02")
	assert.Contains(t, msg, "STREAMING is not supported")
}

func TestValidate_ReportsUnparsableEnvValues(t *testing.T) {
	env := rejectingEnv{
		mapEnv:  bedrockEnv(),
		invalid: []string{`MAX_TOKENS="abc" is not a valid integer`, `STREAMING="yes" is not a valid boolean`},
	}

	err := Load(env).Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, env.invalid, verr.Problems)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_TargetDay(t *testing.T) {
	cfg := Load(bedrockEnv())

	day, err := cfg.TargetDay()
	require.NoError(t, err)
	assert.Equal(t, "2025-05-30T00:00:00-07:00", day.Format(time.RFC3339))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "AKIA****7890", MaskSecret("AKIAABCDEF1234567890"))
}
