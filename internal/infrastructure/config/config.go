// Package config turns environment values into a validated Config.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"engagement-advisor/internal/application/port/output"

	"github.com/go-playground/validator/v10"
)

const (
	ProviderBedrock    = "bedrock"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)

const TargetDateLayout = "2006-01-02"

// ErrInvalidConfig is wrapped by every ValidationError.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Provider string `validate:"required,oneof=bedrock openrouter gemini ollama"`
	ModelID  string `validate:"required"`

	AWS        AWSConfig
	OpenRouter OpenRouterConfig
	Gemini     GeminiConfig
	Ollama     OllamaConfig

	Generation GenerationConfig
	Agent      AgentConfig
	Dataset    DatasetConfig
	Log        LogConfig
	Output     OutputConfig

	// invalid holds env values that could not be parsed during Load.
	invalid []string
}

type AWSConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string `validate:"required"`
}

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string `validate:"required,url"`
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	ServerURL string `validate:"required,url"`
}

type GenerationConfig struct {
	MaxTokens      int           `validate:"gt=0"`
	Temperature    float64       `validate:"gte=0,lte=2"`
	Streaming      bool          `validate:"eq=false"`
	RequestTimeout time.Duration `validate:"gt=0"`
}

type AgentConfig struct {
	MaxIterations int           `validate:"gt=0,lte=100"`
	ExecTimeout   time.Duration `validate:"gt=0"`
}

type DatasetConfig struct {
	Path       string `validate:"required"`
	Timezone   string `validate:"required,timezone"`
	TargetDate string `validate:"required,datetime=2006-01-02"`
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
	Dir   string
}

type OutputConfig struct {
	Strict      bool
	ExitOnError bool
	Verbose     bool
}

// Load reads every setting from the environment and applies defaults. It does
// not validate; call Validate once CLI overrides have been applied.
func Load(env output.ConfigPort) Config {
	modelID := env.Get("MODEL_ID")
	if modelID == "" {
		modelID = env.Get("modelid")
	}

	cfg := Config{
		Provider: strings.ToLower(env.GetWithDefault("COMPLETION_PROVIDER", ProviderBedrock)),
		ModelID:  modelID,
		AWS: AWSConfig{
			AccessKeyID:     env.Get("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: env.Get("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    env.Get("AWS_SESSION_TOKEN"),
			Region:          env.GetWithDefault("AWS_REGION", "us-east-1"),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:  env.Get("OPENROUTER_API_KEY"),
			BaseURL: env.GetWithDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		},
		Gemini: GeminiConfig{
			APIKey: env.Get("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			ServerURL: env.GetWithDefault("OLLAMA_SERVER_URL", "http://localhost:11434"),
		},
		Generation: GenerationConfig{
			MaxTokens:      env.GetInt("MAX_TOKENS", 1000),
			Temperature:    env.GetFloat("TEMPERATURE", 0),
			Streaming:      env.GetBool("STREAMING", false),
			RequestTimeout: env.GetDuration("REQUEST_TIMEOUT", 120*time.Second),
		},
		Agent: AgentConfig{
			MaxIterations: env.GetInt("MAX_ITERATIONS", 20),
			ExecTimeout:   env.GetDuration("EXEC_TIMEOUT", 10*time.Second),
		},
		Dataset: DatasetConfig{
			Path:       env.GetWithDefault("ENGAGEMENT_DATA_PATH", "engagement_data.csv"),
			Timezone:   env.GetWithDefault("ADVISOR_TIMEZONE", "US/Pacific"),
			TargetDate: env.GetWithDefault("TARGET_DATE", "2025-05-30"),
		},
		Log: LogConfig{
			Level: strings.ToLower(env.GetWithDefault("LOG_LEVEL", "info")),
			Dir:   env.Get("LOG_DIR"),
		},
	}
	cfg.invalid = env.Invalid()
	return cfg
}

// Location resolves the dataset timezone. Only valid after Validate.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Dataset.Timezone)
}

// TargetDay returns midnight of the target date in the dataset timezone.
func (c Config) TargetDay() (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(TargetDateLayout, c.Dataset.TargetDate, loc)
}

// ValidationError lists every configuration problem found at startup.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate reports every unparsable env value and every constraint violation
// in one ValidationError.
func (c Config) Validate() error {
	problems := append([]string(nil), c.invalid...)

	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateCredentials, Config{})
	return v
}

// validateCredentials checks the credentials of the selected provider only.
func validateCredentials(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	switch cfg.Provider {
	case ProviderBedrock:
		if cfg.AWS.AccessKeyID == "" {
			sl.ReportError(cfg.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID", "AccessKeyID", "credential", "")
		}
		if cfg.AWS.SecretAccessKey == "" {
			sl.ReportError(cfg.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY", "SecretAccessKey", "credential", "")
		}
	case ProviderOpenRouter:
		if cfg.OpenRouter.APIKey == "" {
			sl.ReportError(cfg.OpenRouter.APIKey, "OPENROUTER_API_KEY", "APIKey", "credential", "")
		}
	case ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			sl.ReportError(cfg.Gemini.APIKey, "GEMINI_API_KEY", "APIKey", "credential", "")
		}
	}
}

var fieldEnv = map[string]string{
	"Config.Provider":                  "COMPLETION_PROVIDER",
	"Config.ModelID":                   "MODEL_ID",
	"Config.AWS.Region":                "AWS_REGION",
	"Config.OpenRouter.BaseURL":        "OPENROUTER_BASE_URL",
	"Config.Ollama.ServerURL":          "OLLAMA_SERVER_URL",
	"Config.Generation.MaxTokens":      "MAX_TOKENS",
	"Config.Generation.Temperature":    "TEMPERATURE",
	"Config.Generation.Streaming":      "STREAMING",
	"Config.Generation.RequestTimeout": "REQUEST_TIMEOUT",
	"Config.Agent.MaxIterations":       "MAX_ITERATIONS",
	"Config.Agent.ExecTimeout":         "EXEC_TIMEOUT",
	"Config.Dataset.Path":              "ENGAGEMENT_DATA_PATH",
	"Config.Dataset.Timezone":          "ADVISOR_TIMEZONE",
	"Config.Dataset.TargetDate":        "TARGET_DATE",
	"Config.Log.Level":                 "LOG_LEVEL",
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	if env, ok := fieldEnv[fe.StructNamespace()]; ok {
		name = env
	}

	switch fe.Tag() {
	case "required", "credential":
		return fmt.Sprintf("%s is required", name)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fmt.Sprint(fe.Value()))
	case "timezone":
		return fmt.Sprintf("%s: unknown timezone %q", name, fmt.Sprint(fe.Value()))
	case "datetime":
		return fmt.Sprintf("%s must use layout %s, got %q", name, fe.Param(), fmt.Sprint(fe.Value()))
	case "eq":
		if fe.Kind() == reflect.Bool {
			return fmt.Sprintf("%s is not supported", name)
		}
		return fmt.Sprintf("%s must equal %s", name, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", name, fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("%s failed %s%s", name, fe.Tag(), paramSuffix(fe.Param()))
	}
}

func paramSuffix(param string) string {
	if param == "" {
		return ""
	}
	return "=" + param
}

// MaskSecret keeps only the edges of a credential for logging.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
