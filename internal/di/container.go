package di

import (
	"context"
	"fmt"
	"io"
	"os"

	"engagement-advisor/internal/adapter/tool"
	"engagement-advisor/internal/application/port/input"
	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/application/service"
	"engagement-advisor/internal/infrastructure/config"
	"engagement-advisor/internal/infrastructure/llm/bedrock"
	"engagement-advisor/internal/infrastructure/llm/gemini"
	"engagement-advisor/internal/infrastructure/llm/langchain"
	"engagement-advisor/internal/infrastructure/llm/openrouter"
	"engagement-advisor/internal/infrastructure/logger"
	"engagement-advisor/internal/infrastructure/prompts"
	"engagement-advisor/internal/infrastructure/sandbox"
	"engagement-advisor/internal/infrastructure/userinteraction"
	"engagement-advisor/internal/usecase/advisor"
	"engagement-advisor/internal/usecase/executor"
	"engagement-advisor/internal/usecase/validator"
)

type Container struct {
	LLM          output.LLMPort
	Logger       output.LoggerPort
	Tools        output.ToolRegistry
	TaskExecutor input.TaskExecutor
	Advisor      input.Advisor
}

type Options struct {
	// Stderr receives logs and, in verbose mode, the progress trace.
	Stderr io.Writer
	// LLM replaces the provider adapter selected by the config.
	LLM output.LLMPort
}

// NewContainer wires the advisor for a validated config.
func NewContainer(ctx context.Context, cfg config.Config, opts Options) (*Container, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	log, err := logger.NewLoggerAdapter(logger.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		TaskName: "best hour " + cfg.Dataset.TargetDate,
		Console:  opts.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	day, err := cfg.TargetDay()
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	loc := day.Location()

	llm := opts.LLM
	if llm == nil {
		llm, err = newLLM(ctx, cfg, log)
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
		}
	}

	runner := sandbox.New(sandbox.Config{
		DatasetPath: cfg.Dataset.Path,
		Location:    loc,
		Timeout:     cfg.Agent.ExecTimeout,
	}, log)

	tools := service.NewToolRegistry(
		tool.NewCurrentTimeTool(loc, nil, log.Named("current_time")),
		tool.NewExecuteCodeTool(runner, sandbox.AllowedImports(), log.Named("execute_code")),
	)

	var progress output.ProgressPort
	if cfg.Output.Verbose {
		progress = userinteraction.NewConsoleProgress(opts.Stderr)
	}

	taskExecutor := executor.New(llm, tools, progress, log, executor.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		MaxTokens:     cfg.Generation.MaxTokens,
		Temperature:   float32(cfg.Generation.Temperature),
	})

	builder := prompts.NewBuilder(prompts.PromptData{
		DatasetPath: cfg.Dataset.Path,
		TargetDate:  day,
		Imports:     sandbox.AllowedImports(),
	})

	log.Info("Advisor configured",
		"provider", llm.Name(),
		"model", cfg.ModelID,
		"dataset", cfg.Dataset.Path,
		"timezone", loc.String(),
		"targetDate", cfg.Dataset.TargetDate,
		"strict", cfg.Output.Strict,
	)

	return &Container{
		LLM:          llm,
		Logger:       log,
		Tools:        tools,
		TaskExecutor: taskExecutor,
		Advisor:      advisor.New(builder, taskExecutor, validator.New(cfg.Output.Strict, log), log),
	}, nil
}

func (c *Container) Close() {
	if c.Logger != nil {
		c.Logger.Close()
	}
}

func newLLM(ctx context.Context, cfg config.Config, log output.LoggerPort) (output.LLMPort, error) {
	llmLog := log.Named("llm").WithField("provider", cfg.Provider)
	timeout := cfg.Generation.RequestTimeout

	switch cfg.Provider {
	case config.ProviderBedrock:
		llmLog.Debug("Using AWS credentials", "accessKeyId", config.MaskSecret(cfg.AWS.AccessKeyID), "region", cfg.AWS.Region)
		return bedrock.NewBedrockAdapter(ctx, bedrock.Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			SessionToken:    cfg.AWS.SessionToken,
			Model:           cfg.ModelID,
			Timeout:         timeout,
			Logger:          llmLog,
		})

	case config.ProviderOpenRouter:
		orCfg := openrouter.DefaultConfig(cfg.OpenRouter.APIKey, cfg.ModelID)
		orCfg.BaseURL = cfg.OpenRouter.BaseURL
		orCfg.Timeout = timeout
		orCfg.Logger = llmLog
		return openrouter.NewOpenRouterAdapter(orCfg), nil

	case config.ProviderGemini:
		return gemini.NewGeminiAdapter(ctx, gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.ModelID,
			Timeout: timeout,
			Logger:  llmLog,
		})

	case config.ProviderOllama:
		return langchain.NewOllamaAdapter(langchain.OllamaConfig{
			ServerURL: cfg.Ollama.ServerURL,
			Model:     cfg.ModelID,
			Timeout:   timeout,
			Logger:    llmLog,
		})
	}

	return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.Provider)
}
