package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"engagement-advisor/internal/di"
	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/infrastructure/config"
	"engagement-advisor/internal/infrastructure/env"

	"github.com/spf13/cobra"
)

// exitError carries a process exit code out of RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type flags struct {
	envFile   string
	dataset   string
	date      string
	timezone  string
	provider  string
	model     string
	maxTokens int
	strict    bool
	exitCode  bool
	verbose   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, di.Options{})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts di.Options) int {
	cmd := newRootCmd(stdout, stderr, opts)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintln(stderr, "Error:", exit.err)
		}
		return exit.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}

func newRootCmd(stdout, stderr io.Writer, opts di.Options) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "advisor",
		Short: "Recommend the best hour today to publish a Medium post",
		Long: `advisor asks a language model to analyze an engagement CSV
(timestamp, claps, comments) and prints exactly one JSON recommendation line
to stdout. Diagnostics go to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			envService, err := env.NewEnvService(f.envFile)
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			cfg := config.Load(envService)
			applyFlags(cmd, f, &cfg)

			if err := cfg.Validate(); err != nil {
				return &exitError{code: 1, err: err}
			}

			if opts.Stderr == nil {
				opts.Stderr = stderr
			}
			container, err := di.NewContainer(cmd.Context(), cfg, opts)
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			defer container.Close()

			container.Logger.Debug("Environment loaded", "appEnv", envService.AppEnv(), "files", envService.Loaded())
			for _, note := range envService.Notes() {
				container.Logger.Info("Environment note", "note", note)
			}

			result, err := container.Advisor.Advise(cmd.Context(), stdout)
			if err != nil {
				container.Logger.Error("Advisor failed", "error", err)
				return &exitError{code: 1, err: err}
			}

			container.Logger.Info("Advisor finished",
				"state", result.State,
				"status", result.Status,
				"iterations", result.Iterations,
			)
			if f.exitCode && result.Status == entity.StatusError {
				return &exitError{code: 2}
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.envFile, "env-file", "", "extra env file loaded on top of .env")
	fs.StringVar(&f.dataset, "dataset", "", "engagement CSV path (ENGAGEMENT_DATA_PATH)")
	fs.StringVar(&f.date, "date", "", "target date as YYYY-MM-DD (TARGET_DATE)")
	fs.StringVar(&f.timezone, "timezone", "", "IANA timezone of the dataset (ADVISOR_TIMEZONE)")
	fs.StringVar(&f.provider, "provider", "", "bedrock, openrouter, gemini or ollama (COMPLETION_PROVIDER)")
	fs.StringVar(&f.model, "model", "", "model identifier (MODEL_ID)")
	fs.IntVar(&f.maxTokens, "max-tokens", 0, "completion token limit (MAX_TOKENS)")
	fs.BoolVar(&f.strict, "strict", false, "replace schema violations with an error object")
	fs.BoolVar(&f.exitCode, "exit-code", false, "exit 2 when the printed object is an error")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "print the reasoning trace to stderr")

	return cmd
}

// applyFlags overrides env values with flags the user actually set.
func applyFlags(cmd *cobra.Command, f flags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("dataset") {
		cfg.Dataset.Path = f.dataset
	}
	if changed("date") {
		cfg.Dataset.TargetDate = f.date
	}
	if changed("timezone") {
		cfg.Dataset.Timezone = f.timezone
	}
	if changed("provider") {
		cfg.Provider = f.provider
	}
	if changed("model") {
		cfg.ModelID = f.model
	}
	if changed("max-tokens") {
		cfg.Generation.MaxTokens = f.maxTokens
	}
	cfg.Output.Strict = f.strict
	cfg.Output.ExitOnError = f.exitCode
	cfg.Output.Verbose = f.verbose
}
