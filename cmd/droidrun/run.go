package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"droidrun/internal/agent"
	"droidrun/internal/agent/persona"
	"droidrun/internal/config"
	"droidrun/internal/device"
	"droidrun/internal/llm"
	"droidrun/internal/logging"
	"droidrun/internal/observability"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run \"<goal>\"",
		Short: "Execute a natural-language goal against a connected device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return runGoal(cmd.Context(), cfg, args[0])
		},
	}

	flags := cmd.Flags()
	flags.String("provider", "openai", "LLM provider (openai, deepseek, ollama)")
	flags.String("model", "gpt-4o-mini", "model name")
	flags.String("base-url", "", "override the provider API base URL")
	flags.String("api-key", "", "provider API key (prefer DROIDRUN_API_KEY)")
	flags.String("device", "", "adb device serial")
	flags.Bool("vision", false, "attach screenshots to model requests")
	flags.Bool("reasoning", true, "plan tasks before executing (off runs the raw goal as one task)")
	flags.Bool("reflection", false, "review finished tasks with a critic")
	flags.String("trajectory", "none", "trajectory capture level (none, step, action)")
	flags.String("trajectory-dir", "trajectories", "directory for persisted trajectories")
	flags.String("persona-dir", "", "directory with additional persona YAML files")
	flags.Int("max-steps", 15, "global planning/dispatch step ceiling")
	flags.Duration("timeout", 15*time.Minute, "abort the run after this duration (0 disables)")
	flags.Bool("debug", false, "verbose logging")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.Bool("tracing", false, "export OTLP traces")
	flags.String("tracing-endpoint", "", "OTLP/HTTP collector endpoint")
	return cmd
}

func runGoal(parent context.Context, cfg *config.Config, goal string) error {
	if cfg.Debug {
		logging.SetLevel(logging.DEBUG)
		logging.SetConsole(os.Stderr)
	}
	logger := logging.NewComponentLogger("cli")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if cfg.MetricsAddr != "" {
		go observability.ServeMetrics(ctx, cfg.MetricsAddr, logger)
	}
	if cfg.Tracing {
		shutdown, err := observability.SetupTracing(ctx, cfg.TracingEndpoint)
		if err != nil {
			return fmt.Errorf("set up tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("trace shutdown: %v", err)
			}
		}()
	}

	client, err := llm.New(cfg.LLMConfig())
	if err != nil {
		return err
	}

	registry := persona.NewRegistry()
	if cfg.PersonaDir != "" {
		if err := registry.LoadDir(cfg.PersonaDir); err != nil {
			return fmt.Errorf("load personas: %w", err)
		}
	}

	controller := device.NewController(ctx, cfg.Device, logger)

	coordinator := agent.New(client, controller, registry, newRenderer(), logger, agent.Config{
		MaxSteps:        cfg.MaxSteps,
		Reasoning:       cfg.Reasoning,
		Reflection:      cfg.Reflection,
		Vision:          cfg.Vision,
		TrajectoryLevel: cfg.TrajectoryLevel(),
		TrajectoryDir:   cfg.TrajectoryDir,
	})

	result, err := coordinator.Run(ctx, goal)
	if err != nil {
		logger.Warn("run finished with persistence error: %v", err)
	}

	printVerdict(result)
	if !result.Success {
		return fmt.Errorf("goal not achieved: %s", result.Reason)
	}
	return nil
}
