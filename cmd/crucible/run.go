package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandkit/crucible/internal/agent"
	"github.com/sandkit/crucible/internal/config"
	"github.com/sandkit/crucible/internal/llm"
	"github.com/sandkit/crucible/internal/memory"
	"github.com/sandkit/crucible/internal/pipeline"
	"github.com/sandkit/crucible/internal/sandbox"
	"github.com/sandkit/crucible/internal/store"
	"github.com/sandkit/crucible/internal/telemetry"
)

func newRunCmd() *cobra.Command {
	var (
		model       string
		iterations  int
		metricsAddr string
		resume      bool
	)

	cmd := &cobra.Command{
		Use:   "run <goal...>",
		Short: "Run the coding loop against a goal",
		Long: `Ask the model for code achieving the goal, evaluate it in the
sandbox, and retry with reflection guidance until it succeeds or
iterations run out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")

			cfg, err := config.Load(configFile, baseDir)
			if err != nil {
				return err
			}
			if model != "" {
				cfg.Model = model
			}
			if iterations > 0 {
				cfg.MaxIterations = iterations
			}

			logger := newLogger()
			metrics := telemetry.NewMetrics()

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logger.Warn("metrics listener stopped", "error", err)
					}
				}()
			}

			sb, err := newSandbox(cfg, logger)
			if err != nil {
				return err
			}

			st, err := store.NewLocal(cfg.StateDir)
			if err != nil {
				return err
			}

			mem := memory.New(cfg.MemorySize)
			if resume {
				if err := st.LoadSnapshot(mem); err != nil {
					logger.Warn("could not restore memory snapshot", "error", err)
				}
			}

			eval := pipeline.New(sb, metrics, logger)
			a := agent.New(llm.NewAnthropicClient(), eval, mem, agent.Options{
				Model:         cfg.Model,
				MaxIterations: cfg.MaxIterations,
				MaxTokens:     cfg.MaxTokens,
				Store:         st,
				Metrics:       metrics,
				Logger:        logger,
			})

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			ctx = telemetry.WithCorrelationID(ctx, correlationID)

			outcome, err := a.Run(ctx, goal)
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}

			if !outcome.Achieved {
				fmt.Fprintf(os.Stderr, "Goal not achieved after %d iteration(s). See %s for attempt logs.\n",
					outcome.Iterations, cfg.StateDir)
				os.Exit(1)
			}

			fmt.Printf("Goal achieved in %d iteration(s).\n\n", outcome.Iterations)
			if outcome.Final.Output != "" {
				fmt.Println(outcome.Final.Output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Model override")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Max iterations override")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&resume, "resume", false, "Restore attempt memory from the last snapshot")

	return cmd
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return telemetry.NewLogger(os.Stderr, level)
}

// newSandbox builds the process sandbox, falling back to the
// unrestricted runner on hosts without bash/ulimit support.
func newSandbox(cfg config.Config, logger *slog.Logger) (sandbox.Sandbox, error) {
	ps, err := sandbox.NewProcessSandbox(sandbox.ProcessConfig{
		ScratchDir:  cfg.ScratchDir,
		Interpreter: cfg.Sandbox.Interpreter,
		Limits: sandbox.Limits{
			CPUSeconds:    cfg.Sandbox.CPUSeconds,
			MemoryBytes:   cfg.Sandbox.MemoryBytes,
			FileSizeBytes: cfg.Sandbox.FileSizeBytes,
		},
		Timeout: cfg.Sandbox.Timeout(),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	if !ps.Available() {
		logger.Warn("process isolation unavailable on this platform, running without resource ceilings")
		return &sandbox.NoopSandbox{
			Interpreter: cfg.Sandbox.Interpreter,
			Timeout:     cfg.Sandbox.Timeout(),
		}, nil
	}
	return ps, nil
}
