package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandkit/crucible/internal/config"
	"github.com/sandkit/crucible/internal/pipeline"
	"github.com/sandkit/crucible/internal/sandbox"
)

func newExecCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "exec <file.py>",
		Short: "Evaluate one code file through the pipeline",
		Long: `Run a single Python file through the safety scanner, sandbox, and
test harness, and print the structured result. Useful for inspecting
how a sample would be judged without involving the model loop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load(configFile, baseDir)
			if err != nil {
				return err
			}

			logger := newLogger()
			sb, err := newSandbox(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			res, err := pipeline.New(sb, nil, logger).Evaluate(ctx, string(code))
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			status := "FAILED"
			if res.Success {
				status = "SUCCESS"
			}
			fmt.Printf("Status: %s", status)
			if res.Kind != sandbox.KindNone {
				fmt.Printf(" (%s)", res.Kind)
			}
			fmt.Printf("\nDuration: %s\n", res.ExecutionTime)
			if res.Output != "" {
				fmt.Printf("\nOutput:\n%s\n", res.Output)
			}
			if res.Error != "" {
				fmt.Printf("\nError:\n%s\n", res.Error)
			}
			if !res.Success {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
