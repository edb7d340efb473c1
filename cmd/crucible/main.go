// Package main is the entry point for the crucible CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	configFile    string
	baseDir       string
	verbose       bool
	correlationID string
)

const defaultBaseDir = ".crucible"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crucible",
		Short: "Sandboxed evaluation loop for generated code",
		Long: `Crucible executes untrusted, machine-generated Python code under
resource limits, harvests structured test results, and keeps a bounded
attempt history used to detect stagnation and steer retries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "crucible.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&baseDir, "base-dir", defaultBaseDir, "Directory for scratch and state files")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&correlationID, "correlation-id", "", "Set explicit correlation ID")

	root.AddCommand(newRunCmd())
	root.AddCommand(newExecCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
