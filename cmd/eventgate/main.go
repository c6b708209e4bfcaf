// Package main provides the eventgate binary: schema diffs, evolution checks and a registry
// driven from the command line.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/eventgate/pkg/config"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution"
)

const (
	Version = "0.1.0"
	appName = "eventgate"
)

// Exit codes.
const (
	exitOK       = 0
	exitRejected = 1
	exitError    = 2
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := rootCmd(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, evolution.ErrRejected):
		return exitRejected
	default:
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
}

func rootCmd(stderr io.Writer) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Schema evolution and compatibility validation for event types",
		Long: `eventgate decides whether a new event type schema may replace the current one.

It diffs JSON Schema documents, classifies every change as PATCH, MINOR or MAJOR,
enforces the event type's compatibility mode and immutable metadata, and computes
the next semantic version. The registry commands persist accepted versions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				logLevel = os.Getenv(config.EnvPrefix + "LOG_LEVEL")
			}
			if logLevel == "" {
				logLevel = "info"
			}
			level, err := config.ParseLogLevel(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		diffCmd(),
		validateCmd(),
		registryCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}
