package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/eventgate/pkg/config"
	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution"
)

func validateCmd() *cobra.Command {
	var (
		currentPath  string
		proposedPath string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "validate --proposed FILE [--current FILE]",
		Short: "Check whether a proposed event type may replace the current one",
		Long: `Runs the evolution engine on two event type snapshots (YAML or JSON).
Without --current the proposal is treated as a new event type.

Exit status is 0 when accepted, 1 when rejected and 2 on any other error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts, err := cfg.ServiceOptions()
			if err != nil {
				return err
			}
			svc := evolution.NewService(opts...)

			proposed, err := loadSnapshot(proposedPath)
			if err != nil {
				return err
			}
			proposed.ApplyDefaults()
			if err := proposed.Validate(); err != nil {
				return fmt.Errorf("proposed %s: %w", proposedPath, err)
			}

			var current *eventtype.EventType
			if currentPath != "" {
				if current, err = loadSnapshot(currentPath); err != nil {
					return err
				}
				current.ApplyDefaults()
				if err := current.Validate(); err != nil {
					return fmt.Errorf("current %s: %w", currentPath, err)
				}
			}

			out, err := svc.Validate(cmd.Context(), current, proposed)
			if err != nil {
				return err
			}
			if err := printOutcome(cmd.OutOrStdout(), out, asJSON); err != nil {
				return err
			}
			return out.Err()
		},
	}

	cmd.Flags().StringVar(&currentPath, "current", "", "Current event type snapshot")
	cmd.Flags().StringVar(&proposedPath, "proposed", "", "Proposed event type snapshot")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outcome as JSON")
	_ = cmd.MarkFlagRequired("proposed")
	return cmd
}

func printOutcome(w io.Writer, out *evolution.Outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !out.Accepted() {
		_, _ = fmt.Fprintf(w, "%s %s\n", out.Status, out.EventType)
		for _, v := range out.Violations {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", v.Kind, v.Message)
		}
		return nil
	}

	_, _ = fmt.Fprintf(w, "%s %s %s (%s)\n", out.Status, out.EventType, out.Version, out.Level)
	for _, c := range out.Changes {
		_, _ = fmt.Fprintf(w, "  %s %s %s\n", c.Level, c.Kind, c.Path)
	}
	return nil
}
