package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/eventgate/pkg/evolution"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution/diff"
	"github.com/Mindburn-Labs/eventgate/pkg/versioning"
)

type diffReport struct {
	Level   versioning.Level             `json:"level"`
	Changes []evolution.ClassifiedChange `json:"changes"`
}

func diffCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Print the classified changes between two JSON Schema documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldDoc, err := loadSchema(args[0])
			if err != nil {
				return err
			}
			newDoc, err := loadSchema(args[1])
			if err != nil {
				return err
			}

			changes := diff.Compare(oldDoc, newDoc)
			report := diffReport{
				Level:   evolution.ComputeBump(changes),
				Changes: make([]evolution.ClassifiedChange, len(changes)),
			}
			for i, c := range changes {
				report.Changes[i] = evolution.ClassifiedChange{Change: c, Level: evolution.Severity(c.Kind)}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			if len(changes) == 0 {
				_, _ = fmt.Fprintln(out, "no changes")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, c := range report.Changes {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Level, c.Kind, c.Path)
			}
			_, _ = fmt.Fprintf(w, "bump\t%s\t\n", report.Level)
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
