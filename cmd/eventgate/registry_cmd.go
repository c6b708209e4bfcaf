package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/eventgate/pkg/config"
	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution"
)

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Create, update and inspect stored event types",
		Long: `Drives the event type registry configured through EVENTGATE_* variables.
The default store is a SQLite database at data/eventgate.db.`,
	}

	var asJSON bool
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	write := func(use, short string, fn func(context.Context, *app, *eventtype.EventType) (*eventtype.EventType, *evolution.Outcome, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " FILE",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				et, err := loadSnapshot(args[0])
				if err != nil {
					return err
				}
				return withApp(cmd.Context(), func(a *app) error {
					_, out, err := fn(cmd.Context(), a, et)
					if out != nil {
						if perr := printOutcome(cmd.OutOrStdout(), out, asJSON); perr != nil {
							return perr
						}
					}
					return err
				})
			},
		}
	}

	cmd.AddCommand(
		write("create", "Register a new event type", func(ctx context.Context, a *app, et *eventtype.EventType) (*eventtype.EventType, *evolution.Outcome, error) {
			return a.registry.Create(ctx, et)
		}),
		write("update", "Evolve an existing event type", func(ctx context.Context, a *app, et *eventtype.EventType) (*eventtype.EventType, *evolution.Outcome, error) {
			return a.registry.Update(ctx, et)
		}),
		&cobra.Command{
			Use:   "get NAME",
			Short: "Print the current snapshot of an event type",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(a *app) error {
					et, err := a.registry.Get(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), et)
				})
			},
		},
		&cobra.Command{
			Use:   "history NAME",
			Short: "List every stored version of an event type, oldest first",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(a *app) error {
					history, err := a.registry.History(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if asJSON {
						return printJSON(cmd.OutOrStdout(), history)
					}
					return printTable(cmd.OutOrStdout(), history)
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the current version of every event type",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(a *app) error {
					all, err := a.registry.List(cmd.Context())
					if err != nil {
						return err
					}
					if asJSON {
						return printJSON(cmd.OutOrStdout(), all)
					}
					return printTable(cmd.OutOrStdout(), all)
				})
			},
		},
	)
	return cmd
}

func withApp(ctx context.Context, fn func(*app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, ets []*eventtype.EventType) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tREVISION\tVERSION\tMODE\tUPDATED")
	for _, et := range ets {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			et.Name, et.Revision, et.Version(), et.CompatibilityMode, et.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
