package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the run queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueStatsCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	cmd.AddCommand(newQueueRemoveCommand(ctx))

	return cmd
}

func withStore(ctx *commandContext, fn func(cmd *cobra.Command, store *queue.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return err
		}
		store, err := queue.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, store)
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued runs",
		RunE: withStore(ctx, func(cmd *cobra.Command, store *queue.Store) error {
			var statuses []queue.Status
			if statusFilter != "" {
				status, ok := queue.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}

			runs, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, runs)
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					fmt.Sprintf("%d", run.ID),
					run.ProjectName,
					string(run.Status),
					fmt.Sprintf("%.0f%%", run.ProgressPercent),
					run.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Project", "Status", "Progress", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		}),
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show run counts per status",
		RunE: withStore(ctx, func(cmd *cobra.Command, store *queue.Store) error {
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, stats)
			}

			rows := make([][]string, 0, len(stats))
			for _, status := range queue.AllStatuses() {
				if count, ok := stats[status]; ok {
					rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Status", "Runs"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed or cancelled runs back to pending",
		RunE: withStore(ctx, func(cmd *cobra.Command, store *queue.Store) error {
			args := cmd.Flags().Args()
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid run id %q", arg)
				}
				ids = append(ids, id)
			}

			count, err := store.RetryFailed(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d run(s) to pending\n", count)
			return nil
		}),
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete completed runs (or every run with --all)",
		RunE: withStore(ctx, func(cmd *cobra.Command, store *queue.Store) error {
			var (
				count int64
				err   error
			)
			if all {
				count, err = store.Clear(cmd.Context())
			} else {
				count, err = store.ClearCompleted(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", count)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every run regardless of status")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete one run by id",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(ctx, func(cmd *cobra.Command, store *queue.Store) error {
			id, err := strconv.ParseInt(cmd.Flags().Arg(0), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", cmd.Flags().Arg(0))
			}
			removed, err := store.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("run %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed run %d\n", id)
			return nil
		}),
	}
}
