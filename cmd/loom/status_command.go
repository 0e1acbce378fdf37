package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"total":      health.Total,
					"pending":    health.Pending,
					"processing": health.Processing,
					"failed":     health.Failed,
					"completed":  health.Completed,
					"queue_db":   store.Path(),
				})
			}

			rows := [][]string{
				{"Total", fmt.Sprintf("%d", health.Total)},
				{"Pending", fmt.Sprintf("%d", health.Pending)},
				{"Processing", fmt.Sprintf("%d", health.Processing)},
				{"Failed", fmt.Sprintf("%d", health.Failed)},
				{"Completed", fmt.Sprintf("%d", health.Completed)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"State", "Runs"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "Queue database: %s\n", store.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
