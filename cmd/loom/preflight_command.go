package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var network bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check that the environment is ready for runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, network)

			rows := make([][]string, 0, len(results))
			for _, result := range results {
				mark := "FAIL"
				if result.Passed {
					mark = "OK"
				}
				rows = append(rows, []string{result.Name, mark, result.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Check", "Result", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if !preflight.AllPassed(results) {
				return &exitError{code: 1, err: fmt.Errorf("preflight checks failed")}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&network, "network", false, "Also verify the model API is reachable")
	return cmd
}
