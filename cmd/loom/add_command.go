package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"loom/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var projectName string

	cmd := &cobra.Command{
		Use:   "add <input>",
		Short: "Enqueue a recording for the daemon to process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			inputPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}
			if _, err := os.Stat(inputPath); err != nil {
				return fmt.Errorf("input %s is not readable: %w", inputPath, err)
			}

			name := deriveProjectName(inputPath, projectName)
			runDir := filepath.Join(cfg.Paths.OutputDir, name)

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.NewRun(cmd.Context(), inputPath, name, runDir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued run %d (%s) for %s\n", run.ID, run.ProjectName, inputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "project-name", "", "Project name (defaults to the input file name)")

	return cmd
}
