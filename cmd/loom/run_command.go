package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"loom/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var input string
	var projectName string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "run [input]",
		Short: "Run the full pipeline for one recording or transcript",
		Long: `Run executes the complete pipeline for a single input: transcribe the
recording, extract user stories, build the code model, generate the
project, run its tests, optionally deploy, and write report.json.

Exit codes: 0 on success (including degraded runs), 1 on failure,
2 when interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			chosen, err := resolveInput(input, args)
			if err != nil {
				return err
			}
			inputPath, err := filepath.Abs(chosen)
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}
			if _, err := os.Stat(inputPath); err != nil {
				return fmt.Errorf("input %s is not readable: %w", inputPath, err)
			}

			name := deriveProjectName(inputPath, projectName)
			runDir := outputDir
			if runDir == "" {
				runDir = filepath.Join(cfg.Paths.OutputDir, name)
			} else if runDir, err = filepath.Abs(runDir); err != nil {
				return fmt.Errorf("resolve output dir: %w", err)
			}

			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			orchestrator, err := buildOrchestrator(cfg, store, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run, err := store.NewRun(runCtx, inputPath, name, runDir)
			if err != nil {
				return err
			}

			err = orchestrator.Run(runCtx, run)
			switch {
			case err == nil:
				final, getErr := store.GetByID(context.Background(), run.ID)
				if getErr == nil && final != nil {
					printRunSummary(cmd, final)
				}
				return nil
			case errors.Is(err, context.Canceled):
				return &exitError{code: 2, err: errors.New("run cancelled")}
			default:
				return &exitError{code: 1, err: err}
			}
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Input recording or transcript (alternative to the positional argument)")
	cmd.Flags().StringVar(&projectName, "project-name", "", "Project name (defaults to the input file name)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory (defaults to <paths.output_dir>/<project-name>)")

	return cmd
}

func printRunSummary(cmd *cobra.Command, run *queue.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project:  %s\n", run.ProjectName)
	fmt.Fprintf(out, "Output:   %s\n", run.OutputDir)
	fmt.Fprintf(out, "Status:   %s\n", run.Status)
	fmt.Fprintf(out, "Degraded: %s\n", yesNo(run.Degraded))
	fmt.Fprintf(out, "Tests:    passed=%s coverage=%.1f%%\n", yesNo(run.TestsPassed), run.CoveragePercent)
	if run.FrontendURL != "" {
		fmt.Fprintf(out, "Frontend: %s\n", run.FrontendURL)
	}
	if run.BackendURL != "" {
		fmt.Fprintf(out, "Backend:  %s\n", run.BackendURL)
	}
	if run.ReportPath != "" {
		fmt.Fprintf(out, "Report:   %s\n", run.ReportPath)
	}
}
