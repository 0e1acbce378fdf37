package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage loom configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(ctx))
	cmd.AddCommand(newConfigValidateCommand(ctx))

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(path); statErr == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, redacted(cfg))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "output_dir          = %s\n", cfg.Paths.OutputDir)
			fmt.Fprintf(out, "log_dir             = %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "llm.model           = %s\n", cfg.LLM.Model)
			fmt.Fprintf(out, "llm.api_key         = %s\n", maskSecret(cfg.GetLLM().APIKey))
			fmt.Fprintf(out, "transcriber.command = %s\n", cfg.Transcriber.Command)
			fmt.Fprintf(out, "testing.command     = %s\n", strings.Join(cfg.Testing.Command, " "))
			fmt.Fprintf(out, "deploy.enabled      = %s\n", yesNo(cfg.Deploy.Enabled))
			fmt.Fprintf(out, "generate            = schema=%s api=%s ui=%s\n",
				yesNo(cfg.Generate.Schema), yesNo(cfg.Generate.API), yesNo(cfg.Generate.UI))
			fmt.Fprintf(out, "logging             = %s/%s\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			_ = cfg
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 8 {
		return "********"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

func redacted(cfg *config.Config) map[string]any {
	return map[string]any{
		"paths": cfg.Paths,
		"llm": map[string]any{
			"base_url":        cfg.LLM.BaseURL,
			"model":           cfg.LLM.Model,
			"api_key":         maskSecret(cfg.GetLLM().APIKey),
			"timeout_seconds": cfg.LLM.TimeoutSeconds,
		},
		"transcriber": cfg.Transcriber,
		"testing":     cfg.Testing,
		"deploy": map[string]any{
			"enabled":         cfg.Deploy.Enabled,
			"endpoint":        cfg.Deploy.Endpoint,
			"api_token":       maskSecret(cfg.Deploy.APIToken),
			"targets":         cfg.Deploy.Targets,
			"timeout_seconds": cfg.Deploy.TimeoutSeconds,
		},
		"generate":      cfg.Generate,
		"pipeline":      cfg.Pipeline,
		"workflow":      cfg.Workflow,
		"logging":       cfg.Logging,
		"notifications": cfg.Notifications,
	}
}
