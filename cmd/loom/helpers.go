package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattn/go-isatty"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/pipeline"
	"loom/internal/queue"
	"loom/internal/render"
	"loom/internal/services"
	"loom/internal/services/deploy"
	"loom/internal/services/llm"
	"loom/internal/services/storygen"
	"loom/internal/services/testrun"
	"loom/internal/services/transcribe"
)

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newLogger(cfg *config.Config, toDaemonLog bool) (*slog.Logger, error) {
	paths := []string{"stdout"}
	if toDaemonLog {
		paths = append(paths, cfg.DaemonLogPath())
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
	})
}

// buildOrchestrator wires every pipeline collaborator from configuration.
func buildOrchestrator(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	renderer, err := render.New(render.Options{
		Schema: cfg.Generate.Schema,
		API:    cfg.Generate.API,
		UI:     cfg.Generate.UI,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	llmCfg := cfg.GetLLM()
	if llmCfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "startup", "build_orchestrator",
			"llm.api_key is not set; add it to the config or export LOOM_LLM_API_KEY", nil)
	}
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	})

	transcriber := transcribe.NewService(transcribe.Config{
		Command: cfg.Transcriber.Command,
		Model:   cfg.Transcriber.Model,
	})
	generator := storygen.NewGenerator(client, logger)
	tester := testrun.NewRunner(cfg.Testing.Command)
	deployer := deploy.NewClient(deploy.Config{
		Endpoint:       cfg.Deploy.Endpoint,
		APIToken:       cfg.Deploy.APIToken,
		TimeoutSeconds: cfg.Deploy.TimeoutSeconds,
	})
	notifier := notifications.NewService(cfg)

	return pipeline.New(cfg, store, logger, notifier, transcriber, generator, renderer, tester, deployer), nil
}

// resolveInput picks the pipeline input from the --input flag or the
// positional argument.
func resolveInput(flagValue string, args []string) (string, error) {
	flagValue = strings.TrimSpace(flagValue)
	positional := ""
	if len(args) > 0 {
		positional = strings.TrimSpace(args[0])
	}
	switch {
	case flagValue != "" && positional != "" && flagValue != positional:
		return "", errors.New("both --input and a positional argument were given; pass one")
	case flagValue != "":
		return flagValue, nil
	case positional != "":
		return positional, nil
	default:
		return "", errors.New("an input recording is required (pass --input <path>)")
	}
}

var projectNamePattern = regexp.MustCompile(`[^a-z0-9]+`)

// deriveProjectName turns an input path into a usable project name.
func deriveProjectName(inputPath, flagValue string) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return sanitizeProjectName(trimmed)
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return sanitizeProjectName(base)
}

func sanitizeProjectName(name string) string {
	cleaned := projectNamePattern.ReplaceAllString(strings.ToLower(name), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return "project"
	}
	return cleaned
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
