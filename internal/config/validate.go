package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError aggregates configuration validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "configuration invalid"
	}
	return "configuration invalid: " + strings.Join(e.Issues, "; ")
}

// Validate checks configuration invariants that do not depend on the
// environment. Credential presence is checked separately by preflight so
// that read-only commands work without an API key.
func (c *Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		issues = append(issues, "paths.output_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		issues = append(issues, "paths.log_dir must not be empty")
	}

	if c.LLM.BaseURL == "" {
		issues = append(issues, "llm.base_url must not be empty")
	}
	if c.LLM.Model == "" {
		issues = append(issues, "llm.model must not be empty")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		issues = append(issues, "llm.timeout_seconds must be positive")
	}

	if c.Transcriber.Command == "" {
		issues = append(issues, "transcriber.command must not be empty")
	}
	if c.Transcriber.TimeoutSeconds <= 0 {
		issues = append(issues, "transcriber.timeout_seconds must be positive")
	}

	if len(c.Testing.Command) == 0 {
		issues = append(issues, "testing.command must not be empty")
	}
	if c.Testing.TimeoutSeconds <= 0 {
		issues = append(issues, "testing.timeout_seconds must be positive")
	}

	if c.Deploy.Enabled {
		if c.Deploy.Endpoint == "" {
			issues = append(issues, "deploy.endpoint must be set when deploy.enabled is true")
		}
		if len(c.Deploy.Targets) == 0 {
			issues = append(issues, "deploy.targets must not be empty when deploy.enabled is true")
		}
		for _, target := range c.Deploy.Targets {
			if target != "backend" && target != "frontend" {
				issues = append(issues, fmt.Sprintf("deploy.targets contains unknown target %q", target))
			}
		}
	}
	if c.Deploy.TimeoutSeconds <= 0 {
		issues = append(issues, "deploy.timeout_seconds must be positive")
	}

	if !c.Generate.Schema && !c.Generate.API && !c.Generate.UI {
		issues = append(issues, "generate must enable at least one of schema, api, ui")
	}
	if c.Generate.FallbackEntity == "" {
		issues = append(issues, "generate.fallback_entity must not be empty")
	}

	if c.Workflow.QueuePollInterval <= 0 {
		issues = append(issues, "workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		issues = append(issues, "workflow.error_retry_interval must be positive")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}

	if c.Notifications.RequestTimeout <= 0 {
		issues = append(issues, "notifications.request_timeout must be positive")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// IsValidationError reports whether err is a configuration validation failure.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
