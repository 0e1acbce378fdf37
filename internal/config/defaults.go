package config

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: "~/loom/projects",
			LogDir:    "~/loom/logs",
		},
		LLM: LLM{
			BaseURL:        "https://openrouter.ai/api/v1/chat/completions",
			Model:          "anthropic/claude-3.5-sonnet",
			Referer:        "https://github.com/loom",
			Title:          "loom",
			TimeoutSeconds: 120,
		},
		Transcriber: Transcriber{
			Command:        "uvx",
			Model:          "base",
			TimeoutSeconds: 1800,
		},
		Testing: Testing{
			Command:        []string{"npm", "test"},
			TimeoutSeconds: 600,
		},
		Deploy: Deploy{
			Enabled:        false,
			Targets:        []string{"backend", "frontend"},
			TimeoutSeconds: 300,
		},
		Generate: Generate{
			Schema:         true,
			API:            true,
			UI:             true,
			FallbackEntity: "todo",
		},
		Pipeline: Pipeline{
			FailOnTestFailure:   false,
			FailOnDeployFailure: false,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
	}
}
