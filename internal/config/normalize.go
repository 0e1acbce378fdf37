package config

import (
	"os"
	"strings"
)

// envAPIKey overrides llm.api_key when set, so credentials can stay out of
// the config file.
const envAPIKey = "LOOM_LLM_API_KEY"

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if key := strings.TrimSpace(os.Getenv(envAPIKey)); key != "" {
		c.LLM.APIKey = key
	}

	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Transcriber.Command = strings.TrimSpace(c.Transcriber.Command)
	c.Deploy.Endpoint = strings.TrimSpace(c.Deploy.Endpoint)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Generate.FallbackEntity = strings.ToLower(strings.TrimSpace(c.Generate.FallbackEntity))

	targets := c.Deploy.Targets[:0]
	for _, target := range c.Deploy.Targets {
		trimmed := strings.ToLower(strings.TrimSpace(target))
		if trimmed != "" {
			targets = append(targets, trimmed)
		}
	}
	c.Deploy.Targets = targets

	return nil
}
