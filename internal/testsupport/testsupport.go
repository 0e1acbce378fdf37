// Package testsupport provides shared helpers for package tests: a config
// rooted in a temp directory and an open queue store backed by it.
package testsupport

import (
	"testing"

	"loom/internal/config"
	"loom/internal/queue"
)

// NewConfig returns a validated config whose paths live under t.TempDir().
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = root + "/projects"
	cfg.Paths.LogDir = root + "/logs"
	cfg.LLM.APIKey = "test-key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a queue store for cfg and closes it on cleanup.
func MustOpenStore(t *testing.T, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
