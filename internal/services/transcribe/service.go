// Package transcribe runs the external speech-to-text tool over meeting
// recordings. Plain-text inputs (.txt) skip transcription and are read
// directly, which keeps the pipeline usable without audio tooling.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"loom/internal/services"
)

// Config captures transcription settings.
type Config struct {
	// Command is the launcher binary, typically uvx.
	Command string
	// Model is the whisper model size passed to the tool.
	Model string
}

// Service transcribes audio files via an external whisper invocation.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a transcription service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Command == "" {
		cfg.Command = "uvx"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Command returns the configured launcher binary for preflight checks.
func (s *Service) Command() string {
	return s.cfg.Command
}

// Transcribe converts the input recording into a plain-text transcript at
// destPath. Inputs ending in .txt are copied through without invoking the
// tool.
func (s *Service) Transcribe(ctx context.Context, inputPath, destPath string) error {
	if strings.TrimSpace(inputPath) == "" {
		return services.Wrap(services.ErrValidation, "transcribing", "transcribe", "input path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return services.Wrap(services.ErrIO, "transcribing", "transcribe", "ensure output dir", err)
	}

	if strings.EqualFold(filepath.Ext(inputPath), ".txt") {
		return s.passthrough(inputPath, destPath)
	}

	workDir := filepath.Dir(destPath)
	args := []string{
		"--from", "openai-whisper",
		"whisper",
		inputPath,
		"--model", s.cfg.Model,
		"--output_format", "txt",
		"--output_dir", workDir,
	}
	if err := s.run(ctx, s.cfg.Command, args...); err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "transcribing", "transcribe", "transcription interrupted", ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "transcribing", "transcribe", "whisper invocation failed", err)
	}

	// Whisper names its output after the input file.
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	produced := filepath.Join(workDir, base+".txt")
	if produced == destPath {
		return nil
	}
	if err := os.Rename(produced, destPath); err != nil {
		return services.Wrap(services.ErrIO, "transcribing", "transcribe", "move transcript into place", err)
	}
	return nil
}

func (s *Service) passthrough(inputPath, destPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return services.Wrap(services.ErrIO, "transcribing", "transcribe", "read transcript input", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "transcribing", "transcribe", "write transcript", err)
	}
	return nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
