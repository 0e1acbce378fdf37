package transcribe_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"loom/internal/services"
	"loom/internal/services/transcribe"
)

func TestTranscribeTextPassthrough(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "meeting.txt")
	dest := filepath.Join(dir, "out", "transcript.txt")
	if err := os.WriteFile(input, []byte("we need a todo app\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	service := transcribe.NewService(transcribe.Config{})
	service.WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("passthrough must not invoke the tool")
		return nil
	})

	if err := service.Transcribe(context.Background(), input, dest); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if string(data) != "we need a todo app\n" {
		t.Errorf("transcript = %q", data)
	}
}

func TestTranscribeInvokesWhisper(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "meeting.wav")
	dest := filepath.Join(dir, "run", "transcript.txt")
	if err := os.WriteFile(input, []byte("fake audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var gotName string
	var gotArgs []string
	service := transcribe.NewService(transcribe.Config{Command: "uvx", Model: "small"})
	service.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		// Simulate whisper writing <input base>.txt into the work dir.
		produced := filepath.Join(filepath.Dir(dest), "meeting.txt")
		return os.WriteFile(produced, []byte("transcribed\n"), 0o644)
	})

	if err := service.Transcribe(context.Background(), input, dest); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotName != "uvx" {
		t.Errorf("command = %q", gotName)
	}
	wantArgs := []string{
		"--from", "openai-whisper",
		"whisper",
		input,
		"--model", "small",
		"--output_format", "txt",
		"--output_dir", filepath.Dir(dest),
	}
	if !reflect.DeepEqual(gotArgs, wantArgs) {
		t.Errorf("args = %v, want %v", gotArgs, wantArgs)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if string(data) != "transcribed\n" {
		t.Errorf("transcript = %q", data)
	}
}

func TestTranscribeToolFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "meeting.wav")
	if err := os.WriteFile(input, []byte("fake audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	service := transcribe.NewService(transcribe.Config{})
	service.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("exit status 1")
	})

	err := service.Transcribe(context.Background(), input, filepath.Join(dir, "transcript.txt"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want external tool", err)
	}
}

func TestTranscribeCancelledContext(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "meeting.wav")
	if err := os.WriteFile(input, []byte("fake audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	service := transcribe.NewService(transcribe.Config{})
	service.WithCommandRunner(func(runCtx context.Context, _ string, _ ...string) error {
		cancel()
		return runCtx.Err()
	})

	err := service.Transcribe(ctx, input, filepath.Join(dir, "transcript.txt"))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestTranscribeEmptyInput(t *testing.T) {
	service := transcribe.NewService(transcribe.Config{})
	err := service.Transcribe(context.Background(), "  ", filepath.Join(t.TempDir(), "transcript.txt"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestNewServiceDefaults(t *testing.T) {
	service := transcribe.NewService(transcribe.Config{})
	if service.Command() != "uvx" {
		t.Errorf("command = %q, want uvx", service.Command())
	}
}
