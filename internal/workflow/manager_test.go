package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"loom/internal/codemodel"
	"loom/internal/pipeline"
	"loom/internal/queue"
	"loom/internal/render"
	"loom/internal/services/deploy"
	"loom/internal/services/storygen"
	"loom/internal/services/testrun"
	"loom/internal/stories"
	"loom/internal/testsupport"
	"loom/internal/workflow"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(_ context.Context, _, destPath string) error {
	return os.WriteFile(destPath, []byte("meeting transcript"), 0o644)
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string) ([]stories.UserStory, error) {
	return storygen.FallbackStories(), nil
}

type stubRenderer struct{}

func (stubRenderer) Render(model codemodel.CodeModel, _ string) (render.Manifest, error) {
	return render.Manifest{ProjectName: model.ProjectName, Model: model}, nil
}

type stubTester struct{}

func (stubTester) Run(context.Context, string) (testrun.Report, error) {
	return testrun.Report{Passed: true}, nil
}

type stubDeployer struct{}

func (stubDeployer) Deploy(_ context.Context, _, target string) (deploy.Result, error) {
	return deploy.Result{Target: target, URL: "https://" + target + ".example"}, nil
}

func TestManagerProcessesPendingRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)

	orchestrator := pipeline.New(cfg, store, nil, nil,
		stubTranscriber{}, stubGenerator{}, stubRenderer{}, stubTester{}, stubDeployer{})
	manager := workflow.NewManager(cfg, store, orchestrator, nil)

	input := filepath.Join(t.TempDir(), "meeting.wav")
	if err := os.WriteFile(input, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	run, err := store.NewRun(context.Background(), input, "demo",
		filepath.Join(cfg.Paths.OutputDir, "demo"))
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	if err := manager.Start(context.Background()); err == nil {
		t.Errorf("second Start should fail")
	}
	if !manager.Status().Running {
		t.Errorf("expected running status")
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		reloaded, err := store.GetByID(context.Background(), run.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if reloaded.Status == queue.StatusCompleted {
			break
		}
		if reloaded.Status == queue.StatusFailed || reloaded.Status == queue.StatusCancelled {
			t.Fatalf("run ended in %q: %s", reloaded.Status, reloaded.ErrorMessage)
		}
		if time.Now().After(deadline) {
			t.Fatalf("run stuck in %q", reloaded.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}

	manager.Stop()
	if manager.Status().Running {
		t.Errorf("expected stopped status")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, nil, nil)

	// Stop on a never-started manager is a no-op.
	manager.Stop()
	if manager.Status().Running {
		t.Errorf("expected not running")
	}
}
