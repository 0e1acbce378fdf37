package queue_test

import (
	"context"
	"testing"

	"loom/internal/queue"
	"loom/internal/testsupport"
)

func TestNewRunAndGetByID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "/tmp/meeting.wav", "meeting-app", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if run.ID == 0 {
		t.Errorf("expected non-zero id")
	}
	if run.UUID == "" {
		t.Errorf("expected uuid")
	}
	if run.Status != queue.StatusPending {
		t.Errorf("status = %q, want pending", run.Status)
	}
	if run.CreatedAt.IsZero() || run.UpdatedAt.IsZero() {
		t.Errorf("expected timestamps, got %v / %v", run.CreatedAt, run.UpdatedAt)
	}

	loaded, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected run, got nil")
	}
	if loaded.AudioPath != "/tmp/meeting.wav" || loaded.ProjectName != "meeting-app" {
		t.Errorf("round-trip mismatch: %+v", loaded)
	}

	missing, err := store.GetByID(ctx, run.ID+100)
	if err != nil {
		t.Fatalf("GetByID missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing run, got %+v", missing)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "/tmp/a.wav", "demo", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	run.Status = queue.StatusTesting
	run.ProgressStage = "Running tests"
	run.ProgressPercent = 75
	run.TranscriptPath = "/tmp/out/transcript.txt"
	run.StoriesPath = "/tmp/out/stories.json"
	run.ProjectDir = "/tmp/out/demo"
	run.CoveragePercent = 84.5
	run.TestsPassed = true
	run.Degraded = true
	run.FrontendURL = "https://front.example"
	run.BackendURL = "https://back.example"

	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	loaded, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != queue.StatusTesting {
		t.Errorf("status = %q", loaded.Status)
	}
	if loaded.ProgressStage != "Running tests" || loaded.ProgressPercent != 75 {
		t.Errorf("progress = %q/%v", loaded.ProgressStage, loaded.ProgressPercent)
	}
	if loaded.CoveragePercent != 84.5 || !loaded.TestsPassed || !loaded.Degraded {
		t.Errorf("test results mismatch: %+v", loaded)
	}
	if loaded.FrontendURL != "https://front.example" || loaded.BackendURL != "https://back.example" {
		t.Errorf("urls mismatch: %+v", loaded)
	}
}

func TestNextForStatusesOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := store.NewRun(ctx, "/tmp/1.wav", "one", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	second, err := store.NewRun(ctx, "/tmp/2.wav", "two", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("next = %+v, want id %d", next, first.ID)
	}

	first.Status = queue.StatusCompleted
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update: %v", err)
	}

	next, err = store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("next = %+v, want id %d", next, second.ID)
	}

	none, err := store.NextForStatuses(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil, got %+v", none)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.NewRun(ctx, "/tmp/in.wav", "demo", "/tmp/out"); err != nil {
			t.Fatalf("NewRun: %v", err)
		}
	}
	run, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	run.Status = queue.StatusFailed
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}

	failed, err := store.List(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("failed = %d, want 1", len(failed))
	}
}

func TestRetryFailedIncludesCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	failed, err := store.NewRun(ctx, "/tmp/f.wav", "f", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	failed.SetFailed("transcription blew up")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	cancelled, err := store.NewRun(ctx, "/tmp/c.wav", "c", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	cancelled.SetCancelled("interrupted")
	if err := store.Update(ctx, cancelled); err != nil {
		t.Fatalf("Update: %v", err)
	}

	completed, err := store.NewRun(ctx, "/tmp/d.wav", "d", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	completed.Status = queue.StatusCompleted
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if count != 2 {
		t.Errorf("retried = %d, want 2", count)
	}

	reloaded, err := store.GetByID(ctx, failed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != queue.StatusPending {
		t.Errorf("status = %q, want pending", reloaded.Status)
	}
	if reloaded.ErrorMessage != "" {
		t.Errorf("error message should be cleared, got %q", reloaded.ErrorMessage)
	}
}

func TestRetryFailedByID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := store.NewRun(ctx, "/tmp/1.wav", "one", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	second, err := store.NewRun(ctx, "/tmp/2.wav", "two", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	for _, run := range []*queue.Run{first, second} {
		run.SetFailed("boom")
		if err := store.Update(ctx, run); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	count, err := store.RetryFailed(ctx, second.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if count != 1 {
		t.Errorf("retried = %d, want 1", count)
	}

	still, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if still.Status != queue.StatusFailed {
		t.Errorf("untargeted run status = %q, want failed", still.Status)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stuck, err := store.NewRun(ctx, "/tmp/s.wav", "s", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	stuck.Status = queue.StatusGeneratingCode
	if err := store.Update(ctx, stuck); err != nil {
		t.Fatalf("Update: %v", err)
	}

	done, err := store.NewRun(ctx, "/tmp/d.wav", "d", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if count != 1 {
		t.Errorf("reset = %d, want 1", count)
	}

	reloaded, err := store.GetByID(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != queue.StatusPending {
		t.Errorf("status = %q, want pending", reloaded.Status)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusPending,
		queue.StatusTranscribing,
		queue.StatusFailed,
		queue.StatusCancelled,
		queue.StatusCompleted,
	}
	for _, status := range statuses {
		run, err := store.NewRun(ctx, "/tmp/in.wav", "demo", "/tmp/out")
		if err != nil {
			t.Fatalf("NewRun: %v", err)
		}
		if status == queue.StatusPending {
			continue
		}
		run.Status = status
		if err := store.Update(ctx, run); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusPending] != 2 {
		t.Errorf("pending = %d, want 2", stats[queue.StatusPending])
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	want := queue.HealthSummary{Total: 6, Pending: 2, Processing: 1, Failed: 2, Completed: 1}
	if health != want {
		t.Errorf("health = %+v, want %+v", health, want)
	}
}

func TestRemoveAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "/tmp/in.wav", "demo", "/tmp/out")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	removed, err := store.Remove(ctx, run.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Errorf("expected removal")
	}
	removed, err = store.Remove(ctx, run.ID)
	if err != nil {
		t.Fatalf("Remove again: %v", err)
	}
	if removed {
		t.Errorf("expected no-op removal")
	}

	for i := 0; i < 2; i++ {
		done, err := store.NewRun(ctx, "/tmp/in.wav", "demo", "/tmp/out")
		if err != nil {
			t.Fatalf("NewRun: %v", err)
		}
		done.Status = queue.StatusCompleted
		if err := store.Update(ctx, done); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if _, err := store.NewRun(ctx, "/tmp/in.wav", "demo", "/tmp/out"); err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	cleared, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if cleared != 2 {
		t.Errorf("cleared = %d, want 2", cleared)
	}

	all, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if all != 1 {
		t.Errorf("cleared all = %d, want 1", all)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 0 {
		t.Errorf("total = %d, want 0", health.Total)
	}
}

func TestParseStatus(t *testing.T) {
	status, ok := queue.ParseStatus("testing")
	if !ok || status != queue.StatusTesting {
		t.Errorf("ParseStatus(testing) = %q, %v", status, ok)
	}
	if _, ok := queue.ParseStatus("nonsense"); ok {
		t.Errorf("expected unknown status to be rejected")
	}
	if !queue.StatusCompleted.IsTerminal() || queue.StatusTesting.IsTerminal() {
		t.Errorf("terminal classification wrong")
	}
}
