package daemon_test

import (
	"context"
	"testing"

	"loom/internal/daemon"
	"loom/internal/logging"
	"loom/internal/testsupport"
	"loom/internal/workflow"
)

func TestDaemonLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, nil, nil)

	d, err := daemon.New(cfg, store, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	status := d.Status()
	if !status.Running || !status.Workflow.Running {
		t.Errorf("status = %+v, want running", status)
	}
	if status.QueueDBPath != cfg.QueueDatabasePath() {
		t.Errorf("queue db = %q", status.QueueDBPath)
	}

	if err := d.Start(context.Background()); err == nil {
		t.Errorf("second Start should fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Errorf("expected stopped")
	}

	// Lock is released, so a fresh daemon can start again.
	again, err := daemon.New(cfg, store, logging.NewNop(), workflow.NewManager(cfg, store, nil, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := again.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	again.Stop()
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := daemon.New(nil, store, logging.NewNop(), workflow.NewManager(cfg, store, nil, nil)); err == nil {
		t.Errorf("expected error for nil config")
	}
	if _, err := daemon.New(cfg, store, nil, workflow.NewManager(cfg, store, nil, nil)); err == nil {
		t.Errorf("expected error for nil logger")
	}
	if _, err := daemon.New(cfg, store, logging.NewNop(), nil); err == nil {
		t.Errorf("expected error for nil workflow")
	}
}
