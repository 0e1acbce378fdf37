// Package workflow runs the daemon's processing loop: poll the queue for
// pending runs, hand each to the pipeline orchestrator, and back off when
// idle or after unexpected errors.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/pipeline"
	"loom/internal/queue"
)

// Manager polls the queue and dispatches runs to the orchestrator.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	currentRunID int64
}

// StatusSummary describes the manager's runtime state.
type StatusSummary struct {
	Running      bool
	CurrentRunID int64
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, orchestrator *pipeline.Orchestrator, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		logger:       logging.NewComponentLogger(logger, "workflow"),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Status reports the manager's runtime state.
func (m *Manager) Status() StatusSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return StatusSummary{Running: m.running, CurrentRunID: m.currentRunID}
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	pollInterval := time.Duration(m.cfg.Workflow.QueuePollInterval) * time.Second
	retryInterval := time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		run, err := m.store.NextForStatuses(ctx, queue.StatusPending)
		if err != nil {
			m.logger.Error("poll queue", logging.Error(err))
			if !m.sleep(ctx, retryInterval) {
				return
			}
			continue
		}
		if run == nil {
			if !m.sleep(ctx, pollInterval) {
				return
			}
			continue
		}

		m.setCurrentRun(run.ID)
		err = m.orchestrator.Run(ctx, run)
		m.setCurrentRun(0)

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			return
		default:
			// Terminal state was persisted by the orchestrator; keep polling.
			m.logger.Warn("run ended with error", logging.Int64("run_id", run.ID), logging.Error(err))
		}
	}
}

func (m *Manager) setCurrentRun(id int64) {
	m.mu.Lock()
	m.currentRunID = id
	m.mu.Unlock()
}

func (m *Manager) sleep(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = time.Second
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
