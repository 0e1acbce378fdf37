package pipeline

import (
	"time"

	"loom/internal/queue"
)

// Stage identifies one step of the pipeline.
type Stage string

const (
	StageTranscribe     Stage = "transcribing"
	StageExtractStories Stage = "extracting_stories"
	StageBuildModel     Stage = "building_model"
	StageGenerateCode   Stage = "generating_code"
	StageTest           Stage = "testing"
	StageDeploy         Stage = "deploying"
	StageReport         Stage = "reporting"
)

// StageOrder is the canonical execution order.
var StageOrder = []Stage{
	StageTranscribe,
	StageExtractStories,
	StageBuildModel,
	StageGenerateCode,
	StageTest,
	StageDeploy,
	StageReport,
}

// statusTransitions is the run state machine: each status lists the
// statuses a run may advance to. Testing may hand off straight to
// reporting because the deploy stage is skipped when disabled. Failure
// and cancellation are reachable from every non-terminal status and are
// handled by CanTransition rather than listed per row.
var statusTransitions = map[queue.Status][]queue.Status{
	queue.StatusPending:           {queue.StatusTranscribing},
	queue.StatusTranscribing:      {queue.StatusExtractingStories},
	queue.StatusExtractingStories: {queue.StatusBuildingModel},
	queue.StatusBuildingModel:     {queue.StatusGeneratingCode},
	queue.StatusGeneratingCode:    {queue.StatusTesting},
	queue.StatusTesting:           {queue.StatusDeploying, queue.StatusReporting},
	queue.StatusDeploying:         {queue.StatusReporting},
	queue.StatusReporting:         {queue.StatusCompleted},
	queue.StatusCompleted:         nil,
	queue.StatusFailed:            nil,
	queue.StatusCancelled:         nil,
}

// CanTransition reports whether a run may move from one status to the
// other. Terminal statuses have no successors.
func CanTransition(from, to queue.Status) bool {
	allowed, known := statusTransitions[from]
	if !known {
		return false
	}
	if to == queue.StatusFailed || to == queue.StatusCancelled {
		return !from.IsTerminal()
	}
	for _, candidate := range allowed {
		if candidate == to {
			return true
		}
	}
	return false
}

var stageStatus = map[Stage]queue.Status{
	StageTranscribe:     queue.StatusTranscribing,
	StageExtractStories: queue.StatusExtractingStories,
	StageBuildModel:     queue.StatusBuildingModel,
	StageGenerateCode:   queue.StatusGeneratingCode,
	StageTest:           queue.StatusTesting,
	StageDeploy:         queue.StatusDeploying,
	StageReport:         queue.StatusReporting,
}

var stageProgress = map[Stage]float64{
	StageTranscribe:     10,
	StageExtractStories: 30,
	StageBuildModel:     45,
	StageGenerateCode:   60,
	StageTest:           75,
	StageDeploy:         85,
	StageReport:         95,
}

var stageLabel = map[Stage]string{
	StageTranscribe:     "Transcribing audio",
	StageExtractStories: "Extracting user stories",
	StageBuildModel:     "Building code model",
	StageGenerateCode:   "Generating project",
	StageTest:           "Running tests",
	StageDeploy:         "Deploying",
	StageReport:         "Writing report",
}

// StageStatus describes the outcome of one stage attempt.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// ErrorInfo captures a classified stage failure for the run report.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StageResult records one stage attempt with its artifacts.
type StageResult struct {
	Stage      Stage             `json:"stage"`
	Status     StageStatus       `json:"status"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	Error      *ErrorInfo        `json:"error,omitempty"`
}

// Duration returns the wall time the stage took.
func (r StageResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
