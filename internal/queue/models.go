package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusPending           Status = "pending"
	StatusTranscribing      Status = "transcribing"
	StatusExtractingStories Status = "extracting_stories"
	StatusBuildingModel     Status = "building_model"
	StatusGeneratingCode    Status = "generating_code"
	StatusTesting           Status = "testing"
	StatusDeploying         Status = "deploying"
	StatusReporting         Status = "reporting"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusTranscribing,
	StatusExtractingStories,
	StatusBuildingModel,
	StatusGeneratingCode,
	StatusTesting,
	StatusDeploying,
	StatusReporting,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusTranscribing:      {},
	StatusExtractingStories: {},
	StatusBuildingModel:     {},
	StatusGeneratingCode:    {},
	StatusTesting:           {},
	StatusDeploying:         {},
	StatusReporting:         {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight run.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Run represents one pipeline run persisted in SQLite.
type Run struct {
	ID              int64
	UUID            string
	AudioPath       string
	ProjectName     string
	OutputDir       string
	Status          Status
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	TranscriptPath  string
	StoriesPath     string
	ProjectDir      string
	ReportPath      string
	CoveragePercent float64
	TestsPassed     bool
	Degraded        bool
	FrontendURL     string
	BackendURL      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsProcessing returns true when the run is in an in-flight stage.
func (r Run) IsProcessing() bool {
	_, ok := processingStatuses[r.Status]
	return ok
}

// SetProgress updates all three progress fields atomically.
func (r *Run) SetProgress(stage, message string, percent float64) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = percent
}

// SetFailed marks the run as failed with the given error message.
func (r *Run) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.ProgressPercent = 0
	r.ProgressMessage = message
	r.ProgressStage = "Failed"
}

// SetCancelled marks the run as cancelled.
func (r *Run) SetCancelled(message string) {
	r.Status = StatusCancelled
	r.ErrorMessage = message
	r.ProgressPercent = 0
	r.ProgressMessage = message
	r.ProgressStage = "Cancelled"
}
