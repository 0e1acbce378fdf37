package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"loom/internal/queue"
	"loom/internal/services"
)

// RunReport is the machine-readable summary written at the end of every
// run, including failed and cancelled ones. It always records every stage
// attempted.
type RunReport struct {
	RunID           int64         `json:"run_id"`
	UUID            string        `json:"uuid"`
	ProjectName     string        `json:"project_name"`
	Input           string        `json:"input"`
	Status          queue.Status  `json:"status"`
	Degraded        bool          `json:"degraded"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	Stages          []StageResult `json:"stages"`
	TestsPassed     bool          `json:"tests_passed"`
	CoveragePercent float64       `json:"coverage_percent"`
	FrontendURL     string        `json:"frontend_url,omitempty"`
	BackendURL      string        `json:"backend_url,omitempty"`
	GeneratedAt     time.Time     `json:"generated_at"`
}

// WriteReport serializes the report to report.json under runDir and
// returns its path.
func WriteReport(report RunReport, runDir string) (string, error) {
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrIO, "reporting", "write_report", "encode report", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrIO, "reporting", "write_report", "create run directory", err)
	}
	path := filepath.Join(runDir, "report.json")
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return "", services.Wrap(services.ErrIO, "reporting", "write_report", "write report.json", err)
	}
	return path, nil
}
