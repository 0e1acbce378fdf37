// Package testrun executes the generated project's test suite and scrapes
// the result. A failing suite is a result, not an error; only a missing or
// unlaunchable harness is reported as a failure of the runner itself.
package testrun

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"loom/internal/services"
)

// Report summarizes one test execution.
type Report struct {
	Passed          bool
	CoveragePercent float64
	Output          string
}

// Runner executes a configured test command inside a project directory.
type Runner struct {
	command []string
	runner  func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// NewRunner constructs a Runner for the given command line.
func NewRunner(command []string) *Runner {
	return &Runner{command: command}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Runner) WithCommandRunner(runner func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)) {
	r.runner = runner
}

// Command returns the harness binary name for preflight checks.
func (r *Runner) Command() string {
	if len(r.command) == 0 {
		return ""
	}
	return r.command[0]
}

var coveragePattern = regexp.MustCompile(`(?i)(?:all files[^\d]*|coverage[^\d]*)(\d+(?:\.\d+)?)\s*%`)

// Run executes the test command in projectDir. A non-zero exit reports
// Passed=false rather than an error.
func (r *Runner) Run(ctx context.Context, projectDir string) (Report, error) {
	if len(r.command) == 0 {
		return Report{}, services.Wrap(services.ErrConfiguration, "testing", "run", "test command not configured", nil)
	}

	output, err := r.execute(ctx, projectDir, r.command[0], r.command[1:]...)
	report := Report{Output: string(output)}
	report.CoveragePercent = scrapeCoverage(report.Output)

	if err != nil {
		if ctx.Err() != nil {
			return report, services.Wrap(services.ErrTimeout, "testing", "run", "test run interrupted", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			report.Passed = false
			return report, nil
		}
		return report, services.Wrap(services.ErrExternalTool, "testing", "run", "launch test harness", err)
	}

	report.Passed = true
	return report, nil
}

func (r *Runner) execute(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if r.runner != nil {
		return r.runner(ctx, dir, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

func scrapeCoverage(output string) float64 {
	match := coveragePattern.FindStringSubmatch(output)
	if match == nil {
		return 0
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(match[1]), 64)
	if err != nil {
		return 0
	}
	return value
}
