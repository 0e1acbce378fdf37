package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loom/internal/codemodel"
	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/queue"
	"loom/internal/render"
	"loom/internal/services"
	"loom/internal/services/deploy"
	"loom/internal/services/testrun"
	"loom/internal/stories"
)

// Transcriber converts a recording into a plain-text transcript file.
type Transcriber interface {
	Transcribe(ctx context.Context, inputPath, destPath string) error
}

// StoryGenerator extracts user stories from a transcript.
type StoryGenerator interface {
	Generate(ctx context.Context, transcript string) ([]stories.UserStory, error)
}

// ProjectRenderer turns a code model into a project tree.
type ProjectRenderer interface {
	Render(model codemodel.CodeModel, outputRoot string) (render.Manifest, error)
}

// TestRunner executes the generated project's test suite.
type TestRunner interface {
	Run(ctx context.Context, projectDir string) (testrun.Report, error)
}

// Deployer publishes one generated target.
type Deployer interface {
	Deploy(ctx context.Context, projectDir, target string) (deploy.Result, error)
}

// Orchestrator drives a single run through every pipeline stage, persisting
// state transitions so the queue always reflects where a run is.
type Orchestrator struct {
	cfg         *config.Config
	store       *queue.Store
	logger      *slog.Logger
	notifier    notifications.Service
	transcriber Transcriber
	generator   StoryGenerator
	renderer    ProjectRenderer
	tester      TestRunner
	deployer    Deployer
}

// New constructs an orchestrator. The notifier may be nil, in which case
// notifications are discarded.
func New(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	notifier notifications.Service,
	transcriber Transcriber,
	generator StoryGenerator,
	renderer ProjectRenderer,
	tester TestRunner,
	deployer Deployer,
) *Orchestrator {
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Orchestrator{
		cfg:         cfg,
		store:       store,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		notifier:    notifier,
		transcriber: transcriber,
		generator:   generator,
		renderer:    renderer,
		tester:      tester,
		deployer:    deployer,
	}
}

// execution carries the mutable state of one run through its stages.
type execution struct {
	run    *queue.Run
	logger *slog.Logger
	runDir string

	transcript string
	stories    []stories.UserStory
	model      codemodel.CodeModel
	manifest   render.Manifest

	results  []StageResult
	degraded bool
}

// Run executes the full pipeline for one queued run. It returns nil when
// the run completes (possibly degraded), the stage error when it fails, and
// a context error when it is cancelled. Terminal state and the run report
// are persisted in all three cases.
func (o *Orchestrator) Run(ctx context.Context, run *queue.Run) error {
	ctx = services.WithRunID(ctx, run.ID)

	runDir := run.OutputDir
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		wrapped := services.Wrap(services.ErrIO, "pipeline", "prepare", "create run directory", err)
		o.failRun(ctx, run, o.logger, nil, wrapped)
		return wrapped
	}

	logger, logCloser := o.runLogger(ctx, runDir)
	if logCloser != nil {
		defer func() { _ = logCloser.Close() }()
	}
	exec := &execution{run: run, logger: logger, runDir: runDir}

	logger.Info("run started",
		logging.String("project", run.ProjectName),
		logging.String("input", run.AudioPath))
	if err := o.notifier.NotifyRunStarted(ctx, run.ProjectName); err != nil {
		logger.Warn("notification failed", logging.Error(err))
	}

	for _, stage := range StageOrder {
		if stage == StageDeploy && !o.cfg.Deploy.Enabled {
			exec.results = append(exec.results, StageResult{Stage: stage, Status: StageSkipped})
			logger.Info("stage skipped",
				logging.String(logging.FieldStage, string(stage)),
				logging.String("reason", "deploy disabled"))
			continue
		}

		if ctx.Err() != nil {
			return o.cancelRun(ctx, exec)
		}

		result, err := o.runStage(ctx, exec, stage)
		exec.results = append(exec.results, result)
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return o.cancelRun(ctx, exec)
		}
		if o.stageFatal(stage, err) {
			o.failRun(ctx, run, logger, exec.results, err)
			return err
		}
		exec.degraded = true
		logger.Warn("continuing despite stage failure",
			logging.String(logging.FieldStage, string(stage)),
			logging.Error(err))
	}

	return o.completeRun(ctx, exec)
}

// stageFatal applies the degraded-run policy: test and deploy failures are
// recoverable unless configured otherwise, everything else is fatal.
func (o *Orchestrator) stageFatal(stage Stage, err error) bool {
	switch stage {
	case StageTest:
		if errors.Is(err, services.ErrTestFailure) {
			return o.cfg.Pipeline.FailOnTestFailure
		}
	case StageDeploy:
		if errors.Is(err, services.ErrDeployment) {
			return o.cfg.Pipeline.FailOnDeployFailure
		}
	}
	return services.Fatal(err)
}

func (o *Orchestrator) runStage(ctx context.Context, exec *execution, stage Stage) (StageResult, error) {
	run := exec.run
	logger := exec.logger

	next := stageStatus[stage]
	if !CanTransition(run.Status, next) {
		err := services.Wrap(services.ErrValidation, string(stage), "run",
			fmt.Sprintf("illegal status transition %s -> %s", run.Status, next), nil)
		details := services.Details(err)
		return StageResult{
			Stage:  stage,
			Status: StageFailed,
			Error:  &ErrorInfo{Kind: details.Kind, Message: details.Message},
		}, err
	}
	run.Status = next
	run.SetProgress(stageLabel[stage], stageLabel[stage], stageProgress[stage])
	if err := o.store.Update(ctx, run); err != nil {
		logger.Warn("persist stage transition", logging.Error(err))
	}

	stageCtx := services.WithStage(ctx, string(stage))
	timeout := o.stageTimeout(stage)
	var cancel context.CancelFunc
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(stageCtx, timeout)
		defer cancel()
	}

	stageLogger := logging.WithContext(stageCtx, logger)
	stageLogger.Info("stage starting",
		logging.String(logging.FieldEventType, "stage_start"))

	result := StageResult{Stage: stage, Status: StageRunning, StartedAt: time.Now().UTC()}
	err := o.executeStage(stageCtx, exec, stage, &result)
	result.FinishedAt = time.Now().UTC()

	if err != nil {
		if stageCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = services.Wrap(services.ErrTimeout, string(stage), "run",
				fmt.Sprintf("stage exceeded %s", timeout), err)
		}
		details := services.Details(err)
		result.Status = StageFailed
		result.Error = &ErrorInfo{Kind: details.Kind, Message: details.Message}
		stageLogger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("error_kind", details.Kind),
			logging.String(logging.FieldErrorHint, errorHint(details.Kind)),
			logging.Error(err))
		return result, err
	}

	result.Status = StageSucceeded
	stageLogger.Info("stage complete",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", result.Duration()))
	return result, nil
}

func (o *Orchestrator) executeStage(ctx context.Context, exec *execution, stage Stage, result *StageResult) error {
	switch stage {
	case StageTranscribe:
		return o.transcribeStage(ctx, exec, result)
	case StageExtractStories:
		return o.storiesStage(ctx, exec, result)
	case StageBuildModel:
		return o.modelStage(ctx, exec, result)
	case StageGenerateCode:
		return o.generateStage(ctx, exec, result)
	case StageTest:
		return o.testStage(ctx, exec, result)
	case StageDeploy:
		return o.deployStage(ctx, exec, result)
	case StageReport:
		return o.reportStage(ctx, exec, result)
	default:
		return services.Wrap(services.ErrValidation, string(stage), "run", "unknown stage", nil)
	}
}

func (o *Orchestrator) transcribeStage(ctx context.Context, exec *execution, result *StageResult) error {
	if _, err := os.Stat(exec.run.AudioPath); err != nil {
		return services.Wrap(services.ErrInsufficientInput, "transcribing", "stat_input",
			fmt.Sprintf("input %s is not readable", exec.run.AudioPath), err)
	}

	transcriptPath := filepath.Join(exec.runDir, "transcript.txt")
	if err := o.transcriber.Transcribe(ctx, exec.run.AudioPath, transcriptPath); err != nil {
		return err
	}

	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return services.Wrap(services.ErrIO, "transcribing", "read_transcript", "read transcript", err)
	}
	exec.transcript = string(data)
	if strings.TrimSpace(exec.transcript) == "" {
		return services.Wrap(services.ErrEmptyTranscript, "transcribing", "read_transcript",
			"transcriber produced no text", nil)
	}

	exec.run.TranscriptPath = transcriptPath
	result.Artifacts = map[string]string{"transcript": transcriptPath}
	return nil
}

func (o *Orchestrator) storiesStage(ctx context.Context, exec *execution, result *StageResult) error {
	generated, err := o.generator.Generate(ctx, exec.transcript)
	if err != nil {
		return err
	}
	if len(generated) == 0 {
		return services.Wrap(services.ErrInsufficientInput, "extracting_stories", "generate",
			"no user stories produced", nil)
	}
	exec.stories = generated

	storiesPath := filepath.Join(exec.runDir, "stories.json")
	encoded, err := json.MarshalIndent(generated, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrIO, "extracting_stories", "write_stories", "encode stories", err)
	}
	if err := os.WriteFile(storiesPath, append(encoded, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrIO, "extracting_stories", "write_stories", "write stories.json", err)
	}

	exec.run.StoriesPath = storiesPath
	result.Artifacts = map[string]string{"stories": storiesPath}
	return nil
}

func (o *Orchestrator) modelStage(_ context.Context, exec *execution, result *StageResult) error {
	model, err := codemodel.Extract(exec.stories, exec.run.ProjectName, o.cfg.Generate.FallbackEntity, exec.logger)
	if err != nil {
		return err
	}
	exec.model = model
	if len(model.Entities) > 0 {
		result.Artifacts = map[string]string{"entity": model.Entities[0].Name}
	}
	return nil
}

func (o *Orchestrator) generateStage(_ context.Context, exec *execution, result *StageResult) error {
	manifest, err := o.renderer.Render(exec.model, exec.runDir)
	if err != nil {
		return err
	}
	exec.manifest = manifest
	exec.run.ProjectDir = exec.runDir
	result.Artifacts = map[string]string{
		"manifest": filepath.Join(exec.runDir, "manifest.yaml"),
		"files":    fmt.Sprintf("%d", len(manifest.Files)),
	}
	return nil
}

func (o *Orchestrator) testStage(ctx context.Context, exec *execution, result *StageResult) error {
	report, err := o.tester.Run(ctx, exec.runDir)
	exec.run.TestsPassed = report.Passed
	exec.run.CoveragePercent = report.CoveragePercent
	result.Artifacts = map[string]string{
		"coverage_percent": fmt.Sprintf("%.1f", report.CoveragePercent),
	}
	if err != nil {
		return err
	}
	if !report.Passed {
		return services.Wrap(services.ErrTestFailure, "testing", "run", "generated test suite failed", nil)
	}
	return nil
}

func (o *Orchestrator) deployStage(ctx context.Context, exec *execution, result *StageResult) error {
	artifacts := make(map[string]string, len(o.cfg.Deploy.Targets))
	for _, target := range o.cfg.Deploy.Targets {
		deployed, err := o.deployer.Deploy(ctx, exec.runDir, target)
		if err != nil {
			result.Artifacts = artifacts
			return err
		}
		artifacts[target+"_url"] = deployed.URL
		switch target {
		case "frontend":
			exec.run.FrontendURL = deployed.URL
		case "backend":
			exec.run.BackendURL = deployed.URL
		}
	}
	result.Artifacts = artifacts
	if err := o.notifier.NotifyDeployCompleted(ctx, exec.run.ProjectName, exec.run.FrontendURL, exec.run.BackendURL); err != nil {
		exec.logger.Warn("notification failed", logging.Error(err))
	}
	return nil
}

func (o *Orchestrator) reportStage(_ context.Context, exec *execution, result *StageResult) error {
	// The reporting stage records itself as succeeded; a failed write
	// replaces the entry during failure handling.
	results := append(append([]StageResult{}, exec.results...), StageResult{
		Stage:      StageReport,
		Status:     StageSucceeded,
		StartedAt:  result.StartedAt,
		FinishedAt: time.Now().UTC(),
	})

	status := queue.StatusCompleted
	report := o.buildReport(exec, status, results, "")
	path, err := WriteReport(report, exec.runDir)
	if err != nil {
		return err
	}
	exec.run.ReportPath = path
	result.Artifacts = map[string]string{"report": path}
	return nil
}

func (o *Orchestrator) buildReport(exec *execution, status queue.Status, results []StageResult, errorMessage string) RunReport {
	return RunReport{
		RunID:           exec.run.ID,
		UUID:            exec.run.UUID,
		ProjectName:     exec.run.ProjectName,
		Input:           exec.run.AudioPath,
		Status:          status,
		Degraded:        exec.degraded,
		ErrorMessage:    errorMessage,
		Stages:          results,
		TestsPassed:     exec.run.TestsPassed,
		CoveragePercent: exec.run.CoveragePercent,
		FrontendURL:     exec.run.FrontendURL,
		BackendURL:      exec.run.BackendURL,
		GeneratedAt:     time.Now().UTC(),
	}
}

func (o *Orchestrator) completeRun(ctx context.Context, exec *execution) error {
	run := exec.run
	run.Status = queue.StatusCompleted
	run.Degraded = exec.degraded
	message := "Project generated"
	if exec.degraded {
		message = "Project generated with failures"
	}
	run.SetProgress("Completed", message, 100)
	run.ErrorMessage = ""
	if err := o.store.Update(ctx, run); err != nil {
		exec.logger.Warn("persist completion", logging.Error(err))
	}

	exec.logger.Info("run completed",
		logging.String("project", run.ProjectName),
		logging.Bool("degraded", exec.degraded))
	if err := o.notifier.NotifyRunCompleted(ctx, run.ProjectName, exec.degraded); err != nil {
		exec.logger.Warn("notification failed", logging.Error(err))
	}
	return nil
}

func (o *Orchestrator) cancelRun(ctx context.Context, exec *execution) error {
	run := exec.run
	run.SetCancelled("Run cancelled")
	// The daemon context is gone; persist with a fresh context.
	if err := o.store.Update(context.WithoutCancel(ctx), run); err != nil {
		exec.logger.Warn("persist cancellation", logging.Error(err))
	}

	report := o.buildReport(exec, queue.StatusCancelled, exec.results, "Run cancelled")
	if path, err := WriteReport(report, exec.runDir); err == nil {
		run.ReportPath = path
		_ = o.store.Update(context.WithoutCancel(ctx), run)
	} else {
		exec.logger.Warn("write cancellation report", logging.Error(err))
	}

	exec.logger.Warn("run cancelled", logging.String("project", run.ProjectName))
	return context.Canceled
}

func (o *Orchestrator) failRun(ctx context.Context, run *queue.Run, logger *slog.Logger, results []StageResult, cause error) {
	details := services.Details(cause)
	run.SetFailed(details.Message)
	if err := o.store.Update(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("persist failure", logging.Error(err))
	}

	exec := &execution{run: run, logger: logger, runDir: run.OutputDir, results: results}
	report := o.buildReport(exec, queue.StatusFailed, results, details.Message)
	if path, err := WriteReport(report, run.OutputDir); err == nil {
		run.ReportPath = path
		_ = o.store.Update(context.WithoutCancel(ctx), run)
	} else {
		logger.Warn("write failure report", logging.Error(err))
	}

	logger.Error("run failed",
		logging.String("project", run.ProjectName),
		logging.String("error_kind", details.Kind),
		logging.Error(cause))
	if err := o.notifier.NotifyRunFailed(context.WithoutCancel(ctx), run.ProjectName, cause); err != nil {
		logger.Warn("notification failed", logging.Error(err))
	}
}

func (o *Orchestrator) stageTimeout(stage Stage) time.Duration {
	seconds := 0
	switch stage {
	case StageTranscribe:
		seconds = o.cfg.Transcriber.TimeoutSeconds
	case StageExtractStories:
		// Allow headroom for client-side retries.
		seconds = o.cfg.LLM.TimeoutSeconds * 2
	case StageTest:
		seconds = o.cfg.Testing.TimeoutSeconds
	case StageDeploy:
		seconds = o.cfg.Deploy.TimeoutSeconds * len(o.cfg.Deploy.Targets)
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// runLogger mirrors pipeline output into run.log under the run directory.
// The returned closer releases the run.log handle when the run finishes;
// it is nil when the file could not be opened.
func (o *Orchestrator) runLogger(ctx context.Context, runDir string) (*slog.Logger, io.Closer) {
	base := logging.WithContext(ctx, o.logger)
	fileLogger, closer, err := logging.NewWithCloser(logging.Options{
		Level:       o.cfg.Logging.Level,
		Format:      "console",
		OutputPaths: []string{filepath.Join(runDir, "run.log")},
	})
	if err != nil {
		base.Warn("open run log", logging.Error(err))
		return base, nil
	}
	return logging.Tee(base, logging.WithContext(ctx, fileLogger)), closer
}

func errorHint(kind string) string {
	switch kind {
	case "insufficient_input":
		return "check the input recording exists and is readable"
	case "empty_transcript":
		return "verify the recording contains speech"
	case "validation":
		return "inspect stories.json for unusable stories"
	case "io_failure":
		return "check permissions and free space under the output directory"
	case "test_failure":
		return "review test output in report.json"
	case "deployment_failure":
		return "check the deploy endpoint and token"
	case "timeout":
		return "raise the stage timeout in the config"
	case "configuration":
		return "run loom config validate"
	case "external_tool":
		return "verify the external tool is installed and on PATH"
	default:
		return "check run.log for details"
	}
}
