// Package logging builds the slog loggers used across loom: a console
// handler for interactive runs, a JSON handler for machine consumption, and
// helpers that derive standard attributes (run id, stage, correlation id)
// from context. Each pipeline run additionally appends to its own run.log
// under the run's output directory.
package logging
