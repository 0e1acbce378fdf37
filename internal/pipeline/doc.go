// Package pipeline drives a queued run through transcription, story
// extraction, model building, code generation, testing, deployment, and
// reporting. Stage transitions are persisted to the queue as they happen,
// and every terminal outcome leaves a report.json behind.
package pipeline
