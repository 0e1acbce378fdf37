// Package notifications delivers run lifecycle notifications via ntfy.
// Failures to notify are logged by callers but never fail a run.
package notifications
