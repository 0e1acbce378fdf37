// Package queue persists pipeline runs in SQLite and exposes the store the
// daemon polls for work. Schema changes ship as embedded migrations applied
// transactionally on open.
package queue
