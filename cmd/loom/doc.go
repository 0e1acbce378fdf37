// Command loom is the CLI for the pipeline: one-shot runs, queue
// management, the processing daemon, and configuration tooling.
package main
