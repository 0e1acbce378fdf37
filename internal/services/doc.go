// Package services defines the shared error taxonomy and context carriers
// used by pipeline stages and external collaborator clients. Sentinel errors
// classify failures for the run report; Wrap tags errors with stage context
// so the orchestrator can surface the failing stage and kind without parsing
// messages.
package services
