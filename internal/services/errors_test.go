package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"loom/internal/services"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := services.Wrap(services.ErrIO, "generating_code", "render", "write schema.sql", cause)

	if !errors.Is(err, services.ErrIO) {
		t.Errorf("expected io marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "testing", "run", "unexpected", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Errorf("expected transient marker, got %v", err)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.ErrInsufficientInput, "insufficient_input"},
		{services.ErrEmptyTranscript, "empty_transcript"},
		{services.ErrValidation, "validation"},
		{services.ErrIO, "io_failure"},
		{services.ErrTestFailure, "test_failure"},
		{services.ErrDeployment, "deployment_failure"},
		{services.ErrTimeout, "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{services.ErrConfiguration, "configuration"},
		{services.ErrExternalTool, "external_tool"},
		{errors.New("anything else"), "transient"},
		{services.Wrap(services.ErrValidation, "building_model", "extract", "bad entity", nil), "validation"},
		{fmt.Errorf("outer: %w", services.ErrTimeout), "timeout"},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestFatal(t *testing.T) {
	if services.Fatal(nil) {
		t.Errorf("nil should not be fatal")
	}
	if services.Fatal(services.ErrTestFailure) {
		t.Errorf("test failure should be recoverable")
	}
	if services.Fatal(services.Wrap(services.ErrDeployment, "deploying", "deploy", "push failed", nil)) {
		t.Errorf("deployment failure should be recoverable")
	}
	if !services.Fatal(services.ErrIO) {
		t.Errorf("io failure should be fatal")
	}
	if !services.Fatal(errors.New("unknown")) {
		t.Errorf("unclassified errors should be fatal")
	}
}

func TestDetails(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "transcribing", "whisper", "exit status 1", nil)
	details := services.Details(err)

	if details.Kind != "external_tool" {
		t.Errorf("kind = %q", details.Kind)
	}
	if details.Message != "transcribing: whisper: exit status 1" {
		t.Errorf("message = %q", details.Message)
	}

	if got := services.Details(nil); got != (services.ErrorDetails{}) {
		t.Errorf("nil details = %+v", got)
	}
}
