package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInsufficientInput = errors.New("insufficient input")
	ErrEmptyTranscript   = errors.New("empty transcript")
	ErrValidation        = errors.New("validation error")
	ErrIO                = errors.New("io failure")
	ErrTestFailure       = errors.New("test failure")
	ErrDeployment        = errors.New("deployment failure")
	ErrTimeout           = errors.New("timeout")
	ErrConfiguration     = errors.New("configuration error")
	ErrExternalTool      = errors.New("external tool error")
	ErrTransient         = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to the stable identifier recorded in stage results and
// run reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientInput):
		return "insufficient_input"
	case errors.Is(err, ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrIO):
		return "io_failure"
	case errors.Is(err, ErrTestFailure):
		return "test_failure"
	case errors.Is(err, ErrDeployment):
		return "deployment_failure"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "transient"
	}
}

// Fatal reports whether an error must halt the pipeline regardless of the
// degraded-run policy. Test and deployment failures are the only recoverable
// kinds.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrTestFailure) && !errors.Is(err, ErrDeployment)
}

// ErrorDetails describes a classified error for presentation.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Details extracts the classification and the human-readable message from an
// error produced by Wrap.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	message := strings.TrimSpace(err.Error())
	for _, sentinel := range []error{
		ErrInsufficientInput,
		ErrEmptyTranscript,
		ErrValidation,
		ErrIO,
		ErrTestFailure,
		ErrDeployment,
		ErrTimeout,
		ErrConfiguration,
		ErrExternalTool,
		ErrTransient,
	} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			message = strings.TrimPrefix(message, prefix)
			break
		}
	}
	return ErrorDetails{Kind: Kind(err), Message: message}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
