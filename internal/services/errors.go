package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the failure taxonomy. Callers classify wrapped
// errors with errors.Is against these values.
var (
	// ErrResourceExhausted marks an admission denial: the accelerator does
	// not have enough free memory for a stage's declared requirement.
	ErrResourceExhausted = errors.New("insufficient accelerator memory")
	// ErrValidation marks terminal input problems: unsuitable portrait,
	// over-limit audio duration, text too long. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrStageExecution marks a failure raised by the stage tool itself.
	ErrStageExecution = errors.New("stage execution error")
	// ErrModelLoad marks a failure while loading a stage's model or tool.
	ErrModelLoad = errors.New("model load error")
	// ErrPersistence marks job store read/write failures. Surfaced
	// distinctly because job state may now disagree with reality.
	ErrPersistence = errors.New("persistence error")
	// ErrInvalidTransition marks a rejected job lifecycle transition.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrExternalTool marks failures launching or talking to an external binary.
	ErrExternalTool = errors.New("external tool error")
	// ErrNotFound marks missing profiles, jobs, or input files.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error that carries stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinels above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStageExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Remedy returns the user-actionable suggestion for an error, or "" when
// there is nothing better than the message itself. Resource exhaustion is
// the one case where a concrete remedy beats a stack trace.
func Remedy(err error) string {
	switch {
	case errors.Is(err, ErrResourceExhausted):
		return "free accelerator memory or lower the render quality tier"
	case errors.Is(err, ErrValidation):
		return "fix the input and resubmit; this failure is not retried automatically"
	default:
		return ""
	}
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
