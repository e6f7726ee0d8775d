package providers

import (
	"fmt"
	"strings"

	"github.com/aristath/folios/internal/domain"
)

// UnsupportedModeError is returned when a plugin does not support the
// requested execution mode.
type UnsupportedModeError struct {
	Provider domain.ProviderID
	Mode     domain.ExecutionMode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("provider %s does not support %s mode", e.Provider, e.Mode)
}

// SerializationError is returned when a request payload could not be built.
type SerializationError struct {
	Provider domain.ProviderID
	Reason   string
	Err      error
}

func (e *SerializationError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SerializationError) Unwrap() error { return e.Err }

// ExecutionError is returned when executing a task fails irrecoverably:
// a missing collaborator, a non-zero CLI exit, or an exhausted poll budget.
type ExecutionError struct {
	Provider domain.ProviderID
	JobID    string
	ExitCode int // -1 when no process exit is involved
	Timeout  bool
	Reason   string
	Err      error
}

func (e *ExecutionError) Error() string {
	parts := []string{fmt.Sprintf("provider %s", e.Provider)}
	if e.JobID != "" {
		parts = append(parts, fmt.Sprintf("job %s", e.JobID))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit code %d", e.ExitCode))
	}
	parts = append(parts, e.Reason)
	msg := strings.Join(parts, ": ")
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ParseError is returned when provider output could not be normalized.
// Dir and Files carry enough of the artifact directory's contents to diagnose
// the failure without re-running the task.
type ParseError struct {
	Dir    string
	Files  []string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Dir != "" {
		msg = fmt.Sprintf("%s (dir %s)", msg, e.Dir)
	}
	if len(e.Files) > 0 {
		msg = fmt.Sprintf("%s, available files: [%s]", msg, strings.Join(e.Files, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
