package pipeline

import (
	"errors"
	"fmt"
)

// Phase names a stage of a run.
type Phase string

const (
	PhaseValidate  Phase = "validate"
	PhaseIngest    Phase = "ingest"
	PhaseDispatch  Phase = "dispatch"
	PhaseSummarize Phase = "summarize"
	PhaseExport    Phase = "export"
)

var (
	// ErrWriterClosed is returned when a writer is used after Close.
	ErrWriterClosed = errors.New("pipeline: writer closed")
	// ErrCoachesFailed is returned when the run completed but some coaches
	// could not be dispatched.
	ErrCoachesFailed = errors.New("one or more coaches failed")
)

// PhaseError tags an error with the phase, and coach when known, it came from.
type PhaseError struct {
	Phase Phase
	Coach string
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Coach != "" {
		return fmt.Sprintf("%s: coach %q: %v", e.Phase, e.Coach, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func phaseErr(phase Phase, coach string, err error) *PhaseError {
	return &PhaseError{Phase: phase, Coach: coach, Err: err}
}
