package engine

import "errors"

var (
	// ErrStageConflict is returned when an operation does not fit the
	// workflow's current position: starting a thread twice, or resuming one
	// that is not interrupted or already completed.
	ErrStageConflict = errors.New("workflow stage conflict")

	// ErrResumeInProgress is returned when another resume for the same
	// thread is still running.
	ErrResumeInProgress = errors.New("resume already in progress")
)
