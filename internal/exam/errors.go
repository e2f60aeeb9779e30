package exam

import (
	"errors"
	"fmt"
)

var (
	ErrClosed           = errors.New("exam session closed")
	ErrNotReady         = errors.New("exam is not loaded")
	ErrAlreadyLoaded    = errors.New("exam already loaded")
	ErrLocked           = errors.New("answers are locked")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrUnknownOption    = errors.New("unknown option")
	ErrSubmitInProgress = errors.New("submission in progress")
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrSubmitCancelled  = errors.New("submission cancelled")
	errStale            = errors.New("stale completion dropped")
)

// LoadError is returned when an exam cannot be loaded for taking.
type LoadError struct {
	ExamID int64
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load exam %d: %v", e.ExamID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SubmitError is returned when the backend did not accept a submission. The
// attempt stays open with its answers intact.
type SubmitError struct {
	ExamID    int64
	Automatic bool
	Err       error
}

func (e *SubmitError) Error() string {
	kind := "submit"
	if e.Automatic {
		kind = "auto-submit"
	}
	return fmt.Sprintf("%s exam %d: %v", kind, e.ExamID, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }
