package workflow

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrInputValidation = errors.New("input validation error")
	ErrFetch           = errors.New("fetch error")
	ErrGeneration      = errors.New("generation error")
	ErrRender          = errors.New("render error")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session busy")
	ErrTimeout         = errors.New("workflow timeout")
	ErrWorkflow        = errors.New("workflow error")
)

// ErrRevisionLimit is an input validation error raised when a rejection
// would exceed the configured revision cap.
var ErrRevisionLimit = errors.New("revision limit reached")

// Error is a classified failure of one workflow operation.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// Error omits the cause when it reads the same as the kind, as with a store
// sentinel that shares the kind's text.
func (e *Error) Error() string {
	if e.Err == nil || e.Err.Error() == e.Kind.Error() {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind sentinel of err, or ErrWorkflow for anything
// unclassified.
func KindOf(err error) error {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	for _, kind := range []error{
		ErrInputValidation, ErrFetch, ErrGeneration, ErrRender,
		ErrSessionNotFound, ErrSessionBusy, ErrTimeout,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrWorkflow
}
