package eventloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")

	// ErrReentrantRun is returned when Run() is called from within the loop itself.
	// It matches ErrLoopAlreadyRunning via [errors.Is].
	ErrReentrantRun = fmt.Errorf("%w: cannot call Run() from within the loop", ErrLoopAlreadyRunning)

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("eventloop: loop has been terminated")

	// ErrInvalidArgument is the root cause of all argument validation errors.
	ErrInvalidArgument = errors.New("eventloop: invalid argument")

	// ErrNilCallback is returned when a nil callback is passed to Invoke, Timer.Start, or SingleShot.
	ErrNilCallback = &TypeError{Message: "eventloop: callback must not be nil", Cause: ErrInvalidArgument}

	// ErrNegativeInterval is returned when a timer is armed with a negative interval.
	ErrNegativeInterval = &RangeError{Message: "eventloop: timer interval must not be negative", Cause: ErrInvalidArgument}

	// ErrTimerClosed is returned when a closed Timer is started.
	ErrTimerClosed = errors.New("eventloop: timer has been closed")

	// ErrWakeModeUnsupported is returned by New when the requested WakeMode is
	// not available on the current platform.
	ErrWakeModeUnsupported = errors.New("eventloop: wake mode not supported on this platform")
)

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	// Value is the value passed to panic.
	Value any
	// Source identifies what was running, e.g. "invoke" or "timer".
	Source string
	// Stack is the stack trace of the panicking goroutine, captured at recovery.
	Stack []byte
}

func (e PanicError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("eventloop: callback panicked: %v", e.Value)
	}
	return fmt.Sprintf("eventloop: %s callback panicked: %v", e.Source, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] for error matching
// through the cause chain.
//
// If the panic Value is not an error (e.g., a string or other type),
// returns nil.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TypeError represents a type error, e.g. a missing callback.
type TypeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	if e.Message == "" {
		return "type error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TypeError) Unwrap() error {
	return e.Cause
}

// RangeError represents a value that is not within the expected range.
type RangeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	if e.Message == "" {
		return "range error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *RangeError) Unwrap() error {
	return e.Cause
}
