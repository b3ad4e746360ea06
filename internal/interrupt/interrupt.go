// Package interrupt implements cooperative cancellation. A Flag is raised
// by a watchdog or by the caller and polled by the engine and the refiner
// at their checkpoints; nothing is ever preempted.
package interrupt

import (
	"context"
	"errors"
	"sync/atomic"
)

// Reason says why a Flag was raised.
type Reason int32

const (
	ReasonNone Reason = iota
	ReasonUser
	ReasonWallTime
	ReasonCPUTime
	ReasonSteps
	ReasonShutdown
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUser:
		return "user"
	case ReasonWallTime:
		return "wall_time"
	case ReasonCPUTime:
		return "cpu_time"
	case ReasonSteps:
		return "steps"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// IsBudget reports whether the reason is an exhausted resource budget.
func (r Reason) IsBudget() bool {
	return r == ReasonWallTime || r == ReasonCPUTime || r == ReasonSteps
}

// ErrInterrupted is matched by every Error.
var ErrInterrupted = errors.New("interrupted")

// Error is returned from checkpoints once the flag is raised.
type Error struct {
	Reason Reason
}

func (e *Error) Error() string { return "interrupted: " + e.Reason.String() }

func (e *Error) Is(target error) bool { return target == ErrInterrupted }

// ContextReason classifies the error of a done context. A deadline on the
// caller's context is an overall shutdown, never a partition budget: those
// are raised by the budget watchdog.
func ContextReason(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonShutdown
	}
	return ReasonUser
}

// ReasonOf extracts the interruption reason from err.
func ReasonOf(err error) (Reason, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Reason, true
	}
	return ReasonNone, false
}

// Flag is a level-triggered cancellation flag with an optional step budget.
// The zero value is ready to use. All methods are safe for concurrent use.
type Flag struct {
	reason   atomic.Int32
	steps    atomic.Int64
	maxSteps atomic.Int64
}

// New returns a flag that trips after maxSteps calls to Step
// (maxSteps <= 0 disables the step budget).
func New(maxSteps int64) *Flag {
	f := &Flag{}
	f.maxSteps.Store(maxSteps)
	return f
}

// Raise sets the flag. Only the first reason is kept; Raise reports
// whether this call set it.
func (f *Flag) Raise(r Reason) bool {
	if r == ReasonNone {
		return false
	}
	return f.reason.CompareAndSwap(int32(ReasonNone), int32(r))
}

// Reason returns the reason the flag was raised with.
func (f *Flag) Reason() Reason { return Reason(f.reason.Load()) }

// Raised reports whether the flag is set.
func (f *Flag) Raised() bool { return f.Reason() != ReasonNone }

// Step counts one unit of work and raises the flag when the step budget
// is exhausted.
func (f *Flag) Step() {
	n := f.steps.Add(1)
	if limit := f.maxSteps.Load(); limit > 0 && n > limit {
		f.Raise(ReasonSteps)
	}
}

// Steps returns the number of steps counted so far.
func (f *Flag) Steps() int64 { return f.steps.Load() }

// Check is the checkpoint: it returns an *Error when the flag is raised or
// ctx is done. A done ctx raises the flag.
func (f *Flag) Check(ctx context.Context) error {
	if r := f.Reason(); r != ReasonNone {
		return &Error{Reason: r}
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			f.Raise(ContextReason(ctx.Err()))
			return &Error{Reason: f.Reason()}
		default:
		}
	}
	return nil
}
