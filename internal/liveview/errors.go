package liveview

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("liveview: timeout")
	// ErrAssertionTimeout matches every *AssertionTimeoutError.
	ErrAssertionTimeout = errors.New("liveview: assertion timeout")
	// ErrMissingCapability matches every *MissingCapabilityError.
	ErrMissingCapability = errors.New("liveview: missing capability")
	// ErrNoDeadline is returned when a wait is requested without a positive timeout.
	ErrNoDeadline = errors.New("liveview: wait requires a positive timeout")
)

// TimeoutError reports a bounded wait whose deadline elapsed before its
// predicate held.
type TimeoutError struct {
	Op        string
	Predicate string
	Deadline  time.Duration
	Observed  any
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: %q did not hold within %s", e.Op, e.Predicate, e.Deadline)
	if e.Observed != nil {
		msg += fmt.Sprintf(" (last observed: %v)", e.Observed)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// AssertionTimeoutError reports an observational check that never reached the
// expected visible, content or count state.
type AssertionTimeoutError struct {
	Assertion string
	Subject   string
	Expected  any
	Observed  any
	Err       error
}

func (e *AssertionTimeoutError) Error() string {
	msg := fmt.Sprintf("%s %s: expected %v", e.Assertion, e.Subject, e.Expected)
	if e.Observed != nil {
		msg += fmt.Sprintf(", last observed %v", e.Observed)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AssertionTimeoutError) Is(target error) bool { return target == ErrAssertionTimeout }

func (e *AssertionTimeoutError) Unwrap() error { return e.Err }

// MissingCapabilityError reports that a page global required by a blocking
// wait never appeared.
type MissingCapabilityError struct {
	Capability string
	Deadline   time.Duration
}

func (e *MissingCapabilityError) Error() string {
	if e.Deadline == 0 {
		return fmt.Sprintf("capability %q not available", e.Capability)
	}
	return fmt.Sprintf("page global %q absent after %s", e.Capability, e.Deadline)
}

func (e *MissingCapabilityError) Is(target error) bool { return target == ErrMissingCapability }
