package navigation

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError means a transition exceeded its wait budget. Transient:
// safe to retry the whole navigation run.
type TimeoutError struct {
	State  State
	Signal string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("navigation timeout in %s waiting for %q after %s", e.State, e.Signal, e.Budget)
}

// NetworkError means the underlying transport failed. Transient.
type NetworkError struct {
	State State
	Op    string
	Err   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error in %s during %s: %v", e.State, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StructureError means none of the known selector variants matched: the
// portal layout changed. Not retryable; every call will fail until the
// profile is updated, so it should reach operational alerting.
type StructureError struct {
	State State
	Tried []string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("structure mismatch in %s: no variant matched %v", e.State, e.Tried)
}

// AntiBotError means a challenge element was observed. Not retryable within
// the same session; escalate to the next strategy or fallback.
type AntiBotError struct {
	Indicator string
}

func (e *AntiBotError) Error() string {
	return fmt.Sprintf("anti-bot challenge detected (%s)", e.Indicator)
}

// IsTimeout reports whether err is a navigation timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsStructureMismatch reports whether err indicates a changed portal layout.
func IsStructureMismatch(err error) bool {
	var se *StructureError
	return errors.As(err, &se)
}

// IsAntiBot reports whether err indicates an anti-bot challenge.
func IsAntiBot(err error) bool {
	var ae *AntiBotError
	return errors.As(err, &ae)
}

// Retryable reports whether a failed navigation run may be retried.
// Timeouts and network errors are transient; anti-bot and structure
// mismatches are systemic and must surface immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsAntiBot(err) || IsStructureMismatch(err) {
		return false
	}
	return IsTimeout(err) || IsNetwork(err)
}
