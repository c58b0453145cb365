package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrThroughputLimited will be used when the evaluation engine signals
	// that an upstream throughput limit has been exceeded. It is the only
	// transient failure kind: the retry layer re-runs the whole task.
	ErrThroughputLimited = errors.New("throughput limit exceeded")
	// ErrTimeout will be used when a task execution times out.
	ErrTimeout = errors.New("timeout while executing")
	// ErrContextCanceled will be used when the execution has not been
	// executed due to the context cancelation.
	ErrContextCanceled = errors.New("context canceled, logic not executed")
	// ErrRejectedExecution will be used when a task can not enter the
	// execution flow (e.g. submitted to an already draining scheduler).
	ErrRejectedExecution = errors.New("execution rejected")
	// ErrFailureInjected will be used when the failure has been injected
	// by a fault injector.
	ErrFailureInjected = errors.New("failure injected")
	// ErrMissingEngine will be used when a runner chain reaches its end
	// without an executor/engine configured.
	ErrMissingEngine = errors.New("no evaluation engine configured")
)

// ThroughputLimited marks err as a transient throughput-limit failure so
// the retry layer routes it through backoff instead of failing the task.
func ThroughputLimited(err error) error {
	if err == nil {
		return ErrThroughputLimited
	}
	return fmt.Errorf("%w: %w", ErrThroughputLimited, err)
}

// IsThroughputLimited returns true if err is (or wraps) a throughput-limit
// failure. Every other error kind is task-fatal.
func IsThroughputLimited(err error) bool {
	return errors.Is(err, ErrThroughputLimited)
}
