/*
Package evalgrid runs evaluation grids: every datum produced by a data
source is evaluated against every configured variation, under a shared
rate budget and a bounded admission ceiling.

The execution of one task (one datum against all variations) is modeled
as a Runner. Runners can be chained with middlewares (admission, budget,
retry, timeout, metrics...) and the chain always ends on an executor that
talks to the evaluation engine.
*/
package evalgrid

import (
	"context"
	"time"

	"github.com/evalgrid/evalgrid/errors"
)

// Datum is one opaque unit of input data produced by a data source.
// It is immutable once produced.
type Datum struct {
	ID      string
	Content string
	Meta    map[string]string
}

// Variation is one configuration/combination under test. The variation
// set of a run is fixed and computed once.
type Variation struct {
	ID     string
	Params map[string]string
}

// Task pairs one Datum with the full variation set. It is the unit of
// scheduling and of retry: a retried task re-runs all its variations.
type Task struct {
	Datum      Datum
	Variations []Variation
}

// Key identifies the evaluation of one (datum, variation) pair.
type Key struct {
	DatumID     string
	VariationID string
}

// Result is the outcome of evaluating one (datum, variation) pair. Cost
// is the number of budget units the evaluation consumed (tokens,
// usually), as reported by the engine.
type Result struct {
	Key     Key
	Payload string
	Cost    float64
}

// Engine is the evaluation engine collaborator. It evaluates one datum
// against one variation and is the sole source of truth for the cost of
// the evaluation. Transient throughput failures must be signaled with
// errors.ErrThroughputLimited so the retry layer can recognize them.
type Engine interface {
	Evaluate(ctx context.Context, d Datum, v Variation) (Result, error)
}

// EngineFunc is a helper to satisfy Engine with a function.
type EngineFunc func(ctx context.Context, d Datum, v Variation) (Result, error)

// Evaluate satisfies Engine interface.
func (e EngineFunc) Evaluate(ctx context.Context, d Datum, v Variation) (Result, error) {
	return e(ctx, d, v)
}

// Runner knows how to execute one task and return its full result set,
// all-or-nothing. An error means the task produced no results.
type Runner interface {
	// Run will run the task t.
	Run(ctx context.Context, t Task) ([]Result, error)
}

// RunnerFunc is a helper that satisfies Runner interface by using a function.
type RunnerFunc func(ctx context.Context, t Task) ([]Result, error)

// Run satisfies Runner interface.
func (r RunnerFunc) Run(ctx context.Context, t Task) ([]Result, error) {
	// Only execute if we reached the execution and the context has not been cancelled.
	select {
	case <-ctx.Done():
		return nil, errors.ErrContextCanceled
	default:
		return r(ctx, t)
	}
}

// Middleware is a function that wraps a Runner with another Runner,
// adding one concern (retry, admission, budget...) to the chain.
type Middleware func(Runner) Runner

// RunnerChain wraps the terminal runner r with the received middlewares,
// the first middleware will be the first one executed on Run.
func RunnerChain(r Runner, middlewares ...Middleware) Runner {
	r = SanitizeRunner(r)
	for i := len(middlewares) - 1; i >= 0; i-- {
		r = middlewares[i](r)
	}
	return r
}

// SanitizeRunner returns a safe Runner if the received one is not valid.
// A chain built without an executor at the end will reject every task.
func SanitizeRunner(r Runner) Runner {
	// In case of end of execution chain.
	if r == nil {
		return RunnerFunc(func(_ context.Context, _ Task) ([]Result, error) {
			return nil, errors.ErrMissingEngine
		})
	}
	return r
}

// Sleep waits d honoring the context cancellation. It is the wait used
// by the middlewares that pause between executions (retry backoff,
// budget pacing).
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
