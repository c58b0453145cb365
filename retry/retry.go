/*
Package retry implements the retry/backoff policy of a task. Only
throughput-limit failures are transient and re-enter the loop; any other
failure kind is task-fatal and surfaces immediately to the caller.
*/
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/errors"
	"github.com/evalgrid/evalgrid/metrics"
)

// Config is the configuration used for the retry middleware.
type Config struct {
	// WaitBase is the base unit duration to wait on the retries.
	WaitBase time.Duration
	// DisableBackoff disables the exponential backoff on the retry (also
	// disables jitter), falling back to a fixed wait of WaitBase.
	DisableBackoff bool
	// Times is the number of times the task will be retried on a
	// throughput-limit failure before returning the error itself.
	Times int
}

func (c *Config) defaults() {
	if c.WaitBase <= 0 {
		c.WaitBase = 500 * time.Millisecond
	}

	if c.Times <= 0 {
		c.Times = 3
	}
}

// New returns a new retry ready runner, the execution will be retried the
// number of times specified on the config (+1, the original execution
// that is not a retry).
func New(cfg Config, r evalgrid.Runner) evalgrid.Runner {
	return NewMiddleware(cfg)(r)
}

// NewMiddleware returns a new retry middleware, the execution will be
// retried the number of times specified on the config (+1, the original
// execution that is not a retry).
func NewMiddleware(cfg Config) evalgrid.Middleware {
	cfg.defaults()

	return func(next evalgrid.Runner) evalgrid.Runner {
		next = evalgrid.SanitizeRunner(next)

		// Use the algorithms for jitter and backoff.
		// https://aws.amazon.com/es/blogs/architecture/exponential-backoff-and-jitter/
		return evalgrid.RunnerFunc(func(ctx context.Context, t evalgrid.Task) ([]evalgrid.Result, error) {
			var err error
			var results []evalgrid.Result
			metricsRecorder, _ := metrics.RecorderFromContext(ctx)

			// Start the attempts. (it's 1 + the number of retries.)
			for i := 0; i <= cfg.Times; i++ {
				// Only measure the retries.
				if i != 0 {
					metricsRecorder.IncRetry()
				}

				results, err = next.Run(ctx, t)
				if err == nil {
					return results, nil
				}

				// Only throughput-limit failures are transient, everything
				// else is fatal for the task and surfaces as is.
				if !errors.IsThroughputLimited(err) {
					return nil, err
				}
				metricsRecorder.IncThroughputLimited()

				// Attempts exhausted, no point in waiting again.
				if i == cfg.Times {
					break
				}

				// We need to sleep before making a retry.
				waitDuration := cfg.WaitBase

				// Apply Backoff.
				// The backoff is calculated exponentially based on a base time
				// and the attempt of the retry.
				if !cfg.DisableBackoff {
					exp := math.Exp2(float64(i + 1))
					waitDuration = time.Duration(float64(cfg.WaitBase) * exp)
					// Round to millisecs.
					waitDuration = waitDuration.Round(time.Millisecond)

					// Apply "full jitter".
					random := rand.New(rand.NewSource(time.Now().UnixNano()))
					waitDuration = time.Duration(float64(waitDuration) * random.Float64())
				}

				if err := evalgrid.Sleep(ctx, waitDuration); err != nil {
					return nil, err
				}
			}

			return nil, err
		})
	}
}
