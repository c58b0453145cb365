// Package timeout cuts the execution of a task when its deadline passes.
// The timeout is opt-in: a zero duration leaves the chain untouched.
package timeout

import (
	"context"
	"time"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/errors"
	"github.com/evalgrid/evalgrid/metrics"
)

// Config is the configuration of the timeout middleware.
type Config struct {
	// Timeout is the per-task deadline. Zero or negative disables the
	// middleware.
	Timeout time.Duration
}

type result struct {
	results []evalgrid.Result
	err     error
}

// NewMiddleware returns a middleware that cuts the execution of the next
// runner when the configured time passes, using the context.
func NewMiddleware(cfg Config) evalgrid.Middleware {
	return func(next evalgrid.Runner) evalgrid.Runner {
		next = evalgrid.SanitizeRunner(next)

		if cfg.Timeout <= 0 {
			return next
		}

		return evalgrid.RunnerFunc(func(ctx context.Context, t evalgrid.Task) ([]evalgrid.Result, error) {
			metricsRecorder, _ := metrics.RecorderFromContext(ctx)

			// Set a timeout on the task using the context so the engine
			// call gets cancelled too.
			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			// Run the task. The channel is buffered so the goroutine does
			// not leak when the deadline wins.
			resC := make(chan result, 1)
			go func() {
				results, err := next.Run(ctx, t)
				resC <- result{results: results, err: err}
			}()

			// Wait until the deadline has been reached or we have a result.
			select {
			case res := <-resC:
				return res.results, res.err
			case <-ctx.Done():
				metricsRecorder.IncTimeout()
				return nil, errors.ErrTimeout
			}
		})
	}
}
