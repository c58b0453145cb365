/*
Package admission bounds the number of tasks simultaneously inside the
rest of the runner chain. A task may hold an admission slot while still
waiting on the rate budget; the slot is always released on every exit
path, a leaked slot would stall the whole run.
*/
package admission

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/metrics"
)

// Config is the configuration of the admission middleware.
type Config struct {
	// Ceiling is the maximum number of tasks allowed past the controller
	// at the same time.
	Ceiling int
}

func (c *Config) defaults() {
	if c.Ceiling <= 0 {
		c.Ceiling = 20
	}
}

// NewMiddleware returns a middleware that bounds the concurrent
// executions of the next runner to the configured ceiling. Acquiring a
// slot blocks honoring the context.
func NewMiddleware(cfg Config) evalgrid.Middleware {
	cfg.defaults()

	sem := semaphore.NewWeighted(int64(cfg.Ceiling))
	var inFlight int64

	return func(next evalgrid.Runner) evalgrid.Runner {
		next = evalgrid.SanitizeRunner(next)

		return evalgrid.RunnerFunc(func(ctx context.Context, t evalgrid.Task) ([]evalgrid.Result, error) {
			metricsRecorder, _ := metrics.RecorderFromContext(ctx)

			metricsRecorder.IncAdmissionQueued()
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			defer sem.Release(1)
			metricsRecorder.IncAdmissionProcessed()

			metricsRecorder.SetAdmissionInFlight(int(atomic.AddInt64(&inFlight, 1)))
			defer func() {
				metricsRecorder.SetAdmissionInFlight(int(atomic.AddInt64(&inFlight, -1)))
			}()

			return next.Run(ctx, t)
		})
	}
}
