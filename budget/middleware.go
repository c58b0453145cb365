package budget

import (
	"context"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/metrics"
)

// MiddlewareConfig is the configuration of the budget middleware.
type MiddlewareConfig struct {
	// Budget is the shared budget every task draws from before executing.
	Budget Budget
	// Feedback enables replenishing the task's reported cost back into the
	// budget after the task eventually succeeds. Cost is charged exactly
	// once per task, never for failed attempts.
	Feedback bool
}

func (c *MiddlewareConfig) defaults() {
	if c.Budget == nil {
		c.Budget = NewAdaptive(Config{})
	}
}

// NewMiddleware returns a middleware that gates the next runner behind a
// draw on the shared budget. The draw happens on every attempt, so a task
// holding an admission slot can still be paced here.
func NewMiddleware(cfg MiddlewareConfig) evalgrid.Middleware {
	cfg.defaults()

	return func(next evalgrid.Runner) evalgrid.Runner {
		next = evalgrid.SanitizeRunner(next)

		return evalgrid.RunnerFunc(func(ctx context.Context, t evalgrid.Task) ([]evalgrid.Result, error) {
			metricsRecorder, _ := metrics.RecorderFromContext(ctx)

			if err := cfg.Budget.Draw(ctx); err != nil {
				return nil, err
			}
			observeBalance(metricsRecorder, cfg.Budget)

			results, err := next.Run(ctx, t)
			if err != nil {
				return nil, err
			}

			if cfg.Feedback {
				var cost float64
				for _, r := range results {
					cost += r.Cost
				}
				cfg.Budget.Replenish(cost)
				observeBalance(metricsRecorder, cfg.Budget)
			}

			return results, nil
		})
	}
}

func observeBalance(rec metrics.Recorder, b Budget) {
	if bal, ok := b.(balancer); ok {
		rec.SetBudgetBalance(bal.Balance())
	}
}
