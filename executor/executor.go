/*
Package executor implements the terminal runner of the chain: it
evaluates the task's datum against every variation through the
evaluation engine, all-or-nothing. A failed variation discards the
attempt's partial results, so a retried task never contributes a partial
result set.
*/
package executor

import (
	"context"
	"fmt"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/errors"
)

// Config is the configuration of the executor runner.
type Config struct {
	// Engine is the evaluation engine collaborator.
	Engine evalgrid.Engine
}

// New returns the terminal Runner of a chain. Given a task it invokes
// the engine once per variation, producing one result per variation
// keyed by the (datum, variation) pair.
func New(cfg Config) evalgrid.Runner {
	return evalgrid.RunnerFunc(func(ctx context.Context, t evalgrid.Task) ([]evalgrid.Result, error) {
		if cfg.Engine == nil {
			return nil, errors.ErrMissingEngine
		}

		results := make([]evalgrid.Result, 0, len(t.Variations))
		for _, v := range t.Variations {
			// Stop between variations if the run has been cancelled.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			res, err := cfg.Engine.Evaluate(ctx, t.Datum, v)
			if err != nil {
				return nil, fmt.Errorf("evaluate datum %q against variation %q: %w", t.Datum.ID, v.ID, err)
			}

			res.Key = evalgrid.Key{DatumID: t.Datum.ID, VariationID: v.ID}
			results = append(results, res)
		}

		return results, nil
	})
}
