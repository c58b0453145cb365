package metrics

import (
	"context"
	"time"

	"github.com/evalgrid/evalgrid"
)

var ctxRecorderKey contextKey = "recorder"

type contextKey string

func (c contextKey) String() string {
	return "metrics-ctx-key" + string(c)
}

// RecorderFromContext will get the metrics recorder from the context.
// If there is no recorder it will return a dummy recorder that is
// safe to use.
func RecorderFromContext(ctx context.Context) (recorder Recorder, ok bool) {
	rec, ok := ctx.Value(ctxRecorderKey).(Recorder)

	if !ok {
		return Dummy, false
	}

	return rec, true
}

func setRecorderOnContext(ctx context.Context, r Recorder) context.Context {
	return context.WithValue(ctx, ctxRecorderKey, r)
}

// NewMeasuredRunner is a decorator that will measure the execution of
// every task that goes through the runner chain and will set the recorder
// on the context so the rest of the chain can measure too.
func NewMeasuredRunner(id string, rec Recorder, r evalgrid.Runner) evalgrid.Runner {
	if rec == nil {
		rec = Dummy
	}
	rec = rec.WithID(id)

	r = evalgrid.SanitizeRunner(r)

	return evalgrid.RunnerFunc(func(ctx context.Context, t evalgrid.Task) (results []evalgrid.Result, err error) {
		defer func(start time.Time) {
			rec.ObserveTaskExecution(start, err == nil)
		}(time.Now())

		// Set the recorder.
		ctx = setRecorderOnContext(ctx, rec)

		results, err = r.Run(ctx, t)

		return results, err
	})
}

// NewMeasuredMiddleware returns NewMeasuredRunner in Middleware form so it
// can be composed with RunnerChain.
func NewMeasuredMiddleware(id string, rec Recorder) evalgrid.Middleware {
	return func(next evalgrid.Runner) evalgrid.Runner {
		return NewMeasuredRunner(id, rec, next)
	}
}
