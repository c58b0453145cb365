/*
Package enginefault wraps an evaluation engine with a fault injector so
the retry taxonomy and the failure ledger can be exercised on tests and
examples without a flaky upstream.
*/
package enginefault

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/errors"
)

// Injector will control how the faults will be injected in the engine.
type Injector struct {
	latency      time.Duration
	errorPercent int
	transient    bool
	mu           sync.Mutex
}

// SetLatency will set the latency on the injector.
func (i *Injector) SetLatency(t time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.latency = t
}

// SetErrorPercent will set the error percent on the injector.
func (i *Injector) SetErrorPercent(percent int) error {
	if percent > 100 || percent < 0 {
		return fmt.Errorf("%d is not a valid percent", percent)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.errorPercent = percent
	return nil
}

// SetTransient selects the kind of the injected failures: transient
// (throughput-limited, retried) or task-fatal (the default).
func (i *Injector) SetTransient(transient bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.transient = transient
}

// Config is the configuration of the fault-injecting engine.
type Config struct {
	// Injector is the failure injector for the engine.
	Injector *Injector
}

func (c *Config) defaults() {
	if c.Injector == nil {
		c.Injector = &Injector{
			latency: 100 * time.Millisecond,
		}
	}
}

type failureInjector struct {
	total  int
	errs   int
	mu     sync.Mutex
	cfg    Config
	engine evalgrid.Engine
}

// New returns a fault-injecting engine wrapping e. The injector controls
// the faults: latency, the percent of failing evaluations and the kind of
// the injected failure.
func New(cfg Config, e evalgrid.Engine) evalgrid.Engine {
	cfg.defaults()
	return &failureInjector{
		cfg:    cfg,
		engine: e,
	}
}

// Evaluate satisfies evalgrid.Engine interface.
func (f *failureInjector) Evaluate(ctx context.Context, d evalgrid.Datum, v evalgrid.Variation) (res evalgrid.Result, err error) {
	// Measure the evaluations and errors.
	defer func() {
		f.mu.Lock()
		f.total++
		if err != nil {
			f.errs++
		}
		f.mu.Unlock()
	}()

	// We don't mind reading stale injector data, eventually we will get
	// the correct values.

	// Inject latency attack.
	lat := f.cfg.Injector.latency
	if lat > 0 {
		if err := evalgrid.Sleep(ctx, lat); err != nil {
			return evalgrid.Result{}, err
		}
	}

	// Inject error attack, keeping the observed error ratio at the
	// configured percent.
	var currentErrPerc int
	f.mu.Lock()
	if f.total > 0 {
		currentErrPerc = int((float64(f.errs) / float64(f.total)) * 100)
	}
	f.mu.Unlock()
	if currentErrPerc < f.cfg.Injector.errorPercent {
		if f.cfg.Injector.transient {
			return evalgrid.Result{}, errors.ThroughputLimited(errors.ErrFailureInjected)
		}
		return evalgrid.Result{}, errors.ErrFailureInjected
	}

	return f.engine.Evaluate(ctx, d, v)
}
