/*
Package scheduler drives a runner chain over all the tasks of a run and
drains their completions into one result set. The concurrency mechanism
is an internal, swappable strategy: a goroutine per task, or a fixed
worker pool pulling from a shared queue. Both strategies drive the same
chain under the same admission and budget contracts.
*/
package scheduler

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/errors"
	"github.com/evalgrid/evalgrid/metrics"
	"github.com/evalgrid/evalgrid/result"
)

// Strategy selects the concurrency mechanism used to launch the tasks.
type Strategy string

const (
	// StrategyConcurrent launches every task on its own goroutine and
	// drains completions as they become ready.
	StrategyConcurrent Strategy = "concurrent"
	// StrategyPool launches a fixed-size pool of workers pulling tasks
	// from a shared queue.
	StrategyPool Strategy = "pool"
)

// Scheduler accepts tasks and drains them to a terminal state. Fatal
// task outcomes are recorded on the result set's failure ledger and never
// abort the rest of the run.
type Scheduler interface {
	// Submit queues a task for execution. Submitting after Drain has
	// started returns ErrRejectedExecution.
	Submit(t evalgrid.Task) error
	// Drain runs every submitted task to a terminal state and returns the
	// merged result set. The returned error is non-nil only when the run
	// itself is cancelled.
	Drain(ctx context.Context) (*result.Set, error)
}

// Config is the configuration of the scheduler.
type Config struct {
	// Runner is the composed runner chain executed once per task.
	Runner evalgrid.Runner
	// Strategy is the concurrency mechanism. Defaults to StrategyConcurrent.
	Strategy Strategy
	// Workers is the pool size used by StrategyPool.
	Workers int
	// Progress, when set, receives (completed, total) after every task
	// reaches a terminal state.
	Progress result.ProgressFunc
	// Metrics records aggregate-level measurements. Defaults to a dummy.
	Metrics metrics.Recorder
	// Logger logs fatal task outcomes. Defaults to a discard logger.
	Logger logrus.FieldLogger
}

func (c *Config) defaults() {
	if c.Runner == nil {
		c.Runner = evalgrid.SanitizeRunner(nil)
	}

	if c.Strategy == "" {
		c.Strategy = StrategyConcurrent
	}

	if c.Workers <= 0 {
		c.Workers = 8
	}

	if c.Metrics == nil {
		c.Metrics = metrics.Dummy
	}

	if c.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.Logger = l
	}
}

// launcher is the internal strategy: it starts the execution of every
// task, invoking run exactly once per task, and returns when every
// invocation has finished.
type launcher interface {
	launch(ctx context.Context, tasks []evalgrid.Task, run func(t evalgrid.Task))
}

type completion struct {
	task    evalgrid.Task
	results []evalgrid.Result
	err     error
}

type scheduler struct {
	cfg      Config
	launcher launcher

	mu       sync.Mutex
	tasks    []evalgrid.Task
	draining bool
}

// New returns a scheduler using the strategy selected on the config.
func New(cfg Config) Scheduler {
	cfg.defaults()

	s := &scheduler{cfg: cfg}
	switch cfg.Strategy {
	case StrategyPool:
		s.launcher = &poolLauncher{workers: cfg.Workers}
	default:
		s.launcher = concurrentLauncher{}
	}

	return s
}

func (s *scheduler) Submit(t evalgrid.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		return errors.ErrRejectedExecution
	}

	s.tasks = append(s.tasks, t)
	return nil
}

func (s *scheduler) Drain(ctx context.Context) (*result.Set, error) {
	s.mu.Lock()
	s.draining = true
	tasks := s.tasks
	s.mu.Unlock()

	set := result.NewSet()
	total := len(tasks)
	if total == 0 {
		return set, nil
	}

	// Buffered so in-flight tasks can always report their completion,
	// even when the drain loop returned early on cancellation.
	completions := make(chan completion, total)
	run := func(t evalgrid.Task) {
		results, err := s.cfg.Runner.Run(ctx, t)
		completions <- completion{task: t, results: results, err: err}
	}

	go s.launcher.launch(ctx, tasks, run)

	// Drain completions as they become ready, in arbitrary order.
	for completed := 0; completed < total; {
		select {
		case <-ctx.Done():
			return set, ctx.Err()
		case c := <-completions:
			completed++
			s.record(set, c)
			if s.cfg.Progress != nil {
				s.cfg.Progress(completed, total)
			}
		}
	}

	return set, nil
}

// record merges a successful completion into the set or accounts the
// fatal outcome on its failure ledger.
func (s *scheduler) record(set *result.Set, c completion) {
	logger := s.cfg.Logger.WithField("datum", c.task.Datum.ID)

	if c.err != nil {
		s.cfg.Metrics.IncTaskFailure()
		set.Fail(c.task.Datum.ID, c.err)
		logger.WithError(c.err).Warn("task reached fatal state")
		return
	}

	if err := set.Merge(c.results); err != nil {
		s.cfg.Metrics.IncTaskFailure()
		set.Fail(c.task.Datum.ID, err)
		logger.WithError(err).Warn("task results rejected by the aggregator")
		return
	}

	s.cfg.Metrics.AddResultsMerged(len(c.results))
}
