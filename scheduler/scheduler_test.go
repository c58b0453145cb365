package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/admission"
	grerrors "github.com/evalgrid/evalgrid/errors"
	"github.com/evalgrid/evalgrid/executor"
	"github.com/evalgrid/evalgrid/retry"
	"github.com/evalgrid/evalgrid/scheduler"
)

func grid(data, variations int) []evalgrid.Task {
	vs := make([]evalgrid.Variation, 0, variations)
	for i := 0; i < variations; i++ {
		vs = append(vs, evalgrid.Variation{ID: fmt.Sprintf("v%d", i)})
	}

	tasks := make([]evalgrid.Task, 0, data)
	for i := 0; i < data; i++ {
		tasks = append(tasks, evalgrid.Task{
			Datum:      evalgrid.Datum{ID: fmt.Sprintf("d%d", i)},
			Variations: vs,
		})
	}

	return tasks
}

// echoEngine evaluates every (datum, variation) pair to its key.
type echoEngine struct{}

func (echoEngine) Evaluate(_ context.Context, d evalgrid.Datum, v evalgrid.Variation) (evalgrid.Result, error) {
	return evalgrid.Result{Payload: d.ID + "/" + v.ID}, nil
}

func TestSchedulerFullGrid(t *testing.T) {
	tests := []struct {
		name       string
		strategy   scheduler.Strategy
		workers    int
		data       int
		variations int
	}{
		{
			name:       "A run with the goroutine-per-task strategy should produce one entry per (datum, variation) pair.",
			strategy:   scheduler.StrategyConcurrent,
			data:       3,
			variations: 2,
		},
		{
			name:       "A run with the worker pool strategy should produce one entry per (datum, variation) pair.",
			strategy:   scheduler.StrategyPool,
			workers:    4,
			data:       3,
			variations: 2,
		},
		{
			name:       "A run with more tasks than workers should still complete the whole grid.",
			strategy:   scheduler.StrategyPool,
			workers:    2,
			data:       25,
			variations: 3,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)

			runner := executor.New(executor.Config{Engine: echoEngine{}})
			sched := scheduler.New(scheduler.Config{
				Runner:   runner,
				Strategy: test.strategy,
				Workers:  test.workers,
			})

			for _, task := range grid(test.data, test.variations) {
				assert.NoError(sched.Submit(task))
			}

			set, err := sched.Drain(context.TODO())
			assert.NoError(err)
			assert.Equal(test.data*test.variations, set.Len())
			assert.Empty(set.Failures())

			for _, task := range grid(test.data, test.variations) {
				for _, v := range task.Variations {
					got, ok := set.Lookup(evalgrid.Key{DatumID: task.Datum.ID, VariationID: v.ID})
					assert.True(ok, "missing entry for %s/%s", task.Datum.ID, v.ID)
					assert.Equal(task.Datum.ID+"/"+v.ID, got.Payload)
				}
			}
		})
	}
}

func TestSchedulerStrategiesEquivalent(t *testing.T) {
	assert := assert.New(t)

	tasks := grid(10, 3)
	runner := evalgrid.RunnerChain(
		executor.New(executor.Config{Engine: echoEngine{}}),
		admission.NewMiddleware(admission.Config{Ceiling: 4}),
	)

	keySets := make([][]evalgrid.Key, 0, 2)
	for _, strategy := range []scheduler.Strategy{scheduler.StrategyConcurrent, scheduler.StrategyPool} {
		sched := scheduler.New(scheduler.Config{
			Runner:   runner,
			Strategy: strategy,
			Workers:  3,
		})
		for _, task := range tasks {
			assert.NoError(sched.Submit(task))
		}

		set, err := sched.Drain(context.TODO())
		assert.NoError(err)
		keySets = append(keySets, set.Keys())
	}

	assert.Equal(keySets[0], keySets[1], "both strategies should produce the same key set")
}

// flakyEngine fails with a throughput-limit error until the configured
// attempt per (datum, variation) pair.
type flakyEngine struct {
	mu               sync.Mutex
	succeedOnAttempt int
	attempts         map[evalgrid.Key]int
}

func (f *flakyEngine) Evaluate(_ context.Context, d evalgrid.Datum, v evalgrid.Variation) (evalgrid.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.attempts == nil {
		f.attempts = map[evalgrid.Key]int{}
	}
	k := evalgrid.Key{DatumID: d.ID, VariationID: v.ID}
	f.attempts[k]++
	if f.attempts[k] < f.succeedOnAttempt {
		return evalgrid.Result{}, grerrors.ThroughputLimited(errors.New("throttled"))
	}

	return evalgrid.Result{Payload: "ok"}, nil
}

func TestSchedulerRetriedTaskMergesOnce(t *testing.T) {
	assert := assert.New(t)

	engine := &flakyEngine{succeedOnAttempt: 3}
	runner := evalgrid.RunnerChain(
		executor.New(executor.Config{Engine: engine}),
		retry.NewMiddleware(retry.Config{
			WaitBase:       1 * time.Millisecond,
			DisableBackoff: true,
			Times:          5,
		}),
	)

	sched := scheduler.New(scheduler.Config{Runner: runner})
	for _, task := range grid(2, 2) {
		assert.NoError(sched.Submit(task))
	}

	set, err := sched.Drain(context.TODO())
	assert.NoError(err)
	assert.Equal(4, set.Len())
	assert.Empty(set.Failures())
}

// fatalEngine fails every variation of the configured datum.
type fatalEngine struct {
	fatalDatumID string
}

func (f fatalEngine) Evaluate(_ context.Context, d evalgrid.Datum, v evalgrid.Variation) (evalgrid.Result, error) {
	if d.ID == f.fatalDatumID {
		return evalgrid.Result{}, errors.New("wanted error")
	}

	return evalgrid.Result{Payload: d.ID + "/" + v.ID}, nil
}

func TestSchedulerFatalTaskDoesNotAbortRun(t *testing.T) {
	assert := assert.New(t)

	sched := scheduler.New(scheduler.Config{
		Runner: executor.New(executor.Config{Engine: fatalEngine{fatalDatumID: "d1"}}),
	})
	for _, task := range grid(3, 2) {
		assert.NoError(sched.Submit(task))
	}

	set, err := sched.Drain(context.TODO())
	assert.NoError(err)

	// The fatal datum contributes no entries, the rest of the run completes.
	assert.Equal(4, set.Len())
	for _, k := range set.Keys() {
		assert.NotEqual("d1", k.DatumID)
	}

	failures := set.Failures()
	assert.Len(failures, 1)
	assert.Equal("d1", failures[0].DatumID)
	assert.Error(failures[0].Err)
}

func TestSchedulerSubmitAfterDrain(t *testing.T) {
	assert := assert.New(t)

	sched := scheduler.New(scheduler.Config{
		Runner: executor.New(executor.Config{Engine: echoEngine{}}),
	})

	_, err := sched.Drain(context.TODO())
	assert.NoError(err)

	err = sched.Submit(evalgrid.Task{Datum: evalgrid.Datum{ID: "late"}})
	assert.Equal(grerrors.ErrRejectedExecution, err)
}

func TestSchedulerProgress(t *testing.T) {
	assert := assert.New(t)

	var updates [][2]int
	sched := scheduler.New(scheduler.Config{
		Runner: executor.New(executor.Config{Engine: echoEngine{}}),
		Progress: func(completed, total int) {
			updates = append(updates, [2]int{completed, total})
		},
	})
	for _, task := range grid(4, 1) {
		assert.NoError(sched.Submit(task))
	}

	_, err := sched.Drain(context.TODO())
	assert.NoError(err)

	assert.Len(updates, 4)
	for i, u := range updates {
		assert.Equal(i+1, u[0])
		assert.Equal(4, u[1])
	}
}

func TestSchedulerDrainCancelled(t *testing.T) {
	assert := assert.New(t)

	blocking := evalgrid.RunnerFunc(func(ctx context.Context, _ evalgrid.Task) ([]evalgrid.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	sched := scheduler.New(scheduler.Config{Runner: blocking})
	for _, task := range grid(3, 1) {
		assert.NoError(sched.Submit(task))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	set, err := sched.Drain(ctx)
	assert.Equal(context.Canceled, err)
	assert.Equal(0, set.Len())
}

func TestSchedulerEmptyRun(t *testing.T) {
	assert := assert.New(t)

	sched := scheduler.New(scheduler.Config{})
	set, err := sched.Drain(context.TODO())

	assert.NoError(err)
	assert.Equal(0, set.Len())
}
