package admission_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/admission"
)

func TestAdmissionBound(t *testing.T) {
	tests := []struct {
		name    string
		cfg     admission.Config
		tasks   int
		ceiling int64
	}{
		{
			name:    "Concurrent tasks past the controller should never exceed the ceiling (ceiling 2).",
			cfg:     admission.Config{Ceiling: 2},
			tasks:   50,
			ceiling: 2,
		},
		{
			name:    "Concurrent tasks past the controller should never exceed the ceiling (ceiling 10).",
			cfg:     admission.Config{Ceiling: 10},
			tasks:   100,
			ceiling: 10,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)

			// Instrumented counter: track the concurrent executions inside
			// the wrapped runner and the maximum ever observed.
			var inside, maxInside int64
			next := evalgrid.RunnerFunc(func(_ context.Context, _ evalgrid.Task) ([]evalgrid.Result, error) {
				cur := atomic.AddInt64(&inside, 1)
				for {
					prev := atomic.LoadInt64(&maxInside)
					if cur <= prev || atomic.CompareAndSwapInt64(&maxInside, prev, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt64(&inside, -1)
				return nil, nil
			})

			runner := admission.NewMiddleware(test.cfg)(next)

			var wg sync.WaitGroup
			for i := 0; i < test.tasks; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := runner.Run(context.Background(), evalgrid.Task{})
					assert.NoError(err)
				}()
			}
			wg.Wait()

			assert.LessOrEqual(atomic.LoadInt64(&maxInside), test.ceiling)
			assert.Equal(int64(0), atomic.LoadInt64(&inside))
		})
	}
}

func TestAdmissionSlotReleasedOnFailure(t *testing.T) {
	anError := assert.AnError
	assert := assert.New(t)

	// A failing task must release its slot, otherwise the next task
	// would block forever.
	next := evalgrid.RunnerFunc(func(_ context.Context, _ evalgrid.Task) ([]evalgrid.Result, error) {
		return nil, anError
	})

	runner := admission.NewMiddleware(admission.Config{Ceiling: 1})(next)

	for i := 0; i < 3; i++ {
		_, err := runner.Run(context.Background(), evalgrid.Task{})
		assert.Error(err)
	}
}

func TestAdmissionAcquireCanceledContext(t *testing.T) {
	assert := assert.New(t)

	block := make(chan struct{})
	next := evalgrid.RunnerFunc(func(_ context.Context, _ evalgrid.Task) ([]evalgrid.Result, error) {
		<-block
		return nil, nil
	})

	runner := admission.NewMiddleware(admission.Config{Ceiling: 1})(next)

	// Occupy the only slot.
	go func() {
		_, _ = runner.Run(context.Background(), evalgrid.Task{})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := runner.Run(ctx, evalgrid.Task{})
	assert.Error(err)

	close(block)
}
