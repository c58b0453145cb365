package scheduler

import (
	"context"
	"sync"

	"github.com/evalgrid/evalgrid"
)

// concurrentLauncher starts every task on its own goroutine. The
// goroutines suspend on the chain's own wait points (admission slot,
// budget draw, the engine call), so the effective concurrency is bounded
// by the admission middleware, not here.
type concurrentLauncher struct{}

func (concurrentLauncher) launch(_ context.Context, tasks []evalgrid.Task, run func(t evalgrid.Task)) {
	var wg sync.WaitGroup
	for _, t := range tasks {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(t)
		}()
	}

	wg.Wait()
}
