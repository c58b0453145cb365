package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/evalgrid/evalgrid"
)

// poolLauncher runs a fixed-size pool of workers pulling tasks from a
// shared queue. Each worker blocks at the same wait points the
// goroutine-per-task strategy suspends at, and iterates all the
// variations of its datum within one pull.
type poolLauncher struct {
	workers int
}

func (p *poolLauncher) launch(ctx context.Context, tasks []evalgrid.Task, run func(t evalgrid.Task)) {
	queue := make(chan evalgrid.Task)

	var g errgroup.Group
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for t := range queue {
				run(t)
			}
			return nil
		})
	}

	// Feed the queue until it drains or the run is cancelled; tasks never
	// fed just don't reach the workers.
feed:
	for _, t := range tasks {
		select {
		case queue <- t:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)

	// Workers never return an error, wait is for completion only.
	_ = g.Wait()
}
