/*
Package budget implements the shared rate budget that gates task
throughput: a pool of consumable cost units that refills over time and,
optionally, accepts feedback replenishment driven by the cost the tasks
actually reported.
*/
package budget

import "context"

// Budget is a shared, run-scoped pool of consumable cost units. It is the
// sole synchronization point for throughput control and must be safe
// under concurrent use from every task executor of the run.
type Budget interface {
	// Draw blocks the caller until at least one unit is available, then
	// takes exactly one. It only fails when ctx is done.
	Draw(ctx context.Context) error
	// Replenish adds n units back, capped at the budget capacity.
	// Implementations without feedback ignore it.
	Replenish(n float64)
}

// balancer is implemented by budgets that can report their current
// balance, used for observability only.
type balancer interface {
	Balance() float64
}
