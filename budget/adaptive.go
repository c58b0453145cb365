package budget

import (
	"context"
	"sync"
	"time"
)

// Config is the configuration of the adaptive budget.
type Config struct {
	// Capacity is the maximum number of units the budget can hold (max burst).
	Capacity float64
	// RefillPerSecond is the passive accrual rate in units per second.
	// Zero means no passive refill: only Replenish adds units back.
	RefillPerSecond float64
}

func (c *Config) defaults() {
	if c.Capacity <= 0 {
		c.Capacity = 100
	}

	if c.RefillPerSecond < 0 {
		c.RefillPerSecond = 0
	}
}

// adaptive is a token bucket that accrues units passively over time and
// also accepts feedback replenishment. The balance never exceeds the
// capacity and a draw never leaves it negative.
type adaptive struct {
	cfg     Config
	mu      sync.Mutex
	balance float64
	last    time.Time
	// wakeC wakes one blocked drawer when units are replenished. The
	// woken drawer forwards the signal while units remain.
	wakeC chan struct{}
}

// NewAdaptive returns a run-scoped budget that refills passively at the
// configured rate and accepts feedback through Replenish. It starts full.
func NewAdaptive(cfg Config) Budget {
	cfg.defaults()

	return &adaptive{
		cfg:     cfg,
		balance: cfg.Capacity,
		last:    time.Now(),
		wakeC:   make(chan struct{}, 1),
	}
}

func (a *adaptive) Draw(ctx context.Context) error {
	for {
		a.mu.Lock()
		a.accrue()
		if a.balance >= 1 {
			a.balance--
			// Keep waking drawers while there are units left for them.
			if a.balance >= 1 {
				a.wake()
			}
			a.mu.Unlock()
			return nil
		}

		// Not enough units. If the budget refills passively we know when
		// the next unit will be ready, otherwise wait for a replenishment.
		var timer *time.Timer
		var readyC <-chan time.Time
		if a.cfg.RefillPerSecond > 0 {
			missing := 1 - a.balance
			d := time.Duration(missing / a.cfg.RefillPerSecond * float64(time.Second))
			timer = time.NewTimer(d)
			readyC = timer.C
		}
		a.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-readyC:
		case <-a.wakeC:
			if timer != nil {
				timer.Stop()
			}
		}
	}
}

func (a *adaptive) Replenish(n float64) {
	if n <= 0 {
		return
	}

	a.mu.Lock()
	a.accrue()
	a.balance += n
	if a.balance > a.cfg.Capacity {
		a.balance = a.cfg.Capacity
	}
	a.wake()
	a.mu.Unlock()
}

// Balance returns the current balance. Observability only, the result is
// stale by the time the caller sees it.
func (a *adaptive) Balance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accrue()
	return a.balance
}

// accrue applies the passive refill since the last accrual. Callers must
// hold the lock.
func (a *adaptive) accrue() {
	now := time.Now()
	if a.cfg.RefillPerSecond > 0 {
		a.balance += a.cfg.RefillPerSecond * now.Sub(a.last).Seconds()
		if a.balance > a.cfg.Capacity {
			a.balance = a.cfg.Capacity
		}
	}
	a.last = now
}

func (a *adaptive) wake() {
	select {
	case a.wakeC <- struct{}{}:
	default:
	}
}
