package budget

import (
	"context"

	"golang.org/x/time/rate"
)

// paced is the no-feedback budget policy: it purely rate-limits by
// elapsed time on top of a standard token bucket, and ignores the cost
// the tasks report back.
type paced struct {
	limiter *rate.Limiter
}

// NewPaced returns a budget that allows perSecond draws per second with
// the given burst capacity. Replenish is a no-op.
func NewPaced(perSecond float64, burst int) Budget {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &paced{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (p *paced) Draw(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

func (p *paced) Replenish(_ float64) {}

// Balance reports the units currently available for drawing.
func (p *paced) Balance() float64 {
	return p.limiter.Tokens()
}
