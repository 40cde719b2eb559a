package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// CappedBackoff computes min(Ceiling, Factor^n seconds) for the n-th
// consecutive failure. It is the loop-level delay of the scraping adapter,
// separate from the per-item Executor.
type CappedBackoff struct {
	Factor  float64
	Ceiling time.Duration
}

// Delay returns the delay after n consecutive failures (n >= 1).
func (b CappedBackoff) Delay(n int) time.Duration {
	d := time.Duration(math.Pow(b.Factor, float64(n)) * float64(time.Second))
	if b.Ceiling > 0 && d > b.Ceiling {
		return b.Ceiling
	}
	return d
}

// Pacer yields a uniform random delay in [Min, Max) between successful
// requests so the request rate carries no fixed signature.
type Pacer struct {
	Min  time.Duration
	Max  time.Duration
	Rand func() float64
}

// Next returns the next inter-request delay.
func (p Pacer) Next() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	r := p.Rand
	if r == nil {
		r = rand.Float64
	}
	return p.Min + time.Duration(r()*float64(p.Max-p.Min))
}
