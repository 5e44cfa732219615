package execution

import (
	"math/rand"
	"sync"
	"time"
)

// SlippageSource draws one slippage percentage per fill (0.3 means 0.3%).
type SlippageSource interface {
	Draw() float64
}

// RandomSlippage draws uniformly from [MinPct, MaxPct].
type RandomSlippage struct {
	minPct float64
	maxPct float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSlippage seeds its own generator; seed 0 uses the clock.
func NewRandomSlippage(minPct, maxPct float64, seed int64) *RandomSlippage {
	if maxPct < minPct {
		minPct, maxPct = maxPct, minPct
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomSlippage{
		minPct: minPct,
		maxPct: maxPct,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomSlippage) Draw() float64 {
	r.mu.Lock()
	u := r.rng.Float64()
	r.mu.Unlock()
	return r.minPct + u*(r.maxPct-r.minPct)
}

// FixedSlippage always returns the same percentage.
type FixedSlippage float64

func (f FixedSlippage) Draw() float64 { return float64(f) }
