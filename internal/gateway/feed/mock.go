package feed

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Mock 是布朗运动模拟价格，仅用于开发和测试，必须显式启用。
type Mock struct {
	mu         sync.Mutex
	base       float64
	current    float64
	volatility float64
	rng        *rand.Rand
}

func NewMock(base, volatility float64, seed int64) *Mock {
	if base <= 0 {
		base = 200
	}
	if volatility < 0 {
		volatility = 0
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Mock{
		base:       base,
		current:    base,
		volatility: volatility,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Price(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, Unavailable(m.Name(), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current *= 1 + m.rng.NormFloat64()*m.volatility
	m.current = math.Min(math.Max(m.current, m.base*0.5), m.base*2)
	return math.Round(m.current*100) / 100, nil
}

// Reset 回到基准价。
func (m *Mock) Reset() {
	m.mu.Lock()
	m.current = m.base
	m.mu.Unlock()
}
