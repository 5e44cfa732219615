// Package feed 定义价格源接口，并提供聚合、模拟随机游走与 CSV 回放。
package feed

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"solbot/internal/logger"
	"solbot/internal/metrics"
	"solbot/internal/pkg/circuit"
	"solbot/internal/types"

	"golang.org/x/sync/errgroup"
)

// Source 返回 SOL 当前价格；不可用时返回包装了 types.ErrFeedUnavailable 的错误。
type Source interface {
	Name() string
	Price(ctx context.Context) (float64, error)
}

// Quote 记录单个价格源最近一次的报价。
type Quote struct {
	Source string    `json:"source"`
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
	Err    string    `json:"error,omitempty"`
}

// Unavailable wraps err so callers can match types.ErrFeedUnavailable.
func Unavailable(source string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", types.ErrFeedUnavailable, source)
	}
	return fmt.Errorf("%w: %s: %v", types.ErrFeedUnavailable, source, err)
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Aggregate 并发拉取所有价格源并取可用报价的平均值，全部失败才视为不可用。
type Aggregate struct {
	sources  []Source
	breakers []*circuit.Breaker
	timeout  time.Duration
	now      func() time.Time

	mu   sync.RWMutex
	last []Quote
}

type AggregateOption func(*Aggregate)

func WithTimeout(d time.Duration) AggregateOption {
	return func(a *Aggregate) { a.timeout = d }
}

// WithBreakers 为每个源挂一个熔断器，连续失败 threshold 次后冷却 cooldown。
func WithBreakers(threshold int, cooldown time.Duration) AggregateOption {
	return func(a *Aggregate) {
		a.breakers = make([]*circuit.Breaker, len(a.sources))
		for i, src := range a.sources {
			a.breakers[i] = circuit.New("feed/"+src.Name(), threshold, cooldown,
				circuit.WithClock(func() time.Time { return a.now() }),
				circuit.WithStateChange(metrics.BreakerChanged))
		}
	}
}

func WithAggregateClock(now func() time.Time) AggregateOption {
	return func(a *Aggregate) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAggregate(sources []Source, opts ...AggregateOption) (*Aggregate, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no price sources configured", types.ErrConfigInvalid)
	}
	a := &Aggregate{sources: sources, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Aggregate) Name() string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return "aggregate(" + strings.Join(names, ",") + ")"
}

func (a *Aggregate) Price(ctx context.Context) (float64, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	quotes := make([]Quote, len(a.sources))
	var g errgroup.Group
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			quotes[i] = a.fetch(ctx, i, src)
			return nil
		})
	}
	_ = g.Wait()

	a.mu.Lock()
	a.last = quotes
	a.mu.Unlock()

	var sum float64
	var n int
	var failed []string
	for _, q := range quotes {
		if q.Err != "" {
			failed = append(failed, q.Source+": "+q.Err)
			continue
		}
		sum += q.Price
		n++
	}
	if n == 0 {
		return 0, Unavailable(a.Name(), fmt.Errorf("%s", strings.Join(failed, "; ")))
	}
	if len(failed) > 0 {
		logger.Debugf("feed: %d/%d sources failed: %s", len(failed), len(quotes), strings.Join(failed, "; "))
	}
	return sum / float64(n), nil
}

func (a *Aggregate) fetch(ctx context.Context, i int, src Source) Quote {
	q := Quote{Source: src.Name(), At: a.now()}
	var br *circuit.Breaker
	if i < len(a.breakers) {
		br = a.breakers[i]
	}
	if br != nil && !br.Allow() {
		q.Err = circuit.ErrOpen.Error()
		return q
	}
	price, err := src.Price(ctx)
	if err == nil && !validPrice(price) {
		err = fmt.Errorf("invalid price %v", price)
	}
	if err != nil {
		if br != nil {
			br.RecordFailure()
		}
		q.Err = err.Error()
		return q
	}
	if br != nil {
		br.RecordSuccess()
	}
	q.Price = price
	return q
}

// LastQuotes 返回最近一次聚合时各源的报价副本。
func (a *Aggregate) LastQuotes() []Quote {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Quote, len(a.last))
	copy(out, a.last)
	return out
}
