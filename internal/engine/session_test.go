package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"solbot/internal/execution"
	"solbot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	mu     sync.Mutex
	prices []float64
	i      int
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Price(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.i >= len(s.prices) {
		return 0, types.ErrFeedUnavailable
	}
	p := s.prices[s.i]
	s.i++
	if p <= 0 {
		return 0, types.ErrFeedUnavailable
	}
	return p, nil
}

func TestSessionSerializesConcurrentSteps(t *testing.T) {
	e := newEngine(t, scenarioConfig(), &stubIndicators{snap: holdSignal}, execution.FixedSlippage(0.1))
	var observed atomic.Int64
	s := NewSession(e, ObserverFunc(func(ctx context.Context, rep TickReport) { observed.Add(1) }))
	s.Start()
	defer s.Stop()

	var wg sync.WaitGroup
	seqs := make(chan int, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep, err := s.Step(context.Background(), 200+float64(i%5))
			if assert.NoError(t, err) {
				seqs <- rep.Seq
			}
		}(i)
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "duplicate seq %d", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, 40)
	assert.Equal(t, int64(40), observed.Load())
	snap := s.Snapshot()
	assert.Equal(t, 40, snap.Ticks)
	require.NotNil(t, snap.Last)
	assert.Equal(t, "test", snap.SessionID)
}

func TestSessionStepAfterStop(t *testing.T) {
	e := newEngine(t, scenarioConfig(), &stubIndicators{snap: holdSignal}, nil)
	s := NewSession(e)
	s.Start()
	s.Stop()
	s.Stop()
	_, err := s.Step(context.Background(), 200)
	assert.True(t, errors.Is(err, ErrSessionStopped))
}

func TestSessionRunSkipsUnavailableFeed(t *testing.T) {
	ind := &stubIndicators{snap: buySignal}
	e := newEngine(t, scenarioConfig(), ind, execution.FixedSlippage(0.2))
	e.Seed(warmup(49, 200))

	var mu sync.Mutex
	var reports []TickReport
	s := NewSession(e, ObserverFunc(func(ctx context.Context, rep TickReport) {
		mu.Lock()
		reports = append(reports, rep)
		mu.Unlock()
	}))
	s.Start()
	defer s.Stop()

	src := &scriptedSource{prices: []float64{200, 0, 201, 0, 202}}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx, src, 10*time.Millisecond))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 3)
	assert.Equal(t, 200.0, reports[0].Price)
	assert.NotNil(t, reports[0].Fill)
	assert.Equal(t, 202.0, reports[2].Price)
	snap := s.Snapshot()
	assert.Len(t, snap.Fills, 1)
	assert.InDelta(t, 80.0, snap.Ledger.CapitalUtilizationPct, 1e-9)
}

func TestSnapshotBeforeFirstTick(t *testing.T) {
	e := newEngine(t, scenarioConfig(), &stubIndicators{}, nil)
	s := NewSession(e)
	snap := s.Snapshot()
	assert.Nil(t, snap.Last)
	assert.Equal(t, 20.0, snap.Ledger.CashBalance)
	assert.True(t, snap.Capital.CanTrade)
	assert.InDelta(t, 0.08, snap.Summary.MaxPositionSizeSOL, 1e-15)
}

func TestSessionRunCancelledWhileTicking(t *testing.T) {
	e := newEngine(t, scenarioConfig(), &stubIndicators{snap: holdSignal}, execution.FixedSlippage(0.1))
	s := NewSession(e)
	s.Start()
	defer s.Stop()

	prices := make([]float64, 500)
	for i := range prices {
		prices[i] = 200 + float64(i%7)
	}
	src := &scriptedSource{prices: prices}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx, src, time.Millisecond))

	snap := s.Snapshot()
	assert.Greater(t, snap.Ticks, 0)
	require.NotNil(t, snap.Last)
	assert.Equal(t, snap.Ticks, snap.Last.Seq)
}
