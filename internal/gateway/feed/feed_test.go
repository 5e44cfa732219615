package feed

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"solbot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	name  string
	price float64
	err   error
	calls atomic.Int32
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Price(ctx context.Context) (float64, error) {
	s.calls.Add(1)
	return s.price, s.err
}

func TestAggregateAveragesAvailable(t *testing.T) {
	a, err := NewAggregate([]Source{
		&staticSource{name: "jupiter", price: 100},
		&staticSource{name: "pyth", price: 102},
		&staticSource{name: "binance", err: errors.New("timeout")},
	})
	require.NoError(t, err)

	price, err := a.Price(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 101, price, 1e-9)

	quotes := a.LastQuotes()
	require.Len(t, quotes, 3)
	assert.Equal(t, "timeout", quotes[2].Err)
}

func TestAggregateUnavailableWhenAllFail(t *testing.T) {
	a, err := NewAggregate([]Source{
		&staticSource{name: "jupiter", err: errors.New("502")},
		&staticSource{name: "pyth", price: -1},
	})
	require.NoError(t, err)

	_, err = a.Price(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFeedUnavailable)
	assert.Contains(t, err.Error(), "invalid price")
}

func TestAggregateBreakerSkipsFlakySource(t *testing.T) {
	flaky := &staticSource{name: "jupiter", err: errors.New("down")}
	good := &staticSource{name: "pyth", price: 150}
	now := time.Unix(1_700_000_000, 0)
	a, err := NewAggregate([]Source{flaky, good},
		WithAggregateClock(func() time.Time { return now }),
		WithBreakers(2, time.Minute))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		p, err := a.Price(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 150.0, p)
	}
	assert.Equal(t, int32(2), flaky.calls.Load(), "breaker stops calling after threshold")
}

func TestNewAggregateRequiresSources(t *testing.T) {
	_, err := NewAggregate(nil)
	assert.ErrorIs(t, err, types.ErrConfigInvalid)
}

func TestMockStaysWithinBounds(t *testing.T) {
	m := NewMock(200, 0.5, 7)
	for i := 0; i < 1000; i++ {
		p, err := m.Price(context.Background())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, 100.0)
		assert.LessOrEqual(t, p, 400.0)
		assert.InDelta(t, p, float64(int64(p*100+0.5))/100, 1e-9)
	}
}

func TestMockDeterministicWithSeed(t *testing.T) {
	a, b := NewMock(200, 0.02, 42), NewMock(200, 0.02, 42)
	for i := 0; i < 10; i++ {
		pa, _ := a.Price(context.Background())
		pb, _ := b.Price(context.Background())
		assert.Equal(t, pa, pb)
	}
}

func TestParseCSVFormats(t *testing.T) {
	two := "timestamp,price\n1700000000,101.5\n1700000060000,102\n2024-01-02T03:04:05Z,103\n"
	pts, err := ParseCSV(strings.NewReader(two))
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), pts[0].Time)
	assert.Equal(t, time.UnixMilli(1700000060000).UTC(), pts[1].Time)
	assert.Equal(t, 103.0, pts[2].Price)

	single := "price\n10\n11\n\n12\n"
	pts, err = ParseCSV(strings.NewReader(single))
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.Equal(t, []float64{10, 11, 12}, []float64{pts[0].Price, pts[1].Price, pts[2].Price})
}

func TestParseCSVRejectsBadRows(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("price\n10\nabc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	_, err = ParseCSV(strings.NewReader("price\n"))
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader("1700000000,-5\n1700000001,5\n"))
	assert.NoError(t, err, "bad first row is treated as header")
}

func TestReplayExhausts(t *testing.T) {
	r := NewReplay([]PricePoint{{Price: 1}, {Price: 2}})
	p, err := r.Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)
	assert.Equal(t, 1, r.Remaining())
	_, _ = r.Price(context.Background())
	_, err = r.Price(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
}
