package execution

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"solbot/internal/ledger"
	"solbot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqSlippage struct {
	vals []float64
	i    int
}

func (s *seqSlippage) Draw() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newSim(t *testing.T, fee float64, slip SlippageSource) *Simulator {
	t.Helper()
	sim, err := NewSimulator(fee, slip, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return sim
}

func testCapital() types.CapitalConfig {
	return types.CapitalConfig{TradingCapital: 10, MaxPositionPct: 100, ReserveBalance: 0, MaxDrawdownPct: 50}
}

func TestNewSimulatorRejectsNegativeFee(t *testing.T) {
	_, err := NewSimulator(-0.1, nil)
	assert.True(t, errors.Is(err, types.ErrConfigInvalid))
}

func TestBuyOpensPositionWithAdverseSlippage(t *testing.T) {
	sim := newSim(t, 0.0025, FixedSlippage(0.5))
	state := ledger.State{CashBalance: 20, PeakTotalValue: 20}

	m, err := sim.Fill(state, types.SideBuy, 0.08, 200)
	require.NoError(t, err)
	assert.InDelta(t, 201.0, m.Fill.FillPrice, 1e-12)
	assert.InDelta(t, 0.0002, m.Fill.Fee, 1e-15)
	assert.InDelta(t, -(0.08*201 + 0.0002), m.CashDelta, 1e-12)
	require.NotNil(t, m.Position)
	assert.InDelta(t, 201.0, m.Position.EntryPrice, 1e-12)
	assert.Equal(t, 0.08, m.Position.Amount)
	assert.Equal(t, fixedNow, m.Position.OpenedAt)
	assert.True(t, m.Fill.Simulated)
	assert.NotEmpty(t, m.Fill.ID)
}

func TestBuyInsufficientCash(t *testing.T) {
	sim := newSim(t, 0.0025, FixedSlippage(0.1))
	state := ledger.State{CashBalance: 0.1}
	_, err := sim.Fill(state, types.SideBuy, 0.08, 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInsufficientCash))
}

func TestVWACProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	slips := make([]float64, 32)
	for i := range slips {
		slips[i] = 0.1 + rng.Float64()*0.4
	}
	sim := newSim(t, 0.0025, &seqSlippage{vals: slips})
	l, err := ledger.New(testCapital(), 1_000_000)
	require.NoError(t, err)

	var notional, qty float64
	for i := 0; i < 25; i++ {
		amount := 0.01 + rng.Float64()*0.2
		mark := 100 + rng.Float64()*100
		m, err := sim.Fill(l.State(), types.SideBuy, amount, mark)
		require.NoError(t, err)
		fill, err := l.Apply(m)
		require.NoError(t, err)

		notional += fill.FillPrice * fill.Amount
		qty += fill.Amount
		pos := l.State().Position
		require.NotNil(t, pos)
		assert.InDelta(t, notional/qty, pos.EntryPrice, 1e-9, "fill %d", i)
		assert.InDelta(t, qty, pos.Amount, 1e-9)
	}
}

func TestSellRealizedPnLSign(t *testing.T) {
	cases := []struct {
		name  string
		mark  float64
		check func(t *testing.T, pnl float64)
	}{
		{"profit", 220, func(t *testing.T, pnl float64) { assert.Greater(t, pnl, 0.0) }},
		{"loss", 180, func(t *testing.T, pnl float64) { assert.Less(t, pnl, 0.0) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim := newSim(t, 0.0025, FixedSlippage(0.3))
			state := ledger.State{
				CashBalance: 5,
				Position:    &ledger.Position{EntryPrice: 200, Amount: 0.08},
			}
			m, err := sim.Fill(state, types.SideSell, 0.08, tc.mark)
			require.NoError(t, err)
			assert.Nil(t, m.Position)
			expected := 0.08 * (tc.mark*(1-0.003) - 200)
			assert.InDelta(t, expected, m.RealizedDelta, 1e-12)
			assert.Equal(t, m.RealizedDelta, m.Fill.RealizedPnL)
			assert.InDelta(t, 0.08*tc.mark*(1-0.003)-0.0002, m.CashDelta, 1e-12)
			tc.check(t, m.RealizedDelta)
		})
	}
}

func TestSellInsufficientPosition(t *testing.T) {
	sim := newSim(t, 0.0025, FixedSlippage(0.1))
	_, err := sim.Fill(ledger.State{CashBalance: 1}, types.SideSell, 0.01, 100)
	assert.True(t, errors.Is(err, types.ErrInsufficientPosition))

	state := ledger.State{Position: &ledger.Position{EntryPrice: 100, Amount: 0.05}}
	_, err = sim.Fill(state, types.SideSell, 0.06, 100)
	assert.True(t, errors.Is(err, types.ErrInsufficientPosition))
}

func TestPartialSellKeepsEntry(t *testing.T) {
	sim := newSim(t, 0, FixedSlippage(0))
	state := ledger.State{Position: &ledger.Position{EntryPrice: 150, Amount: 1, OpenedAt: fixedNow.Add(-time.Hour)}}
	m, err := sim.Fill(state, types.SideSell, 0.4, 160)
	require.NoError(t, err)
	require.NotNil(t, m.Position)
	assert.InDelta(t, 0.6, m.Position.Amount, 1e-12)
	assert.Equal(t, 150.0, m.Position.EntryPrice)
	assert.Equal(t, fixedNow.Add(-time.Hour), m.Position.OpenedAt)
	assert.InDelta(t, 4.0, m.RealizedDelta, 1e-12)
}

func TestSellBelowEpsilonClosesAndAbsorbsResidue(t *testing.T) {
	sim := newSim(t, 0, FixedSlippage(0))
	state := ledger.State{Position: &ledger.Position{EntryPrice: 100, Amount: 0.08}}
	m, err := sim.Fill(state, types.SideSell, 0.07995, 110)
	require.NoError(t, err)
	assert.Nil(t, m.Position)
	// 0.07995 * 10 profit minus 0.00005 residue written off at entry
	assert.InDelta(t, 0.7995-0.005, m.RealizedDelta, 1e-12)
}

func TestBookUsesExactPrice(t *testing.T) {
	sim := newSim(t, 0.0025, FixedSlippage(0.5))
	m, err := sim.Book(ledger.State{CashBalance: 100}, types.SideBuy, 0.1, 200)
	require.NoError(t, err)
	assert.Equal(t, 200.0, m.Fill.FillPrice)
	assert.Equal(t, 0.0, m.Fill.SlippagePct)
	assert.False(t, m.Fill.Simulated)
}

func TestInvalidOrders(t *testing.T) {
	sim := newSim(t, 0.0025, nil)
	_, err := sim.Fill(ledger.State{CashBalance: 100}, types.SideBuy, 0, 200)
	assert.True(t, errors.Is(err, ErrInvalidOrder))
	_, err = sim.Fill(ledger.State{CashBalance: 100}, types.SideBuy, 1, -1)
	assert.True(t, errors.Is(err, ErrInvalidOrder))
	_, err = sim.Fill(ledger.State{CashBalance: 100}, types.Side("hold"), 1, 1)
	assert.True(t, errors.Is(err, ErrInvalidOrder))
}

func TestRandomSlippageRange(t *testing.T) {
	src := NewRandomSlippage(0.1, 0.5, 7)
	for i := 0; i < 1000; i++ {
		v := src.Draw()
		assert.GreaterOrEqual(t, v, 0.1)
		assert.LessOrEqual(t, v, 0.5)
	}
	a, b := NewRandomSlippage(0.1, 0.5, 99), NewRandomSlippage(0.1, 0.5, 99)
	assert.Equal(t, a.Draw(), b.Draw())
}
