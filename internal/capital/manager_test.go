package capital

import (
	"errors"
	"math/rand"
	"testing"

	"solbot/internal/ledger"
	"solbot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioConfig() types.CapitalConfig {
	return types.CapitalConfig{TradingCapital: 0.1, MaxPositionPct: 80, ReserveBalance: 0.05, MaxDrawdownPct: 20}
}

func newManager(t *testing.T, cfg types.CapitalConfig) *Manager {
	t.Helper()
	m, err := NewManager(cfg, 0.0025, 0.5)
	require.NoError(t, err)
	return m
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	bad := []types.CapitalConfig{
		{TradingCapital: 0, MaxPositionPct: 80, MaxDrawdownPct: 20},
		{TradingCapital: 1, MaxPositionPct: 0, MaxDrawdownPct: 20},
		{TradingCapital: 1, MaxPositionPct: 101, MaxDrawdownPct: 20},
		{TradingCapital: 1, MaxPositionPct: 50, MaxDrawdownPct: 0},
		{TradingCapital: 1, MaxPositionPct: 50, MaxDrawdownPct: 20, ReserveBalance: -1},
	}
	for _, cfg := range bad {
		_, err := NewManager(cfg, 0.0025, 0.5)
		assert.True(t, errors.Is(err, types.ErrConfigInvalid), "%+v", cfg)
	}
	_, err := NewManager(scenarioConfig(), -1, 0.5)
	assert.True(t, errors.Is(err, types.ErrConfigInvalid))
}

func TestScenarioMaxTradeSize(t *testing.T) {
	m := newManager(t, scenarioConfig())
	assert.InDelta(t, 0.08, m.MaxPosition(), 1e-15)

	state := ledger.State{CashBalance: 20, PeakTotalValue: 20}
	assert.Equal(t, 0.08, m.MaxTradeSize(state, 200))

	v := m.Validate(0.08, 0)
	require.IsType(t, Valid{}, v)
	assert.True(t, v.OK())
	assert.Equal(t, 0.08, v.(Valid).Size)

	trade, err := m.SizeAndValidate(types.IntentBuy, state, 200)
	require.NoError(t, err)
	assert.Equal(t, types.SideBuy, trade.Side)
	assert.Equal(t, 0.08, trade.Amount)
}

func TestValidateReportsOverage(t *testing.T) {
	m := newManager(t, scenarioConfig())

	v := m.Validate(0.09, 0)
	inv, ok := v.(Invalid)
	require.True(t, ok)
	assert.False(t, inv.OK())
	assert.True(t, errors.Is(inv, types.ErrMaxPositionExceeded))
	assert.InDelta(t, 0.01, inv.Overage, 1e-12)
	assert.InDelta(t, 0.08, inv.Suggested, 1e-12)

	v = m.Validate(0.08, 0.05)
	inv, ok = v.(Invalid)
	require.True(t, ok)
	assert.True(t, errors.Is(inv, types.ErrCapitalLimitExceeded))
	assert.InDelta(t, 0.03, inv.Overage, 1e-12)
	assert.InDelta(t, 0.05, inv.MaxAllowed, 1e-12)
	assert.InDelta(t, 0.03, inv.Suggested, 1e-12)

	v = m.Validate(0, 0)
	inv, ok = v.(Invalid)
	require.True(t, ok)
	assert.True(t, errors.Is(inv, ErrNonPositiveSize))
}

func TestSizeAndValidateRejections(t *testing.T) {
	m := newManager(t, scenarioConfig())

	_, err := m.SizeAndValidate(types.IntentHold, ledger.State{CashBalance: 20}, 200)
	assert.ErrorIs(t, err, ErrNoTrade)

	_, err = m.SizeAndValidate(types.IntentSell, ledger.State{CashBalance: 20}, 200)
	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	assert.ErrorIs(t, err, types.ErrInsufficientPosition)

	full := ledger.State{CashBalance: 20, Position: &ledger.Position{EntryPrice: 200, Amount: 0.08}}
	_, err = m.SizeAndValidate(types.IntentBuy, full, 200)
	assert.ErrorIs(t, err, types.ErrMaxPositionExceeded)

	_, err = m.SizeAndValidate(types.IntentBuy, ledger.State{CashBalance: 0}, 200)
	assert.ErrorIs(t, err, types.ErrInsufficientCash)
}

func TestSellSizesFullPosition(t *testing.T) {
	m := newManager(t, scenarioConfig())
	state := ledger.State{Position: &ledger.Position{EntryPrice: 200, Amount: 0.0731}}
	for _, intent := range []types.Intent{types.IntentSell, types.IntentLiquidateStop} {
		trade, err := m.SizeAndValidate(intent, state, 150)
		require.NoError(t, err)
		assert.Equal(t, types.SideSell, trade.Side)
		assert.Equal(t, 0.0731, trade.Amount)
		assert.Equal(t, intent, trade.Intent)
	}
}

func TestBuyLimitedByCash(t *testing.T) {
	m := newManager(t, types.CapitalConfig{TradingCapital: 10, MaxPositionPct: 100, MaxDrawdownPct: 20})
	state := ledger.State{CashBalance: 100}
	size := m.MaxTradeSize(state, 200)
	assert.Greater(t, size, 0.0)
	// worst case cost must fit the cash
	assert.LessOrEqual(t, size*200*1.005+size*0.0025, 100.0)
	assert.Less(t, size, 0.5)
}

func TestCapitalPropertyNeverExceedsLimits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		cfg := types.CapitalConfig{
			TradingCapital: 0.01 + rng.Float64()*100,
			MaxPositionPct: 1 + rng.Float64()*99,
			MaxDrawdownPct: 20,
		}
		m := newManager(t, cfg)
		limit := cfg.TradingCapital
		if mp := m.MaxPosition(); mp < limit {
			limit = mp
		}
		held := rng.Float64() * limit * 1.2
		var pos *ledger.Position
		if held > 0 {
			pos = &ledger.Position{EntryPrice: 100, Amount: held}
		}
		state := ledger.State{CashBalance: rng.Float64() * 50000, Position: pos}
		mark := 1 + rng.Float64()*500

		trade, err := m.SizeAndValidate(types.IntentBuy, state, mark)
		if err == nil {
			assert.LessOrEqual(t, held+trade.Amount, limit+1e-9, "cfg=%+v held=%v", cfg, held)
		}

		requested := rng.Float64() * cfg.TradingCapital * 2
		if v, ok := m.Validate(requested, held).(Valid); ok {
			assert.LessOrEqual(t, held+v.Size, limit+1e-9)
		}
	}
}

func TestStatusAndSummary(t *testing.T) {
	m := newManager(t, scenarioConfig())
	st := m.Status(ledger.State{CashBalance: 20}, 200)
	assert.True(t, st.CanTrade)
	assert.Equal(t, 0.1, st.AvailableCapital)

	st = m.Status(ledger.State{CashBalance: 20, Position: &ledger.Position{EntryPrice: 200, Amount: 0.08}}, 210)
	assert.False(t, st.CanTrade)
	assert.Equal(t, "max position reached", st.Reason)
	assert.InDelta(t, 16.8, st.PositionValue, 1e-12)
	assert.InDelta(t, 80.0, st.PositionSizePct, 1e-9)

	sum := m.Summary()
	assert.InDelta(t, 0.08, sum.MaxPositionSizeSOL, 1e-15)
	assert.InDelta(t, 0.15, sum.MinWalletBalanceSOL, 1e-15)
}
