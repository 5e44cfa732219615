package risk

import (
	"errors"
	"testing"

	"solbot/internal/ledger"
	"solbot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGovernorRejectsOutOfRange(t *testing.T) {
	for _, pct := range []float64{0, -1, 100.5} {
		_, err := NewGovernor(pct)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrConfigInvalid))
	}
}

func TestCheckBoundaryIsExact(t *testing.T) {
	g, err := NewGovernor(20)
	require.NoError(t, err)

	cases := []struct {
		name     string
		current  float64
		breached bool
	}{
		{"just above threshold", 800.000001, false},
		{"at threshold", 800.0, true},
		{"below threshold", 799.5, true},
		{"small dip", 950, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := ledger.State{CashBalance: tc.current, PeakTotalValue: 1000}
			peak, breached := g.Check(state, 100)
			assert.Equal(t, 1000.0, peak)
			assert.Equal(t, tc.breached, breached)
		})
	}
}

func TestCheckNewHighResetsPeak(t *testing.T) {
	g, err := NewGovernor(20)
	require.NoError(t, err)

	state := ledger.State{
		CashBalance:    100,
		Position:       &ledger.Position{EntryPrice: 100, Amount: 10},
		PeakTotalValue: 1000,
	}
	peak, breached := g.Check(state, 120)
	assert.InDelta(t, 1300.0, peak, 1e-9)
	assert.False(t, breached)
}

func TestCheckWithPositionBreach(t *testing.T) {
	g, err := NewGovernor(20)
	require.NoError(t, err)

	// peak 1200, threshold 960; 50 cash + 10 SOL at 90 = 950
	state := ledger.State{
		CashBalance:    50,
		Position:       &ledger.Position{EntryPrice: 115, Amount: 10},
		PeakTotalValue: 1200,
	}
	assert.InDelta(t, 960.0, g.Threshold(1200), 1e-9)
	peak, breached := g.Check(state, 90)
	assert.Equal(t, 1200.0, peak)
	assert.True(t, breached)
	assert.InDelta(t, 20.8333333, g.Drawdown(state, 90), 1e-6)
}

func TestDrawdownZeroPeak(t *testing.T) {
	g, err := NewGovernor(20)
	require.NoError(t, err)
	assert.Equal(t, 0.0, g.Drawdown(ledger.State{}, 100))
	_, breached := g.Check(ledger.State{}, 100)
	assert.False(t, breached)
}
