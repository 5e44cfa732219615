package risk

import (
	"fmt"

	"solbot/internal/ledger"
	"solbot/internal/pkg/numeric"
	"solbot/internal/types"
)

// Governor 追踪组合的盯市峰值，并在回撤达到阈值时给出熔断信号。
type Governor struct {
	maxDrawdownPct float64
}

func NewGovernor(maxDrawdownPct float64) (*Governor, error) {
	if maxDrawdownPct <= 0 || maxDrawdownPct > 100 {
		return nil, fmt.Errorf("%w: max drawdown pct must be in (0,100], got %v", types.ErrConfigInvalid, maxDrawdownPct)
	}
	return &Governor{maxDrawdownPct: maxDrawdownPct}, nil
}

func (g *Governor) MaxDrawdownPct() float64 { return g.maxDrawdownPct }

// Check marks the state at mark. A new high updates the peak and never breaches;
// otherwise breached is drawdown >= max_drawdown_pct, inclusive at the threshold.
func (g *Governor) Check(state ledger.State, mark float64) (peak float64, breached bool) {
	current := state.TotalValue(mark)
	if numeric.GT(current, state.PeakTotalValue) {
		return current, false
	}
	return state.PeakTotalValue, numeric.ReachesPercentDrop(state.PeakTotalValue, current, g.maxDrawdownPct)
}

// Drawdown returns (peak - current) / peak * 100, or 0 for a non-positive peak or a new high.
func (g *Governor) Drawdown(state ledger.State, mark float64) float64 {
	current := state.TotalValue(mark)
	if state.PeakTotalValue <= 0 || !numeric.GT(state.PeakTotalValue, current) {
		return 0
	}
	return numeric.PercentOf(state.PeakTotalValue-current, state.PeakTotalValue)
}

// Threshold is the total value at which the governor breaches for the given peak.
func (g *Governor) Threshold(peak float64) float64 {
	return numeric.Mul(peak, 1-g.maxDrawdownPct/100)
}
