package types

import "fmt"

// CapitalConfig 描述一次运行内不可变的资金包络。
// TradingCapital 与仓位数量同为 SOL 计价。
type CapitalConfig struct {
	TradingCapital float64 `json:"trading_capital"`
	MaxPositionPct float64 `json:"max_position_pct"`
	ReserveBalance float64 `json:"reserve_balance"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// MaxPosition returns trading_capital * max_position_pct / 100.
func (c CapitalConfig) MaxPosition() float64 {
	return c.TradingCapital * c.MaxPositionPct / 100
}

func (c CapitalConfig) Validate() error {
	if c.TradingCapital <= 0 {
		return fmt.Errorf("%w: trading capital must be > 0, got %v", ErrConfigInvalid, c.TradingCapital)
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 100 {
		return fmt.Errorf("%w: max position pct must be in (0,100], got %v", ErrConfigInvalid, c.MaxPositionPct)
	}
	if c.ReserveBalance < 0 {
		return fmt.Errorf("%w: reserve balance must be >= 0, got %v", ErrConfigInvalid, c.ReserveBalance)
	}
	if c.MaxDrawdownPct <= 0 || c.MaxDrawdownPct > 100 {
		return fmt.Errorf("%w: max drawdown pct must be in (0,100], got %v", ErrConfigInvalid, c.MaxDrawdownPct)
	}
	return nil
}
