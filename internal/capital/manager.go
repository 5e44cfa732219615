// Package capital 管理分配给机器人的交易资金包络：最大仓位、下单规模与校验。
// reserve_balance 只在钱包注资边界检查，不参与这里的规模计算。
package capital

import (
	"errors"
	"fmt"

	"solbot/internal/ledger"
	"solbot/internal/pkg/numeric"
	"solbot/internal/types"

	"github.com/shopspring/decimal"
)

// lamport precision
const sizePlaces = 9

// ErrNoTrade is returned for intents that do not trade.
var ErrNoTrade = errors.New("intent does not trade")

var (
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

type Manager struct {
	cfg            types.CapitalConfig
	feeRate        float64
	slippageMaxPct float64
}

// NewManager builds the manager; feeRate and slippageMaxPct bound the worst-case
// cost of a buy so a sized trade always clears the simulator's cash check.
func NewManager(cfg types.CapitalConfig, feeRate, slippageMaxPct float64) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if feeRate < 0 || slippageMaxPct < 0 {
		return nil, fmt.Errorf("%w: fee rate and slippage must be >= 0", types.ErrConfigInvalid)
	}
	return &Manager{cfg: cfg, feeRate: feeRate, slippageMaxPct: slippageMaxPct}, nil
}

func (m *Manager) Config() types.CapitalConfig { return m.cfg }

// MaxPosition returns trading_capital * max_position_pct / 100.
func (m *Manager) MaxPosition() float64 {
	return numeric.Float(numeric.Dec(m.cfg.TradingCapital).Mul(numeric.Dec(m.cfg.MaxPositionPct)).Div(decHundred))
}

// ProposedTrade 是通过校验、可以交给执行层的交易。
type ProposedTrade struct {
	Intent     types.Intent `json:"intent"`
	Side       types.Side   `json:"side"`
	Amount     float64      `json:"amount"`
	MarkPrice  float64      `json:"mark_price"`
	MaxAllowed float64      `json:"max_allowed"`
}

// Rejection 描述被拒绝的交易，Code 为错误分类哨兵值。
type Rejection struct {
	Intent     types.Intent `json:"intent"`
	Code       error        `json:"-"`
	Reason     string       `json:"reason"`
	Requested  float64      `json:"requested"`
	Overage    float64      `json:"overage,omitempty"`
	MaxAllowed float64      `json:"max_allowed,omitempty"`
	Suggested  float64      `json:"suggested_size,omitempty"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Intent, r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Code }

// CashCapacity converts cash into the largest asset amount a buy at mark can pay
// for, assuming worst-case slippage plus fee.
func (m *Manager) CashCapacity(cash, mark float64) float64 {
	if cash <= 0 || mark <= 0 {
		return 0
	}
	unit := numeric.Dec(mark).Mul(decOne.Add(numeric.Dec(m.slippageMaxPct).Div(decHundred))).Add(numeric.Dec(m.feeRate))
	c := numeric.Dec(cash)
	size := c.Div(unit).Truncate(sizePlaces)
	step := decimal.New(1, -sizePlaces)
	for size.Sign() > 0 && size.Mul(unit).Cmp(c) > 0 {
		size = size.Sub(step)
	}
	return numeric.Float(size)
}

// MaxTradeSize is the largest buy allowed right now: min(max_position - held, cash capacity).
func (m *Manager) MaxTradeSize(state ledger.State, mark float64) float64 {
	room := numeric.Dec(m.MaxPosition()).Sub(numeric.Dec(state.PositionAmount()))
	capacity := numeric.Dec(m.CashCapacity(state.CashBalance, mark))
	size := decimal.Min(room, capacity).Truncate(sizePlaces)
	if size.Sign() < 0 {
		return 0
	}
	return numeric.Float(size)
}

// SizeAndValidate sizes the trade for an intent and validates it before any mutation.
func (m *Manager) SizeAndValidate(intent types.Intent, state ledger.State, mark float64) (ProposedTrade, error) {
	side, ok := intent.Side()
	if !ok {
		return ProposedTrade{}, ErrNoTrade
	}
	held := state.PositionAmount()
	if side == types.SideSell {
		if held <= 0 {
			return ProposedTrade{}, &Rejection{
				Intent: intent,
				Code:   types.ErrInsufficientPosition,
				Reason: "no open position to sell",
			}
		}
		return ProposedTrade{Intent: intent, Side: side, Amount: held, MarkPrice: mark, MaxAllowed: held}, nil
	}

	size := m.MaxTradeSize(state, mark)
	if size <= 0 {
		code := types.ErrMaxPositionExceeded
		reason := fmt.Sprintf("max position %.9f SOL already allocated", m.MaxPosition())
		if m.CashCapacity(state.CashBalance, mark) <= 0 {
			code = types.ErrInsufficientCash
			reason = fmt.Sprintf("cash %.9f cannot fund a buy at %.4f", state.CashBalance, mark)
		}
		return ProposedTrade{}, &Rejection{Intent: intent, Code: code, Reason: reason}
	}
	switch v := m.Validate(size, held).(type) {
	case Valid:
		return ProposedTrade{Intent: intent, Side: side, Amount: v.Size, MarkPrice: mark, MaxAllowed: v.MaxAllowed}, nil
	case Invalid:
		return ProposedTrade{}, &Rejection{
			Intent:     intent,
			Code:       v.Code,
			Reason:     v.Reason,
			Requested:  size,
			Overage:    v.Overage,
			MaxAllowed: v.MaxAllowed,
			Suggested:  v.Suggested,
		}
	default:
		return ProposedTrade{}, fmt.Errorf("unexpected validation result %T", v)
	}
}

// Validate checks held+size against the trading capital, then against the max position.
func (m *Manager) Validate(size, held float64) Validation {
	if size <= 0 {
		return Invalid{Code: ErrNonPositiveSize, Reason: fmt.Sprintf("trade size %.9f must be > 0", size), Size: size}
	}
	capital := numeric.Dec(m.cfg.TradingCapital)
	maxPos := numeric.Dec(m.MaxPosition())
	h := numeric.Dec(held).Abs()
	next := h.Add(numeric.Dec(size))

	if next.Cmp(capital) > 0 {
		return Invalid{
			Code:       types.ErrCapitalLimitExceeded,
			Reason:     fmt.Sprintf("trade would exceed trading capital (%s > %s SOL)", next.StringFixed(4), capital.StringFixed(4)),
			Size:       size,
			Overage:    numeric.Float(next.Sub(capital)),
			MaxAllowed: numeric.Float(capital.Sub(h)),
			Suggested:  numeric.Float(decimal.Max(decimal.Zero, decimal.Min(capital, maxPos).Sub(h))),
		}
	}
	if next.Cmp(maxPos) > 0 {
		return Invalid{
			Code:       types.ErrMaxPositionExceeded,
			Reason:     fmt.Sprintf("trade would exceed max position size (%s > %s SOL)", next.StringFixed(4), maxPos.StringFixed(4)),
			Size:       size,
			Overage:    numeric.Float(next.Sub(maxPos)),
			MaxAllowed: numeric.Float(maxPos.Sub(h)),
			Suggested:  numeric.Float(decimal.Max(decimal.Zero, maxPos.Sub(h))),
		}
	}
	return Valid{Size: size, MaxAllowed: numeric.Float(maxPos)}
}

// Status 为按需计算的资金状态，不落库。
type Status struct {
	TradingCapital   float64 `json:"trading_capital"`
	AvailableCapital float64 `json:"available_capital"`
	PositionAmount   float64 `json:"position_amount"`
	PositionValue    float64 `json:"position_value"`
	PositionSizePct  float64 `json:"position_size_pct"`
	CanTrade         bool    `json:"can_trade"`
	Reason           string  `json:"reason"`
}

func (m *Manager) Status(state ledger.State, mark float64) Status {
	held := state.PositionAmount()
	available := numeric.Dec(m.cfg.TradingCapital).Sub(numeric.Dec(held))
	if available.Sign() < 0 {
		available = decimal.Zero
	}
	st := Status{
		TradingCapital:   m.cfg.TradingCapital,
		AvailableCapital: numeric.Float(available),
		PositionAmount:   held,
		PositionValue:    numeric.Mul(held, mark),
		PositionSizePct:  numeric.PercentOf(held, m.cfg.TradingCapital),
		CanTrade:         true,
		Reason:           "ready to trade",
	}
	switch {
	case available.Sign() <= 0:
		st.CanTrade = false
		st.Reason = "trading capital fully allocated"
	case numeric.GTE(held, m.MaxPosition()):
		st.CanTrade = false
		st.Reason = "max position reached"
	case mark > 0 && m.CashCapacity(state.CashBalance, mark) <= 0:
		st.CanTrade = false
		st.Reason = "insufficient cash"
	}
	return st
}

// Summary 汇总资金配置，启动时打印并通过 HTTP 暴露。
type Summary struct {
	TradingCapitalSOL   float64 `json:"trading_capital_sol" yaml:"trading_capital_sol"`
	MaxPositionSizePct  float64 `json:"max_position_size_pct" yaml:"max_position_size_pct"`
	MaxPositionSizeSOL  float64 `json:"max_position_size_sol" yaml:"max_position_size_sol"`
	ReserveBalanceSOL   float64 `json:"reserve_balance_sol" yaml:"reserve_balance_sol"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MinWalletBalanceSOL float64 `json:"min_wallet_balance_needed" yaml:"min_wallet_balance_needed"`
}

func (m *Manager) Summary() Summary {
	return Summary{
		TradingCapitalSOL:   m.cfg.TradingCapital,
		MaxPositionSizePct:  m.cfg.MaxPositionPct,
		MaxPositionSizeSOL:  m.MaxPosition(),
		ReserveBalanceSOL:   m.cfg.ReserveBalance,
		MaxDrawdownPct:      m.cfg.MaxDrawdownPct,
		MinWalletBalanceSOL: numeric.Add(m.cfg.TradingCapital, m.cfg.ReserveBalance),
	}
}
