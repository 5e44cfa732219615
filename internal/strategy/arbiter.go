// Package strategy 把指标快照与价格历史映射为离散交易意图。
// Decide 是纯函数，相同输入必然得到相同输出，回测可复现依赖于此。
package strategy

import (
	"solbot/internal/types"
)

const (
	DefaultMinHistory    = 50
	DefaultRSIOverbought = 70.0
	DefaultRSIOversold   = 30.0
)

type Thresholds struct {
	MinHistory    int
	RSIOverbought float64
	RSIOversold   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinHistory:    DefaultMinHistory,
		RSIOverbought: DefaultRSIOverbought,
		RSIOversold:   DefaultRSIOversold,
	}
}

// Arbiter 为均值回归 + 趋势过滤的信号仲裁器。
type Arbiter struct {
	th Thresholds
}

// NewArbiter uses DefaultThresholds only for the zero value; any configured
// field, including an oversold level of 0, is kept as given.
func NewArbiter(th Thresholds) *Arbiter {
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	return &Arbiter{th: th}
}

func (a *Arbiter) Thresholds() Thresholds { return a.th }

// Decide evaluates rules in order, first match wins:
// overbought at the upper band sells, oversold at the lower band buys,
// an up-trend below overbought holds, everything else holds.
// Too little history fails closed to Hold.
func (a *Arbiter) Decide(history []float64, snap types.IndicatorSnapshot) types.Intent {
	if len(history) < a.th.MinHistory || len(history) == 0 {
		return types.IntentHold
	}
	last := history[len(history)-1]
	switch {
	case snap.RSI > a.th.RSIOverbought && last >= snap.BBUpper:
		return types.IntentSell
	case snap.RSI < a.th.RSIOversold && last <= snap.BBLower:
		return types.IntentBuy
	case snap.FastEMA > snap.SlowEMA && snap.RSI < a.th.RSIOverbought:
		// trend continuation, no new entry
		return types.IntentHold
	default:
		return types.IntentHold
	}
}
