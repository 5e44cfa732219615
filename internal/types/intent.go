package types

import "strings"

// Intent 是 Signal Arbiter 每个 tick 产出的交易意图，立即消费、不落库。
type Intent int

const (
	IntentHold Intent = iota
	IntentBuy
	IntentSell
	// IntentLiquidateStop 由回撤熔断强制触发，优先级高于任何信号。
	IntentLiquidateStop
)

func (i Intent) String() string {
	switch i {
	case IntentBuy:
		return "BUY"
	case IntentSell:
		return "SELL"
	case IntentLiquidateStop:
		return "LIQUIDATE_STOP"
	default:
		return "HOLD"
	}
}

// Side maps an intent to the order side it trades on.
func (i Intent) Side() (Side, bool) {
	switch i {
	case IntentBuy:
		return SideBuy, true
	case IntentSell, IntentLiquidateStop:
		return SideSell, true
	default:
		return "", false
	}
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// Side 表示成交方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func ParseSide(v string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "buy":
		return SideBuy, true
	case "sell":
		return SideSell, true
	default:
		return "", false
	}
}
