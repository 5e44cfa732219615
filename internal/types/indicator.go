package types

// IndicatorSnapshot 是一次 tick 使用的技术指标快照。
// 由外部指标计算方提供，核心引擎只把它当作不透明输入。
type IndicatorSnapshot struct {
	FastEMA float64 `json:"fast_ema"`
	SlowEMA float64 `json:"slow_ema"`
	SMA     float64 `json:"sma"`
	RSI     float64 `json:"rsi"`
	BBUpper float64 `json:"bb_upper"`
	BBLower float64 `json:"bb_lower"`
}
