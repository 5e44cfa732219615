package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"solbot/internal/types"
)

// Settings 描述计算指标快照所需的参数。
type Settings struct {
	EMAFast    int     `json:"ema_fast"`
	EMASlow    int     `json:"ema_slow"`
	SMAPeriod  int     `json:"sma_period"`
	RSIPeriod  int     `json:"rsi_period"`
	BBPeriod   int     `json:"bb_period"`
	BBStdDev   float64 `json:"bb_stddev"`
	MinHistory int     `json:"min_history"`
}

func DefaultSettings() Settings {
	return Settings{
		EMAFast:    12,
		EMASlow:    26,
		SMAPeriod:  20,
		RSIPeriod:  14,
		BBPeriod:   20,
		BBStdDev:   2,
		MinHistory: 50,
	}
}

func (s Settings) normalized() Settings {
	def := DefaultSettings()
	if s.EMAFast <= 0 {
		s.EMAFast = def.EMAFast
	}
	if s.EMASlow <= 0 {
		s.EMASlow = def.EMASlow
	}
	if s.SMAPeriod <= 0 {
		s.SMAPeriod = def.SMAPeriod
	}
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = def.RSIPeriod
	}
	if s.BBPeriod <= 0 {
		s.BBPeriod = def.BBPeriod
	}
	if s.BBStdDev <= 0 {
		s.BBStdDev = def.BBStdDev
	}
	if s.MinHistory <= 0 {
		s.MinHistory = def.MinHistory
	}
	return s
}

func (s Settings) longestPeriod() int {
	longest := s.EMAFast
	for _, p := range []int{s.EMASlow, s.SMAPeriod, s.RSIPeriod + 1, s.BBPeriod} {
		if p > longest {
			longest = p
		}
	}
	return longest
}

// Calculator 基于 go-talib 计算 EMA/SMA/RSI/布林带快照。
type Calculator struct {
	cfg Settings
}

func NewCalculator(cfg Settings) *Calculator {
	return &Calculator{cfg: cfg.normalized()}
}

func (c *Calculator) Settings() Settings { return c.cfg }

// Compute returns the latest snapshot, or false when the history is too short
// or contains non-finite prices.
func (c *Calculator) Compute(history []float64) (types.IndicatorSnapshot, bool) {
	if len(history) < c.cfg.MinHistory || len(history) < c.cfg.longestPeriod() {
		return types.IndicatorSnapshot{}, false
	}
	closes := sanitizeSeries(history)
	if len(closes) != len(history) {
		return types.IndicatorSnapshot{}, false
	}
	upper, _, lower := talib.BBands(closes, c.cfg.BBPeriod, c.cfg.BBStdDev, c.cfg.BBStdDev, talib.SMA)
	snap := types.IndicatorSnapshot{
		FastEMA: lastValid(talib.Ema(closes, c.cfg.EMAFast)),
		SlowEMA: lastValid(talib.Ema(closes, c.cfg.EMASlow)),
		SMA:     lastValid(talib.Sma(closes, c.cfg.SMAPeriod)),
		RSI:     lastValid(talib.Rsi(closes, c.cfg.RSIPeriod)),
		BBUpper: lastValid(upper),
		BBLower: lastValid(lower),
	}
	return snap, true
}

// Bands 返回完整布林带序列（用于回测图表），前导未定义值置 NaN。
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

func (c *Calculator) Bands(history []float64) (Bands, bool) {
	if len(history) < c.cfg.BBPeriod {
		return Bands{}, false
	}
	closes := sanitizeSeries(history)
	if len(closes) != len(history) {
		return Bands{}, false
	}
	upper, middle, lower := talib.BBands(closes, c.cfg.BBPeriod, c.cfg.BBStdDev, c.cfg.BBStdDev, talib.SMA)
	lead := c.cfg.BBPeriod - 1
	for i := 0; i < lead && i < len(upper); i++ {
		upper[i], middle[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
	}
	return Bands{Upper: upper, Middle: middle, Lower: lower}, true
}

func sanitizeSeries(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}
