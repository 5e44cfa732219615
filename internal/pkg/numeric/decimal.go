// Package numeric 提供基于 shopspring/decimal 的精确比较与运算，
// 用于资金校验、回撤阈值等对边界敏感的场景。
package numeric

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Dec converts a float to decimal using its shortest representation; NaN/Inf map to zero.
func Dec(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return zero
	}
	return decimal.NewFromFloat(val)
}

func Float(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func Compare(a, b float64) int {
	return Dec(a).Cmp(Dec(b))
}

func LTE(a, b float64) bool { return Compare(a, b) <= 0 }
func GTE(a, b float64) bool { return Compare(a, b) >= 0 }
func LT(a, b float64) bool  { return Compare(a, b) < 0 }
func GT(a, b float64) bool  { return Compare(a, b) > 0 }

func Add(a, b float64) float64 { return Float(Dec(a).Add(Dec(b))) }
func Sub(a, b float64) float64 { return Float(Dec(a).Sub(Dec(b))) }
func Mul(a, b float64) float64 { return Float(Dec(a).Mul(Dec(b))) }

// PercentOf returns part/whole*100, or 0 when whole is not positive.
func PercentOf(part, whole float64) float64 {
	w := Dec(whole)
	if w.Sign() <= 0 {
		return 0
	}
	return Float(Dec(part).Mul(hundred).Div(w))
}

// ReachesPercentDrop reports whether (from-to)/from*100 >= pct without dividing,
// so the threshold itself counts as reached.
func ReachesPercentDrop(from, to, pct float64) bool {
	f := Dec(from)
	if f.Sign() <= 0 {
		return false
	}
	drop := f.Sub(Dec(to)).Mul(hundred)
	return drop.Cmp(f.Mul(Dec(pct))) >= 0
}

func Min(a, b float64) float64 {
	if LT(a, b) {
		return a
	}
	return b
}
