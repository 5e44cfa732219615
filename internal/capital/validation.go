package capital

import (
	"errors"
	"fmt"
)

var ErrNonPositiveSize = errors.New("trade size must be positive")

// Validation 是 Validate 的带标签结果：Valid 或 Invalid，调用方用 type switch 穷举处理。
type Validation interface {
	validation()
	OK() bool
}

type Valid struct {
	Size       float64 `json:"size"`
	MaxAllowed float64 `json:"max_allowed"`
}

func (Valid) validation() {}
func (Valid) OK() bool    { return true }

// Invalid carries the precise overage and a suggested clamped size. Nothing is clamped automatically.
type Invalid struct {
	Code       error   `json:"-"`
	Reason     string  `json:"reason"`
	Size       float64 `json:"size"`
	Overage    float64 `json:"overage"`
	MaxAllowed float64 `json:"max_allowed"`
	Suggested  float64 `json:"suggested_size"`
}

func (Invalid) validation() {}
func (Invalid) OK() bool    { return false }

func (i Invalid) Error() string {
	return fmt.Sprintf("%s (overage=%.9f, suggested=%.9f)", i.Reason, i.Overage, i.Suggested)
}

func (i Invalid) Unwrap() error { return i.Code }
