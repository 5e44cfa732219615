package types

import "errors"

// 交易链路错误分类。除 ErrConfigInvalid 外均可在本地恢复：记录后跳过当前 tick。
var (
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrCapitalLimitExceeded = errors.New("capital limit exceeded")
	ErrMaxPositionExceeded  = errors.New("max position exceeded")
	ErrFeedUnavailable      = errors.New("price feed unavailable")
	ErrConfigInvalid        = errors.New("invalid config")
)
