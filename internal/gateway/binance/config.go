package binance

import (
	"strings"
	"time"
)

const (
	defaultSymbol    = "SOLUSDT"
	defaultStreamURL = "wss://stream.binance.com:9443/ws"
)

type Config struct {
	Symbol      string
	RESTBaseURL string // 为空时使用 go-binance 默认的现货地址
	StreamURL   string
	HTTPTimeout time.Duration
	// MaxAge 为流式价格的最长缓存时间，超过视为不可用。
	MaxAge time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	out.Symbol = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(out.Symbol, "/", "")))
	if out.Symbol == "" {
		out.Symbol = defaultSymbol
	}
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	out.StreamURL = strings.TrimRight(strings.TrimSpace(out.StreamURL), "/")
	if out.StreamURL == "" {
		out.StreamURL = defaultStreamURL
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.MaxAge <= 0 {
		out.MaxAge = 30 * time.Second
	}
	return out
}
