// Package binance 提供基于 Binance 现货行情的 SOL 价格源：REST 轮询与逐笔成交流。
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"solbot/internal/gateway/feed"

	gobinance "github.com/adshao/go-binance/v2"
)

// RESTSource 基于 go-binance SDK 读取现货最新价。
type RESTSource struct {
	cfg    Config
	client *gobinance.Client
}

func NewREST(cfg Config) *RESTSource {
	final := cfg.withDefaults()
	client := gobinance.NewClient("", "")
	if final.RESTBaseURL != "" {
		client.BaseURL = final.RESTBaseURL
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &RESTSource{cfg: final, client: client}
}

func (s *RESTSource) Name() string { return "binance" }

func (s *RESTSource) Price(ctx context.Context) (float64, error) {
	if s == nil || s.client == nil {
		return 0, feed.Unavailable("binance", fmt.Errorf("source not initialized"))
	}
	res, err := s.client.NewListPricesService().Symbol(s.cfg.Symbol).Do(ctx)
	if err != nil {
		return 0, feed.Unavailable(s.Name(), err)
	}
	for _, entry := range res {
		if entry == nil || !strings.EqualFold(entry.Symbol, s.cfg.Symbol) {
			continue
		}
		if p := parseFloat(entry.Price); p > 0 {
			return p, nil
		}
	}
	return 0, feed.Unavailable(s.Name(), fmt.Errorf("price not available for %s", s.cfg.Symbol))
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
