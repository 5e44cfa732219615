// Package pyth 通过 Hermes HTTP 接口读取 Pyth SOL/USD 价格。
package pyth

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solbot/internal/gateway/feed"

	"github.com/tidwall/gjson"
)

const (
	DefaultHermesURL = "https://hermes.pyth.network"
	SOLFeedID        = "J83mCTdkBStKF7yD1ewtg7d6cgt1YG11E9cujiFFJmD9"
	latestPath       = "/v2/updates/price/latest"
)

type Config struct {
	HermesURL  string
	FeedID     string
	MaxAge     time.Duration // 0 表示不检查发布时间
	HTTPClient *http.Client
	Timeout    time.Duration
	Clock      func() time.Time
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	cfg.HermesURL = strings.TrimRight(strings.TrimSpace(cfg.HermesURL), "/")
	if cfg.HermesURL == "" {
		cfg.HermesURL = DefaultHermesURL
	}
	if strings.TrimSpace(cfg.FeedID) == "" {
		cfg.FeedID = SOLFeedID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Client{cfg: cfg}
}

func (c *Client) Name() string { return "pyth" }

// Price returns price * 10^expo of the configured feed.
func (c *Client) Price(ctx context.Context) (float64, error) {
	u := c.cfg.HermesURL + latestPath + "?" + url.Values{"ids[]": {c.cfg.FeedID}, "parsed": {"true"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, feed.Unavailable(c.Name(), err)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, feed.Unavailable(c.Name(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, feed.Unavailable(c.Name(), err)
	}
	if resp.StatusCode/100 != 2 {
		return 0, feed.Unavailable(c.Name(), fmt.Errorf("status=%d", resp.StatusCode))
	}

	entry := gjson.GetBytes(body, "parsed.0.price")
	if !entry.Exists() {
		return 0, feed.Unavailable(c.Name(), fmt.Errorf("feed %s not in response", c.cfg.FeedID))
	}
	raw := entry.Get("price").Float()
	expo := entry.Get("expo").Int()
	price := raw * math.Pow10(int(expo))
	if price <= 0 {
		return 0, feed.Unavailable(c.Name(), fmt.Errorf("invalid price %v", price))
	}
	if c.cfg.MaxAge > 0 {
		published := time.Unix(entry.Get("publish_time").Int(), 0)
		if age := c.cfg.Clock().Sub(published); age > c.cfg.MaxAge {
			return 0, feed.Unavailable(c.Name(), fmt.Errorf("stale price, published %s ago", age.Round(time.Second)))
		}
	}
	return price, nil
}
