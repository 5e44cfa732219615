// Package jupiter 封装 Jupiter 价格 API、v6 报价 API，以及基于报价的链上执行器。
package jupiter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solbot/internal/gateway/feed"

	"github.com/tidwall/gjson"
)

const (
	DefaultPriceURL = "https://api.jup.ag/price/v2"
	DefaultQuoteURL = "https://quote-api.jup.ag/v6/quote"
	SOLMint         = "So11111111111111111111111111111111111111112"
	USDCMint        = "EPjFWJd5Fw6FBvNTmQ4KHP7ePgkyNuLxLMRoGixNLwaU"

	lamportsPerSOL = 1_000_000_000
)

type Config struct {
	PriceURL   string
	QuoteURL   string
	SOLMint    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	out.PriceURL = strings.TrimSpace(out.PriceURL)
	if out.PriceURL == "" {
		out.PriceURL = DefaultPriceURL
	}
	out.QuoteURL = strings.TrimSpace(out.QuoteURL)
	if out.QuoteURL == "" {
		out.QuoteURL = DefaultQuoteURL
	}
	if strings.TrimSpace(out.SOLMint) == "" {
		out.SOLMint = SOLMint
	}
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: out.Timeout}
	}
	return out
}

// Client 同时是 feed.Source（SOL 价格）与报价客户端。
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

func (c *Client) Name() string { return "jupiter" }

// Price 读取 data.<mint>.price。
func (c *Client) Price(ctx context.Context) (float64, error) {
	u, err := url.Parse(c.cfg.PriceURL)
	if err != nil {
		return 0, feed.Unavailable(c.Name(), err)
	}
	q := u.Query()
	q.Set("ids", c.cfg.SOLMint)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return 0, feed.Unavailable(c.Name(), err)
	}
	res := gjson.GetBytes(body, "data."+c.cfg.SOLMint+".price")
	if !res.Exists() {
		return 0, feed.Unavailable(c.Name(), fmt.Errorf("price missing in response"))
	}
	price := res.Float()
	if price <= 0 {
		return 0, feed.Unavailable(c.Name(), fmt.Errorf("invalid price %q", res.String()))
	}
	return price, nil
}

type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // input token base units
	SlippageBps int
}

// Quote 是 v6 报价的关键字段，Raw 保留原始响应供签名方构建交易。
type Quote struct {
	InputMint      string  `json:"input_mint"`
	OutputMint     string  `json:"output_mint"`
	InAmount       uint64  `json:"in_amount"`
	OutAmount      uint64  `json:"out_amount"`
	OtherAmount    uint64  `json:"other_amount_threshold"`
	SlippageBps    int     `json:"slippage_bps"`
	PriceImpactPct float64 `json:"price_impact_pct"`
	RouteHops      int     `json:"route_hops"`
	Raw            []byte  `json:"-"`
}

func (c *Client) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if req.Amount == 0 {
		return Quote{}, fmt.Errorf("quote amount must be > 0")
	}
	u, err := url.Parse(c.cfg.QuoteURL)
	if err != nil {
		return Quote{}, err
	}
	q := u.Query()
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return Quote{}, fmt.Errorf("jupiter quote: %w", err)
	}
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return Quote{}, fmt.Errorf("jupiter quote: %s", msg.String())
	}
	parsed := gjson.ParseBytes(body)
	out := Quote{
		InputMint:      parsed.Get("inputMint").String(),
		OutputMint:     parsed.Get("outputMint").String(),
		InAmount:       parsed.Get("inAmount").Uint(),
		OutAmount:      parsed.Get("outAmount").Uint(),
		OtherAmount:    parsed.Get("otherAmountThreshold").Uint(),
		SlippageBps:    int(parsed.Get("slippageBps").Int()),
		PriceImpactPct: parsed.Get("priceImpactPct").Float(),
		RouteHops:      len(parsed.Get("routePlan").Array()),
		Raw:            body,
	}
	if out.OutAmount == 0 {
		return Quote{}, fmt.Errorf("jupiter quote: empty route")
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
