// Package solana 只读取链上余额，用于实盘启动前的注资检查。
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"solbot/internal/logger"
	"solbot/internal/pkg/numeric"
	"solbot/internal/types"

	"github.com/tidwall/gjson"
)

const (
	DefaultRPCEndpoint = "https://api.mainnet-beta.solana.com"
	LamportsPerSOL     = 1_000_000_000
)

type RPCClient struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

func NewRPCClient(endpoint string, timeout time.Duration) *RPCClient {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultRPCEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RPCClient{endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

func (c *RPCClient) call(ctx context.Context, method string, params ...any) (gjson.Result, error) {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return gjson.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode/100 != 2 {
		return gjson.Result{}, fmt.Errorf("rpc %s status=%d", method, resp.StatusCode)
	}
	parsed := gjson.ParseBytes(body)
	if e := parsed.Get("error"); e.Exists() {
		return gjson.Result{}, fmt.Errorf("rpc %s: %s (code %d)", method, e.Get("message").String(), e.Get("code").Int())
	}
	return parsed.Get("result"), nil
}

// Balance 返回地址的 SOL 余额。
func (c *RPCClient) Balance(ctx context.Context, address string) (float64, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, fmt.Errorf("wallet address is required")
	}
	res, err := c.call(ctx, "getBalance", address, map[string]string{"commitment": "confirmed"})
	if err != nil {
		return 0, err
	}
	lamports := res.Get("value")
	if !lamports.Exists() {
		return 0, fmt.Errorf("getBalance: missing value")
	}
	return float64(lamports.Uint()) / LamportsPerSOL, nil
}

// ErrUnderfunded 表示钱包余额不足以覆盖交易资金与预留。
var ErrUnderfunded = errors.New("wallet underfunded")

// BalanceReader is satisfied by RPCClient.
type BalanceReader interface {
	Balance(ctx context.Context, address string) (float64, error)
}

// FundingGuard 确认钱包至少持有 trading_capital + reserve，否则拒绝实盘启动。
type FundingGuard struct {
	reader  BalanceReader
	address string
	capital types.CapitalConfig
}

func NewFundingGuard(reader BalanceReader, address string, capital types.CapitalConfig) *FundingGuard {
	return &FundingGuard{reader: reader, address: address, capital: capital}
}

// Required is trading capital plus reserve, in SOL.
func (g *FundingGuard) Required() float64 {
	return numeric.Add(g.capital.TradingCapital, g.capital.ReserveBalance)
}

func (g *FundingGuard) Check(ctx context.Context) (float64, error) {
	bal, err := g.reader.Balance(ctx, g.address)
	if err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}
	need := g.Required()
	if numeric.LT(bal, need) {
		return bal, fmt.Errorf("%w: %w: wallet holds %.9f SOL, need %.9f (capital %.9f + reserve %.9f)",
			types.ErrConfigInvalid, ErrUnderfunded, bal, need, g.capital.TradingCapital, g.capital.ReserveBalance)
	}
	logger.Infof("wallet %s funded: %.9f SOL (required %.9f)", g.address, bal, need)
	return bal, nil
}
