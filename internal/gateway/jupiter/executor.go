package jupiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"solbot/internal/logger"
	"solbot/internal/metrics"
	"solbot/internal/pkg/circuit"
	"solbot/internal/types"
)

// Signer 负责把报价构建成交易、签名并广播，返回交易签名。
// 密钥管理不在本仓库内，实盘需要外部实现。
type Signer interface {
	SignAndSend(ctx context.Context, quote Quote) (string, error)
}

type ExecutorConfig struct {
	QuoteMint        string // 报价货币 mint，默认 USDC
	QuoteDecimals    int
	SlippageBps      int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Executor 实现 engine.OnChainExecutor：先取 Jupiter 报价，再交给 Signer。
// 没有 Signer 时一律返回 false，引擎会把这笔交易视为失败并跳过。
type Executor struct {
	client  *Client
	signer  Signer
	cfg     ExecutorConfig
	breaker *circuit.Breaker
}

func NewExecutor(client *Client, signer Signer, cfg ExecutorConfig) *Executor {
	if cfg.QuoteMint == "" {
		cfg.QuoteMint = USDCMint
	}
	if cfg.QuoteDecimals <= 0 {
		cfg.QuoteDecimals = 6
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 50
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 3
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}
	return &Executor{
		client:  client,
		signer:  signer,
		cfg:     cfg,
		breaker: circuit.New("jupiter-executor", cfg.BreakerThreshold, cfg.BreakerCooldown, circuit.WithStateChange(metrics.BreakerChanged)),
	}
}

func (e *Executor) Breaker() *circuit.Breaker { return e.breaker }

// BuildRequest converts a SOL-denominated order into a Jupiter quote request.
func (e *Executor) BuildRequest(side types.Side, amount, price float64) (QuoteRequest, error) {
	if amount <= 0 || price <= 0 {
		return QuoteRequest{}, fmt.Errorf("invalid order amount=%v price=%v", amount, price)
	}
	req := QuoteRequest{SlippageBps: e.cfg.SlippageBps}
	switch side {
	case types.SideBuy:
		req.InputMint = e.cfg.QuoteMint
		req.OutputMint = e.client.cfg.SOLMint
		req.Amount = uint64(math.Round(amount * price * math.Pow10(e.cfg.QuoteDecimals)))
	case types.SideSell:
		req.InputMint = e.client.cfg.SOLMint
		req.OutputMint = e.cfg.QuoteMint
		req.Amount = uint64(math.Round(amount * lamportsPerSOL))
	default:
		return QuoteRequest{}, fmt.Errorf("unknown side %q", side)
	}
	if req.Amount == 0 {
		return QuoteRequest{}, fmt.Errorf("order too small: amount=%v", amount)
	}
	return req, nil
}

func (e *Executor) Execute(ctx context.Context, side types.Side, amount, price float64) (bool, error) {
	req, err := e.BuildRequest(side, amount, price)
	if err != nil {
		metrics.ExecutorCall(string(side), "error")
		return false, err
	}
	if e.signer == nil {
		logger.Warnf("jupiter: no signer configured, %s %.9f SOL not executed", side, amount)
		metrics.ExecutorCall(string(side), "declined")
		return false, nil
	}
	var sig string
	err = e.breaker.Do(func() error {
		quote, err := e.client.Quote(ctx, req)
		if err != nil {
			return err
		}
		logger.Infof("jupiter: quote %s in=%d out=%d impact=%.4f%% hops=%d", side, quote.InAmount, quote.OutAmount, quote.PriceImpactPct, quote.RouteHops)
		sig, err = e.signer.SignAndSend(ctx, quote)
		return err
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, circuit.ErrOpen) {
			outcome = "breaker_open"
		}
		metrics.ExecutorCall(string(side), outcome)
		return false, err
	}
	logger.Infof("jupiter: %s %.9f SOL sent, signature=%s", side, amount, sig)
	metrics.ExecutorCall(string(side), "ok")
	return true, nil
}
