package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验，错误由 Load 统一包装为 ErrConfigInvalid。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Capital.validate(); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Feed.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Wallet.validate(c.Execution.SimulationMode); err != nil {
		return err
	}
	return c.Executor.validate()
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(a.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json, got %q", a.LogFormat)
	}
	switch strings.ToLower(a.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level %q is not supported", a.LogLevel)
	}
	if a.TickIntervalSeconds <= 0 {
		return fmt.Errorf("app.tick_interval_seconds must be > 0")
	}
	return nil
}

func (c *CapitalConfig) validate() error {
	if c.TradingCapitalSOL <= 0 {
		return fmt.Errorf("capital.trading_capital_sol must be > 0")
	}
	if c.MaxPositionSizePct <= 0 || c.MaxPositionSizePct > 100 {
		return fmt.Errorf("capital.max_position_size_pct must be in (0,100]")
	}
	if c.ReserveBalanceSOL < 0 {
		return fmt.Errorf("capital.reserve_balance_sol must be >= 0")
	}
	if c.MaxDrawdownPct <= 0 || c.MaxDrawdownPct > 100 {
		return fmt.Errorf("capital.max_drawdown_pct must be in (0,100]")
	}
	return nil
}

func (e *ExecutionConfig) validate() error {
	if e.FeeRate < 0 {
		return fmt.Errorf("execution.fee_rate must be >= 0")
	}
	if e.SlippageMinPct < 0 || e.SlippageMaxPct > 100 || e.SlippageMinPct > e.SlippageMaxPct {
		return fmt.Errorf("execution slippage range [%v,%v] must satisfy 0 <= min <= max <= 100", e.SlippageMinPct, e.SlippageMaxPct)
	}
	if e.StartingCash <= 0 {
		return fmt.Errorf("execution.starting_cash must be > 0")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if s.EMAFast >= s.EMASlow {
		return fmt.Errorf("strategy.ema_fast (%d) must be < ema_slow (%d)", s.EMAFast, s.EMASlow)
	}
	if s.RSIOversold >= s.RSIOverbought || s.RSIOversold < 0 || s.RSIOverbought > 100 {
		return fmt.Errorf("strategy rsi thresholds must satisfy 0 <= oversold < overbought <= 100")
	}
	if s.BBStdDev <= 0 {
		return fmt.Errorf("strategy.bb_stddev must be > 0")
	}
	if s.HistoryLimit < s.MinHistory {
		return fmt.Errorf("strategy.history_limit (%d) must be >= min_history (%d)", s.HistoryLimit, s.MinHistory)
	}
	return nil
}

func (f *FeedConfig) validate() error {
	sources := f.NormalizedSources()
	if len(sources) == 0 {
		return fmt.Errorf("feed.sources requires at least one source")
	}
	for _, s := range sources {
		switch s {
		case FeedJupiter, FeedPyth, FeedBinance, FeedBinanceStream, FeedMock:
		default:
			return fmt.Errorf("feed.sources: unknown source %q", s)
		}
	}
	if f.MockVolatility < 0 {
		return fmt.Errorf("feed.mock_volatility must be >= 0")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if s.Enabled && strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("store.path is required when store is enabled")
	}
	if s.RetentionDays < 0 {
		return fmt.Errorf("store.retention_days must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func (w *WalletConfig) validate(simulation bool) error {
	if simulation || !w.CheckFunding {
		return nil
	}
	if strings.TrimSpace(w.Address) == "" {
		return fmt.Errorf("wallet.address is required for live trading with check_funding")
	}
	if strings.TrimSpace(w.RPCEndpoint) == "" {
		return fmt.Errorf("wallet.rpc_endpoint is required for live trading with check_funding")
	}
	return nil
}

func (e *ExecutorConfig) validate() error {
	if e.SlippageBps < 0 || e.SlippageBps > 10000 {
		return fmt.Errorf("executor.slippage_bps must be in [0,10000]")
	}
	if e.BreakerThreshold <= 0 {
		return fmt.Errorf("executor.breaker_threshold must be > 0")
	}
	return nil
}
