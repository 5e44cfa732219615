package config

import (
	"strings"
	"time"

	"solbot/internal/types"
)

// Config 是 solbot 的主配置载体，启动时校验，运行期不可变。
type Config struct {
	App       AppConfig       `toml:"app"`
	Capital   CapitalConfig   `toml:"capital"`
	Execution ExecutionConfig `toml:"execution"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Feed      FeedConfig      `toml:"feed"`
	Store     StoreConfig     `toml:"store"`
	Backtest  BacktestConfig  `toml:"backtest"`
	Notify    NotifyConfig    `toml:"notify"`
	HTTP      HTTPConfig      `toml:"http"`
	Wallet    WalletConfig    `toml:"wallet"`
	Executor  ExecutorConfig  `toml:"executor"`
}

type AppConfig struct {
	Env                 string `toml:"env"`
	LogLevel            string `toml:"log_level"`
	LogFormat           string `toml:"log_format"`
	LogPath             string `toml:"log_path"`
	TradeLogPath        string `toml:"trade_log_path"`
	TickIntervalSeconds int    `toml:"tick_interval_seconds"`
}

func (a AppConfig) TickInterval() time.Duration {
	return time.Duration(a.TickIntervalSeconds) * time.Second
}

// CapitalConfig 描述分配给机器人的资金包络（SOL 计价）。
type CapitalConfig struct {
	TradingCapitalSOL  float64 `toml:"trading_capital_sol"`
	MaxPositionSizePct float64 `toml:"max_position_size_pct"`
	ReserveBalanceSOL  float64 `toml:"reserve_balance_sol"`
	MaxDrawdownPct     float64 `toml:"max_drawdown_pct"`
}

func (c CapitalConfig) ToCapital() types.CapitalConfig {
	return types.CapitalConfig{
		TradingCapital: c.TradingCapitalSOL,
		MaxPositionPct: c.MaxPositionSizePct,
		ReserveBalance: c.ReserveBalanceSOL,
		MaxDrawdownPct: c.MaxDrawdownPct,
	}
}

type ExecutionConfig struct {
	SimulationMode bool    `toml:"simulation_mode"`
	FeeRate        float64 `toml:"fee_rate"`
	SlippageMinPct float64 `toml:"slippage_min_pct"`
	SlippageMaxPct float64 `toml:"slippage_max_pct"`
	// StartingCash 为账本初始现金（报价货币），未设置时等于 trading_capital_sol。
	StartingCash float64 `toml:"starting_cash"`
	Seed         int64   `toml:"seed"`
}

type StrategyConfig struct {
	MinHistory    int     `toml:"min_history"`
	EMAFast       int     `toml:"ema_fast"`
	EMASlow       int     `toml:"ema_slow"`
	SMAPeriod     int     `toml:"sma_period"`
	RSIPeriod     int     `toml:"rsi_period"`
	BBPeriod      int     `toml:"bb_period"`
	BBStdDev      float64 `toml:"bb_stddev"`
	RSIOverbought float64 `toml:"rsi_overbought"`
	RSIOversold   float64 `toml:"rsi_oversold"`
	HistoryLimit  int     `toml:"history_limit"`
}

const (
	FeedJupiter       = "jupiter"
	FeedPyth          = "pyth"
	FeedBinance       = "binance"
	FeedBinanceStream = "binance_stream"
	FeedMock          = "mock"
)

type FeedConfig struct {
	Sources          []string `toml:"sources"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
	JupiterPriceURL  string   `toml:"jupiter_price_url"`
	SOLMint          string   `toml:"sol_mint"`
	PythHermesURL    string   `toml:"pyth_hermes_url"`
	PythFeedID       string   `toml:"pyth_feed_id"`
	BinanceSymbol    string   `toml:"binance_symbol"`
	BinanceBaseURL   string   `toml:"binance_base_url"`
	BinanceStreamURL string   `toml:"binance_stream_url"`
	MockBasePrice    float64  `toml:"mock_base_price"`
	MockVolatility   float64  `toml:"mock_volatility"`
	MockSeed         int64    `toml:"mock_seed"`
}

func (f FeedConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// NormalizedSources returns lower-cased, de-duplicated source names.
func (f FeedConfig) NormalizedSources() []string {
	seen := make(map[string]bool, len(f.Sources))
	out := make([]string, 0, len(f.Sources))
	for _, s := range f.Sources {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

type StoreConfig struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

type BacktestConfig struct {
	ResultDir string `toml:"result_dir"`
	Chart     bool   `toml:"chart"`
	Warmup    int    `toml:"warmup"`
	Seed      int64  `toml:"seed"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type HTTPConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// WalletConfig 用于实盘前的钱包注资检查；私钥与助记词不在此处理。
type WalletConfig struct {
	RPCEndpoint    string `toml:"rpc_endpoint"`
	Address        string `toml:"address"`
	CheckFunding   bool   `toml:"check_funding"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type ExecutorConfig struct {
	QuoteURL               string `toml:"quote_url"`
	QuoteMint              string `toml:"quote_mint"`
	SlippageBps            int    `toml:"slippage_bps"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
