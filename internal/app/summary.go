package app

import (
	"fmt"
	"strings"

	"solbot/internal/capital"
	"solbot/internal/config"
	"solbot/internal/logger"
)

// StartupSummary 在启动时打印资金包络与运行参数。
type StartupSummary struct {
	Env          string
	Simulation   bool
	Source       string
	TickInterval string
	Capital      capital.Summary
	StartingCash float64
	FeeRate      float64
	SlippageMin  float64
	SlippageMax  float64
	StorePath    string
	HTTPAddr     string
	Telegram     bool
}

func NewStartupSummary(cfg *config.Config, cs capital.Summary, source string) *StartupSummary {
	s := &StartupSummary{
		Env:          cfg.App.Env,
		Simulation:   cfg.Execution.SimulationMode,
		Source:       source,
		TickInterval: cfg.App.TickInterval().String(),
		Capital:      cs,
		StartingCash: cfg.Execution.StartingCash,
		FeeRate:      cfg.Execution.FeeRate,
		SlippageMin:  cfg.Execution.SlippageMinPct,
		SlippageMax:  cfg.Execution.SlippageMaxPct,
		Telegram:     cfg.Notify.Telegram.Enabled,
	}
	if cfg.Store.Enabled {
		s.StorePath = cfg.Store.Path
	}
	if cfg.HTTP.Enabled {
		s.HTTPAddr = cfg.HTTP.Addr
	}
	return s
}

func (s *StartupSummary) String() string {
	mode := "LIVE"
	if s.Simulation {
		mode = "SIMULATION"
	}
	var b strings.Builder
	line := strings.Repeat("=", 60)
	b.WriteString(line + "\n")
	b.WriteString("启动配置摘要 (STARTUP SUMMARY)\n")
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "模式: %s | 环境: %s\n", mode, orDash(s.Env))
	fmt.Fprintf(&b, "行情源: %s | 间隔: %s\n", orDash(s.Source), s.TickInterval)
	b.WriteString("[资金 (CAPITAL)]\n")
	fmt.Fprintf(&b, "  trading capital:   %.4f SOL\n", s.Capital.TradingCapitalSOL)
	fmt.Fprintf(&b, "  max position:      %.4f SOL (%.1f%%)\n", s.Capital.MaxPositionSizeSOL, s.Capital.MaxPositionSizePct)
	fmt.Fprintf(&b, "  reserve:           %.4f SOL\n", s.Capital.ReserveBalanceSOL)
	fmt.Fprintf(&b, "  min wallet:        %.4f SOL\n", s.Capital.MinWalletBalanceSOL)
	fmt.Fprintf(&b, "  max drawdown:      %.1f%%\n", s.Capital.MaxDrawdownPct)
	b.WriteString("[执行 (EXECUTION)]\n")
	fmt.Fprintf(&b, "  starting cash:     %.4f\n", s.StartingCash)
	fmt.Fprintf(&b, "  fee rate:          %.4f%%\n", s.FeeRate*100)
	fmt.Fprintf(&b, "  slippage:          %.2f%% - %.2f%%\n", s.SlippageMin, s.SlippageMax)
	b.WriteString("[服务 (SERVICES)]\n")
	fmt.Fprintf(&b, "  store:             %s\n", orDash(s.StorePath))
	fmt.Fprintf(&b, "  http:              %s\n", orDash(s.HTTPAddr))
	fmt.Fprintf(&b, "  telegram:          %v\n", s.Telegram)
	b.WriteString(line)
	return b.String()
}

func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
