package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"solbot/internal/analysis/performance"
	"solbot/internal/app"
	"solbot/internal/config"
	"solbot/internal/logger"

	flag "github.com/spf13/pflag"
)

const usage = `usage: solbot <command> [flags]

commands:
  trade     run the trading loop (default)
  backtest  replay a CSV price file through the engine
  report    summarize persisted prices, fills and snapshots
`

func main() {
	cmd, args := "trade", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "trade":
		err = runTrade(ctx, args)
	case "backtest":
		err = runBacktest(ctx, args)
	case "report":
		err = runReport(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s 失败: %v", cmd, err)
	}
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	def := os.Getenv("SOLBOT_CONFIG")
	if def == "" {
		def = "configs/config.yaml"
	}
	cfgPath := fs.StringP("config", "c", def, "config file path")
	return fs, cfgPath
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)
	return cfg
}

func runTrade(ctx context.Context, args []string) error {
	fs, cfgPath := newFlagSet("trade")
	_ = fs.Parse(args)
	cfg := loadConfig(*cfgPath)
	logger.Infof("✓ 配置加载成功（环境=%s，simulation=%v）", cfg.App.Env, cfg.Execution.SimulationMode)

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("初始化应用失败: %w", err)
	}
	return a.Run(ctx)
}

func runBacktest(ctx context.Context, args []string) error {
	fs, cfgPath := newFlagSet("backtest")
	csvPath := fs.String("csv", "", "CSV price file (timestamp,price or price per line)")
	outDir := fs.String("out", "", "output directory (defaults to backtest.result_dir)")
	format := fs.String("format", string(performance.FormatJSON), "summary format: json|yaml")
	name := fs.String("name", "", "run name (defaults to the CSV file name)")
	_ = fs.Parse(args)
	cfg := loadConfig(*cfgPath)

	f := performance.Format(strings.ToLower(*format))
	if f != performance.FormatJSON && f != performance.FormatYAML {
		return fmt.Errorf("unknown format %q", *format)
	}
	out, err := app.RunBacktest(ctx, cfg, app.BacktestRequest{CSVPath: *csvPath, OutDir: *outDir, Format: f, Name: *name})
	if err != nil {
		return err
	}
	st := out.Result.Stats
	logger.Infof("回测完成 run=%s trades=%d return=%.2f%% max_dd=%.2f%% win=%.1f%%",
		out.Result.RunID, st.Trades, st.ReturnPct, st.MaxDrawdownPct, st.WinRatePct)
	logger.Infof("artifacts: summary=%s fills=%s equity=%s chart=%s db=%s",
		out.Artifacts.Summary, out.Artifacts.Fills, out.Artifacts.Equity, out.Artifacts.Chart, out.Database)
	return nil
}

func runReport(ctx context.Context, args []string) error {
	fs, cfgPath := newFlagSet("report")
	hours := fs.Int("hours", 24, "report window in hours")
	out := fs.String("out", "", "write the report to a .json/.yaml file instead of stdout")
	_ = fs.Parse(args)
	cfg := loadConfig(*cfgPath)

	_, err := app.GenerateReport(ctx, cfg, *hours, *out, os.Stdout)
	if err == nil && *out != "" {
		logger.Infof("report written to %s", *out)
	}
	return err
}
