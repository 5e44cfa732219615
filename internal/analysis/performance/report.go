package performance

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Report 汇总一个时间窗口内的行情、成交与组合表现。
type Report struct {
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
	PeriodHours int                `json:"period_hours" yaml:"period_hours"`
	Database    any                `json:"database_stats,omitempty" yaml:"database_stats,omitempty"`
	Price       *PriceAnalysis     `json:"price_analysis,omitempty" yaml:"price_analysis,omitempty"`
	Trading     TradeAnalysis      `json:"trading_analysis" yaml:"trading_analysis"`
	Portfolio   *PortfolioAnalysis `json:"portfolio_analysis,omitempty" yaml:"portfolio_analysis,omitempty"`
	RawCounts   RawCounts          `json:"raw_data" yaml:"raw_data"`
	Notes       []string           `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type RawCounts struct {
	Prices    int `json:"price_count" yaml:"price_count"`
	Trades    int `json:"trade_count" yaml:"trade_count"`
	Snapshots int `json:"portfolio_snapshots" yaml:"portfolio_snapshots"`
}

// Build assembles a report; sections without enough data become notes.
func Build(hours int, prices []PricePoint, trades []Trade, equity []EquityPoint, dbStats any) Report {
	rep := Report{
		GeneratedAt: time.Now().UTC(),
		PeriodHours: hours,
		Database:    dbStats,
		Trading:     AnalyzeTrades(trades),
		RawCounts:   RawCounts{Prices: len(prices), Trades: len(trades), Snapshots: len(equity)},
	}
	if pa, err := AnalyzePrices(prices); err == nil {
		rep.Price = &pa
	} else {
		rep.Notes = append(rep.Notes, "price analysis: "+err.Error())
	}
	if pf, err := AnalyzePortfolio(equity); err == nil {
		rep.Portfolio = &pf
	} else {
		rep.Notes = append(rep.Notes, "portfolio analysis: "+err.Error())
	}
	return rep
}

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks yaml for .yaml/.yml, json otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode writes v as indented JSON or YAML.
func Encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

// WriteFile encodes v to path, creating parent directories.
func WriteFile(path string, v any) (err error) {
	if strings.TrimSpace(path) == "" {
		return errors.New("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Encode(f, FormatFromPath(path), v)
}
