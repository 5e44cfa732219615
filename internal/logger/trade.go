package logger

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"
	"time"
)

// 成交流水单独写入 CSV，便于离线对账。
var (
	tradeMu  sync.Mutex
	tradeCSV *csv.Writer
)

var tradeHeader = []string{"time", "session", "seq", "side", "amount", "fill_price", "fee", "slippage_pct", "realized_pnl", "simulated"}

// TradeRecord is one row of the trade journal.
type TradeRecord struct {
	Time        time.Time
	Session     string
	Seq         int
	Side        string
	Amount      float64
	FillPrice   float64
	Fee         float64
	SlippagePct float64
	RealizedPnL float64
	Simulated   bool
}

// SetTradeWriter routes the trade journal to w; nil disables it.
// writeHeader should be true for a new, empty file.
func SetTradeWriter(w io.Writer, writeHeader bool) error {
	tradeMu.Lock()
	defer tradeMu.Unlock()
	if w == nil {
		tradeCSV = nil
		return nil
	}
	tradeCSV = csv.NewWriter(w)
	if writeHeader {
		if err := tradeCSV.Write(tradeHeader); err != nil {
			return err
		}
		tradeCSV.Flush()
		return tradeCSV.Error()
	}
	return nil
}

func LogTrade(rec TradeRecord) {
	tradeMu.Lock()
	defer tradeMu.Unlock()
	if tradeCSV == nil {
		return
	}
	row := []string{
		rec.Time.UTC().Format(time.RFC3339Nano),
		rec.Session,
		strconv.Itoa(rec.Seq),
		rec.Side,
		formatFloat(rec.Amount),
		formatFloat(rec.FillPrice),
		formatFloat(rec.Fee),
		formatFloat(rec.SlippagePct),
		formatFloat(rec.RealizedPnL),
		strconv.FormatBool(rec.Simulated),
	}
	if err := tradeCSV.Write(row); err != nil {
		Warnf("trade journal write failed: %v", err)
		return
	}
	tradeCSV.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
