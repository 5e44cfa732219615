package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrExhausted 表示回放数据已经读完。
var ErrExhausted = errors.New("price replay exhausted")

type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// LoadCSVFile reads a price CSV from disk, see ParseCSV.
func LoadCSVFile(path string) ([]PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV 支持 "timestamp,price" 两列或仅 price 单列，首行可为表头。
// timestamp 可为 unix 秒、unix 毫秒或 RFC3339。缺少时间时按行号递增秒数。
func ParseCSV(r io.Reader) ([]PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out []PricePoint
	line := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line+1, err)
		}
		line++
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		pt, err := parseRecord(rec, len(out))
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, pt)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("csv contains no prices")
	}
	return out, nil
}

func parseRecord(rec []string, idx int) (PricePoint, error) {
	priceField := rec[0]
	var ts time.Time
	if len(rec) >= 2 {
		priceField = rec[1]
		t, err := parseTimestamp(rec[0])
		if err != nil {
			return PricePoint{}, err
		}
		ts = t
	} else {
		ts = time.Unix(int64(idx), 0).UTC()
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(priceField), 64)
	if err != nil {
		return PricePoint{}, fmt.Errorf("invalid price %q", priceField)
	}
	if !validPrice(price) {
		return PricePoint{}, fmt.Errorf("price must be positive, got %v", price)
	}
	return PricePoint{Time: ts, Price: price}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

// Replay 依次返回预先加载的价格，读完后返回 ErrExhausted。
type Replay struct {
	mu     sync.Mutex
	points []PricePoint
	pos    int
}

func NewReplay(points []PricePoint) *Replay {
	return &Replay{points: points}
}

func (r *Replay) Name() string { return "replay" }

func (r *Replay) Price(ctx context.Context) (float64, error) {
	pt, err := r.Next()
	if err != nil {
		return 0, err
	}
	return pt.Price, nil
}

func (r *Replay) Next() (PricePoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.points) {
		return PricePoint{}, ErrExhausted
	}
	pt := r.points[r.pos]
	r.pos++
	return pt, nil
}

func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.points) - r.pos
}
