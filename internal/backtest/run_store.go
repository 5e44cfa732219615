package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"solbot/internal/analysis/performance"
	"solbot/internal/ledger"
	"solbot/internal/types"
)

var ErrRunNotFound = errors.New("backtest run not found")

// Run 是 backtest_runs 表中的一行摘要。
type Run struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	Source         string    `json:"source"`
	StartTS        int64     `json:"start_ts"`
	EndTS          int64     `json:"end_ts"`
	Points         int       `json:"points"`
	StartingCash   float64   `json:"starting_cash"`
	FinalValue     float64   `json:"final_value"`
	Profit         float64   `json:"profit"`
	ReturnPct      float64   `json:"return_pct"`
	WinRate        float64   `json:"win_rate"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	Trades         int       `json:"trades"`
	Config         RunConfig `json:"config"`
	Stats          RunStats  `json:"stats"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// ResultStore 管理 runs.db 中的 backtest_runs/fills/equity 表。
type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewResultStore(root string) (*ResultStore, error) {
	if root == "" {
		return nil, fmt.Errorf("result store root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureResultSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Path() string { return s.path }

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureResultSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			start_ts INTEGER NOT NULL,
			end_ts INTEGER NOT NULL,
			points INTEGER NOT NULL DEFAULT 0,
			starting_cash REAL NOT NULL,
			final_value REAL NOT NULL DEFAULT 0,
			profit REAL NOT NULL DEFAULT 0,
			return_pct REAL NOT NULL DEFAULT 0,
			win_rate REAL NOT NULL DEFAULT 0,
			max_drawdown REAL NOT NULL DEFAULT 0,
			trades INTEGER NOT NULL DEFAULT 0,
			config_json TEXT NOT NULL,
			stats_json TEXT,
			message TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_fills (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			fill_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			side TEXT NOT NULL,
			amount REAL NOT NULL,
			fill_price REAL NOT NULL,
			mark_price REAL NOT NULL,
			fee REAL NOT NULL,
			slippage_pct REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			ts INTEGER NOT NULL,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_equity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			total_value REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			unrealized_pnl REAL NOT NULL,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fills_run ON backtest_fills(run_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_equity_run ON backtest_equity(run_id, ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveResult 在一个事务内写入 run、成交与净值曲线。
func (s *ResultStore) SaveResult(ctx context.Context, res *Result) (err error) {
	if res == nil {
		return fmt.Errorf("result 不能为空")
	}
	cfgJSON, err := json.Marshal(res.Config)
	if err != nil {
		return err
	}
	statsJSON, err := json.Marshal(res.Stats)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return sql.ErrConnDone
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, name, status, source, start_ts, end_ts, points, starting_cash, final_value, profit,
			 return_pct, win_rate, max_drawdown, trades, config_json, stats_json, message, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Name, res.Status, res.Config.Source, millis(res.PeriodStart), millis(res.PeriodEnd), res.Points,
		res.Stats.StartingCash, res.Stats.FinalValue, res.Stats.Profit, res.Stats.ReturnPct, res.Stats.WinRatePct,
		res.Stats.MaxDrawdownPct, res.Stats.Trades, string(cfgJSON), string(statsJSON), "",
		millis(res.StartedAt), nullableTime(res.FinishedAt))
	if err != nil {
		return err
	}
	for _, f := range res.Fills {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO backtest_fills
				(run_id, fill_id, seq, side, amount, fill_price, mark_price, fee, slippage_pct, realized_pnl, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, f.ID, f.Seq, string(f.Side), f.Amount, f.FillPrice, f.MarkPrice, f.Fee,
			f.SlippagePct, f.RealizedPnL, millis(f.Timestamp)); err != nil {
			return err
		}
	}
	for _, e := range res.Equity {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO backtest_equity (run_id, ts, total_value, realized_pnl, unrealized_pnl)
			VALUES (?, ?, ?, ?, ?)`,
			res.RunID, millis(e.Time), e.TotalValue, e.RealizedPnL, e.UnrealizedPnL); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const runColumns = `id, name, status, source, start_ts, end_ts, points, starting_cash, final_value, profit,
	return_pct, win_rate, max_drawdown, trades, config_json, stats_json, message, created_at, completed_at`

func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM backtest_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE id=?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

func (s *ResultStore) ListFills(ctx context.Context, runID string) ([]ledger.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fill_id, seq, side, amount, fill_price, mark_price, fee, slippage_pct, realized_pnl, ts
		FROM backtest_fills WHERE run_id=? ORDER BY seq ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Fill
	for rows.Next() {
		var f ledger.Fill
		var side string
		var ts int64
		if err := rows.Scan(&f.ID, &f.Seq, &side, &f.Amount, &f.FillPrice, &f.MarkPrice, &f.Fee,
			&f.SlippagePct, &f.RealizedPnL, &ts); err != nil {
			return nil, err
		}
		f.Side = types.Side(side)
		f.Simulated = true
		f.Timestamp = timeFromMillis(ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *ResultStore) ListEquity(ctx context.Context, runID string) ([]performance.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, total_value, realized_pnl, unrealized_pnl
		FROM backtest_equity WHERE run_id=? ORDER BY ts ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []performance.EquityPoint
	for rows.Next() {
		var p performance.EquityPoint
		var ts int64
		if err := rows.Scan(&ts, &p.TotalValue, &p.RealizedPnL, &p.UnrealizedPnL); err != nil {
			return nil, err
		}
		p.Time = timeFromMillis(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteRun 依赖外键级联删除成交与净值。
func (s *ResultStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var cfgStr string
	var statsStr sql.NullString
	var createdAt int64
	var completedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.Name, &run.Status, &run.Source, &run.StartTS, &run.EndTS, &run.Points,
		&run.StartingCash, &run.FinalValue, &run.Profit, &run.ReturnPct, &run.WinRate, &run.MaxDrawdownPct,
		&run.Trades, &cfgStr, &statsStr, &run.Message, &createdAt, &completedAt); err != nil {
		return Run{}, err
	}
	run.CreatedAt = timeFromMillis(createdAt)
	if completedAt.Valid {
		run.CompletedAt = timeFromMillis(completedAt.Int64)
	}
	if err := json.Unmarshal([]byte(cfgStr), &run.Config); err != nil {
		return Run{}, err
	}
	if statsStr.Valid && statsStr.String != "" {
		if err := json.Unmarshal([]byte(statsStr.String), &run.Stats); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func timeFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
