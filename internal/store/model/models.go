package model

import (
	"time"

	"gorm.io/datatypes"
)

// PriceRecord 是每个 tick 解析出的价格。
type PriceRecord struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID string         `gorm:"column:session_id;index" json:"session_id"`
	Timestamp int64          `gorm:"column:ts;index" json:"ts"` // unix 毫秒
	Price     float64        `gorm:"column:price" json:"price"`
	Source    string         `gorm:"column:source" json:"source"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:TEXT" json:"metadata,omitempty"`
	CreatedAt int64          `gorm:"column:created_at;autoCreateTime:milli" json:"created_at"`
}

func (PriceRecord) TableName() string { return "price_data" }

func (r PriceRecord) Time() time.Time { return time.UnixMilli(r.Timestamp) }

// FillRecord 是账本提交的一笔成交。
type FillRecord struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FillID      string         `gorm:"column:fill_id;uniqueIndex" json:"fill_id"`
	SessionID   string         `gorm:"column:session_id;index" json:"session_id"`
	Seq         int            `gorm:"column:seq" json:"seq"`
	Timestamp   int64          `gorm:"column:ts;index" json:"ts"`
	Side        string         `gorm:"column:side" json:"side"`
	Intent      string         `gorm:"column:intent" json:"intent"`
	Amount      float64        `gorm:"column:amount_sol" json:"amount_sol"`
	FillPrice   float64        `gorm:"column:fill_price" json:"fill_price"`
	MarkPrice   float64        `gorm:"column:mark_price" json:"mark_price"`
	Value       float64        `gorm:"column:value_quote" json:"value_quote"`
	Fee         float64        `gorm:"column:fee" json:"fee"`
	SlippagePct float64        `gorm:"column:slippage_pct" json:"slippage_pct"`
	RealizedPnL float64        `gorm:"column:realized_pnl" json:"realized_pnl"`
	Simulated   bool           `gorm:"column:simulation" json:"simulation"`
	TotalBefore float64        `gorm:"column:portfolio_value_before" json:"portfolio_value_before"`
	TotalAfter  float64        `gorm:"column:portfolio_value_after" json:"portfolio_value_after"`
	Metadata    datatypes.JSON `gorm:"column:metadata;type:TEXT" json:"metadata,omitempty"`
	CreatedAt   int64          `gorm:"column:created_at;autoCreateTime:milli" json:"created_at"`
}

func (FillRecord) TableName() string { return "trade_data" }

func (r FillRecord) Time() time.Time { return time.UnixMilli(r.Timestamp) }

// SnapshotRecord 是账本视图的定期快照。
type SnapshotRecord struct {
	ID             int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID      string         `gorm:"column:session_id;index" json:"session_id"`
	Timestamp      int64          `gorm:"column:ts;index" json:"ts"`
	CashBalance    float64        `gorm:"column:cash_balance" json:"cash_balance"`
	PositionAmount float64        `gorm:"column:position_sol" json:"position_sol"`
	EntryPrice     float64        `gorm:"column:entry_price" json:"entry_price"`
	MarkPrice      float64        `gorm:"column:mark_price" json:"mark_price"`
	TotalValue     float64        `gorm:"column:total_value" json:"total_value"`
	PeakTotalValue float64        `gorm:"column:peak_total_value" json:"peak_total_value"`
	RealizedPnL    float64        `gorm:"column:realized_pnl" json:"realized_pnl"`
	UnrealizedPnL  float64        `gorm:"column:unrealized_pnl" json:"unrealized_pnl"`
	FeesPaid       float64        `gorm:"column:fees_paid" json:"fees_paid"`
	DrawdownPct    float64        `gorm:"column:drawdown_pct" json:"drawdown_pct"`
	Simulated      bool           `gorm:"column:simulation" json:"simulation"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:TEXT" json:"metadata,omitempty"`
	CreatedAt      int64          `gorm:"column:created_at;autoCreateTime:milli" json:"created_at"`
}

func (SnapshotRecord) TableName() string { return "portfolio_snapshots" }

func (r SnapshotRecord) Time() time.Time { return time.UnixMilli(r.Timestamp) }
