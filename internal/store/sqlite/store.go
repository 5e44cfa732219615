package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"solbot/internal/store"
	"solbot/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SqliteStore struct {
	db *gorm.DB
}

var _ store.Store = (*SqliteStore)(nil)

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newSqliteStore(db)
}

func NewSqliteStoreFromDB(db *gorm.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	models := []interface{}{
		&model.PriceRecord{},
		&model.FillRecord{},
		&model.SnapshotRecord{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormUnitOfWork{tx: tx}, nil
}

func (s *SqliteStore) Prices() store.PriceRepository { return NewPriceRepo(s.db) }

func (s *SqliteStore) Fills() store.FillRepository { return NewFillRepo(s.db) }

func (s *SqliteStore) Snapshots() store.SnapshotRepository { return NewSnapshotRepo(s.db) }

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Statistics 汇总三张表的行数、时间范围与价格区间。
func (s *SqliteStore) Statistics(ctx context.Context) (store.Statistics, error) {
	var out store.Statistics
	db := s.db.WithContext(ctx)
	var err error
	if out.Prices, err = tableStats(db, model.PriceRecord{}.TableName()); err != nil {
		return out, err
	}
	if out.Fills, err = tableStats(db, model.FillRecord{}.TableName()); err != nil {
		return out, err
	}
	if out.Snapshots, err = tableStats(db, model.SnapshotRecord{}.TableName()); err != nil {
		return out, err
	}
	var prices struct {
		MinPrice float64
		MaxPrice float64
		AvgPrice float64
	}
	if err := db.Model(&model.PriceRecord{}).
		Select("COALESCE(MIN(price),0) AS min_price, COALESCE(MAX(price),0) AS max_price, COALESCE(AVG(price),0) AS avg_price").
		Scan(&prices).Error; err != nil {
		return out, err
	}
	out.MinPrice, out.MaxPrice, out.AvgPrice = prices.MinPrice, prices.MaxPrice, prices.AvgPrice
	if err := db.Model(&model.FillRecord{}).Where("simulation = ?", true).Count(&out.SimFills).Error; err != nil {
		return out, err
	}
	if err := db.Model(&model.FillRecord{}).Where("simulation = ?", false).Count(&out.LiveFills).Error; err != nil {
		return out, err
	}
	return out, nil
}

func tableStats(db *gorm.DB, table string) (store.TableStats, error) {
	var row struct {
		RowCount int64
		FirstTs  int64
		LastTs   int64
	}
	err := db.Table(table).
		Select("COUNT(*) AS row_count, COALESCE(MIN(ts),0) AS first_ts, COALESCE(MAX(ts),0) AS last_ts").
		Scan(&row).Error
	if err != nil {
		return store.TableStats{}, err
	}
	out := store.TableStats{Rows: row.RowCount}
	if row.RowCount > 0 {
		out.First = time.UnixMilli(row.FirstTs).UTC()
		out.Last = time.UnixMilli(row.LastTs).UTC()
	}
	return out, nil
}

// Cleanup 删除 before 之前的记录，返回删除的总行数。
func (s *SqliteStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UnixMilli()
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&model.PriceRecord{}, &model.FillRecord{}, &model.SnapshotRecord{}} {
			res := tx.Where("ts < ?", cutoff).Delete(m)
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

type gormUnitOfWork struct {
	tx *gorm.DB
}

func (u *gormUnitOfWork) Prices() store.PriceRepository { return NewPriceRepo(u.tx) }

func (u *gormUnitOfWork) Fills() store.FillRepository { return NewFillRepo(u.tx) }

func (u *gormUnitOfWork) Snapshots() store.SnapshotRepository { return NewSnapshotRepo(u.tx) }

func (u *gormUnitOfWork) Commit() error {
	return u.tx.Commit().Error
}

func (u *gormUnitOfWork) Rollback() error {
	return u.tx.Rollback().Error
}
