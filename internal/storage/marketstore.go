package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dyike/DexterGo/internal/models"
)

// MarketStore persists ingested market data. It implements the ingest sink:
// batches arrive already sized, so every flush is one transaction.
type MarketStore struct {
	db *sql.DB
}

func NewMarketStore(dbPath string) (*MarketStore, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	s := &MarketStore{db: db}
	if err := s.initTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MarketStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *MarketStore) initTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			symbol TEXT NOT NULL,
			price TEXT NOT NULL,
			open TEXT,
			high TEXT,
			low TEXT,
			prev_close TEXT,
			volume INTEGER,
			quality TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			PRIMARY KEY (symbol, timestamp)
		);`,
		`CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			date DATETIME NOT NULL,
			open TEXT,
			high TEXT,
			low TEXT,
			close TEXT,
			adj_close TEXT,
			volume INTEGER,
			PRIMARY KEY (symbol, date)
		);`,
		`CREATE TABLE IF NOT EXISTS instruments (
			symbol TEXT PRIMARY KEY,
			name TEXT,
			exchange TEXT,
			currency TEXT,
			lot_size INTEGER
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init market tables: %w", err)
		}
	}
	return nil
}

func (s *MarketStore) FlushQuotes(ctx context.Context, quotes []*models.Quote) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO quotes
				(symbol, price, open, high, low, prev_close, volume, quality, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, q := range quotes {
			if _, err := stmt.ExecContext(ctx, q.Symbol, q.Price.String(),
				q.Open.String(), q.High.String(), q.Low.String(),
				q.PrevClose.String(), q.Volume, string(q.Quality), q.Timestamp); err != nil {
				return fmt.Errorf("insert quote %s: %w", q.Symbol, err)
			}
		}
		return nil
	})
}

func (s *MarketStore) FlushBars(ctx context.Context, bars []*models.Bar) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO bars
				(symbol, date, open, high, low, close, adj_close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx, b.Symbol, b.Date, b.Open.String(),
				b.High.String(), b.Low.String(), b.Close.String(),
				b.AdjClose.String(), b.Volume); err != nil {
				return fmt.Errorf("insert bar %s@%s: %w", b.Symbol, b.Date, err)
			}
		}
		return nil
	})
}

func (s *MarketStore) FlushInfos(ctx context.Context, infos []*models.BasicInfo) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO instruments
				(symbol, name, exchange, currency, lot_size)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, info := range infos {
			if _, err := stmt.ExecContext(ctx, info.Symbol, info.Name,
				info.Exchange, info.Currency, info.LotSize); err != nil {
				return fmt.Errorf("insert instrument %s: %w", info.Symbol, err)
			}
		}
		return nil
	})
}

// BarCount reports stored bars for a symbol, mostly for ingest verification.
func (s *MarketStore) BarCount(ctx context.Context, symbol string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bars WHERE symbol = ?`, symbol).Scan(&n)
	return n, err
}

func (s *MarketStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
