// Package store defines storage interfaces for the bar cache and the
// backtest run history, with Parquet, SQLite and no-op implementations.
package store

import (
	"context"
	"errors"
	"time"

	"marketsignal/internal/domain"
)

// ErrRunNotFound is returned when a run ID has no record.
var ErrRunNotFound = errors.New("run not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage for the given market.
	WriteBars(ctx context.Context, market string, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within
	// [start, end), ordered by timestamp.
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// RunStore persists backtest runs and their closed trades.
type RunStore interface {
	// SaveRun inserts the run and its trades and sets run.ID.
	SaveRun(ctx context.Context, run *domain.Run) error

	// ListRuns returns the most recent runs, newest first, optionally
	// filtered by symbol. A limit <= 0 returns every run.
	ListRuns(ctx context.Context, symbol string, limit int) ([]domain.Run, error)

	// GetRunTrades returns the trades recorded for a run.
	GetRunTrades(ctx context.Context, runID int64) ([]domain.Trade, error)

	// Close releases the underlying resources.
	Close() error
}

// OpenRunStore returns a SQLite-backed RunStore at path, or a no-op store
// when path is empty.
func OpenRunStore(path string) (RunStore, error) {
	if path == "" {
		return NoopRunStore{}, nil
	}
	return NewSQLiteStore(path)
}
