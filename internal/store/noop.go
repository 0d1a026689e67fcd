package store

import (
	"context"

	"marketsignal/internal/domain"
)

var _ RunStore = NoopRunStore{}

// NoopRunStore discards runs. It is used when no database is configured.
type NoopRunStore struct{}

func (NoopRunStore) SaveRun(context.Context, *domain.Run) error { return nil }

func (NoopRunStore) ListRuns(context.Context, string, int) ([]domain.Run, error) { return nil, nil }

func (NoopRunStore) GetRunTrades(_ context.Context, runID int64) ([]domain.Trade, error) {
	return nil, ErrRunNotFound
}

func (NoopRunStore) Close() error { return nil }
