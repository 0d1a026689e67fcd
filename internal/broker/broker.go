// Package broker defines the Broker interface and the bar-replay simulator
// used to execute backtest orders.
package broker

import (
	"context"
	"errors"

	"marketsignal/internal/domain"
)

var ErrInvalidOrder = errors.New("invalid order")

// Broker abstracts order execution and account state.
type Broker interface {
	// Name returns the broker identifier (e.g. "simulator").
	Name() string

	// SubmitOrder queues an order for execution.
	SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)

	// GetPositions returns all currently open positions.
	GetPositions(ctx context.Context) ([]domain.Position, error)

	// GetAccount returns a snapshot of the account's financial metrics.
	GetAccount(ctx context.Context) (*domain.AccountInfo, error)
}

// Replayer is a Broker driven one historical bar at a time.
type Replayer interface {
	Broker

	// ProcessBar fills pending orders against bar i and marks the account
	// at its close.
	ProcessBar(i int, bar domain.Bar)

	// Finish cancels pending orders and closes every open position at the
	// open of bar i.
	Finish(i int, bar domain.Bar)

	// Trades returns the closed trades in the order they were closed.
	Trades() []domain.Trade
}
