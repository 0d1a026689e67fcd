package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"marketsignal/internal/domain"
)

// Compile-time interface check.
var _ Replayer = (*Simulator)(nil)

// DefaultSizeFraction is the share of available margin a market order
// without an explicit quantity commits: "almost all of it".
const DefaultSizeFraction = 1 - 1e-10

// SimulatorOptions configures a Simulator.
type SimulatorOptions struct {
	Cash       float64
	Commission float64
	// ExclusiveOrders makes every new order cancel pending orders and close
	// the open position before it fills.
	ExclusiveOrders bool
}

// Simulator executes market orders against a replayed series of daily bars.
// Orders submitted while bar i is current fill at the open of bar i+1.
// Buys pay open*(1+commission), sells receive open*(1-commission), and
// positions are closed at the raw open. Cash changes only when positions
// close; equity is cash plus open PnL marked at the latest close.
//
// Simulator is not safe for concurrent use. Run one per backtest.
type Simulator struct {
	symbol string
	opts   SimulatorOptions
	log    *slog.Logger

	cash    float64
	lots    []domain.Position
	pending []*domain.Order
	trades  []domain.Trade
	nextID  int

	lastPrice float64
	lastTime  time.Time
}

// NewSimulator creates a Simulator for a single symbol.
func NewSimulator(symbol string, opts SimulatorOptions) *Simulator {
	return &Simulator{
		symbol: symbol,
		opts:   opts,
		log:    slog.Default().With("broker", "simulator", "symbol", symbol),
		cash:   opts.Cash,
	}
}

// Name returns "simulator".
func (s *Simulator) Name() string {
	return "simulator"
}

// SubmitOrder queues a market order for the next bar. Exactly one of Size
// (a fraction of available margin in (0, 1]) or Qty (whole units) may be
// set; when both are zero the default size fraction is used.
func (s *Simulator) SubmitOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	if order.Side != domain.OrderSideBuy && order.Side != domain.OrderSideSell {
		return nil, fmt.Errorf("%w: side %q", ErrInvalidOrder, order.Side)
	}
	if order.Type == "" {
		order.Type = domain.OrderTypeMarket
	}
	if order.Type != domain.OrderTypeMarket {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidOrder, order.Type)
	}
	switch {
	case order.Size != 0 && order.Qty != 0:
		return nil, fmt.Errorf("%w: both size and qty set", ErrInvalidOrder)
	case order.Size < 0 || order.Size > 1:
		return nil, fmt.Errorf("%w: size %v outside (0, 1]", ErrInvalidOrder, order.Size)
	case order.Qty < 0:
		return nil, fmt.Errorf("%w: qty %d", ErrInvalidOrder, order.Qty)
	case order.Size == 0 && order.Qty == 0:
		order.Size = DefaultSizeFraction
	}

	if s.opts.ExclusiveOrders {
		for _, p := range s.pending {
			p.Status = domain.OrderStatusCancelled
		}
		s.pending = s.pending[:0]
	}

	s.nextID++
	if order.ID == "" {
		order.ID = fmt.Sprintf("sim-%d", s.nextID)
	}
	if order.Symbol == "" {
		order.Symbol = s.symbol
	}
	order.Status = domain.OrderStatusNew
	order.CreatedAt = s.lastTime
	order.UpdatedAt = s.lastTime
	s.pending = append(s.pending, order)
	return order, nil
}

// GetPositions returns the net open position, if any.
func (s *Simulator) GetPositions(_ context.Context) ([]domain.Position, error) {
	pos, ok := s.position()
	if !ok {
		return []domain.Position{}, nil
	}
	return []domain.Position{pos}, nil
}

// GetAccount returns equity, cash and the margin still available for new
// orders, all marked at the latest close.
func (s *Simulator) GetAccount(_ context.Context) (*domain.AccountInfo, error) {
	equity := s.equity()
	return &domain.AccountInfo{
		Equity:      equity,
		Cash:        s.cash,
		BuyingPower: s.available(s.lastPrice, equity),
	}, nil
}

// ---------------------------------------------------------------------------
// Bar replay
// ---------------------------------------------------------------------------

// ProcessBar fills pending orders at the open of bar i and then marks the
// account at its close.
func (s *Simulator) ProcessBar(i int, bar domain.Bar) {
	queue := s.pending
	s.pending = nil
	for _, o := range queue {
		if o.Status != domain.OrderStatusNew {
			continue
		}
		s.fill(o, i, bar)
	}
	s.lastPrice = bar.Close
	s.lastTime = bar.Timestamp
}

// Finish cancels any pending orders and closes every open lot at the open
// of bar i. Equity then equals cash.
func (s *Simulator) Finish(i int, bar domain.Bar) {
	for _, o := range s.pending {
		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = bar.Timestamp
	}
	s.pending = nil
	s.closeAll(i, bar)
	s.lastPrice = bar.Open
	s.lastTime = bar.Timestamp
}

// equity returns cash plus the open PnL marked at the latest close.
func (s *Simulator) equity() float64 {
	equity := s.cash
	for _, lot := range s.lots {
		equity += lotPnL(lot, s.lastPrice)
	}
	return equity
}

// position returns the net open position. EntryPrice is the size-weighted
// average of the open lots.
func (s *Simulator) position() (domain.Position, bool) {
	if len(s.lots) == 0 {
		return domain.Position{}, false
	}
	first := s.lots[0]
	pos := domain.Position{
		Symbol:     s.symbol,
		Side:       first.Side,
		EntryTime:  first.EntryTime,
		EntryIndex: first.EntryIndex,
	}
	var notional float64
	for _, lot := range s.lots {
		pos.Qty += lot.Qty
		notional += float64(lot.Qty) * lot.EntryPrice
	}
	pos.EntryPrice = notional / float64(pos.Qty)
	return pos, true
}

// Trades returns the closed trades in the order they were closed.
func (s *Simulator) Trades() []domain.Trade {
	return s.trades
}

func (s *Simulator) fill(o *domain.Order, i int, bar domain.Bar) {
	if s.opts.ExclusiveOrders {
		s.closeAll(i, bar)
	}

	side := domain.PositionSideLong
	price := bar.Open * (1 + s.opts.Commission)
	if o.Side == domain.OrderSideSell {
		side = domain.PositionSideShort
		price = bar.Open * (1 - s.opts.Commission)
	}

	units := o.Qty
	if units == 0 {
		// Margin is valued at the open: the fill happens before the close
		// of this bar is known.
		s.lastPrice = bar.Open
		units = int64(math.Floor(s.available(bar.Open, s.equity()) * o.Size / price))
	}
	if units <= 0 {
		o.Status = domain.OrderStatusRejected
		o.UpdatedAt = bar.Timestamp
		s.log.Debug("order rejected: insufficient margin", "order", o.ID, "index", i)
		return
	}

	remaining := units
	for len(s.lots) > 0 && s.lots[0].Side != side && remaining > 0 {
		lot := &s.lots[0]
		if lot.Qty <= remaining {
			remaining -= lot.Qty
			s.closeLot(*lot, i, bar)
			s.lots = s.lots[1:]
			continue
		}
		part := *lot
		part.Qty = remaining
		s.closeLot(part, i, bar)
		lot.Qty -= remaining
		remaining = 0
	}
	if remaining > 0 {
		s.lots = append(s.lots, domain.Position{
			Symbol:     s.symbol,
			Qty:        remaining,
			Side:       side,
			EntryPrice: price,
			EntryTime:  bar.Timestamp,
			EntryIndex: i,
		})
	}

	o.Status = domain.OrderStatusFilled
	o.FilledQty = units
	o.FilledAvgPrice = price
	o.UpdatedAt = bar.Timestamp
	s.log.Debug("order filled", "order", o.ID, "side", o.Side, "qty", units, "price", price, "index", i)
}

func (s *Simulator) closeAll(i int, bar domain.Bar) {
	for _, lot := range s.lots {
		s.closeLot(lot, i, bar)
	}
	s.lots = nil
}

func (s *Simulator) closeLot(lot domain.Position, i int, bar domain.Bar) {
	exit := bar.Open
	pnl := lotPnL(lot, exit)
	ret := exit/lot.EntryPrice - 1
	if lot.Side == domain.PositionSideShort {
		ret = -ret
	}
	s.cash += pnl
	s.trades = append(s.trades, domain.Trade{
		Symbol:     s.symbol,
		Side:       lot.Side,
		Qty:        lot.Qty,
		EntryTime:  lot.EntryTime,
		ExitTime:   bar.Timestamp,
		EntryIndex: lot.EntryIndex,
		ExitIndex:  i,
		EntryPrice: lot.EntryPrice,
		ExitPrice:  exit,
		PnL:        pnl,
		ReturnPct:  ret,
	})
}

// available returns the equity not already committed to open lots.
func (s *Simulator) available(price, equity float64) float64 {
	var committed float64
	for _, lot := range s.lots {
		committed += float64(lot.Qty) * price
	}
	return max(0, equity-committed)
}

func lotPnL(lot domain.Position, price float64) float64 {
	if lot.Side == domain.PositionSideShort {
		return float64(lot.Qty) * (lot.EntryPrice - price)
	}
	return float64(lot.Qty) * (price - lot.EntryPrice)
}
