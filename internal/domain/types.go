// Package domain holds the plain data types shared across marketsignal:
// price bars, signals, orders, positions, closed trades, equity curves and
// backtest statistics.
package domain

import "time"

// Market identifies the exchange family a symbol trades on.
type Market string

const (
	MarketUS Market = "us"
)

// Bar is a single OHLCV bar.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Closes returns the close prices of bars in order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// SignalType is the direction a strategy asks the broker to take.
type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
)

// Signal is emitted by a strategy while processing a bar.
type Signal struct {
	ID         int64
	StrategyID string
	Symbol     string
	Type       SignalType
	Strength   float64
	Metadata   map[string]string
	CreatedAt  time.Time
}

// OrderSide is the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is a request to change a position. Size is a fraction of available
// equity in (0, 1); Qty is the number of whole units once filled.
type Order struct {
	ID             string
	Symbol         string
	Side           OrderSide
	Type           OrderType
	Status         OrderStatus
	Size           float64
	Qty            int64
	FilledQty      int64
	FilledAvgPrice float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Position is an open holding in a single symbol.
type Position struct {
	Symbol     string
	Qty        int64
	Side       PositionSide
	EntryPrice float64
	EntryTime  time.Time
	EntryIndex int
}

// AccountInfo is a snapshot of the account's financial metrics.
type AccountInfo struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
}

// Trade is a closed round trip.
type Trade struct {
	Symbol     string
	Side       PositionSide
	Qty        int64
	EntryTime  time.Time
	ExitTime   time.Time
	EntryIndex int
	ExitIndex  int
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	ReturnPct  float64
}

// Duration returns how long the trade was held.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp   time.Time
	Equity      float64
	DrawdownPct float64
}

// EquityValues returns the equity values of curve in order.
func EquityValues(curve []EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i := range curve {
		out[i] = curve[i].Equity
	}
	return out
}

// Stats is the fixed-shape summary of one backtest run. Percentages are
// expressed in percent (12.5 means 12.5%).
type Stats struct {
	Start               time.Time
	End                 time.Time
	Duration            time.Duration
	ExposureTimePct     float64
	EquityFinal         float64
	EquityPeak          float64
	ReturnPct           float64
	BuyAndHoldReturnPct float64
	ReturnAnnPct        float64
	VolatilityAnnPct    float64
	CAGRPct             float64
	SharpeRatio         float64
	SortinoRatio        float64
	CalmarRatio         float64
	MaxDrawdownPct      float64
	AvgDrawdownPct      float64
	MaxDrawdownDuration time.Duration
	AvgDrawdownDuration time.Duration
	NumTrades           int
	WinRatePct          float64
	BestTradePct        float64
	WorstTradePct       float64
	AvgTradePct         float64
	MaxTradeDuration    time.Duration
	AvgTradeDuration    time.Duration
	ProfitFactor        float64
	ExpectancyPct       float64
	SQN                 float64
}

// Run is a persisted backtest run.
type Run struct {
	ID         int64
	Strategy   string
	Symbol     string
	Source     string
	Start      time.Time
	End        time.Time
	Cash       float64
	Commission float64
	Stats      Stats
	Sharpe     float64
	Trades     []Trade
	CreatedAt  time.Time
}
