package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"marketsignal/internal/broker"
	"marketsignal/internal/domain"
	"marketsignal/internal/metrics"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrNoBars          = errors.New("no bars")
	ErrNotEnoughBars   = errors.New("not enough bars for strategy warm-up")
)

// BacktestConfig holds the simulated account parameters.
type BacktestConfig struct {
	Cash            float64
	Commission      float64
	ExclusiveOrders bool
	// SizeFraction is the share of available margin each signal commits.
	// Zero means broker.DefaultSizeFraction.
	SizeFraction   float64
	PeriodsPerYear float64
}

// DefaultBacktestConfig returns 10,000 cash, 0.2% commission, exclusive
// orders and daily annualization.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		Cash:            10000,
		Commission:      0.002,
		ExclusiveOrders: true,
		PeriodsPerYear:  metrics.TradingDaysPerYear,
	}
}

// BacktestResult holds everything produced by one backtest run.
type BacktestResult struct {
	Strategy    string
	Symbol      string
	Stats       domain.Stats
	Equity      []domain.EquityPoint
	Trades      []domain.Trade
	Signals     []domain.Signal
	SharpeRatio float64
}

// BrokerFactory creates the broker a single backtest run trades through.
type BrokerFactory func(symbol string, cfg BacktestConfig) broker.Replayer

// SimulatorFactory is the default BrokerFactory.
func SimulatorFactory(symbol string, cfg BacktestConfig) broker.Replayer {
	return broker.NewSimulator(symbol, broker.SimulatorOptions{
		Cash:            cfg.Cash,
		Commission:      cfg.Commission,
		ExclusiveOrders: cfg.ExclusiveOrders,
	})
}

// Backtester replays historical bar data through a strategy and computes
// performance metrics. It is safe for concurrent use as long as each call
// to RunBars gets its own Strategy.
type Backtester struct {
	cfg       BacktestConfig
	newBroker BrokerFactory
	log       *slog.Logger
}

// NewBacktester creates a Backtester that trades through a fresh simulator
// per run. A nil factory means SimulatorFactory.
func NewBacktester(cfg BacktestConfig, factory BrokerFactory) *Backtester {
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = metrics.TradingDaysPerYear
	}
	if factory == nil {
		factory = SimulatorFactory
	}
	return &Backtester{
		cfg:       cfg,
		newBroker: factory,
		log:       slog.Default().With("component", "backtester"),
	}
}

// RunBars replays bars through s. Orders from bar i fill at the open of bar
// i+1; equity is recorded on every bar, and any position still open after
// the last bar is closed at that bar's open.
func (bt *Backtester) RunBars(ctx context.Context, s Strategy, bars []domain.Bar) (*BacktestResult, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	if err := s.Init(ctx, bars); err != nil {
		return nil, fmt.Errorf("init %s: %w", s.Name(), err)
	}
	warmup := s.Warmup()
	if len(bars) < warmup+2 {
		return nil, fmt.Errorf("%w: %s needs %d bars, have %d", ErrNotEnoughBars, s.Name(), warmup+2, len(bars))
	}
	first := warmup + 1

	symbol := bars[0].Symbol
	b := bt.newBroker(symbol, bt.cfg)
	log := bt.log.With("strategy", s.Name(), "symbol", symbol, "broker", b.Name())
	log.Debug("backtest started", "bars", len(bars), "first_bar", first)

	res := &BacktestResult{
		Strategy: s.Name(),
		Symbol:   symbol,
		Equity:   make([]domain.EquityPoint, len(bars)),
	}
	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.ProcessBar(i, bar)
		equity, err := accountEquity(ctx, b)
		if err != nil {
			return nil, err
		}
		res.Equity[i] = domain.EquityPoint{Timestamp: bar.Timestamp, Equity: equity}
		if i < first {
			continue
		}
		signals, err := s.OnBar(ctx, i, bar)
		if err != nil {
			return nil, fmt.Errorf("%s on bar %d: %w", s.Name(), i, err)
		}
		for _, sig := range signals {
			if _, err := b.SubmitOrder(ctx, bt.orderFor(sig)); err != nil {
				return nil, fmt.Errorf("%s on bar %d: %w", s.Name(), i, err)
			}
		}
		res.Signals = append(res.Signals, signals...)
	}
	last := len(bars) - 1
	if open, err := b.GetPositions(ctx); err == nil {
		for _, p := range open {
			log.Debug("closing position at end of data", "side", p.Side, "qty", p.Qty, "entry_index", p.EntryIndex)
		}
	}
	b.Finish(last, bars[last])
	final, err := accountEquity(ctx, b)
	if err != nil {
		return nil, err
	}
	res.Equity[last].Equity = final

	equity := domain.EquityValues(res.Equity)
	for i, dd := range metrics.Drawdowns(equity) {
		res.Equity[i].DrawdownPct = dd
	}
	res.Trades = b.Trades()
	res.Stats = metrics.Compute(bars, res.Equity, res.Trades, bt.cfg.PeriodsPerYear)
	res.SharpeRatio = metrics.SharpeRatio(equity, bt.cfg.PeriodsPerYear)

	log.Info("backtest finished",
		"trades", len(res.Trades),
		"equity_final", res.Stats.EquityFinal,
		"return_pct", res.Stats.ReturnPct,
		"sharpe", res.SharpeRatio,
	)
	return res, nil
}

func accountEquity(ctx context.Context, b broker.Broker) (float64, error) {
	acct, err := b.GetAccount(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s account: %w", b.Name(), err)
	}
	return acct.Equity, nil
}

func (bt *Backtester) orderFor(sig domain.Signal) *domain.Order {
	side := domain.OrderSideBuy
	if sig.Type == domain.SignalTypeSell {
		side = domain.OrderSideSell
	}
	return &domain.Order{
		Symbol: sig.Symbol,
		Side:   side,
		Type:   domain.OrderTypeMarket,
		Size:   bt.cfg.SizeFraction,
	}
}
