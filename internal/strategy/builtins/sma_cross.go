// Package builtins provides the crossover strategies that ship with
// marketsignal.
package builtins

import (
	"context"
	"fmt"

	"marketsignal/internal/domain"
	"marketsignal/internal/indicator"
	"marketsignal/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross buys when the fast simple moving average of the close crosses
// above the slow one and sells when it crosses below.
type SMACross struct {
	fastPeriod int
	slowPeriod int

	fast []float64
	slow []float64
}

// NewSMACross creates a new SMACross strategy with the given fast and slow
// moving average periods.
func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{
		fastPeriod: fast,
		slowPeriod: slow,
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Describe returns the strategy's parameters.
func (s *SMACross) Describe() string {
	return fmt.Sprintf("SMA(%d) crossing SMA(%d) on close", s.fastPeriod, s.slowPeriod)
}

// Init computes both moving averages over the closes.
func (s *SMACross) Init(_ context.Context, bars []domain.Bar) error {
	if s.fastPeriod >= s.slowPeriod {
		return fmt.Errorf("sma %w: fast %d must be below slow %d", indicator.ErrInvalidPeriod, s.fastPeriod, s.slowPeriod)
	}
	closes := domain.Closes(bars)
	var err error
	if s.fast, err = indicator.SMA(closes, s.fastPeriod); err != nil {
		return fmt.Errorf("fast %w", err)
	}
	if s.slow, err = indicator.SMA(closes, s.slowPeriod); err != nil {
		return fmt.Errorf("slow %w", err)
	}
	return nil
}

// Warmup returns the warm-up of the longer average.
func (s *SMACross) Warmup() int {
	return max(indicator.SMAWarmup(s.fastPeriod), indicator.SMAWarmup(s.slowPeriod))
}

// OnBar emits a buy on a fast-over-slow cross and a sell on the reverse.
func (s *SMACross) OnBar(_ context.Context, i int, bar domain.Bar) ([]domain.Signal, error) {
	return crossSignals(s.Name(), s.fast, s.slow, i, bar), nil
}

// crossSignals returns a buy when a crosses above b at i, a sell when b
// crosses above a, and nothing otherwise.
func crossSignals(name string, a, b []float64, i int, bar domain.Bar) []domain.Signal {
	meta := func() map[string]string {
		return map[string]string{
			"series1": fmt.Sprintf("%.4f", a[i]),
			"series2": fmt.Sprintf("%.4f", b[i]),
		}
	}
	switch {
	case indicator.Crossover(a, b, i):
		return []domain.Signal{strategy.NewSignal(name, bar, domain.SignalTypeBuy, meta())}
	case indicator.Crossover(b, a, i):
		return []domain.Signal{strategy.NewSignal(name, bar, domain.SignalTypeSell, meta())}
	}
	return nil
}
