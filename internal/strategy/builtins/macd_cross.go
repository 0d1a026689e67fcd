package builtins

import (
	"context"
	"fmt"

	"marketsignal/internal/domain"
	"marketsignal/internal/indicator"
	"marketsignal/internal/strategy"
)

var _ strategy.Strategy = (*MACDCross)(nil)

// MACDCross buys when the MACD line crosses above its signal line and sells
// when it crosses below.
type MACDCross struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int

	macd   []float64
	signal []float64
}

func NewMACDCross(fast, slow, signal int) *MACDCross {
	return &MACDCross{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

// Name returns "macd-cross".
func (m *MACDCross) Name() string {
	return "macd-cross"
}

func (m *MACDCross) Describe() string {
	return fmt.Sprintf("MACD(%d,%d) crossing its %d-period signal line on close",
		m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

// Init computes the MACD and signal lines over the closes.
func (m *MACDCross) Init(_ context.Context, bars []domain.Bar) error {
	out, err := indicator.ComputeMACD(domain.Closes(bars), m.fastPeriod, m.slowPeriod, m.signalPeriod)
	if err != nil {
		return err
	}
	m.macd, m.signal = out.MACD, out.Signal
	return nil
}

func (m *MACDCross) Warmup() int {
	return indicator.MACDWarmup(m.slowPeriod, m.signalPeriod)
}

// OnBar emits a buy on a MACD-over-signal cross and a sell on the reverse.
func (m *MACDCross) OnBar(_ context.Context, i int, bar domain.Bar) ([]domain.Signal, error) {
	return crossSignals(m.Name(), m.macd, m.signal, i, bar), nil
}
