package builtins

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsignal/internal/domain"
	"marketsignal/internal/indicator"
	"marketsignal/internal/strategy"
)

func barsFromCloses(closes []float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: "TEST", Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

// signalsByIndex runs s over bars the way the backtester does and collects
// the signals it emits.
func signalsByIndex(t *testing.T, s strategy.Strategy, bars []domain.Bar) map[int]domain.SignalType {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx, bars))
	out := make(map[int]domain.SignalType)
	for i := s.Warmup() + 1; i < len(bars); i++ {
		sigs, err := s.OnBar(ctx, i, bars[i])
		require.NoError(t, err)
		for _, sig := range sigs {
			out[i] = sig.Type
		}
	}
	return out
}

func TestSMACross(t *testing.T) {
	t.Parallel()
	bars := barsFromCloses([]float64{5, 4, 3, 2, 3, 4, 5, 4, 3, 2})
	s := NewSMACross(2, 3)
	assert.Equal(t, "sma-cross", s.Name())
	assert.Equal(t, 2, s.Warmup())

	got := signalsByIndex(t, s, bars)
	assert.Equal(t, map[int]domain.SignalType{
		5: domain.SignalTypeBuy,
		8: domain.SignalTypeSell,
	}, got)
}

func TestSMACrossSignalFields(t *testing.T) {
	t.Parallel()
	bars := barsFromCloses([]float64{5, 4, 3, 2, 3, 4, 5, 4, 3, 2})
	s := NewSMACross(2, 3)
	require.NoError(t, s.Init(context.Background(), bars))

	sigs, err := s.OnBar(context.Background(), 5, bars[5])
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "sma-cross", sigs[0].StrategyID)
	assert.Equal(t, "TEST", sigs[0].Symbol)
	assert.Equal(t, bars[5].Timestamp, sigs[0].CreatedAt)
	assert.Equal(t, "3.5000", sigs[0].Metadata["series1"])
}

func TestSMACrossInitNotEnoughBars(t *testing.T) {
	t.Parallel()
	err := NewSMACross(10, 20).Init(context.Background(), barsFromCloses(make([]float64, 15)))
	assert.ErrorIs(t, err, indicator.ErrNotEnoughData)
}

func TestSMACrossInitPeriodOrder(t *testing.T) {
	t.Parallel()
	err := NewSMACross(20, 10).Init(context.Background(), barsFromCloses(make([]float64, 40)))
	assert.ErrorIs(t, err, indicator.ErrInvalidPeriod)
}

func TestMACDCross(t *testing.T) {
	t.Parallel()
	// Accelerating decline followed by a sharp rally.
	closes := make([]float64, 80)
	for i := range closes {
		if i < 40 {
			closes[i] = 200 - 0.05*float64(i*i)
		} else {
			closes[i] = closes[39] + 3*float64(i-39)
		}
	}
	s := NewMACDCross(12, 26, 9)
	assert.Equal(t, "macd-cross", s.Name())
	assert.Equal(t, 33, s.Warmup())

	got := signalsByIndex(t, s, barsFromCloses(closes))
	var rallyBuy bool
	for i, typ := range got {
		assert.Greater(t, i, s.Warmup())
		if i >= 40 && typ == domain.SignalTypeBuy {
			rallyBuy = true
		}
	}
	assert.True(t, rallyBuy, "expected a buy after the reversal, got %v", got)
}

func TestMACDCrossInitErrors(t *testing.T) {
	t.Parallel()
	err := NewMACDCross(12, 26, 9).Init(context.Background(), barsFromCloses(make([]float64, 30)))
	assert.ErrorIs(t, err, indicator.ErrNotEnoughData)
	err = NewMACDCross(26, 12, 9).Init(context.Background(), barsFromCloses(make([]float64, 60)))
	assert.ErrorIs(t, err, indicator.ErrInvalidPeriod)
}

func TestRegister(t *testing.T) {
	t.Parallel()
	r := strategy.NewRegistry()
	Register(r, DefaultParams())
	assert.Equal(t, []string{"macd-cross", "sma-cross"}, r.List())

	s, ok := r.Get("sma-cross")
	require.True(t, ok)
	d, ok := s.(strategy.Describer)
	require.True(t, ok)
	assert.Equal(t, "SMA(10) crossing SMA(20) on close", d.Describe())
}

func TestSMACrossBacktest(t *testing.T) {
	t.Parallel()
	bars := barsFromCloses([]float64{5, 4, 3, 2, 3, 4, 5, 4, 3, 2})
	cfg := strategy.DefaultBacktestConfig()
	cfg.Commission = 0
	bt := strategy.NewBacktester(cfg, nil)

	res, err := bt.RunBars(context.Background(), NewSMACross(2, 3), bars)
	require.NoError(t, err)
	require.Len(t, res.Equity, len(bars))
	require.Len(t, res.Trades, 2)
	// Buy on bar 5 fills at bar 6; sell on bar 8 reverses at bar 9.
	assert.Equal(t, 6, res.Trades[0].EntryIndex)
	assert.Equal(t, 9, res.Trades[0].ExitIndex)
	assert.Equal(t, domain.PositionSideShort, res.Trades[1].Side)
}
