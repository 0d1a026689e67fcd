// Package indicator wraps the gct-ta technical-analysis routines with input
// validation and provides the crossover test used by the strategies.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"github.com/thrasher-corp/gct-ta/indicators"
)

var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrNoData        = errors.New("no data")
	ErrNotEnoughData = errors.New("not enough data to derive signal")
)

// MACD holds the three MACD output series, aligned with the input.
type MACD struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// SMAWarmup returns the number of leading undefined values an SMA of the
// given period produces.
func SMAWarmup(period int) int {
	return period - 1
}

// MACDWarmup returns the number of leading undefined values of the MACD
// signal line.
func MACDWarmup(slow, signal int) int {
	return slow + signal - 2
}

// SMA returns the simple moving average of values over period. Leading
// values before the first full window are undefined.
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sma %w", ErrInvalidPeriod)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("sma %w", ErrNoData)
	}
	if len(values) < period {
		return nil, fmt.Errorf("sma %w: %d values, period %d", ErrNotEnoughData, len(values), period)
	}
	out := indicators.SMA(values, period)
	blankWarmup(out, SMAWarmup(period))
	return out, nil
}

// ComputeMACD returns the MACD line, signal line and histogram of values.
func ComputeMACD(values []float64, fast, slow, signal int) (*MACD, error) {
	if fast <= 0 {
		return nil, fmt.Errorf("macd %w fast", ErrInvalidPeriod)
	}
	if slow <= 0 {
		return nil, fmt.Errorf("macd %w slow", ErrInvalidPeriod)
	}
	if signal <= 0 {
		return nil, fmt.Errorf("macd %w signal", ErrInvalidPeriod)
	}
	if fast >= slow {
		return nil, fmt.Errorf("macd %w: fast %d must be below slow %d", ErrInvalidPeriod, fast, slow)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("macd %w", ErrNoData)
	}
	warmup := MACDWarmup(slow, signal)
	if len(values) <= warmup {
		return nil, fmt.Errorf("macd %w: %d values, need more than %d (slow %d + signal %d - 2)",
			ErrNotEnoughData, len(values), warmup, slow, signal)
	}

	var m MACD
	m.MACD, m.Signal, m.Histogram = indicators.MACD(values, fast, slow, signal)
	blankWarmup(m.MACD, warmup)
	blankWarmup(m.Signal, warmup)
	blankWarmup(m.Histogram, warmup)
	return &m, nil
}

// Crossover reports whether a crossed above b between index i-1 and i.
// Both comparisons are strict, so touching without crossing is not a cross,
// and any NaN involved yields false.
func Crossover(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}
	return a[i-1] < b[i-1] && a[i] > b[i]
}

// blankWarmup marks the first n values as undefined. gct-ta zero-fills them,
// which would otherwise read as real crossings around zero.
func blankWarmup(series []float64, n int) {
	for i := 0; i < n && i < len(series); i++ {
		series[i] = math.NaN()
	}
}
