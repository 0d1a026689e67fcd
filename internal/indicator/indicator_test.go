package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestSMA(t *testing.T) {
	t.Parallel()
	out, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestSMAErrors(t *testing.T) {
	t.Parallel()
	_, err := SMA([]float64{1, 2}, 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = SMA(nil, 3)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = SMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestComputeMACD(t *testing.T) {
	t.Parallel()
	values := ramp(60)
	m, err := ComputeMACD(values, 12, 26, 9)
	require.NoError(t, err)
	require.Len(t, m.MACD, len(values))
	require.Len(t, m.Signal, len(values))
	require.Len(t, m.Histogram, len(values))

	warmup := MACDWarmup(26, 9)
	assert.Equal(t, 33, warmup)
	for i := 0; i < warmup; i++ {
		assert.Truef(t, math.IsNaN(m.Signal[i]), "signal[%d] should be undefined", i)
	}
	for i := warmup; i < len(values); i++ {
		assert.Falsef(t, math.IsNaN(m.Signal[i]), "signal[%d] should be defined", i)
	}
	// A steadily rising input keeps the fast EMA above the slow one.
	assert.Greater(t, m.MACD[len(values)-1], 0.0)
}

func TestComputeMACDErrors(t *testing.T) {
	t.Parallel()
	_, err := ComputeMACD(ramp(60), 0, 26, 9)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = ComputeMACD(ramp(60), 12, 0, 9)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = ComputeMACD(ramp(60), 12, 26, 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	// gct-ta returns nil lines for a fast period above the slow one.
	m, err := ComputeMACD(ramp(60), 26, 12, 9)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	assert.Nil(t, m)
	_, err = ComputeMACD(ramp(60), 12, 12, 9)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = ComputeMACD(nil, 12, 26, 9)
	assert.ErrorIs(t, err, ErrNoData)
	_, err = ComputeMACD(ramp(33), 12, 26, 9)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestCrossover(t *testing.T) {
	t.Parallel()
	a := []float64{1, 3, 4, 2, 5}
	b := []float64{2, 2, 3, 3, 4}

	assert.False(t, Crossover(a, b, 0), "no previous sample")
	assert.True(t, Crossover(a, b, 1), "1<2 then 3>2")
	assert.False(t, Crossover(a, b, 2), "already above")
	assert.False(t, Crossover(a, b, 3), "falling below")
	assert.True(t, Crossover(b, a, 3), "reverse cross is detected on the swapped pair")
	assert.True(t, Crossover(a, b, 4))
	assert.False(t, Crossover(a, b, 5), "out of range")
}

func TestCrossoverTouching(t *testing.T) {
	t.Parallel()
	assert.False(t, Crossover([]float64{1, 2}, []float64{2, 2}, 1), "rising to equal")
	assert.False(t, Crossover([]float64{2, 3}, []float64{2, 2}, 1), "leaving from equal")
}

func TestCrossoverNaN(t *testing.T) {
	t.Parallel()
	nan := math.NaN()
	assert.False(t, Crossover([]float64{nan, 3}, []float64{2, 2}, 1))
	assert.False(t, Crossover([]float64{1, 3}, []float64{2, nan}, 1))
}
