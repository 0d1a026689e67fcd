// Package metrics computes return statistics over equity curves and closed
// trades: the annualized Sharpe ratio and the rest of the backtest summary.
package metrics

import (
	"math"
)

// TradingDaysPerYear is the annualization factor for daily bars.
const TradingDaysPerYear = 252

// PctChange returns the period-over-period fractional change of values with
// the undefined first element dropped.
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i]/values[i-1] - 1
	}
	return out
}

// SharpeRatio returns the annualized Sharpe ratio of an equity curve: the
// mean of its percentage returns over their sample standard deviation,
// scaled by sqrt(periodsPerYear) and rounded to two decimals. A curve whose
// returns have zero variance yields NaN or ±Inf.
func SharpeRatio(equity []float64, periodsPerYear float64) float64 {
	returns := PctChange(equity)
	sharpe := ArithmeticAverage(returns) / SampleStandardDeviation(returns) * math.Sqrt(periodsPerYear)
	return RoundFloat(sharpe, 2)
}

// RoundFloat rounds x to prec decimal places.
func RoundFloat(x float64, prec int) float64 {
	pow := math.Pow(10, float64(prec))
	return math.Round(x*pow) / pow
}

// ArithmeticAverage is the sum of values divided by their count, NaN when
// values is empty.
func ArithmeticAverage(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleVariance is the variance of values with one degree of freedom
// removed, NaN for fewer than two values.
func SampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	mean := ArithmeticAverage(values)
	var combined float64
	for _, v := range values {
		combined += (v - mean) * (v - mean)
	}
	return combined / float64(len(values)-1)
}

// SampleStandardDeviation is the square root of SampleVariance.
func SampleStandardDeviation(values []float64) float64 {
	return math.Sqrt(SampleVariance(values))
}

// GeometricMeanReturn is the per-period compounded return of a series of
// fractional returns. Any return of -100% or worse makes it 0.
func GeometricMeanReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	var logSum float64
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		if r <= -1 {
			return 0
		}
		logSum += math.Log1p(r)
	}
	return math.Exp(logSum/float64(len(returns))) - 1
}
