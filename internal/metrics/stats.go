package metrics

import (
	"math"
	"time"

	"marketsignal/internal/domain"
)

// Drawdowns returns, for every sample, the fractional distance below the
// running equity peak (0 at a new high, 0.25 when 25% below the peak).
func Drawdowns(equity []float64) []float64 {
	out := make([]float64, len(equity))
	peak := math.Inf(-1)
	for i, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			out[i] = 1 - v/peak
		}
	}
	return out
}

// DrawdownPeriod is one excursion below a previous equity peak.
type DrawdownPeriod struct {
	PeakIndex int
	EndIndex  int
	Depth     float64
	Duration  time.Duration
}

// DrawdownPeriods splits a drawdown series into contiguous excursions. An
// excursion still open at the end of the series ends at the last sample.
func DrawdownPeriods(times []time.Time, dd []float64) []DrawdownPeriod {
	var (
		periods []DrawdownPeriod
		open    bool
		cur     DrawdownPeriod
	)
	for i, v := range dd {
		switch {
		case v > 0 && !open:
			open = true
			cur = DrawdownPeriod{PeakIndex: max(i-1, 0), Depth: v}
		case v > 0:
			cur.Depth = max(cur.Depth, v)
		case v == 0 && open:
			open = false
			cur.EndIndex = i
			periods = append(periods, cur)
		}
	}
	if open {
		cur.EndIndex = len(dd) - 1
		periods = append(periods, cur)
	}
	for i := range periods {
		p := &periods[i]
		if p.EndIndex < len(times) && p.PeakIndex < len(times) {
			p.Duration = times[p.EndIndex].Sub(times[p.PeakIndex])
		}
	}
	return periods
}

// Compute builds the statistics record for one backtest run. Ratios that
// have no meaning for the input (no trades, zero volatility) are NaN.
func Compute(bars []domain.Bar, curve []domain.EquityPoint, trades []domain.Trade, periodsPerYear float64) domain.Stats {
	var s domain.Stats
	if len(curve) == 0 {
		return s
	}
	equity := domain.EquityValues(curve)
	times := make([]time.Time, len(curve))
	for i := range curve {
		times[i] = curve[i].Timestamp
	}
	first, last := equity[0], equity[len(equity)-1]

	s.Start = times[0]
	s.End = times[len(times)-1]
	s.Duration = s.End.Sub(s.Start)
	s.ExposureTimePct = exposure(len(curve), trades)

	s.EquityFinal = last
	s.EquityPeak = first
	for _, v := range equity {
		s.EquityPeak = max(s.EquityPeak, v)
	}
	s.ReturnPct = (last - first) / first * 100
	if len(bars) > 0 {
		c0 := bars[0].Close
		s.BuyAndHoldReturnPct = (bars[len(bars)-1].Close - c0) / c0 * 100
	}

	dayReturns := PctChange(equity)
	gmean := GeometricMeanReturn(dayReturns)
	annReturn := math.Pow(1+gmean, periodsPerYear) - 1
	s.ReturnAnnPct = annReturn * 100
	variance := SampleVariance(dayReturns)
	s.VolatilityAnnPct = math.Sqrt(
		math.Pow(variance+(1+gmean)*(1+gmean), periodsPerYear)-math.Pow(1+gmean, 2*periodsPerYear),
	) * 100

	years := s.Duration.Hours() / 24 / 365.25
	s.CAGRPct = math.NaN()
	if years > 0 {
		s.CAGRPct = (math.Pow(last/first, 1/years) - 1) * 100
	}

	s.SharpeRatio = ratio(s.ReturnAnnPct, s.VolatilityAnnPct)

	var downside []float64
	for _, r := range dayReturns {
		d := math.Min(r, 0)
		downside = append(downside, d*d)
	}
	s.SortinoRatio = ratio(annReturn, math.Sqrt(ArithmeticAverage(downside))*math.Sqrt(periodsPerYear))

	dd := Drawdowns(equity)
	var maxDD float64
	for _, v := range dd {
		maxDD = max(maxDD, v)
	}
	s.MaxDrawdownPct = -maxDD * 100
	s.CalmarRatio = ratio(annReturn, maxDD)

	periods := DrawdownPeriods(times, dd)
	if len(periods) > 0 {
		var depthSum float64
		var durSum time.Duration
		for _, p := range periods {
			depthSum += p.Depth
			durSum += p.Duration
			s.MaxDrawdownDuration = max(s.MaxDrawdownDuration, p.Duration)
		}
		s.AvgDrawdownPct = -depthSum / float64(len(periods)) * 100
		s.AvgDrawdownDuration = durSum / time.Duration(len(periods))
	}

	tradeStats(&s, trades)
	return s
}

func tradeStats(s *domain.Stats, trades []domain.Trade) {
	s.NumTrades = len(trades)
	if len(trades) == 0 {
		nan := math.NaN()
		s.WinRatePct, s.BestTradePct, s.WorstTradePct, s.AvgTradePct = nan, nan, nan, nan
		s.ProfitFactor, s.ExpectancyPct, s.SQN = nan, nan, nan
		return
	}

	pls := make([]float64, len(trades))
	returns := make([]float64, len(trades))
	var (
		wins          int
		gains, losses float64
		durSum        time.Duration
	)
	s.BestTradePct = math.Inf(-1)
	s.WorstTradePct = math.Inf(1)
	for i, t := range trades {
		pls[i] = t.PnL
		returns[i] = t.ReturnPct
		if t.PnL > 0 {
			wins++
		}
		if t.ReturnPct > 0 {
			gains += t.ReturnPct
		} else {
			losses += t.ReturnPct
		}
		s.BestTradePct = max(s.BestTradePct, t.ReturnPct*100)
		s.WorstTradePct = min(s.WorstTradePct, t.ReturnPct*100)
		d := t.Duration()
		durSum += d
		s.MaxTradeDuration = max(s.MaxTradeDuration, d)
	}

	n := float64(len(trades))
	s.WinRatePct = float64(wins) / n * 100
	s.AvgTradePct = GeometricMeanReturn(returns) * 100
	s.AvgTradeDuration = durSum / time.Duration(len(trades))
	s.ProfitFactor = ratio(gains, math.Abs(losses))
	s.ExpectancyPct = ArithmeticAverage(returns) * 100
	s.SQN = math.Sqrt(n) * ArithmeticAverage(pls) / SampleStandardDeviation(pls)
}

// exposure returns the percentage of bars during which a position was held.
func exposure(n int, trades []domain.Trade) float64 {
	if n == 0 {
		return 0
	}
	held := make([]bool, n)
	for _, t := range trades {
		for i := max(t.EntryIndex, 0); i <= t.ExitIndex && i < n; i++ {
			held[i] = true
		}
	}
	var count int
	for _, h := range held {
		if h {
			count++
		}
	}
	return float64(count) / float64(n) * 100
}

// ratio divides a by b, treating a zero or undefined denominator as NaN.
func ratio(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}
