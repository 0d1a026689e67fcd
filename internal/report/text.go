// Package report renders backtest results: an aligned text summary per
// strategy, the overlaid equity-curve chart and an interactive terminal view.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"marketsignal/internal/domain"
	"marketsignal/internal/strategy"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Label is the short display name of a strategy: the part of its registry
// name before the first hyphen, upper-cased ("sma-cross" -> "SMA").
func Label(name string) string {
	head, _, _ := strings.Cut(name, "-")
	return strings.ToUpper(head)
}

// Field is one line of a statistics block.
type Field struct {
	Key   string
	Value string
}

// StatsFields lists the statistics of a run in display order.
func StatsFields(name string, s domain.Stats) []Field {
	return []Field{
		{"Start", FormatDate(s.Start)},
		{"End", FormatDate(s.End)},
		{"Duration", FormatDays(s.Duration)},
		{"Exposure Time [%]", FormatFloat(s.ExposureTimePct)},
		{"Equity Final [$]", FormatMoney(s.EquityFinal)},
		{"Equity Peak [$]", FormatMoney(s.EquityPeak)},
		{"Return [%]", FormatFloat(s.ReturnPct)},
		{"Buy & Hold Return [%]", FormatFloat(s.BuyAndHoldReturnPct)},
		{"Return (Ann.) [%]", FormatFloat(s.ReturnAnnPct)},
		{"Volatility (Ann.) [%]", FormatFloat(s.VolatilityAnnPct)},
		{"CAGR [%]", FormatFloat(s.CAGRPct)},
		{"Sharpe Ratio", FormatFloat(s.SharpeRatio)},
		{"Sortino Ratio", FormatFloat(s.SortinoRatio)},
		{"Calmar Ratio", FormatFloat(s.CalmarRatio)},
		{"Max. Drawdown [%]", FormatFloat(s.MaxDrawdownPct)},
		{"Avg. Drawdown [%]", FormatFloat(s.AvgDrawdownPct)},
		{"Max. Drawdown Duration", FormatDays(s.MaxDrawdownDuration)},
		{"Avg. Drawdown Duration", FormatDays(s.AvgDrawdownDuration)},
		{"# Trades", FormatInt(s.NumTrades)},
		{"Win Rate [%]", FormatFloat(s.WinRatePct)},
		{"Best Trade [%]", FormatFloat(s.BestTradePct)},
		{"Worst Trade [%]", FormatFloat(s.WorstTradePct)},
		{"Avg. Trade [%]", FormatFloat(s.AvgTradePct)},
		{"Max. Trade Duration", FormatDays(s.MaxTradeDuration)},
		{"Avg. Trade Duration", FormatDays(s.AvgTradeDuration)},
		{"Profit Factor", FormatFloat(s.ProfitFactor)},
		{"Expectancy [%]", FormatFloat(s.ExpectancyPct)},
		{"SQN", FormatFloat(s.SQN)},
		{"_strategy", name},
	}
}

// RenderStats renders one statistics block with keys padded to a common
// width.
func RenderStats(name string, s domain.Stats) string {
	fields := StatsFields(name, s)
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Key))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", Label(name), name)))
	b.WriteByte('\n')
	for _, f := range fields {
		b.WriteString(keyStyle.Render(fmt.Sprintf("%-*s", width, f.Key)))
		b.WriteString("  ")
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}
	return b.String()
}

// SharpeLine formats the hand-computed Sharpe ratio of a run, e.g.
// "SMA Sharpe Ratio: 1.23".
func SharpeLine(name string, sharpe float64) string {
	return fmt.Sprintf("%s Sharpe Ratio: %v", Label(name), sharpe)
}

// WriteText prints each result's statistics block followed by one Sharpe
// line per result.
func WriteText(w io.Writer, results []*strategy.BacktestResult) error {
	for _, r := range results {
		if _, err := fmt.Fprintln(w, RenderStats(r.Strategy, r.Stats)); err != nil {
			return err
		}
	}
	for _, r := range results {
		line := SharpeLine(r.Strategy, r.SharpeRatio)
		switch {
		case r.SharpeRatio > 0:
			line = gainStyle.Render(line)
		case r.SharpeRatio < 0:
			line = lossStyle.Render(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteRuns prints recorded runs as a fixed-width table, newest first.
func WriteRuns(w io.Writer, runs []domain.Run) error {
	header := fmt.Sprintf("%6s  %-16s  %-12s  %-8s  %-10s  %-10s  %12s  %9s  %7s  %6s",
		"ID", "Recorded", "Strategy", "Symbol", "Start", "End", "Final [$]", "Return", "Sharpe", "Trades")
	if _, err := fmt.Fprintln(w, keyStyle.Render(header)); err != nil {
		return err
	}
	for _, r := range runs {
		_, err := fmt.Fprintf(w, "%6d  %-16s  %-12s  %-8s  %-10s  %-10s  %12s  %9s  %7s  %6s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Strategy,
			r.Symbol,
			FormatDate(r.Start),
			FormatDate(r.End),
			FormatMoney(r.Stats.EquityFinal),
			FormatPct(r.Stats.ReturnPct),
			FormatFloat(r.Sharpe),
			FormatInt(r.Stats.NumTrades),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteTrades prints closed trades one per line.
func WriteTrades(w io.Writer, trades []domain.Trade) error {
	header := fmt.Sprintf("%-5s  %8s  %-10s  %10s  %-10s  %10s  %12s  %9s",
		"Side", "Qty", "Entry", "Price", "Exit", "Price", "PnL [$]", "Return")
	if _, err := fmt.Fprintln(w, keyStyle.Render(header)); err != nil {
		return err
	}
	for _, t := range trades {
		_, err := fmt.Fprintf(w, "%-5s  %8s  %-10s  %10s  %-10s  %10s  %12s  %9s\n",
			t.Side,
			FormatInt(int(t.Qty)),
			FormatDate(t.EntryTime),
			FormatPrice(t.EntryPrice),
			FormatDate(t.ExitTime),
			FormatPrice(t.ExitPrice),
			FormatMoney(t.PnL),
			FormatPct(t.ReturnPct*100),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
