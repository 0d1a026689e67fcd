package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"marketsignal/internal/strategy"
)

// Chart dimensions.
const (
	ChartWidth  = 12 * vg.Inch
	ChartHeight = 6 * vg.Inch
)

// ChartTitle returns the title of the comparison chart, e.g.
// "SMA vs MACD Equity Curve Comparison (NVDA)".
func ChartTitle(symbol string, results []*strategy.BacktestResult) string {
	labels := make([]string, len(results))
	for i, r := range results {
		labels[i] = Label(r.Strategy)
	}
	return fmt.Sprintf("%s Equity Curve Comparison (%s)", strings.Join(labels, " vs "), symbol)
}

// NewChart plots the equity curves of results against bar dates in one
// figure.
func NewChart(symbol string, results []*strategy.BacktestResult) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = ChartTitle(symbol, results)
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Equity ($)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	for i, r := range results {
		if len(r.Equity) == 0 {
			return nil, fmt.Errorf("%s: empty equity curve", r.Strategy)
		}
		xys := make(plotter.XYs, len(r.Equity))
		for j, pt := range r.Equity {
			xys[j].X = float64(pt.Timestamp.Unix())
			xys[j].Y = pt.Equity
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", r.Strategy, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(Label(r.Strategy)+" Strategy", line)
	}
	return p, nil
}

// WriteChart renders the comparison chart to path. The image format follows
// the file extension (png, svg, pdf...).
func WriteChart(path, symbol string, results []*strategy.BacktestResult) error {
	p, err := NewChart(symbol, results)
	if err != nil {
		return err
	}
	if err := p.Save(ChartWidth, ChartHeight, path); err != nil {
		return fmt.Errorf("saving chart %s: %w", filepath.Base(path), err)
	}
	return nil
}
