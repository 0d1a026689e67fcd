package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"marketsignal/internal/config"
	"marketsignal/internal/domain"
	"marketsignal/internal/report"
	"marketsignal/internal/store"
	"marketsignal/internal/strategy"
)

var runCommand = &cli.Command{
	Name:   "run",
	Usage:  "fetch bars, backtest the enabled strategies and report the results",
	Flags:  runFlags(),
	Action: runBacktests,
}

// runFlags returns the flags of the run command. The app carries its own
// copy so that run is also the default action.
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "symbol",
			Aliases: []string{"s"},
			Usage:   "ticker to backtest",
		},
		&cli.StringFlag{
			Name:  "start",
			Usage: "first day of the range, " + config.DateLayout,
		},
		&cli.StringFlag{
			Name:  "end",
			Usage: "day after the last bar of the range, " + config.DateLayout,
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "market-data source (yahoo, alpaca)",
		},
		&cli.Float64Flag{
			Name:  "cash",
			Usage: "starting cash",
		},
		&cli.Float64Flag{
			Name:  "commission",
			Usage: "commission as a fraction of the fill price",
		},
		&cli.StringSliceFlag{
			Name:  "strategies",
			Usage: "comma-separated strategies to run",
		},
		&cli.StringFlag{
			Name:  "chart",
			Usage: "equity curve chart output path; empty disables the chart",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "open the interactive results view after the report",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "skip the bar cache lookup and fetch from the source",
		},
	}
}

func applyRunFlags(c *cli.Context, cfg *config.Config) {
	applyDataFlags(c, cfg)
	if c.IsSet("cash") {
		cfg.Backtest.Cash = c.Float64("cash")
	}
	if c.IsSet("commission") {
		cfg.Backtest.Commission = c.Float64("commission")
	}
	if c.IsSet("strategies") {
		cfg.Strategies.Enabled = c.StringSlice("strategies")
	}
	if c.IsSet("chart") {
		cfg.Report.ChartPath = c.String("chart")
	}
}

func backtestConfig(cfg *config.Config) strategy.BacktestConfig {
	return strategy.BacktestConfig{
		Cash:            cfg.Backtest.Cash,
		Commission:      cfg.Backtest.Commission,
		ExclusiveOrders: cfg.Backtest.ExclusiveOrders,
		SizeFraction:    cfg.Backtest.SizeFraction,
		PeriodsPerYear:  cfg.Report.PeriodsPerYear,
	}
}

func runBacktests(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	applyRunFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	start, end, err := cfg.Data.Range()
	if err != nil {
		return err
	}
	ctx := c.Context

	registry := newRegistry(cfg)
	strategies := make([]strategy.Strategy, 0, len(cfg.Strategies.Enabled))
	for _, name := range cfg.Strategies.Enabled {
		s, ok := registry.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s (available: %s)", strategy.ErrUnknownStrategy, name, strings.Join(registry.List(), ", "))
		}
		strategies = append(strategies, s)
	}

	src, err := newCachedSource(cfg)
	if err != nil {
		return err
	}
	bars, err := src.FetchDailyBars(ctx, cfg.Data.Symbol, start, end)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", cfg.Data.Symbol, err)
	}
	slog.Info("bars loaded", "symbol", cfg.Data.Symbol, "source", src.Name(), "bars", len(bars))

	results, err := backtestAll(ctx, strategy.NewBacktester(backtestConfig(cfg), strategy.SimulatorFactory), strategies, bars)
	if err != nil {
		return err
	}

	if err := report.WriteText(c.App.Writer, results); err != nil {
		return err
	}
	if cfg.Report.ChartPath != "" {
		if err := report.WriteChart(cfg.Report.ChartPath, cfg.Data.Symbol, results); err != nil {
			return err
		}
		slog.Info("chart written", "path", cfg.Report.ChartPath)
	}

	if err := saveRuns(ctx, cfg, src.Name(), start, end, results); err != nil {
		slog.Warn("run history not saved", "error", err)
	}

	if c.Bool("tui") {
		return report.RunTUI(ctx, cfg.Data.Symbol, results)
	}
	return nil
}

// backtestAll runs every strategy over the same bars concurrently. Results
// keep the order of strategies.
func backtestAll(ctx context.Context, bt *strategy.Backtester, strategies []strategy.Strategy, bars []domain.Bar) ([]*strategy.BacktestResult, error) {
	results := make([]*strategy.BacktestResult, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		g.Go(func() error {
			res, err := bt.RunBars(gctx, s, bars)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func saveRuns(ctx context.Context, cfg *config.Config, source string, start, end time.Time, results []*strategy.BacktestResult) error {
	rs, err := store.OpenRunStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer rs.Close()

	for _, r := range results {
		run := &domain.Run{
			Strategy:   r.Strategy,
			Symbol:     r.Symbol,
			Source:     source,
			Start:      start,
			End:        end,
			Cash:       cfg.Backtest.Cash,
			Commission: cfg.Backtest.Commission,
			Stats:      r.Stats,
			Sharpe:     r.SharpeRatio,
			Trades:     r.Trades,
		}
		if err := rs.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("saving %s: %w", r.Strategy, err)
		}
		if run.ID != 0 {
			slog.Debug("run saved", "id", run.ID, "strategy", run.Strategy)
		}
	}
	return nil
}
