package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"marketsignal/internal/config"
	"marketsignal/internal/report"
	"marketsignal/internal/util"
)

var fetchCommand = &cli.Command{
	Name:      "fetch",
	Usage:     "download daily bars into the local cache",
	ArgsUsage: "[SYMBOL...]",
	Flags: []cli.Flag{
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
		&cli.IntFlag{
			Name:  "workers",
			Value: 4,
			Usage: "concurrent requests",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "refetch even when the cache covers the range",
		},
		&cli.BoolFlag{
			Name:  "cached",
			Usage: "also fetch every symbol already in the cache",
		},
	},
	Action: fetchBars,
}

func fetchBars(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	applyDataFlags(c, cfg)
	start, end, err := cfg.Data.Range()
	if err != nil {
		return err
	}

	src, err := newCachedSource(cfg)
	if err != nil {
		return err
	}

	symbols := c.Args().Slice()
	if c.Bool("cached") {
		cached, err := src.CachedSymbols(c.Context)
		if err != nil {
			return err
		}
		symbols = mergeSymbols(symbols, cached)
	}
	if len(symbols) == 0 {
		symbols = []string{cfg.Data.Symbol}
	}
	rl := util.NewBurstRateLimiter(cfg.Data.RateLimitPerMin, c.Int("workers"))
	results, err := src.FetchAll(c.Context, symbols, start, end, c.Int("workers"), rl)
	if err != nil {
		return err
	}

	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Symbol)
			fmt.Fprintf(c.App.Writer, "%-8s  error: %v\n", r.Symbol, r.Err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%-8s  %s bars\n", r.Symbol, report.FormatInt(r.Bars))
	}
	if len(failed) > 0 {
		return fmt.Errorf("fetch failed for %d of %d symbols: %s", len(failed), len(results), strings.Join(failed, ", "))
	}
	return nil
}

// mergeSymbols appends the symbols of b missing from a, comparing without
// regard to case.
func mergeSymbols(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.ToUpper(s)
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
