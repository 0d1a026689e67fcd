package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"marketsignal/internal/report"
	"marketsignal/internal/store"
	"marketsignal/internal/strategy"
)

var strategiesCommand = &cli.Command{
	Name:   "strategies",
	Usage:  "list the available strategies",
	Action: listStrategies,
}

func listStrategies(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	registry := newRegistry(cfg)
	for _, name := range registry.List() {
		s, _ := registry.Get(name)
		desc := ""
		if d, ok := s.(strategy.Describer); ok {
			desc = d.Describe()
		}
		fmt.Fprintf(c.App.Writer, "%-12s  %s\n", name, desc)
	}
	return nil
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "list recorded backtest runs",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "symbol",
			Aliases: []string{"s"},
			Usage:   "only runs of this ticker",
		},
		&cli.IntFlag{
			Name:  "limit",
			Value: 20,
			Usage: "maximum number of runs to list",
		},
		&cli.Int64Flag{
			Name:  "run",
			Usage: "show the trades of this run ID instead",
		},
	},
	Action: showHistory,
}

func showHistory(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.Storage.SQLitePath == "" {
		return errors.New("run history is disabled; set storage.sqlite_path or SQLITE_PATH")
	}
	rs, err := store.OpenRunStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer rs.Close()

	if c.IsSet("run") {
		trades, err := rs.GetRunTrades(c.Context, c.Int64("run"))
		if err != nil {
			return err
		}
		return report.WriteTrades(c.App.Writer, trades)
	}

	runs, err := rs.ListRuns(c.Context, strings.ToUpper(c.String("symbol")), c.Int("limit"))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(c.App.Writer, "no runs recorded")
		return nil
	}
	return report.WriteRuns(c.App.Writer, runs)
}
