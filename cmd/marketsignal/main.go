// Command marketsignal backtests crossover strategies on daily bars and
// reports their statistics, Sharpe ratios and equity curves.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"marketsignal/internal/config"
)

const version = "0.1.0"

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "marketsignal"
	app.Version = version
	app.EnableBashCompletion = true
	app.Usage = "backtest SMA and MACD crossover strategies on daily bars"
	app.Flags = append([]cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Value: config.Path(),
			Usage: "path to the YAML configuration file ($MARKETSIGNAL_CONFIG)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format (text, json)",
		},
	}, runFlags()...)
	app.Action = runBacktests
	app.Commands = []*cli.Command{
		runCommand,
		fetchCommand,
		strategiesCommand,
		historyCommand,
	}
	return app
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("marketsignal failed", "error", err)
		cancel()
		os.Exit(1)
	}
}
