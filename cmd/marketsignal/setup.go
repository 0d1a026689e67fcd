package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"marketsignal/internal/config"
	"marketsignal/internal/domain"
	"marketsignal/internal/gather"
	"marketsignal/internal/gather/us"
	"marketsignal/internal/gather/yahoo"
	"marketsignal/internal/store"
	"marketsignal/internal/strategy"
	"marketsignal/internal/strategy/builtins"
	"marketsignal/internal/util"
)

// setup loads the configuration named by --config, applies the logging
// flags and installs the default logger.
func setup(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

// applyDataFlags overrides the data section with the flags shared by run and
// fetch.
func applyDataFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("symbol") {
		cfg.Data.Symbol = strings.ToUpper(c.String("symbol"))
	}
	if c.IsSet("start") {
		cfg.Data.Start = c.String("start")
	}
	if c.IsSet("end") {
		cfg.Data.End = c.String("end")
	}
	if c.IsSet("source") {
		cfg.Data.Source = strings.ToLower(c.String("source"))
	}
	if c.Bool("no-cache") {
		cfg.Data.NoCache = true
	}
}

// newSource builds the configured market-data source.
func newSource(cfg *config.Config) (gather.Source, error) {
	switch cfg.Data.Source {
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, errors.New("alpaca source needs APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
		return us.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed), nil
	case "yahoo":
		var opts []yahoo.Option
		if cfg.Yahoo.BaseURL != "" {
			opts = append(opts, yahoo.WithBaseURL(cfg.Yahoo.BaseURL))
		}
		if cfg.Yahoo.Timeout > 0 {
			opts = append(opts, yahoo.WithTimeout(cfg.Yahoo.Timeout))
		}
		src, err := yahoo.New(cfg.Yahoo.Proxy, opts...)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

// newCachedSource wraps the configured source with the Parquet bar cache.
func newCachedSource(cfg *config.Config) (*gather.CachedSource, error) {
	src, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	cs := gather.NewCachedSource(src, store.NewParquetStore(cfg.Storage.DataDir), string(domain.MarketUS))
	cs.Refresh = cfg.Data.NoCache
	if cfg.Data.MaxAttempts > 0 {
		cs.MaxAttempts = cfg.Data.MaxAttempts
	}
	return cs, nil
}

// newRegistry returns a registry holding the builtin strategies with the
// configured periods.
func newRegistry(cfg *config.Config) *strategy.Registry {
	r := strategy.NewRegistry()
	builtins.Register(r, builtins.Params{
		SMAFast:    cfg.Strategies.SMAFast,
		SMASlow:    cfg.Strategies.SMASlow,
		MACDFast:   cfg.Strategies.MACDFast,
		MACDSlow:   cfg.Strategies.MACDSlow,
		MACDSignal: cfg.Strategies.MACDSignal,
	})
	return r
}
