package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when MARKETSIGNAL_CONFIG is unset.
const DefaultPath = "config/marketsignal.yaml"

// DateLayout is the layout of every date in the configuration and on the
// command line.
const DateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for marketsignal.
type Config struct {
	Storage    Storage          `yaml:"storage"`
	Alpaca     Alpaca           `yaml:"alpaca"`
	Yahoo      Yahoo            `yaml:"yahoo"`
	Logging    Logging          `yaml:"logging"`
	Data       DataConfig       `yaml:"data"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Strategies StrategiesConfig `yaml:"strategies"`
	Report     ReportConfig     `yaml:"report"`
}

// Storage holds paths for data persistence. An empty SQLitePath disables
// run history.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Yahoo configures the Yahoo Finance chart API client.
type Yahoo struct {
	BaseURL string        `yaml:"base_url"`
	Proxy   string        `yaml:"proxy"`
	Timeout time.Duration `yaml:"timeout"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DataConfig selects what to backtest and where the bars come from.
type DataConfig struct {
	Source          string `yaml:"source"`
	Symbol          string `yaml:"symbol"`
	Start           string `yaml:"start"`
	End             string `yaml:"end"`
	NoCache         bool   `yaml:"no_cache"`
	MaxAttempts     int    `yaml:"max_attempts"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// BacktestConfig holds the simulated account parameters.
type BacktestConfig struct {
	Cash            float64 `yaml:"cash"`
	Commission      float64 `yaml:"commission"`
	ExclusiveOrders bool    `yaml:"exclusive_orders"`
	SizeFraction    float64 `yaml:"size_fraction"`
}

// StrategiesConfig selects the strategies to run and their periods.
type StrategiesConfig struct {
	Enabled    []string `yaml:"enabled"`
	SMAFast    int      `yaml:"sma_fast"`
	SMASlow    int      `yaml:"sma_slow"`
	MACDFast   int      `yaml:"macd_fast"`
	MACDSlow   int      `yaml:"macd_slow"`
	MACDSignal int      `yaml:"macd_signal"`
}

// ReportConfig controls the printed report and the chart.
type ReportConfig struct {
	ChartPath      string  `yaml:"chart_path"`
	PeriodsPerYear float64 `yaml:"periods_per_year"`
}

// Default returns the configuration used when no file is present: NVDA
// daily bars from Yahoo over 2020-2024, 10,000 cash at 0.2% commission, and
// both crossover strategies with their customary periods.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir: "data",
		},
		Alpaca: Alpaca{
			Feed: "iex",
		},
		Yahoo: Yahoo{
			BaseURL: "https://query1.finance.yahoo.com",
			Timeout: 30 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Data: DataConfig{
			Source:          "yahoo",
			Symbol:          "NVDA",
			Start:           "2020-01-01",
			End:             "2025-01-01",
			MaxAttempts:     3,
			RateLimitPerMin: 60,
		},
		Backtest: BacktestConfig{
			Cash:            10000,
			Commission:      0.002,
			ExclusiveOrders: true,
		},
		Strategies: StrategiesConfig{
			Enabled:    []string{"sma-cross", "macd-cross"},
			SMAFast:    10,
			SMASlow:    20,
			MACDFast:   12,
			MACDSlow:   26,
			MACDSignal: 9,
		},
		Report: ReportConfig{
			ChartPath:      "equity_curves.png",
			PeriodsPerYear: 252,
		},
	}
}

// Range parses the configured start and end dates.
func (d DataConfig) Range() (start, end time.Time, err error) {
	if start, err = time.Parse(DateLayout, d.Start); err != nil {
		return start, end, fmt.Errorf("parsing data.start %q: %w", d.Start, err)
	}
	if end, err = time.Parse(DateLayout, d.End); err != nil {
		return start, end, fmt.Errorf("parsing data.end %q: %w", d.End, err)
	}
	if !end.After(start) {
		return start, end, fmt.Errorf("data.end %s is not after data.start %s", d.End, d.Start)
	}
	return start, end, nil
}

// Validate reports the first configuration value that cannot be used.
func (c *Config) Validate() error {
	if c.Data.Symbol == "" {
		return errors.New("data.symbol is empty")
	}
	switch c.Data.Source {
	case "yahoo", "alpaca":
	default:
		return fmt.Errorf("data.source %q: want yahoo or alpaca", c.Data.Source)
	}
	if _, _, err := c.Data.Range(); err != nil {
		return err
	}
	if c.Backtest.Cash <= 0 {
		return fmt.Errorf("backtest.cash %v must be positive", c.Backtest.Cash)
	}
	if c.Backtest.Commission < 0 || c.Backtest.Commission >= 1 {
		return fmt.Errorf("backtest.commission %v outside [0, 1)", c.Backtest.Commission)
	}
	if c.Backtest.SizeFraction < 0 || c.Backtest.SizeFraction > 1 {
		return fmt.Errorf("backtest.size_fraction %v outside [0, 1]", c.Backtest.SizeFraction)
	}
	if len(c.Strategies.Enabled) == 0 {
		return errors.New("strategies.enabled is empty")
	}
	s := c.Strategies
	for _, p := range []struct {
		name  string
		value int
	}{
		{"sma_fast", s.SMAFast},
		{"sma_slow", s.SMASlow},
		{"macd_fast", s.MACDFast},
		{"macd_slow", s.MACDSlow},
		{"macd_signal", s.MACDSignal},
	} {
		if p.value <= 0 {
			return fmt.Errorf("strategies.%s %d must be positive", p.name, p.value)
		}
	}
	if s.SMAFast >= s.SMASlow {
		return fmt.Errorf("strategies.sma_fast %d must be below sma_slow %d", s.SMAFast, s.SMASlow)
	}
	if s.MACDFast >= s.MACDSlow {
		return fmt.Errorf("strategies.macd_fast %d must be below macd_slow %d", s.MACDFast, s.MACDSlow)
	}
	if c.Yahoo.Timeout < 0 {
		return fmt.Errorf("yahoo.timeout %v is negative", c.Yahoo.Timeout)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the config file path from MARKETSIGNAL_CONFIG, falling back
// to DefaultPath.
func Path() string {
	if v := os.Getenv("MARKETSIGNAL_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path over Default(),
// then applies environment variable overrides. A missing file is not an
// error. Variables from a .env file in the working directory are loaded
// first without replacing ones already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("ALPACA_FEED"); v != "" {
		cfg.Alpaca.Feed = v
	}

	if v := os.Getenv("YAHOO_PROXY"); v != "" {
		cfg.Yahoo.Proxy = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("MARKETSIGNAL_SYMBOL"); v != "" {
		cfg.Data.Symbol = strings.ToUpper(v)
	}
	if v := os.Getenv("MARKETSIGNAL_CASH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.Cash = f
		}
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
