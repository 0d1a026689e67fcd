package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marketsignal.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"DATA_DIR", "SQLITE_PATH", "LOG_LEVEL", "LOG_FORMAT", "MARKETSIGNAL_SYMBOL", "MARKETSIGNAL_CASH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/marketsignal/data"
  sqlite_path: "/tmp/marketsignal/runs.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  feed: "sip"
logging:
  level: "debug"
  format: "json"
data:
  source: "alpaca"
  symbol: "AAPL"
  start: "2021-01-01"
  end: "2022-01-01"
backtest:
  cash: 5000
  commission: 0.001
strategies:
  enabled: ["sma-cross"]
  sma_fast: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/marketsignal/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/marketsignal/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/marketsignal/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/marketsignal/runs.db")
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}

	// -- Data --
	if cfg.Data.Source != "alpaca" || cfg.Data.Symbol != "AAPL" {
		t.Errorf("Data = (%q, %q), want (alpaca, AAPL)", cfg.Data.Source, cfg.Data.Symbol)
	}

	// -- Backtest --
	if cfg.Backtest.Cash != 5000 {
		t.Errorf("Backtest.Cash = %v, want %v", cfg.Backtest.Cash, 5000)
	}
	if !cfg.Backtest.ExclusiveOrders {
		t.Error("Backtest.ExclusiveOrders = false, want default true")
	}

	// -- Strategies: unset fields keep their defaults --
	if cfg.Strategies.SMAFast != 5 {
		t.Errorf("Strategies.SMAFast = %d, want %d", cfg.Strategies.SMAFast, 5)
	}
	if cfg.Strategies.SMASlow != 20 {
		t.Errorf("Strategies.SMASlow = %d, want %d", cfg.Strategies.SMASlow, 20)
	}
	if len(cfg.Strategies.Enabled) != 1 || cfg.Strategies.Enabled[0] != "sma-cross" {
		t.Errorf("Strategies.Enabled = %v, want [sma-cross]", cfg.Strategies.Enabled)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Data.Symbol != "NVDA" {
		t.Errorf("Data.Symbol = %q, want %q", cfg.Data.Symbol, "NVDA")
	}
	if cfg.Backtest.Cash != 10000 || cfg.Backtest.Commission != 0.002 {
		t.Errorf("Backtest = %+v, want cash 10000 commission 0.002", cfg.Backtest)
	}
	if cfg.Report.PeriodsPerYear != 252 {
		t.Errorf("Report.PeriodsPerYear = %v, want 252", cfg.Report.PeriodsPerYear)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	if _, err := Load(writeConfig(t, "data: [unclosed")); err == nil {
		t.Error("Load() returned nil error for malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALPACA_API_KEY", "from-alpaca")
	t.Setenv("APCA_API_KEY_ID", "from-apca")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("MARKETSIGNAL_SYMBOL", "msft")
	t.Setenv("MARKETSIGNAL_CASH", "2500")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "from-apca" {
		t.Errorf("Alpaca.APIKey = %q, want APCA_API_KEY_ID to win", cfg.Alpaca.APIKey)
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Data.Symbol != "MSFT" {
		t.Errorf("Data.Symbol = %q, want %q", cfg.Data.Symbol, "MSFT")
	}
	if cfg.Backtest.Cash != 2500 {
		t.Errorf("Backtest.Cash = %v, want 2500", cfg.Backtest.Cash)
	}
}

func TestRange(t *testing.T) {
	d := DataConfig{Start: "2020-01-01", End: "2025-01-01"}
	start, end, err := d.Range()
	if err != nil {
		t.Fatalf("Range() returned error: %v", err)
	}
	if !start.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}

	if _, _, err := (DataConfig{Start: "2025-01-01", End: "2020-01-01"}).Range(); err == nil {
		t.Error("Range() accepted end before start")
	}
	if _, _, err := (DataConfig{Start: "01/01/2020", End: "2025-01-01"}).Range(); err == nil {
		t.Error("Range() accepted a malformed date")
	}
}

func TestValidateDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty symbol", func(c *Config) { c.Data.Symbol = "" }},
		{"unknown source", func(c *Config) { c.Data.Source = "bloomberg" }},
		{"zero cash", func(c *Config) { c.Backtest.Cash = 0 }},
		{"commission too high", func(c *Config) { c.Backtest.Commission = 1 }},
		{"size fraction too high", func(c *Config) { c.Backtest.SizeFraction = 2 }},
		{"no strategies", func(c *Config) { c.Strategies.Enabled = nil }},
		{"zero sma period", func(c *Config) { c.Strategies.SMAFast = 0 }},
		{"negative macd signal", func(c *Config) { c.Strategies.MACDSignal = -1 }},
		{"sma fast not below slow", func(c *Config) { c.Strategies.SMAFast = c.Strategies.SMASlow }},
		{"macd fast above slow", func(c *Config) { c.Strategies.MACDFast, c.Strategies.MACDSlow = 26, 12 }},
		{"negative yahoo timeout", func(c *Config) { c.Yahoo.Timeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
