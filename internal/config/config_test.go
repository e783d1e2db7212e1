// Package config_test tests the config package.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lev-meanrev-bot/internal/config"
	"github.com/your-org/lev-meanrev-bot/internal/marketdata"
	"github.com/your-org/lev-meanrev-bot/internal/model"
	"gopkg.in/yaml.v3"
)

// Helper function to create a dummy config file with specific content
func createDummyConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := createDummyConfigFile(t, `
log_level: "debug"
universe:
  benchmark: QQQ
  long_proxy: TQQQ
  short_proxy: SQQQ
  volatility_index: ^VXN
indicators:
  oscillator_period: 10
backtest:
  initial_capital: 25000
  transaction_cost: 0.5
  start: "2020-01-01"
  end: "2023-12-31"
live:
  lookback_days: 120
  interval: 30m
  trading_window:
    enabled: "true"
rules_path: rules/qqq.json
market_data:
  provider: csv
  csv_dir: ./bars
`)
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "TQQQ", cfg.Universe.Universe().Ticker(model.LongLeveraged))
	assert.Equal(t, 10, cfg.Indicators.OscillatorPeriod)
	assert.Equal(t, 50, cfg.Indicators.LongMAPeriod, "unset fields keep defaults")
	assert.Equal(t, 25000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 30*time.Minute, cfg.Live.Interval)
	assert.Equal(t, config.FlexBool(true), cfg.Live.TradingWindow.Enabled)
	assert.Equal(t, "America/New_York", cfg.Live.TradingWindow.Timezone)
	assert.Equal(t, "rules/qqq.json", cfg.RulesPath)

	start, end, err := cfg.Backtest.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), end)
}

// TestLoadConfig_EnvVarOverride tests if environment variables correctly override yaml values.
func TestLoadConfig_EnvVarOverride(t *testing.T) {
	path := createDummyConfigFile(t, `
log_level: "info"
database:
  host: "localhost"
  user: "user_from_file"`)

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DB_HOST", "db.from.env")
	t.Setenv("DB_USER", "user_from_env")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel, "LOG_LEVEL should be overridden by env var")
	assert.Equal(t, "db.from.env", cfg.Database.Host)
	assert.Equal(t, "user_from_env", cfg.Database.User)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "", cfg.Database.Password, "DB_PASSWORD should be empty as it was not in file or env")
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		want    string
	}{
		{"bad level", `log_level: loud`, nil, "log_level"},
		{"duplicate ticker", "universe:\n  long_proxy: SPY", nil, "universe"},
		{"bad period", "indicators:\n  long_ma_period: 1", nil, "indicators"},
		{"negative cost", "backtest:\n  transaction_cost: -1", nil, "transaction_cost"},
		{"unknown provider", "market_data:\n  provider: ftp", nil, "provider"},
		{"alpaca without keys", "market_data:\n  provider: alpaca", map[string]string{"APCA_API_KEY_ID": "", "APCA_API_SECRET_KEY": ""}, "APCA_API_KEY_ID"},
		{"bad port", `log_level: info`, map[string]string{"DB_PORT": "x"}, "DB_PORT"},
		{"bad yaml", "log_level: [", nil, "parse"},
		{"database without name", "database:\n  enabled: 1", nil, "database.name"},
		{"negative retention", "database:\n  retention_days: -1", nil, "retention_days"},
		{"negative notify interval", "live:\n  notify_interval: -1m", nil, "notify_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadConfig(createDummyConfigFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBacktestRange(t *testing.T) {
	_, _, err := config.BacktestConfig{Start: "2024-02-01", End: "2024-01-01"}.Range()
	assert.Error(t, err)
	_, _, err = config.BacktestConfig{Start: "01/02/2024"}.Range()
	assert.Error(t, err)
	_, end, err := config.BacktestConfig{Start: "2020-01-01"}.Range()
	require.NoError(t, err)
	assert.Equal(t, model.Day(time.Now()), end)
}

func TestDatabaseURL(t *testing.T) {
	d := config.DatabaseConfig{Host: "db", Port: 5432, User: "bot", Password: "p@ss", Name: "trades", SSLMode: "disable"}
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/trades?sslmode=disable", d.URL())
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
		err  bool
	}{
		{"true", true, false},
		{`"false"`, false, false},
		{`"1"`, true, false},
		{"0", false, false},
		{"2.5", true, false},
		{`"maybe"`, false, true},
		{`"yes"`, true, false},
		{"off", false, false},
		{"[1]", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v struct {
				B config.FlexBool `yaml:"b"`
			}
			err := yaml.Unmarshal([]byte("b: "+tt.in), &v)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, bool(v.B))
		})
	}
}

func TestMarketDataNewSource(t *testing.T) {
	src, err := config.MarketDataConfig{Provider: "csv", CSVDir: "bars"}.NewSource()
	require.NoError(t, err)
	csv, ok := src.(*marketdata.CSVSource)
	require.True(t, ok)
	assert.Equal(t, "bars", csv.Dir)

	src, err = config.MarketDataConfig{Provider: "alpaca", APIKey: "k", APISecret: "s", Feed: "sip"}.NewSource()
	require.NoError(t, err)
	assert.IsType(t, &marketdata.AlpacaSource{}, src)

	_, err = config.MarketDataConfig{Provider: "ftp"}.NewSource()
	assert.Error(t, err)
}
