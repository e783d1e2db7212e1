// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/your-org/lev-meanrev-bot/internal/indicator"
	"github.com/your-org/lev-meanrev-bot/internal/marketdata"
	"github.com/your-org/lev-meanrev-bot/internal/model"
	"gopkg.in/yaml.v3"
)

// DateLayout is the layout of backtest start/end dates.
const DateLayout = "2006-01-02"

// Config defines the structure for all application configuration.
// Rule thresholds are not part of it; they come from RulesPath.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Universe   UniverseConfig   `yaml:"universe"`
	Indicators indicator.Params `yaml:"indicators"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Live       LiveConfig       `yaml:"live"`
	RulesPath  string           `yaml:"rules_path"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
}

// UniverseConfig maps each role to a ticker.
type UniverseConfig struct {
	Benchmark       string `yaml:"benchmark"`
	LongProxy       string `yaml:"long_proxy"`
	ShortProxy      string `yaml:"short_proxy"`
	VolatilityIndex string `yaml:"volatility_index"`
}

// Universe converts the config into the role lookup table.
func (u UniverseConfig) Universe() model.Universe {
	return model.Universe{
		model.Benchmark:       u.Benchmark,
		model.LongProxy:       u.LongProxy,
		model.ShortProxy:      u.ShortProxy,
		model.VolatilityIndex: u.VolatilityIndex,
	}
}

// BacktestConfig holds simulation settings.
type BacktestConfig struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	TransactionCost float64 `yaml:"transaction_cost"`
	RiskFreeRate    float64 `yaml:"risk_free_rate"`
	Start           string  `yaml:"start"`
	End             string  `yaml:"end"`
}

// Range parses Start and End. An empty End means today.
func (b BacktestConfig) Range() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, b.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start: %w", err)
	}
	end := model.Day(time.Now())
	if b.End != "" {
		if end, err = time.Parse(DateLayout, b.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("backtest.end: %w", err)
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest: end %s is not after start %s", end.Format(DateLayout), start.Format(DateLayout))
	}
	return start, end, nil
}

// LiveConfig holds settings of the one-shot live cycle and daemon mode.
type LiveConfig struct {
	StatePath      string        `yaml:"state_path"`
	LockPath       string        `yaml:"lock_path"`
	InitialCapital float64       `yaml:"initial_capital"`
	LookbackDays   int           `yaml:"lookback_days"`
	TradingWindow  WindowConfig  `yaml:"trading_window"`
	Interval       time.Duration `yaml:"interval"`
	ListenAddr     string        `yaml:"listen_addr"`
	Notify         FlexBool      `yaml:"notify"`
	NotifyInterval time.Duration `yaml:"notify_interval"` // 0 sends each decision immediately
}

// WindowConfig restricts live decisions to trading hours when enabled.
type WindowConfig struct {
	Enabled  FlexBool `yaml:"enabled"`
	Timezone string   `yaml:"timezone"`
	Open     string   `yaml:"open"`
	Close    string   `yaml:"close"`
}

// MarketDataConfig selects the bar source.
type MarketDataConfig struct {
	Provider  string `yaml:"provider"` // "csv" or "alpaca"
	CSVDir    string `yaml:"csv_dir"`
	Feed      string `yaml:"feed"`
	APIKey    string `yaml:"-"` // Loaded from env
	APISecret string `yaml:"-"` // Loaded from env
}

// NewSource builds the configured bar source.
func (m MarketDataConfig) NewSource() (marketdata.Source, error) {
	switch m.Provider {
	case "csv":
		return marketdata.NewCSVSource(m.CSVDir), nil
	case "alpaca":
		return marketdata.NewAlpacaSource(m.APIKey, m.APISecret, m.Feed), nil
	default:
		return nil, fmt.Errorf("market_data.provider: unknown provider %q", m.Provider)
	}
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Enabled  FlexBool `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	Name     string   `yaml:"name"`
	SSLMode  string   `yaml:"sslmode"`

	// RetentionDays prunes saved backtest runs older than this many days
	// after each save. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// URL renders a postgres:// connection string.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisConfig enables the distributed run lock when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockKey  string        `yaml:"lock_key"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		Universe:   UniverseConfig{Benchmark: "SPY", LongProxy: "UPRO", ShortProxy: "SPXU", VolatilityIndex: "^VIX"},
		Indicators: indicator.DefaultParams(),
		Backtest:   BacktestConfig{InitialCapital: 100_000, TransactionCost: 1},
		Live: LiveConfig{
			StatePath:      "data/position_state.json",
			LockPath:       "data/live.lock",
			InitialCapital: 100_000,
			LookbackDays:   200,
			TradingWindow:  WindowConfig{Timezone: "America/New_York", Open: "09:30", Close: "16:00"},
			Interval:       time.Hour,
			ListenAddr:     ":8080",
		},
		RulesPath:  "config/rules.yaml",
		MarketData: MarketDataConfig{Provider: "csv", CSVDir: "data/bars", Feed: "iex"},
		Database:   DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "disable"},
		Redis:      RedisConfig{LockKey: "lev-meanrev-bot:live-lock", LockTTL: 5 * time.Minute},
	}
}

// LoadConfig loads configuration from the specified YAML file path
// and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv loads sensitive data and overrides from environment variables.
func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("DB_HOST", &cfg.Database.Host)
	setString("DB_USER", &cfg.Database.User)
	setString("DB_PASSWORD", &cfg.Database.Password)
	setString("DB_NAME", &cfg.Database.Name)
	setString("APCA_API_KEY_ID", &cfg.MarketData.APIKey)
	setString("APCA_API_SECRET_KEY", &cfg.MarketData.APISecret)
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT: %w", err)
		}
		cfg.Database.Port = port
	}
	return nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	if err := c.Universe.Universe().Validate(); err != nil {
		return err
	}
	if err := c.Indicators.Validate(); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	if c.Backtest.InitialCapital <= 0 {
		return errors.New("backtest.initial_capital: must be positive")
	}
	if c.Backtest.TransactionCost < 0 {
		return errors.New("backtest.transaction_cost: must not be negative")
	}
	if c.Live.InitialCapital <= 0 {
		return errors.New("live.initial_capital: must be positive")
	}
	if c.Live.LookbackDays <= 0 {
		return errors.New("live.lookback_days: must be positive")
	}
	if c.Live.StatePath == "" {
		return errors.New("live.state_path: required")
	}
	if c.Live.Interval <= 0 {
		return errors.New("live.interval: must be positive")
	}
	if c.Live.NotifyInterval < 0 {
		return errors.New("live.notify_interval: must not be negative")
	}
	if c.RulesPath == "" {
		return errors.New("rules_path: required")
	}
	switch c.MarketData.Provider {
	case "csv":
		if c.MarketData.CSVDir == "" {
			return errors.New("market_data.csv_dir: required for the csv provider")
		}
	case "alpaca":
		if c.MarketData.APIKey == "" || c.MarketData.APISecret == "" {
			return errors.New("market_data: alpaca provider needs APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
	default:
		return fmt.Errorf("market_data.provider: unknown provider %q", c.MarketData.Provider)
	}
	if c.Database.Enabled && c.Database.Name == "" {
		return errors.New("database.name: required when the database is enabled")
	}
	if c.Database.RetentionDays < 0 {
		return errors.New("database.retention_days: must not be negative")
	}
	return nil
}
