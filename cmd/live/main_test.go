package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/lev-meanrev-bot/internal/alert"
	"github.com/your-org/lev-meanrev-bot/internal/config"
	"github.com/your-org/lev-meanrev-bot/internal/engine"
	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/internal/runlock"
	"github.com/your-org/lev-meanrev-bot/internal/state"
)

const rulesDoc = `{
  "oversold_bound": 30, "overbought_bound": 70, "min_trend_strength": 20,
  "max_volatility_index": 35, "min_volume": 1000,
  "require_price_vs_short_ma": true, "require_price_vs_long_ma": true, "require_ma_trend": true,
  "stop_loss_fraction": 0.1, "profit_target_fraction": 0.2, "max_hold_days": 5
}`

var lastBar = time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	bars := filepath.Join(dir, "bars")
	require.NoError(t, os.MkdirAll(bars, 0o755))
	for ticker, price := range map[string]float64{"SPY": 100, "UPRO": 50, "SPXU": 25, "VIX": 18} {
		var b strings.Builder
		b.WriteString("date,open,high,low,close,volume\n")
		for i := 59; i >= 0; i-- {
			fmt.Fprintf(&b, "%s,%g,%g,%g,%g,5000\n", lastBar.AddDate(0, 0, -i).Format("2006-01-02"), price, price+1, price-1, price)
		}
		require.NoError(t, os.WriteFile(filepath.Join(bars, ticker+".csv"), []byte(b.String()), 0o644))
	}
	rulesPath := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(rulesPath, []byte(rulesDoc), 0o644))

	cfg := config.Default()
	cfg.Universe = config.UniverseConfig{Benchmark: "SPY", LongProxy: "UPRO", ShortProxy: "SPXU", VolatilityIndex: "^VIX"}
	cfg.Indicators.LongMAPeriod = 30
	cfg.RulesPath = rulesPath
	cfg.MarketData.CSVDir = bars
	cfg.Live.StatePath = filepath.Join(dir, "state", "position.json")
	cfg.Live.LockPath = filepath.Join(dir, "state", "live.lock")
	cfg.Live.LookbackDays = 90
	cfg.Live.Notify = true
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestCycle(t *testing.T, cfg *config.Config, reset bool) *engine.Cycle {
	t.Helper()
	cycle, cleanup, err := build(context.Background(), cfg, reset, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	cycle.Now = func() time.Time { return lastBar.Add(20 * time.Hour) }
	return cycle
}

func TestBuild_OneShotCycles(t *testing.T) {
	cfg := setup(t)
	cycle := newTestCycle(t, cfg, false)

	out, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.ReasonInitialAllocation, out.Decision.Reason)
	assert.Equal(t, lastBar, out.Snapshot.Date)

	st, err := state.NewFileStore(cfg.Live.StatePath).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Safe, st.Held)

	out, err = cycle.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.ReasonAlreadyApplied, out.Decision.Reason)
}

func TestBuild_CorruptedStateNeedsReset(t *testing.T) {
	cfg := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Live.StatePath), 0o755))
	require.NoError(t, os.WriteFile(cfg.Live.StatePath, []byte(`{"version":1}`), 0o644))

	_, err := newTestCycle(t, cfg, false).Run(context.Background())
	require.ErrorIs(t, err, state.ErrStateCorruption)

	out, err := newTestCycle(t, cfg, true).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.ReasonInitialAllocation, out.Decision.Reason)
}

func TestBuild_LockFileBlocksCycle(t *testing.T) {
	cfg := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Live.LockPath), 0o755))
	require.NoError(t, os.WriteFile(cfg.Live.LockPath, nil, 0o644))

	out, err := newTestCycle(t, cfg, false).Run(context.Background())
	require.ErrorIs(t, err, runlock.ErrLocked)
	assert.True(t, out.Decision.IsError())
	assert.NoFileExists(t, cfg.Live.StatePath)
}

func TestTracked_LastCycle(t *testing.T) {
	cfg := setup(t)
	runner := &tracked{Cycle: newTestCycle(t, cfg, false)}
	assert.True(t, runner.lastCycle().IsZero())

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, runner.lastCycle().IsZero())
}

func TestNewNotifier(t *testing.T) {
	n, err := newNotifier(config.LiveConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &alert.NoOpNotifier{}, n)

	n, err = newNotifier(config.LiveConfig{Notify: true}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &alert.LogNotifier{}, n)

	n, err = newNotifier(config.LiveConfig{Notify: true, NotifyInterval: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &alert.BufferedNotifier{}, n)
	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Send("late"), alert.ErrClosed)
}
