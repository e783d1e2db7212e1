package csvwriter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/internal/report"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func TestWriteEquityCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "curve.csv")
	curve := []model.EquityPoint{
		{Date: day(2), Equity: 999, Held: model.Safe, BenchmarkClose: 100},
		{Date: day(3), Equity: 1010.5, Held: model.LongLeveraged, BenchmarkClose: 101.25},
	}
	require.NoError(t, WriteEquityCurve(path, curve, nil))

	assert.Equal(t, [][]string{
		{"date", "equity", "held", "benchmark_close"},
		{"2024-01-02", "999", "SAFE", "100"},
		{"2024-01-03", "1010.5", "LONG_LEVERAGED", "101.25"},
	}, readAll(t, path))
}

func TestWriteTradesAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	trades := []model.TradeRecord{
		{Date: day(2), Action: model.Buy, Instrument: model.ShortLeveraged, Shares: 10, Price: 10, Cost: 0, EquityAtEvent: 100, Reason: "overbought entry, confirmations 5/6"},
		{Date: day(5), Action: model.Sell, Instrument: model.ShortLeveraged, Shares: 10, Price: 12, Cost: 0, EquityAtEvent: 120, Reason: "take profit"},
	}
	require.NoError(t, WriteTrades(filepath.Join(dir, "trades.csv"), trades, nil))
	got := readAll(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"2024-01-02", "BUY", "SHORT_LEVERAGED", "10", "10", "0", "100", "overbought entry, confirmations 5/6"}, got[1])

	require.NoError(t, WriteRoundTrips(filepath.Join(dir, "trips.csv"), report.PairRoundTrips(trades), nil))
	got = readAll(t, filepath.Join(dir, "trips.csv"))
	require.Len(t, got, 2)
	assert.Equal(t, []string{"SHORT_LEVERAGED", "2024-01-02", "2024-01-05", "10", "12", "20.00", "20", "3"}, got[1])
}

func TestNewWriter_BadPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err := NewWriter(filepath.Join(file, "x.csv"), []string{"a"}, nil)
	assert.Error(t, err)
}
