// Package csvwriter exports backtest results as CSV files.
package csvwriter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/internal/report"
)

const dateLayout = "2006-01-02"

// Writer is a simple CSV writer.
type Writer struct {
	file   *os.File
	writer *csv.Writer
	logger *zap.Logger
	rows   int
	mu     sync.Mutex
}

// NewWriter creates the file, its parent directories and writes header.
func NewWriter(filePath string, header []string, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create CSV directory: %w", err)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	w := &Writer{
		file:   file,
		writer: csv.NewWriter(file),
		logger: logger.With(zap.String("path", filePath)),
	}
	if err := w.writer.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return w, nil
}

// Write writes a record to the CSV file.
func (w *Writer) Write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record to CSV: %w", err)
	}
	w.rows++
	return nil
}

// Close flushes buffered rows and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	w.logger.Debug("CSV written", zap.Int("rows", w.rows))
	return w.file.Close()
}

// WriteEquityCurve exports one row per equity point.
func WriteEquityCurve(path string, curve []model.EquityPoint, logger *zap.Logger) error {
	w, err := NewWriter(path, []string{"date", "equity", "held", "benchmark_close"}, logger)
	if err != nil {
		return err
	}
	for _, p := range curve {
		if err := w.Write([]string{p.Date.Format(dateLayout), ftoa(p.Equity), p.Held.String(), ftoa(p.BenchmarkClose)}); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// WriteTrades exports the trade ledger in order.
func WriteTrades(path string, trades []model.TradeRecord, logger *zap.Logger) error {
	w, err := NewWriter(path, []string{"date", "action", "instrument", "shares", "price", "cost", "equity_at_event", "reason"}, logger)
	if err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			t.Date.Format(dateLayout), string(t.Action), t.Instrument.String(),
			ftoa(t.Shares), ftoa(t.Price), ftoa(t.Cost), ftoa(t.EquityAtEvent), t.Reason,
		}
		if err := w.Write(rec); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// WriteRoundTrips exports paired entries and exits.
func WriteRoundTrips(path string, trips []report.RoundTrip, logger *zap.Logger) error {
	w, err := NewWriter(path, []string{"instrument", "entry_date", "exit_date", "entry_price", "exit_price", "profit", "profit_pct", "duration_days"}, logger)
	if err != nil {
		return err
	}
	for _, rt := range trips {
		rec := []string{
			rt.Instrument.String(), rt.Entry.Date.Format(dateLayout), rt.Exit.Date.Format(dateLayout),
			ftoa(rt.Entry.Price), ftoa(rt.Exit.Price), rt.Profit.StringFixed(2), ftoa(rt.ProfitPct),
			ftoa(rt.DurationDays),
		}
		if err := w.Write(rec); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
