package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/lev-meanrev-bot/internal/model"
	"github.com/your-org/lev-meanrev-bot/pkg/logger"
)

// CSVSource reads one "<ticker>.csv" file per ticker from Dir.
// The file needs a header with at least date, open, high, low, close and
// volume columns, in any order.
type CSVSource struct {
	Dir string
}

// NewCSVSource creates a CSVSource rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

// Path returns the file a ticker is read from. Characters that are awkward
// in file names (e.g. the caret of "^VIX") are dropped.
func (s *CSVSource) Path(ticker string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '^', '/', '\\', ':':
			return -1
		}
		return r
	}, ticker)
	return filepath.Join(s.Dir, name+".csv")
}

// FetchSeries implements Source.
func (s *CSVSource) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (model.Series, error) {
	path := s.Path(ticker)
	file, err := os.Open(path)
	if err != nil {
		return model.Series{}, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()

	bars, err := ReadBars(ctx, file)
	if err != nil {
		return model.Series{}, fmt.Errorf("%s: %w", path, err)
	}
	out := bars[:0]
	for _, b := range bars {
		if inRange(b.Date, start, end) {
			out = append(out, b)
		}
	}
	return model.Series{Ticker: ticker, Bars: out}, nil
}

var requiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

// ReadBars parses daily bars from CSV. Rows that fail to parse are skipped
// with a warning; a malformed header is an error.
func ReadBars(ctx context.Context, r io.Reader) ([]model.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("csv header is missing column %q", c)
		}
	}

	var bars []model.Bar
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		bar, err := parseBar(record, cols)
		if err != nil {
			logger.Warnf("Skipping csv line %d: %v", line, err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(record []string, cols map[string]int) (model.Bar, error) {
	field := func(name string) (string, error) {
		i := cols[name]
		if i >= len(record) {
			return "", fmt.Errorf("missing %s", name)
		}
		return strings.TrimSpace(record[i]), nil
	}
	raw, err := field("date")
	if err != nil {
		return model.Bar{}, err
	}
	date, err := parseDate(raw)
	if err != nil {
		return model.Bar{}, err
	}
	values := make([]float64, 0, 5)
	for _, name := range requiredColumns[1:] {
		raw, err := field(name)
		if err != nil {
			return model.Bar{}, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("%s: %w", name, err)
		}
		values = append(values, v)
	}
	if values[3] <= 0 {
		return model.Bar{}, fmt.Errorf("non-positive close %v", values[3])
	}
	return model.Bar{
		Date:   date,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q with any known format", s)
}
