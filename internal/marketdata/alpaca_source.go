package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// barsClient is the subset of *marketdata.Client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaSource fetches daily bars from the Alpaca market data API.
type AlpacaSource struct {
	client barsClient
	feed   marketdata.Feed
}

// NewAlpacaSource creates a source authenticated with the given keys.
// feed is "iex" or "sip"; anything else falls back to iex.
func NewAlpacaSource(apiKey, apiSecret, feed string) *AlpacaSource {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return &AlpacaSource{client: client, feed: parseFeed(feed)}
}

func parseFeed(feed string) marketdata.Feed {
	switch strings.ToLower(feed) {
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}

// FetchSeries implements Source. The client is not context aware, so ctx
// is only checked before the request.
func (s *AlpacaSource) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (model.Series, error) {
	if err := ctx.Err(); err != nil {
		return model.Series{}, err
	}
	bars, err := s.client.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        end,
		Feed:       s.feed,
	})
	if err != nil {
		return model.Series{}, fmt.Errorf("alpaca get bars: %w", err)
	}
	out := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, model.Bar{
			Date:   model.Day(b.Timestamp),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	return model.Series{Ticker: ticker, Bars: out}, nil
}
