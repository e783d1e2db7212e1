package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// Source supplies already validated daily bars for one ticker.
type Source interface {
	FetchSeries(ctx context.Context, ticker string, start, end time.Time) (model.Series, error)
}

// FetchUniverse loads and normalizes one series per role of u.
func FetchUniverse(ctx context.Context, src Source, u model.Universe, start, end time.Time) (map[model.Role]model.Series, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	out := make(map[model.Role]model.Series, len(model.Roles))
	for _, role := range model.Roles {
		ticker := u[role]
		s, err := src.FetchSeries(ctx, ticker, start, end)
		if err != nil {
			return nil, fmt.Errorf("fetch %s (%s): %w", ticker, role, err)
		}
		out[role] = Normalize(s)
	}
	return out, nil
}

func inRange(d, start, end time.Time) bool {
	if !start.IsZero() && d.Before(model.Day(start)) {
		return false
	}
	if !end.IsZero() && d.After(model.Day(end)) {
		return false
	}
	return true
}
