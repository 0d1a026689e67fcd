// Package gather fetches daily bars from market-data providers and caches
// them in a BarStore.
package gather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"marketsignal/internal/domain"
)

// ErrNoData is returned when a provider has no bars for the request.
var ErrNoData = errors.New("no data")

// Source is the interface for all daily bar providers.
type Source interface {
	// Name returns the source identifier.
	Name() string
	// FetchDailyBars returns symbol's daily bars in [start, end), ordered by
	// timestamp. Each bar's Timestamp is midnight UTC of its trading day.
	FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// DateRange represents a half-open [Start, End) time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// TradingDay returns midnight UTC of the calendar day t falls on in loc.
func TradingDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewYork is the US exchange time zone, or a fixed UTC-5 zone when the tz
// database is unavailable.
var NewYork = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}()

// Normalize sorts bars by timestamp, drops duplicates (keeping the last one
// seen) and keeps only those inside r.
func Normalize(bars []domain.Bar, r DateRange) []domain.Bar {
	byDay := make(map[int64]domain.Bar, len(bars))
	for _, b := range bars {
		if r.Contains(b.Timestamp) {
			byDay[b.Timestamp.Unix()] = b
		}
	}
	out := make([]domain.Bar, 0, len(byDay))
	for _, b := range byDay {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// HTTPError is a non-200 response from a provider's REST API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether a fetch that failed with err may succeed when
// repeated. Missing data and cancellation are final, as are client errors
// other than 429.
func Retryable(err error) bool {
	if errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return true
}
