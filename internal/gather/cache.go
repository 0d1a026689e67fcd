package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"marketsignal/internal/domain"
	"marketsignal/internal/store"
	"marketsignal/internal/util"
)

// coverageSlack is how far the first and last cached bars may sit from the
// requested bounds and still count as covering them: weekends plus the
// longest run of market holidays.
const coverageSlack = 7 * 24 * time.Hour

var _ Source = (*CachedSource)(nil)

// CachedSource is a read-through cache of a Source over a BarStore.
type CachedSource struct {
	src    Source
	store  store.BarStore
	market string

	// Refresh skips the cache lookup; fetched bars are still written.
	Refresh     bool
	MaxAttempts int
	BaseDelay   time.Duration

	now func() time.Time
	log *slog.Logger
}

// NewCachedSource wraps src with a cache kept in s under market.
func NewCachedSource(src Source, s store.BarStore, market string) *CachedSource {
	return &CachedSource{
		src:         src,
		store:       s,
		market:      market,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		now:         time.Now,
		log:         slog.Default().With("source", src.Name(), "market", market),
	}
}

// Name returns the wrapped source's name.
func (c *CachedSource) Name() string { return c.src.Name() }

// CachedSymbols lists the symbols with bars in the cache, sorted.
func (c *CachedSource) CachedSymbols(ctx context.Context) ([]string, error) {
	symbols, err := c.store.ListSymbols(ctx, c.market)
	if err != nil {
		return nil, fmt.Errorf("listing cached %s symbols: %w", c.market, err)
	}
	return symbols, nil
}

// FetchDailyBars serves [start, end) from the cache when it covers the
// range and otherwise fetches from the source with retries, stores the
// result and returns it. A failed cache write is logged, not returned.
func (c *CachedSource) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	log := c.log.With("symbol", symbol)

	if !c.Refresh {
		cached, err := c.store.ReadBars(ctx, symbol, c.market, start, end)
		if err != nil {
			log.Warn("cache read failed", "error", err)
		} else if c.covers(cached, start, end) {
			log.Debug("cache hit", "bars", len(cached))
			return cached, nil
		}
	}

	var bars []domain.Bar
	err := util.Retry(ctx, max(c.MaxAttempts, 1), c.BaseDelay, func() error {
		var err error
		bars, err = c.src.FetchDailyBars(ctx, symbol, start, end)
		if err != nil && !Retryable(err) {
			return util.Permanent(err)
		}
		if err != nil {
			log.Warn("fetch failed", "error", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	bars = Normalize(bars, DateRange{Start: start, End: end})
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: %w", c.src.Name(), symbol, ErrNoData)
	}

	if err := c.store.WriteBars(ctx, c.market, bars); err != nil {
		log.Warn("cache write failed", "error", err)
	}
	log.Info("fetched bars", "bars", len(bars),
		"first", bars[0].Timestamp.Format(time.DateOnly),
		"last", bars[len(bars)-1].Timestamp.Format(time.DateOnly))
	return bars, nil
}

// covers reports whether cached bars span [start, end) up to coverageSlack
// at either end with no hole wider than coverageSlack in between. Year files
// are merged independently, so two short fetches far apart leave such holes.
// The end bound is capped at the current time.
func (c *CachedSource) covers(cached []domain.Bar, start, end time.Time) bool {
	if len(cached) == 0 {
		return false
	}
	if now := c.now(); end.After(now) {
		end = now
	}
	first, last := cached[0].Timestamp, cached[len(cached)-1].Timestamp
	if first.After(start.Add(coverageSlack)) || last.Before(end.Add(-coverageSlack)) {
		return false
	}
	for i := 1; i < len(cached); i++ {
		if cached[i].Timestamp.Sub(cached[i-1].Timestamp) > coverageSlack {
			return false
		}
	}
	return true
}

// FetchResult is the outcome of warming the cache for one symbol.
type FetchResult struct {
	Symbol string
	Bars   int
	Err    error
}

// FetchAll fetches every symbol through the cache with up to workers
// requests in flight, each waiting on rl first. Per-symbol failures are
// reported in the results; the returned error is non-nil only when ctx ends.
func (c *CachedSource) FetchAll(ctx context.Context, symbols []string, start, end time.Time, workers int, rl *util.RateLimiter) ([]FetchResult, error) {
	results := make([]FetchResult, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i, sym := range symbols {
		g.Go(func() error {
			if err := rl.Wait(gctx); err != nil {
				return err
			}
			bars, err := c.FetchDailyBars(gctx, sym, start, end)
			if errors.Is(err, context.Canceled) {
				return err
			}
			results[i] = FetchResult{Symbol: strings.ToUpper(sym), Bars: len(bars), Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
