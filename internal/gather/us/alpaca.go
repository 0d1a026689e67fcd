// Package us implements US equity data sources.
package us

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"marketsignal/internal/domain"
	"marketsignal/internal/gather"
)

var _ gather.Source = (*AlpacaSource)(nil)

// AlpacaSource fetches daily bars from the Alpaca market-data API.
type AlpacaSource struct {
	client *marketdata.Client
	feed   string
	log    *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource. An empty dataURL uses the SDK's
// default endpoint; an empty feed uses "iex", which free accounts can read.
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}

	return &AlpacaSource{
		client: marketdata.NewClient(opts),
		feed:   feed,
		log:    slog.Default().With("source", "alpaca"),
	}
}

// Name returns the source identifier.
func (s *AlpacaSource) Name() string { return "alpaca" }

// FetchDailyBars fetches one symbol's daily bars. Alpaca's end bound is
// inclusive, so the last instant before end is requested.
func (s *AlpacaSource) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	symbol = strings.ToUpper(symbol)

	alpacaBars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end.Add(-time.Nanosecond),
		Feed:      marketdata.Feed(s.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  gather.TradingDay(ab.Timestamp, gather.NewYork),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	bars = gather.Normalize(bars, gather.DateRange{Start: start, End: end})
	if len(bars) == 0 {
		return nil, fmt.Errorf("alpaca %s %s..%s: %w", symbol,
			start.Format(time.DateOnly), end.Format(time.DateOnly), gather.ErrNoData)
	}
	s.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars), "feed", s.feed)
	return bars, nil
}
