// Package yahoo fetches daily bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketsignal/internal/domain"
	"marketsignal/internal/gather"
)

// DefaultBaseURL is the public chart API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

var _ gather.Source = (*Source)(nil)

// Source implements gather.Source using the Yahoo Finance v8 chart API.
type Source struct {
	baseURL    string
	client     *http.Client
	autoAdjust bool
	log        *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL points the source at another host, such as a test server.
func WithBaseURL(u string) Option {
	return func(s *Source) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout bounds each request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) { s.client.Timeout = d }
}

// WithAutoAdjust controls whether open, high, low and close are scaled by
// the adjusted-close ratio for splits and dividends. It is on by default.
func WithAutoAdjust(on bool) Option {
	return func(s *Source) { s.autoAdjust = on }
}

// New creates a Source. A non-empty proxyURL routes requests through that
// proxy.
func New(proxyURL string, opts ...Option) (*Source, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	s := &Source{
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		autoAdjust: true,
		log:        slog.Default().With("source", "yahoo"),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Name returns "yahoo".
func (s *Source) Name() string { return "yahoo" }

// chartResponse is the response structure of the chart API. Prices are
// pointers because the API reports missing sessions as null.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
				GMTOffset            int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDailyBars fetches symbol's daily bars in [start, end).
func (s *Source) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}

	var chart chartResponse
	decodeErr := json.Unmarshal(body, &chart)
	if decodeErr == nil && chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" || resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("yahoo %s: %s: %w", symbol, chart.Chart.Error.Description, gather.ErrNoData)
		}
		return nil, fmt.Errorf("yahoo %s: api error %s: %s", symbol, chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, &gather.HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)})
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("yahoo decode: %w", decodeErr)
	}

	bars := s.toBars(symbol, &chart)
	bars = gather.Normalize(bars, gather.DateRange{Start: start, End: end})
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo %s %s..%s: %w", symbol,
			start.Format(time.DateOnly), end.Format(time.DateOnly), gather.ErrNoData)
	}
	s.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

func (s *Source) toBars(symbol string, chart *chartResponse) []domain.Bar {
	if len(chart.Chart.Result) == 0 {
		return nil
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	loc := time.FixedZone("exchange", result.Meta.GMTOffset)
	if result.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(result.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}

	bars := make([]domain.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue // no session (holiday or halted)
		}
		b := domain.Bar{
			Symbol:    symbol,
			Timestamp: gather.TradingDay(time.Unix(ts, 0), loc),
			Open:      *o,
			High:      *h,
			Low:       *l,
			Close:     *c,
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			b.Volume = *quote.Volume[i]
		}
		if a := at(adj, i); s.autoAdjust && a != nil && b.Close != 0 {
			ratio := *a / b.Close
			b.Open *= ratio
			b.High *= ratio
			b.Low *= ratio
			b.Close = *a
		}
		bars = append(bars, b)
	}
	return bars
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
