// Package market loads daily price history from the Yahoo Finance chart API.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"

	"github.com/run-bigpig/watchdog/internal/logger"
	"github.com/run-bigpig/watchdog/internal/models"
)

var log = logger.New("market")

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	// lastPriceWindowDays window fetched when only the last price is needed
	lastPriceWindowDays = 5
)

// ErrNoData unknown symbol or empty series
var ErrNoData = models.ErrNoData

// Series daily closes and the latest traded price
type Series struct {
	Symbol    string         `json:"symbol"`
	Closes    []models.Close `json:"closes"`
	LastPrice float64        `json:"last_price"`
}

// Config client settings
type Config struct {
	BaseURL   string
	RateLimit float64 // requests per second, 0 disables limiting
	Timeout   time.Duration
	Cache     *FileCache
}

// Service Yahoo Finance price history source
type Service struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *FileCache
}

// NewService creates the price history service
func NewService(cfg Config) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Service{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		cache:      cfg.Cache,
	}
}

// DailyCloses trailing daily closes, oldest first
func (s *Service) DailyCloses(ctx context.Context, symbol string, windowDays int) ([]models.Close, error) {
	series, err := s.GetSeries(ctx, symbol, windowDays)
	if err != nil {
		return nil, err
	}
	return series.Closes, nil
}

// LastPrice latest traded price
func (s *Service) LastPrice(ctx context.Context, symbol string) (float64, error) {
	series, err := s.GetSeries(ctx, symbol, lastPriceWindowDays)
	if err != nil {
		return 0, err
	}
	return series.LastPrice, nil
}

// GetSeries fetches (or loads from cache) a daily series
func (s *Service) GetSeries(ctx context.Context, symbol string, windowDays int) (Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Series{}, goerr.Wrap(ErrNoData, "empty symbol")
	}
	key := fmt.Sprintf("%s_%d", symbol, windowDays)

	if s.cache != nil {
		if series, ok := s.cache.Get(key); ok {
			return series, nil
		}
	}

	series, err := s.fetchChart(ctx, symbol, windowDays)
	if err != nil {
		return Series{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(key, series); err != nil {
			log.Warn("cache write for %s failed: %v", key, err)
		}
	}
	return series, nil
}

// chartResponse v8 chart payload
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// fetchChart calls the chart endpoint
func (s *Service) fetchChart(ctx context.Context, symbol string, windowDays int) (Series, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Series{}, err
	}

	now := time.Now()
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", now.AddDate(0, 0, -windowDays).Unix()))
	params.Set("period2", fmt.Sprintf("%d", now.Unix()))
	params.Set("interval", "1d")
	params.Set("events", "history")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Series{}, goerr.Wrap(err, "failed to build chart request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Series{}, goerr.Wrap(err, "chart request failed", goerr.V("symbol", symbol))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Series{}, goerr.Wrap(err, "failed to read chart response", goerr.V("symbol", symbol))
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return Series{}, goerr.Wrap(err, "failed to decode chart response",
			goerr.V("symbol", symbol), goerr.V("status", resp.StatusCode))
	}

	if chart.Chart.Error != nil {
		if resp.StatusCode == http.StatusNotFound || chart.Chart.Error.Code == "Not Found" {
			return Series{}, goerr.Wrap(ErrNoData, chart.Chart.Error.Description, goerr.V("symbol", symbol))
		}
		return Series{}, goerr.New("chart API error",
			goerr.V("symbol", symbol), goerr.V("code", chart.Chart.Error.Code),
			goerr.V("description", chart.Chart.Error.Description))
	}
	if resp.StatusCode != http.StatusOK {
		return Series{}, goerr.New("unexpected chart status", goerr.V("symbol", symbol), goerr.V("status", resp.StatusCode))
	}
	if len(chart.Chart.Result) == 0 {
		return Series{}, goerr.Wrap(ErrNoData, "empty chart result", goerr.V("symbol", symbol))
	}

	result := chart.Chart.Result[0]
	series := Series{Symbol: symbol, LastPrice: result.Meta.RegularMarketPrice}
	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i, ts := range result.Timestamp {
			if i >= len(closes) || closes[i] == nil {
				continue
			}
			series.Closes = append(series.Closes, models.Close{
				Date:  time.Unix(ts, 0).UTC(),
				Price: *closes[i],
			})
		}
	}

	if len(series.Closes) == 0 {
		return Series{}, goerr.Wrap(ErrNoData, "no closes in window", goerr.V("symbol", symbol))
	}
	if series.LastPrice == 0 {
		series.LastPrice = series.Closes[len(series.Closes)-1].Price
	}

	log.Debug("loaded %d closes for %s", len(series.Closes), symbol)
	return series, nil
}
