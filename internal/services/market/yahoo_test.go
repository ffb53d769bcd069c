package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartOK = `{"chart":{"result":[{"meta":{"symbol":"AAPL","regularMarketPrice":191.5},
"timestamp":[1704067200,1704153600,1704240000,1704326400],
"indicators":{"quote":[{"close":[185.1,null,187.2,190.0]}]}}],"error":null}}`

const chartNotFound = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/AAPL"):
			_, _ = w.Write([]byte(chartOK))
		case strings.HasSuffix(r.URL.Path, "/BROKEN"):
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Internal","description":"boom"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(chartNotFound))
		}
	}))
}

func TestDailyCloses(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()

	svc := NewService(Config{BaseURL: srv.URL})
	closes, err := svc.DailyCloses(context.Background(), "aapl", 365)
	require.NoError(t, err)
	require.Len(t, closes, 3)
	assert.Equal(t, 185.1, closes[0].Price)
	assert.Equal(t, 187.2, closes[1].Price)
	assert.Equal(t, 190.0, closes[2].Price)
	assert.True(t, closes[0].Date.Before(closes[1].Date))

	price, err := svc.LastPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 191.5, price)
}

func TestUnknownSymbolIsNoData(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()

	svc := NewService(Config{BaseURL: srv.URL})
	_, err := svc.DailyCloses(context.Background(), "ZZZZ", 365)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))

	_, err = svc.DailyCloses(context.Background(), "BROKEN", 365)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoData))
}

func TestSeriesCache(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	defer srv.Close()

	cache, err := NewFileCache(t.TempDir(), time.Minute)
	require.NoError(t, err)
	svc := NewService(Config{BaseURL: srv.URL, Cache: cache})

	for i := 0; i < 3; i++ {
		_, err := svc.DailyCloses(context.Background(), "AAPL", 30)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFileCacheExpiry(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), time.Nanosecond)
	require.NoError(t, err)
	require.NoError(t, cache.Set("X_1", Series{Symbol: "X", LastPrice: 1}))
	time.Sleep(time.Millisecond)
	_, ok := cache.Get("X_1")
	assert.False(t, ok)
}
