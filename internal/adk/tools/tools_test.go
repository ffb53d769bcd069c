package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adkmcp "github.com/run-bigpig/watchdog/internal/adk/mcp"
	"github.com/run-bigpig/watchdog/internal/adk/tools"
	"github.com/run-bigpig/watchdog/internal/memory"
	"github.com/run-bigpig/watchdog/internal/models"
	"github.com/run-bigpig/watchdog/internal/services/notify"
)

type fakePortfolio struct {
	mu      sync.Mutex
	holding map[string]map[string]float64
	err     error
}

func (f *fakePortfolio) GetPositions(_ context.Context, username string) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Position
	for sym, qty := range f.holding[username] {
		if qty > 0 {
			out = append(out, models.Position{Symbol: sym, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (f *fakePortfolio) RecordTransaction(_ context.Context, username, symbol string, quantity float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.holding[username] == nil {
		f.holding[username] = map[string]float64{}
	}
	f.holding[username][symbol] += quantity
	return nil
}

type fakePrices struct{}

func (fakePrices) DailyCloses(_ context.Context, symbol string, _ int) ([]models.Close, error) {
	if symbol != "AAPL" {
		return nil, models.ErrNoData
	}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{100, 110, 99, 108.9, 98.01}
	out := make([]models.Close, len(prices))
	for i, p := range prices {
		out[i] = models.Close{Date: start.AddDate(0, 0, i), Price: p}
	}
	return out, nil
}

func (fakePrices) LastPrice(_ context.Context, symbol string) (float64, error) {
	if symbol != "AAPL" {
		return 0, models.ErrNoData
	}
	return 100, nil
}

type fakeNews struct {
	headlines []models.Headline
	err       error
}

func (f *fakeNews) Search(context.Context, string) ([]models.Headline, error) {
	return f.headlines, f.err
}

type fakeMemory struct {
	texts []string
}

func (f *fakeMemory) Ingest(_ context.Context, fragments []string) (int, error) {
	f.texts = append(f.texts, fragments...)
	return len(fragments), nil
}

func (f *fakeMemory) Query(_ context.Context, text string) (memory.MemoryRecord, float64, error) {
	if len(f.texts) == 0 {
		return memory.MemoryRecord{}, 0, memory.ErrEmptyStore
	}
	return memory.MemoryRecord{Text: f.texts[0], CapturedAt: time.Now()}, 0.87, nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Name() string { return "discord" }

func (f *fakeNotifier) SendAlert(_ context.Context, subject, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, notify.FormatAlert(subject, message))
	return nil
}

type fixture struct {
	provider  *adkmcp.Provider
	portfolio *fakePortfolio
	news      *fakeNews
	memory    *fakeMemory
	notifier  *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		portfolio: &fakePortfolio{holding: map[string]map[string]float64{}},
		news:      &fakeNews{},
		memory:    &fakeMemory{},
		notifier:  &fakeNotifier{},
	}
	registry := tools.NewRegistry(tools.Deps{
		Portfolio: f.portfolio,
		Prices:    fakePrices{},
		News:      f.news,
		Memory:    f.memory,
		Notifier:  f.notifier,
	})

	manager := adkmcp.NewManager("watchdog-test")
	t.Cleanup(func() { _ = manager.Close() })
	p, err := manager.ConnectInMemory(context.Background(), "local", "LOCAL", registry.NewServer())
	require.NoError(t, err)
	f.provider = p
	return f
}

func (f *fixture) call(t *testing.T, name string, args any) (string, error) {
	t.Helper()
	body, err := json.Marshal(args)
	require.NoError(t, err)
	return f.provider.Invoke(context.Background(), name, body)
}

func TestListCapabilities(t *testing.T) {
	f := newFixture(t)
	caps, err := f.provider.ListCapabilities(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, c.Name)
		assert.NotEmpty(t, c.Description)
		assert.True(t, json.Valid(c.InputSchema), c.Name)
	}
	assert.ElementsMatch(t, []string{
		"investigate_market", "search_market_memory", "get_price", "check_asset_risk",
		"check_portfolio_health", "buy_asset", "sell_asset", "send_alert",
	}, names)
}

func TestInvestigateAndRecall(t *testing.T) {
	f := newFixture(t)

	out, err := f.call(t, "search_market_memory", map[string]string{"query": "fed"})
	require.NoError(t, err)
	assert.Equal(t, tools.EmptyMemoryMessage, out)

	out, err = f.call(t, "investigate_market", map[string]string{"topic": "fed"})
	require.NoError(t, err)
	assert.Contains(t, out, "No articles found")

	f.news.headlines = []models.Headline{{Text: "Fed holds rates steady"}, {Text: "Oil slides"}}
	out, err = f.call(t, "investigate_market", map[string]string{"topic": "fed"})
	require.NoError(t, err)
	assert.Contains(t, out, "Memorized 2 new articles locally")
	assert.Contains(t, out, "- Oil slides")

	out, err = f.call(t, "search_market_memory", map[string]string{"query": "interest rates"})
	require.NoError(t, err)
	assert.Contains(t, out, "FOUND LOCAL MATCH: 'Fed holds rates steady'")
	assert.Contains(t, out, "0.87")

	f.news.err = errors.New("connection reset")
	_, err = f.call(t, "investigate_market", map[string]string{"topic": "fed"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, adkmcp.ErrToolReportedError))
	assert.Contains(t, err.Error(), "Scraping Error")
}

func TestTradingAndHealth(t *testing.T) {
	f := newFixture(t)

	out, err := f.call(t, "check_portfolio_health", map[string]string{"username": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "Portfolio is empty.", out)

	out, err = f.call(t, "buy_asset", map[string]any{"username": "alice", "ticker": "aapl", "shares": 10})
	require.NoError(t, err)
	assert.Equal(t, "BOUGHT: 10 of AAPL.", out)

	out, err = f.call(t, "sell_asset", map[string]any{"username": "alice", "ticker": "AAPL", "shares": 2.5})
	require.NoError(t, err)
	assert.Equal(t, "SOLD: 2.5 of AAPL.", out)
	assert.Equal(t, 7.5, f.portfolio.holding["alice"]["AAPL"])

	_, err = f.call(t, "buy_asset", map[string]any{"username": "alice", "ticker": "AAPL", "shares": -1})
	require.Error(t, err)
	assert.Equal(t, 7.5, f.portfolio.holding["alice"]["AAPL"])

	f.portfolio.holding["alice"]["ZZZZ"] = 3
	out, err = f.call(t, "check_portfolio_health", map[string]string{"username": "alice"})
	require.NoError(t, err)
	assert.Contains(t, out, "PORTFOLIO REPORT for alice")
	assert.Contains(t, out, "Total Value: $750")
	assert.Contains(t, out, "- AAPL")
	assert.Contains(t, out, "Excluded (no usable data)")
}

func TestPriceAndAssetRisk(t *testing.T) {
	f := newFixture(t)

	out, err := f.call(t, "get_price", map[string]string{"ticker": "aapl"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL: $100.00", out)

	_, err = f.call(t, "get_price", map[string]string{"ticker": "NOPE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No price data for NOPE")

	out, err = f.call(t, "check_asset_risk", map[string]any{"ticker": "AAPL", "shares": 10})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "AAPL x 10 @ $100"))
	assert.Contains(t, out, "VaR 95%: $100")
}

func TestSendAlert(t *testing.T) {
	f := newFixture(t)

	out, err := f.call(t, "send_alert", map[string]string{"subject": "Drop", "message": "AAPL down 5%"})
	require.NoError(t, err)
	assert.Contains(t, out, "sent to discord")
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "AGENT ALERT: Drop\n\nAAPL down 5%", f.notifier.sent[0])

	f.notifier.err = notify.ErrNotConfigured
	_, err = f.call(t, "send_alert", map[string]string{"subject": "x", "message": "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
