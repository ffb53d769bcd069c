package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/run-bigpig/watchdog/internal/models"
)

type fakeProvider struct {
	label    string
	caps     []Capability
	listErr  error
	mu       sync.Mutex
	invoked  []string
	results  map[string]string
	failures map[string]error
	closed   bool
}

func (p *fakeProvider) Label() string { return p.label }

func (p *fakeProvider) ListCapabilities(context.Context) ([]Capability, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.caps, nil
}

func (p *fakeProvider) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	p.mu.Lock()
	p.invoked = append(p.invoked, name+" "+string(args))
	p.mu.Unlock()
	if err := p.failures[name]; err != nil {
		return "", err
	}
	if out, ok := p.results[name]; ok {
		return out, nil
	}
	return "ok:" + name, nil
}

func (p *fakeProvider) Close() error {
	p.closed = true
	return nil
}

func (p *fakeProvider) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.invoked...)
}

const tickerSchema = `{"type":"object","properties":{"ticker":{"type":"string"}},"required":["ticker"]}`

func localProvider() *fakeProvider {
	return &fakeProvider{
		label: "LOCAL",
		caps: []Capability{
			{Name: "get_price", Description: "Latest price", InputSchema: json.RawMessage(tickerSchema)},
			{Name: "investigate_market", Description: "Scrape news", InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"}}}`)},
		},
		results:  map[string]string{"get_price": "AAPL: $100.00"},
		failures: map[string]error{},
	}
}

func webProvider() *fakeProvider {
	return &fakeProvider{
		label: "WEB",
		caps: []Capability{
			{Name: "web_search", Description: "Search the web", InputSchema: json.RawMessage(`{"type":"object"}`)},
		},
		failures: map[string]error{},
	}
}

// scriptedBackend replays replies; the last reply repeats once the script runs out
type scriptedBackend struct {
	mu           sync.Mutex
	replies      []func() *models.AssistantMessage
	errs         []error
	calls        int
	seen         [][]models.Message
	instructions []string
	onCall       func(n int)
}

func (b *scriptedBackend) Next(_ context.Context, instruction string, messages []models.Message, _ []models.ToolDescriptor) (*models.AssistantMessage, error) {
	b.mu.Lock()
	n := b.calls
	b.calls++
	b.seen = append(b.seen, messages)
	b.instructions = append(b.instructions, instruction)
	b.mu.Unlock()

	if b.onCall != nil {
		b.onCall(n)
	}
	if n < len(b.errs) && b.errs[n] != nil {
		return nil, b.errs[n]
	}
	if len(b.replies) == 0 {
		return nil, errors.New("no script")
	}
	if n >= len(b.replies) {
		n = len(b.replies) - 1
	}
	return b.replies[n](), nil
}

func answer(text string) func() *models.AssistantMessage {
	return func() *models.AssistantMessage { return models.NewAssistantMessage(text) }
}

func callTools(calls ...models.ToolCallRequest) func() *models.AssistantMessage {
	return func() *models.AssistantMessage {
		cp := append([]models.ToolCallRequest(nil), calls...)
		return models.NewAssistantMessage("", cp...)
	}
}

func call(id, name, args string) models.ToolCallRequest {
	return models.ToolCallRequest{ID: id, Name: name, Arguments: json.RawMessage(args)}
}
