// Package tools implements the local MCP server: news research, semantic
// memory, portfolio risk, trading and alerting.
package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/watchdog/internal/logger"
	"github.com/run-bigpig/watchdog/internal/memory"
	"github.com/run-bigpig/watchdog/internal/models"
	"github.com/run-bigpig/watchdog/internal/risk"
	"github.com/run-bigpig/watchdog/internal/services/notify"
)

var log = logger.New("tools")

const (
	ServerName    = "portfolio-watchdog"
	ServerVersion = "1.0.0"
)

// Portfolio holdings persistence
type Portfolio interface {
	GetPositions(ctx context.Context, username string) ([]models.Position, error)
	RecordTransaction(ctx context.Context, username, symbol string, quantity float64) error
}

// HeadlineSource news search
type HeadlineSource interface {
	Search(ctx context.Context, query string) ([]models.Headline, error)
}

// Memory semantic fragment store
type Memory interface {
	Ingest(ctx context.Context, fragments []string) (int, error)
	Query(ctx context.Context, text string) (memory.MemoryRecord, float64, error)
}

// Deps collaborators of the local tools
type Deps struct {
	Portfolio Portfolio
	Prices    risk.PriceSource
	News      HeadlineSource
	Memory    Memory
	Notifier  notify.Notifier
	// WindowDays trailing history for risk, 0 uses the default
	WindowDays int
}

// Registry builds the local tool server
type Registry struct {
	portfolio Portfolio
	prices    risk.PriceSource
	engine    *risk.Engine
	news      HeadlineSource
	memory    Memory
	notifier  notify.Notifier
}

// NewRegistry creates the tool registry
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		portfolio: deps.Portfolio,
		prices:    deps.Prices,
		engine:    risk.NewEngine(deps.Prices, deps.WindowDays),
		news:      deps.News,
		memory:    deps.Memory,
		notifier:  deps.Notifier,
	}
}

// NewServer returns an MCP server exposing every local tool
func (r *Registry) NewServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: ServerVersion}, nil)
	r.addNewsTools(server)
	r.addMarketTools(server)
	r.addPortfolioTools(server)
	r.addAlertTool(server)
	return server
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}, IsError: true}
}
