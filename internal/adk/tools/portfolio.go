package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/watchdog/internal/risk"
)

// PortfolioInput portfolio lookup input
type PortfolioInput struct {
	Username string `json:"username" jsonschema:"portfolio owner"`
}

// TradeInput buy or sell input
type TradeInput struct {
	Username string  `json:"username" jsonschema:"portfolio owner"`
	Ticker   string  `json:"ticker" jsonschema:"ticker symbol, e.g. AAPL"`
	Shares   float64 `json:"shares" jsonschema:"number of shares, must be positive"`
}

func (r *Registry) addPortfolioTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_portfolio_health",
		Description: "Analyzes TOTAL portfolio risk. Returns total value, portfolio VaR (95%) and weighted volatility with a per-holding breakdown.",
	}, r.checkPortfolioHealth)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "buy_asset",
		Description: "Buys shares of a stock (long position).",
	}, r.trade(1, "buy_asset", "BOUGHT"))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sell_asset",
		Description: "Sells shares of a stock (reduces the position).",
	}, r.trade(-1, "sell_asset", "SOLD"))
}

func (r *Registry) checkPortfolioHealth(ctx context.Context, _ *mcp.CallToolRequest, input PortfolioInput) (*mcp.CallToolResult, any, error) {
	log.Info("[Tool:check_portfolio_health] start, username=%s", input.Username)

	positions, err := r.portfolio.GetPositions(ctx, input.Username)
	if err != nil {
		log.Warn("[Tool:check_portfolio_health] load failed: %v", err)
		return errorResult(fmt.Sprintf("Database Error: %v", err)), nil, nil
	}
	if len(positions) == 0 {
		return textResult("Portfolio is empty."), nil, nil
	}

	snap, err := r.engine.ComputePortfolioRisk(ctx, positions)
	if err != nil {
		return errorResult(fmt.Sprintf("Risk Error: %v", err)), nil, nil
	}
	log.Info("[Tool:check_portfolio_health] done, %d positions, %d skipped", len(snap.Positions), len(snap.Skipped))
	return textResult(risk.FormatPortfolioReport(input.Username, snap)), nil, nil
}

func (r *Registry) trade(sign float64, name, verb string) mcp.ToolHandlerFor[TradeInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TradeInput) (*mcp.CallToolResult, any, error) {
		ticker := strings.ToUpper(strings.TrimSpace(input.Ticker))
		log.Info("[Tool:%s] start, username=%s, ticker=%s, shares=%v", name, input.Username, ticker, input.Shares)

		if input.Username == "" || ticker == "" {
			return errorResult("username and ticker are required"), nil, nil
		}
		if input.Shares <= 0 {
			return errorResult("shares must be positive"), nil, nil
		}
		if err := r.portfolio.RecordTransaction(ctx, input.Username, ticker, sign*input.Shares); err != nil {
			log.Warn("[Tool:%s] failed: %v", name, err)
			return errorResult(fmt.Sprintf("Database Error: %v", err)), nil, nil
		}
		log.Info("[Tool:%s] done", name)
		return textResult(fmt.Sprintf("%s: %s of %s.", verb, humanize.Ftoa(input.Shares), ticker)), nil, nil
	}
}
