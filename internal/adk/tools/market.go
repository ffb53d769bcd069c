package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/watchdog/internal/risk"
)

// GetPriceInput price lookup input
type GetPriceInput struct {
	Ticker string `json:"ticker" jsonschema:"ticker symbol, e.g. AAPL"`
}

// AssetRiskInput single asset risk input
type AssetRiskInput struct {
	Ticker string  `json:"ticker" jsonschema:"ticker symbol, e.g. AAPL"`
	Shares float64 `json:"shares" jsonschema:"number of shares to evaluate"`
}

func (r *Registry) addMarketTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_price",
		Description: "Returns the latest traded price of a ticker.",
	}, r.getPrice)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_asset_risk",
		Description: "Computes daily change, annual volatility and 95% Value at Risk for one position.",
	}, r.checkAssetRisk)
}

func (r *Registry) getPrice(ctx context.Context, _ *mcp.CallToolRequest, input GetPriceInput) (*mcp.CallToolResult, any, error) {
	ticker := strings.ToUpper(strings.TrimSpace(input.Ticker))
	log.Info("[Tool:get_price] start, ticker=%s", ticker)

	price, err := r.prices.LastPrice(ctx, ticker)
	if errors.Is(err, risk.ErrNoData) {
		return errorResult(fmt.Sprintf("No price data for %s.", ticker)), nil, nil
	}
	if err != nil {
		log.Warn("[Tool:get_price] failed: %v", err)
		return errorResult(fmt.Sprintf("Price Error: %v", err)), nil, nil
	}
	return textResult(fmt.Sprintf("%s: $%.2f", ticker, risk.Round2(price))), nil, nil
}

func (r *Registry) checkAssetRisk(ctx context.Context, _ *mcp.CallToolRequest, input AssetRiskInput) (*mcp.CallToolResult, any, error) {
	ticker := strings.ToUpper(strings.TrimSpace(input.Ticker))
	log.Info("[Tool:check_asset_risk] start, ticker=%s, shares=%v", ticker, input.Shares)

	if input.Shares <= 0 {
		return errorResult("shares must be positive"), nil, nil
	}
	snap, err := r.engine.ComputePositionRisk(ctx, ticker, input.Shares)
	if errors.Is(err, risk.ErrNoData) {
		return errorResult(fmt.Sprintf("No price data for %s.", ticker)), nil, nil
	}
	if err != nil {
		log.Warn("[Tool:check_asset_risk] failed: %v", err)
		return errorResult(fmt.Sprintf("Risk Error: %v", err)), nil, nil
	}
	log.Info("[Tool:check_asset_risk] done")
	return textResult(risk.FormatPositionReport(snap)), nil, nil
}
