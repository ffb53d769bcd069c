package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/watchdog/internal/memory"
)

// EmptyMemoryMessage returned when nothing has been collected yet
const EmptyMemoryMessage = "Local memory is empty. Fetch news first."

// InvestigateMarketInput news scrape input
type InvestigateMarketInput struct {
	Topic string `json:"topic" jsonschema:"topic or ticker to research, e.g. Federal Reserve or NVDA"`
}

// SearchMemoryInput memory query input
type SearchMemoryInput struct {
	Query string `json:"query" jsonschema:"what to look for in previously collected headlines"`
}

func (r *Registry) addNewsTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "investigate_market",
		Description: "Scrapes AP News for a topic and memorizes the top headlines locally.",
	}, r.investigateMarket)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_market_memory",
		Description: "Finds the most relevant previously collected headline by semantic similarity.",
	}, r.searchMemory)
}

func (r *Registry) investigateMarket(ctx context.Context, _ *mcp.CallToolRequest, input InvestigateMarketInput) (*mcp.CallToolResult, any, error) {
	log.Info("[Tool:investigate_market] start, topic=%s", input.Topic)

	headlines, err := r.news.Search(ctx, input.Topic)
	if err != nil {
		log.Warn("[Tool:investigate_market] scrape failed: %v", err)
		return errorResult(fmt.Sprintf("Scraping Error: %v", err)), nil, nil
	}
	if len(headlines) == 0 {
		return textResult("No articles found (HTML structure might have changed). Try the [WEB] search tools."), nil, nil
	}

	texts := make([]string, len(headlines))
	for i, h := range headlines {
		texts[i] = h.Text
	}
	n, err := r.memory.Ingest(ctx, texts)
	if err != nil {
		log.Warn("[Tool:investigate_market] ingest failed: %v", err)
		return errorResult(fmt.Sprintf("Memory Error: %v", err)), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Memorized %d new articles locally:\n", n)
	for _, t := range texts {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	log.Info("[Tool:investigate_market] done, %d headlines", n)
	return textResult(sb.String()), nil, nil
}

func (r *Registry) searchMemory(ctx context.Context, _ *mcp.CallToolRequest, input SearchMemoryInput) (*mcp.CallToolResult, any, error) {
	log.Info("[Tool:search_market_memory] start, query=%s", input.Query)

	record, score, err := r.memory.Query(ctx, input.Query)
	if errors.Is(err, memory.ErrEmptyStore) {
		return textResult(EmptyMemoryMessage), nil, nil
	}
	if err != nil {
		log.Warn("[Tool:search_market_memory] query failed: %v", err)
		return errorResult(fmt.Sprintf("Memory Error: %v", err)), nil, nil
	}

	log.Info("[Tool:search_market_memory] done, score=%.3f", score)
	return textResult(fmt.Sprintf("FOUND LOCAL MATCH: '%s' (similarity %.2f, captured %s)",
		record.Text, score, record.CapturedAt.Format("2006-01-02 15:04"))), nil, nil
}
