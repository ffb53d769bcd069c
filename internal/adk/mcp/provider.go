package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/watchdog/internal/agent"
)

var _ agent.Provider = (*Provider)(nil)

var ErrToolReportedError = goerr.New("tool reported an error")

// Provider exposes one MCP client session as an agent tool provider
type Provider struct {
	id      string
	label   string
	session *mcp.ClientSession

	closeOnce sync.Once
	closeErr  error
}

// ID server id
func (p *Provider) ID() string { return p.id }

// Label origin tag
func (p *Provider) Label() string { return p.label }

// ListCapabilities pages through the server's tool list
func (p *Provider) ListCapabilities(ctx context.Context) ([]agent.Capability, error) {
	var caps []agent.Capability
	params := &mcp.ListToolsParams{}
	for {
		res, err := p.session.ListTools(ctx, params)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list tools", goerr.V("server", p.id))
		}
		for _, t := range res.Tools {
			schema, err := json.Marshal(t.InputSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to encode input schema", goerr.V("tool", t.Name))
			}
			caps = append(caps, agent.Capability{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schema,
			})
		}
		if res.NextCursor == "" {
			return caps, nil
		}
		params.Cursor = res.NextCursor
	}
}

// Invoke calls a tool and joins its text content
func (p *Provider) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	res, err := p.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", goerr.Wrap(err, "MCP call failed", goerr.V("server", p.id), goerr.V("tool", name))
	}

	text := ResultText(res)
	if res.IsError {
		return "", goerr.Wrap(ErrToolReportedError, text, goerr.V("tool", name))
	}
	return text, nil
}

// ResultText concatenates text content, falling back to structured content
func ResultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		if body, err := json.Marshal(res.StructuredContent); err == nil {
			return string(body)
		}
	}
	return strings.Join(parts, "\n")
}

// Close ends the session
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.session.Close()
	})
	return p.closeErr
}
