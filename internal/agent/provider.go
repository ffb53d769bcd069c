package agent

import (
	"context"
	"encoding/json"
)

// Capability one tool as reported by its provider
type Capability struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Provider a source of tools, such as an MCP server session
type Provider interface {
	// Label short origin tag, e.g. LOCAL or WEB
	Label() string
	ListCapabilities(ctx context.Context) ([]Capability, error)
	// Invoke runs a tool and returns its text output
	Invoke(ctx context.Context, name string, args json.RawMessage) (string, error)
}
