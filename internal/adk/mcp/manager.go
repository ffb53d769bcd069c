// Package mcp connects MCP servers as agent tool providers.
package mcp

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/run-bigpig/watchdog/internal/logger"
	"github.com/run-bigpig/watchdog/internal/models"
)

var log = logger.New("mcp")

const clientVersion = "1.0.0"

var ErrServerDisabled = goerr.New("MCP server is disabled")

// ServerStatus connection state of one server
type ServerStatus struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Connected bool   `json:"connected"`
	Tools     int    `json:"tools"`
	Error     string `json:"error,omitempty"`
}

// Manager owns the MCP client sessions of a process
type Manager struct {
	mu        sync.RWMutex
	client    *mcp.Client
	providers map[string]*Provider
	status    map[string]*ServerStatus
}

// NewManager creates an MCP manager
func NewManager(clientName string) *Manager {
	return &Manager{
		client:    mcp.NewClient(&mcp.Implementation{Name: clientName, Version: clientVersion}, nil),
		providers: make(map[string]*Provider),
		status:    make(map[string]*ServerStatus),
	}
}

// Connect starts a session with a configured server
func (m *Manager) Connect(ctx context.Context, cfg models.MCPServerConfig) (*Provider, error) {
	if !cfg.Enabled {
		return nil, goerr.Wrap(ErrServerDisabled, "cannot connect", goerr.V("id", cfg.ID))
	}
	return m.connect(ctx, cfg.ID, labelOf(cfg), createTransport(&cfg))
}

// ConnectInMemory serves server in-process and connects to it
func (m *Manager) ConnectInMemory(ctx context.Context, id, label string, server *mcp.Server) (*Provider, error) {
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		return nil, goerr.Wrap(err, "failed to start in-memory server", goerr.V("id", id))
	}
	return m.connect(ctx, id, label, clientTransport)
}

func (m *Manager) connect(ctx context.Context, id, label string, transport mcp.Transport) (*Provider, error) {
	session, err := m.client.Connect(ctx, transport, nil)
	if err != nil {
		m.setStatus(&ServerStatus{ID: id, Label: label, Error: err.Error()})
		return nil, goerr.Wrap(err, "failed to connect MCP server", goerr.V("id", id), goerr.V("label", label))
	}

	p := &Provider{id: id, label: label, session: session}
	m.mu.Lock()
	if old, ok := m.providers[id]; ok {
		_ = old.Close()
	}
	m.providers[id] = p
	m.status[id] = &ServerStatus{ID: id, Label: label, Connected: true}
	m.mu.Unlock()

	log.Info("connected MCP server %s [%s]", id, label)
	return p, nil
}

func (m *Manager) setStatus(s *ServerStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[s.ID] = s
}

// createTransport builds the client transport for a server config
func createTransport(cfg *models.MCPServerConfig) mcp.Transport {
	switch cfg.TransportType {
	case models.MCPTransportSSE:
		return &mcp.SSEClientTransport{Endpoint: cfg.Endpoint}
	case models.MCPTransportCommand:
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = append(os.Environ(), cfg.Env...)
		return &mcp.CommandTransport{Command: cmd}
	default:
		return &mcp.StreamableClientTransport{Endpoint: cfg.Endpoint}
	}
}

func labelOf(cfg models.MCPServerConfig) string {
	switch {
	case cfg.Label != "":
		return cfg.Label
	case cfg.Name != "":
		return cfg.Name
	default:
		return cfg.ID
	}
}

// Provider returns a connected provider by id
func (m *Manager) Provider(id string) (*Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	return p, ok
}

// Status reports every server seen so far
func (m *Manager) Status(ctx context.Context) []ServerStatus {
	m.mu.RLock()
	out := make([]ServerStatus, 0, len(m.status))
	providers := make(map[string]*Provider, len(m.providers))
	for id, s := range m.status {
		out = append(out, *s)
		providers[id] = m.providers[id]
	}
	m.mu.RUnlock()

	for i := range out {
		p := providers[out[i].ID]
		if p == nil || !out[i].Connected {
			continue
		}
		caps, err := p.ListCapabilities(ctx)
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		out[i].Tools = len(caps)
	}
	return out
}

// Close ends every session
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for id, p := range m.providers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
		m.status[id].Connected = false
	}
	m.providers = make(map[string]*Provider)
	return first
}
