package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/run-bigpig/watchdog/internal/models"
)

type registryEntry struct {
	provider   Provider
	descriptor models.ToolDescriptor
}

// ToolRegistry maps tool names to the provider that serves them
type ToolRegistry struct {
	mu        sync.RWMutex
	providers []Provider
	tools     map[string]registryEntry
}

// NewToolRegistry discovers every provider concurrently and registers their
// tools in argument order. Any discovery failure or name collision fails the
// whole registry.
func NewToolRegistry(ctx context.Context, providers ...Provider) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[string]registryEntry)}

	discovered := make([][]Capability, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			caps, err := p.ListCapabilities(gctx)
			if err != nil {
				return goerr.Wrap(err, "tool discovery failed", goerr.V("provider", p.Label()))
			}
			discovered[i] = caps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, p := range providers {
		if err := r.add(p, discovered[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register discovers and adds one more provider
func (r *ToolRegistry) Register(ctx context.Context, p Provider) error {
	caps, err := p.ListCapabilities(ctx)
	if err != nil {
		return goerr.Wrap(err, "tool discovery failed", goerr.V("provider", p.Label()))
	}
	return r.add(p, caps)
}

func (r *ToolRegistry) add(p Provider, caps []Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(caps))
	for _, c := range caps {
		if existing, ok := r.tools[c.Name]; ok {
			return goerr.Wrap(ErrDuplicateTool, "tool name collision",
				goerr.V("tool", c.Name), goerr.V("provider", p.Label()), goerr.V("existing", existing.descriptor.Provider))
		}
		if seen[c.Name] {
			return goerr.Wrap(ErrDuplicateTool, "provider lists tool twice",
				goerr.V("tool", c.Name), goerr.V("provider", p.Label()))
		}
		seen[c.Name] = true
	}

	label := p.Label()
	for _, c := range caps {
		r.tools[c.Name] = registryEntry{
			provider: p,
			descriptor: models.ToolDescriptor{
				Name:        c.Name,
				Description: fmt.Sprintf("[%s] %s", label, strings.TrimSpace(c.Description)),
				InputSchema: slices.Clone(c.InputSchema),
				Provider:    label,
			},
		}
	}
	r.providers = append(r.providers, p)
	log.Info("registered %d tools from %s", len(caps), label)
	return nil
}

// ListDescriptors all tools sorted by name. The result is a copy.
func (r *ToolRegistry) ListDescriptors() []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ToolDescriptor, 0, len(r.tools))
	for _, e := range r.tools {
		d := e.descriptor
		d.InputSchema = slices.Clone(d.InputSchema)
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b models.ToolDescriptor) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Resolve finds the provider for a tool name
func (r *ToolRegistry) Resolve(name string) (Provider, models.ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return nil, models.ToolDescriptor{}, goerr.Wrap(ErrUnknownTool, fmt.Sprintf("no provider exposes %q", name))
	}
	d := e.descriptor
	d.InputSchema = slices.Clone(d.InputSchema)
	return e.provider, d, nil
}

// Labels provider labels in registration order
func (r *ToolRegistry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.providers))
	for i, p := range r.providers {
		out[i] = p.Label()
	}
	return out
}

// Close closes every provider that holds resources
func (r *ToolRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, goerr.Wrap(err, "failed to close provider", goerr.V("provider", p.Label())))
			}
		}
	}
	r.providers = nil
	r.tools = make(map[string]registryEntry)
	return errors.Join(errs...)
}
