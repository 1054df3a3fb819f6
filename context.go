package services

import (
	"context"

	"github.com/go-logr/logr"
)

type chainKey struct{}

// resolutionChain returns the names being initialized on the path that led
// to ctx, outermost first.
func resolutionChain(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	chain, _ := ctx.Value(chainKey{}).([]string)
	return chain
}

func withResolution(ctx context.Context, chain []string, name string) context.Context {
	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, chainKey{}, append(next, name))
}

// ServiceContext is handed to lifecycle hooks. It embeds the context the
// hook runs under and exposes the service's scoped settings.
type ServiceContext struct {
	context.Context

	name     string
	settings Settings
	logger   logr.Logger
	registry *Registry
}

func newServiceContext(ctx context.Context, r *Registry, desc *Descriptor) *ServiceContext {
	return &ServiceContext{
		Context:  ctx,
		name:     desc.Name,
		settings: desc.Settings,
		logger:   r.logger.WithValues("service", desc.Name),
		registry: r,
	}
}

// Name returns the name of the service the hook belongs to.
func (c *ServiceContext) Name() string {
	return c.name
}

// Settings returns the service's configuration.
func (c *ServiceContext) Settings() Settings {
	return c.settings.Clone()
}

// Logger returns a logger tagged with the service name.
func (c *ServiceContext) Logger() logr.Logger {
	return c.logger
}

// Registry returns the registry that owns the service.
func (c *ServiceContext) Registry() *Registry {
	return c.registry
}

// Get resolves another service as a dependency of this one. Resolving
// through the hook's context lets the registry detect dependency cycles.
func (c *ServiceContext) Get(name string) (Service, error) {
	return c.registry.Get(c, name)
}
