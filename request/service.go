// Package request holds the per-request objects the runtime pools: request
// contexts and parameter parsers, and the service that owns their pools.
package request

import (
	"context"
	"errors"
	"fmt"

	services "github.com/centraunit/goallin_lifecycle"
	"github.com/centraunit/goallin_lifecycle/logging"
	"github.com/centraunit/goallin_lifecycle/pool"
)

// Implementation is the catalog identifier of Service.
const Implementation = "request.pools"

// Setting keys understood by Service.
const (
	MaxIdleKey   = "maxIdle"
	WarmupKey    = "warmup"
	MaxParamsKey = "maxParams"
)

const (
	defaultMaxIdle   = 256
	defaultMaxParams = 1000
)

// Service owns the request context and parameter parser pools. The pools live
// exactly as long as the service: created at boot, closed at shutdown.
type Service struct {
	contexts *pool.Pool[*Context]
	parsers  *pool.Pool[*ParamParser]
}

// NewService is the catalog factory for Service.
func NewService() services.Service {
	return &Service{}
}

// Bind registers Service in catalog under Implementation.
func Bind(catalog *services.Catalog) error {
	return catalog.Bind(Implementation, NewService)
}

// FromRegistry resolves the request service registered under name.
func FromRegistry(ctx context.Context, r *services.Registry, name string) (*Service, error) {
	return services.Resolve[*Service](ctx, r, name)
}

func (s *Service) OnBoot(ctx *services.ServiceContext) error {
	settings := ctx.Settings()
	maxIdle, err := settings.Int(MaxIdleKey, defaultMaxIdle)
	if err != nil {
		return err
	}
	warmup, err := settings.Int(WarmupKey, 0)
	if err != nil {
		return err
	}
	maxParams, err := settings.Int(MaxParamsKey, defaultMaxParams)
	if err != nil {
		return err
	}

	logger := ctx.Logger()
	s.contexts = pool.New(ctx.Name()+".contexts", newContext,
		pool.WithMaxIdle(maxIdle), pool.WithLogger(logger))
	s.parsers = pool.New(ctx.Name()+".parsers", func() *ParamParser { return newParamParser(maxParams) },
		pool.WithMaxIdle(maxIdle), pool.WithLogger(logger))

	if err := s.contexts.Warmup(warmup); err != nil {
		return fmt.Errorf("warming context pool: %w", err)
	}
	if err := s.parsers.Warmup(warmup); err != nil {
		return fmt.Errorf("warming parser pool: %w", err)
	}

	logger.V(logging.VERBOSE).Info("Request pools ready", "maxIdle", maxIdle, "warmup", warmup, "maxParams", maxParams)
	return nil
}

func (s *Service) OnShutdown(ctx *services.ServiceContext) error {
	cs, ps := s.contexts.Stats(), s.parsers.Stats()
	s.contexts.Close()
	s.parsers.Close()
	ctx.Logger().V(logging.VERBOSE).Info("Request pools closed",
		"contextsAllocated", cs.Allocated, "contextsOutstanding", cs.CheckedOut,
		"parsersAllocated", ps.Allocated, "parsersOutstanding", ps.CheckedOut)
	return nil
}

// Contexts returns the request context pool.
func (s *Service) Contexts() *pool.Pool[*Context] {
	return s.contexts
}

// Parsers returns the parameter parser pool.
func (s *Service) Parsers() *pool.Pool[*ParamParser] {
	return s.parsers
}

// Begin checks out a fresh request context stamped with a new ID.
// The caller must hand it back with End.
func (s *Service) Begin() (*Context, error) {
	c, err := s.contexts.Checkout()
	if err != nil {
		return nil, err
	}
	c.begin()
	return c, nil
}

// End returns a request context to the pool.
func (s *Service) End(c *Context) error {
	return s.contexts.Release(c)
}

// Do runs fn with a request context, handing the context back on every exit
// path.
func (s *Service) Do(fn func(*Context) error) error {
	return s.contexts.With(func(c *Context) error {
		c.begin()
		return fn(c)
	})
}

// Parse decodes raw with a pooled parser. A parser that hit malformed input
// is disposed rather than reused; the caller gets the *ParseError.
func (s *Service) Parse(raw string) ([]Param, error) {
	var out []Param
	err := s.parsers.With(func(p *ParamParser) error {
		if err := p.Parse(raw); err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				return fmt.Errorf("%w: %w", pool.ErrCorrupted, perr)
			}
			return err
		}
		out = p.Params()
		return nil
	})
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, err
	}
	return out, nil
}
