// Package pool provides a generic, concurrency-safe pool of recyclable
// objects.
//
// Unlike sync.Pool, a Pool tracks every instance it hands out, so releasing
// an instance twice is reported instead of silently corrupting the idle set,
// and instances that have been disposed never come back from Checkout.
//
// Example:
//
//	parsers := pool.New("params", newParser, pool.WithMaxIdle(64))
//	err := parsers.With(func(p *Parser) error {
//		return p.Parse(raw)
//	})
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/centraunit/goallin_lifecycle/logging"
	"github.com/centraunit/goallin_lifecycle/metrics"
)

// Factory produces a brand-new instance when the pool has none idle.
type Factory[T Poolable] func() T

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Allocated  uint64 // instances created by the factory
	Reused     uint64 // checkouts served from the idle stack
	Disposed   uint64 // instances permanently retired
	Idle       int    // instances currently available
	CheckedOut int    // instances currently held by callers
}

type options struct {
	maxIdle int
	logger  logr.Logger
}

// Option configures a Pool.
type Option func(*options)

// WithMaxIdle bounds the number of idle instances kept. Instances handed back
// while the idle stack is full are disposed. Zero means unbounded.
func WithMaxIdle(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIdle = n
		}
	}
}

// WithLogger sets the logger used for pool lifecycle events.
func WithLogger(logger logr.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Pool reuses instances of T across many short-lived uses.
//
// The idle stack is LIFO: the most recently returned instance is handed out
// first. Checkout never blocks waiting for an instance; the pool grows on
// demand.
type Pool[T Poolable] struct {
	name    string
	factory Factory[T]
	maxIdle int
	logger  logr.Logger

	mu         sync.Mutex
	available  []T
	checkedOut map[T]struct{}
	closed     bool

	allocated uint64
	reused    uint64
	disposed  uint64
}

// New creates a pool named name. The name labels metrics and log lines.
func New[T Poolable](name string, factory Factory[T], opts ...Option) *Pool[T] {
	o := options{logger: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Pool[T]{
		name:       name,
		factory:    factory,
		maxIdle:    o.maxIdle,
		logger:     o.logger.WithValues("pool", name),
		available:  make([]T, 0, 8),
		checkedOut: make(map[T]struct{}, 8),
	}
}

// Name returns the pool name.
func (p *Pool[T]) Name() string {
	return p.name
}

// Checkout returns an idle instance, or a new one from the factory when none
// is idle. The caller owns the instance until it calls Release or Dispose.
func (p *Pool[T]) Checkout() (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrPoolClosed
	}
	for len(p.available) > 0 {
		last := len(p.available) - 1
		inst := p.available[last]
		p.available[last] = zero
		p.available = p.available[:last]
		if inst.IsDisposed() {
			p.disposed++
			continue
		}
		p.checkedOut[inst] = struct{}{}
		p.reused++
		idle := len(p.available)
		p.mu.Unlock()

		metrics.RecordPoolCheckout(p.name, true)
		metrics.SetPoolIdle(p.name, idle)
		return inst, nil
	}
	p.mu.Unlock()

	inst := p.factory()
	if inst == zero {
		return zero, ErrNilInstance
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		inst.Dispose()
		return zero, ErrPoolClosed
	}
	p.checkedOut[inst] = struct{}{}
	p.allocated++
	allocated := p.allocated
	p.mu.Unlock()

	metrics.RecordPoolCheckout(p.name, false)
	p.logger.V(logging.TRACE).Info("Allocated pooled instance", "allocated", allocated)
	return inst, nil
}

// Release recycles inst and makes it available to the next Checkout.
//
// Releasing an instance that is not checked out returns a
// *DoubleReleaseError and leaves the pool untouched. An instance that has
// disposed itself while checked out is dropped rather than recycled.
func (p *Pool[T]) Release(inst T) error {
	p.mu.Lock()
	if _, ok := p.checkedOut[inst]; !ok {
		p.mu.Unlock()
		return &DoubleReleaseError{Pool: p.name, Op: "release"}
	}
	delete(p.checkedOut, inst)
	if inst.IsDisposed() {
		p.disposed++
		p.mu.Unlock()
		metrics.RecordPoolDisposal(p.name)
		return nil
	}
	p.mu.Unlock()

	inst.Recycle()

	p.mu.Lock()
	if p.closed || (p.maxIdle > 0 && len(p.available) >= p.maxIdle) {
		p.disposed++
		p.mu.Unlock()
		inst.Dispose()
		metrics.RecordPoolDisposal(p.name)
		return nil
	}
	p.available = append(p.available, inst)
	idle := len(p.available)
	p.mu.Unlock()

	metrics.SetPoolIdle(p.name, idle)
	return nil
}

// Dispose permanently retires inst. It is never handed out again.
func (p *Pool[T]) Dispose(inst T) error {
	p.mu.Lock()
	if _, ok := p.checkedOut[inst]; !ok {
		p.mu.Unlock()
		return &DoubleReleaseError{Pool: p.name, Op: "dispose"}
	}
	delete(p.checkedOut, inst)
	p.disposed++
	p.mu.Unlock()

	if !inst.IsDisposed() {
		inst.Dispose()
	}
	metrics.RecordPoolDisposal(p.name)
	p.logger.V(logging.DEBUG).Info("Disposed pooled instance")
	return nil
}

// With checks out an instance, runs fn with it and hands it back on every
// exit path. The instance is disposed instead of released when fn returns an
// error wrapping ErrCorrupted or panics; the panic is re-raised afterwards.
func (p *Pool[T]) With(fn func(T) error) (err error) {
	inst, err := p.Checkout()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if derr := p.Dispose(inst); derr != nil {
				p.logger.Error(derr, "Failed to dispose instance after panic")
			}
			panic(r)
		}
		if errors.Is(err, ErrCorrupted) {
			if derr := p.Dispose(inst); derr != nil {
				err = errors.Join(err, derr)
			}
			return
		}
		if rerr := p.Release(inst); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()

	return fn(inst)
}

// Warmup preallocates n idle instances, bounded by the idle limit.
func (p *Pool[T]) Warmup(n int) error {
	var zero T
	for i := 0; i < n; i++ {
		p.mu.Lock()
		full := p.closed || (p.maxIdle > 0 && len(p.available) >= p.maxIdle)
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return ErrPoolClosed
		}
		if full {
			return nil
		}

		inst := p.factory()
		if inst == zero {
			return fmt.Errorf("warmup of pool %s: %w", p.name, ErrNilInstance)
		}

		p.mu.Lock()
		p.available = append(p.available, inst)
		p.allocated++
		idle := len(p.available)
		p.mu.Unlock()
		metrics.RecordPoolAllocation(p.name)
		metrics.SetPoolIdle(p.name, idle)
	}
	return nil
}

// Close disposes every idle instance and stops the pool from handing out
// more. Instances still checked out are disposed when they are handed back.
// Close is idempotent.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.available
	p.available = nil
	p.disposed += uint64(len(idle))
	outstanding := len(p.checkedOut)
	p.mu.Unlock()

	for _, inst := range idle {
		if !inst.IsDisposed() {
			inst.Dispose()
		}
		metrics.RecordPoolDisposal(p.name)
	}
	metrics.SetPoolIdle(p.name, 0)
	p.logger.V(logging.DEFAULT).Info("Pool closed", "disposedIdle", len(idle), "outstanding", outstanding)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Allocated:  p.allocated,
		Reused:     p.reused,
		Disposed:   p.disposed,
		Idle:       len(p.available),
		CheckedOut: len(p.checkedOut),
	}
}
