package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/centraunit/goallin_lifecycle/logging"
	"github.com/centraunit/goallin_lifecycle/metrics"
)

// Registry is the directory of named services. It is safe for concurrent use.
//
// A single lock guards the descriptor map and every state transition, but it
// is never held while a lifecycle hook runs. Concurrent Get calls for a
// service that is still initializing wait on that service alone.
type Registry struct {
	catalog     *Catalog
	logger      logr.Logger
	initTimeout time.Duration

	mu           sync.Mutex
	entries      map[string]*entry
	order        []*entry
	initOrder    []*entry
	eagerStarted bool
	// closed is set when Shutdown starts; swept once it has collected the
	// services to tear down. In between, only initializations already in
	// flight (and dependencies they resolve) may still complete.
	closed bool
	swept  bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger. Hooks receive a child of it.
func WithLogger(logger logr.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithInitTimeout bounds how long a single init hook may run. A hook that
// overruns fails its service with a ServiceInitializationError wrapping
// context.DeadlineExceeded. Zero disables the bound.
func WithInitTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.initTimeout = d
	}
}

// NewRegistry creates an empty registry that builds services from catalog.
func NewRegistry(catalog *Catalog, opts ...Option) *Registry {
	if catalog == nil {
		catalog = NewCatalog()
	}
	r := &Registry{
		catalog: catalog,
		logger:  logr.Discard(),
		entries: make(map[string]*entry, 32),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRegistry atomic.Pointer[Registry]

// Default returns the process-wide registry, creating an empty one when none
// is set. New code should receive a *Registry explicitly; Default exists for
// call sites that cannot.
func Default() *Registry {
	for {
		if r := defaultRegistry.Load(); r != nil {
			return r
		}
		defaultRegistry.CompareAndSwap(nil, NewRegistry(NewCatalog()))
	}
}

// SetDefault replaces the process-wide registry returned by Default. Passing
// nil makes the next Default call create a fresh empty registry.
func SetDefault(r *Registry) {
	defaultRegistry.Store(r)
}

// Catalog returns the factory catalog the registry builds services from.
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Register adds a descriptor. The reserved control keys are stripped from its
// settings. An EarlyInit descriptor is rejected once InitializeEager has run,
// since nothing would bring it up.
func (r *Registry) Register(desc Descriptor) error {
	if desc.Name == "" {
		return &InvalidDescriptorError{Reason: "empty name"}
	}
	if desc.Implementation == "" {
		return &InvalidDescriptorError{Name: desc.Name, Reason: "no implementation identifier"}
	}
	desc.Settings = desc.Settings.withoutReserved()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return &RegistryClosedError{Name: desc.Name}
	}
	if _, exists := r.entries[desc.Name]; exists {
		return &DuplicateServiceError{Name: desc.Name}
	}
	if desc.EarlyInit && r.eagerStarted {
		return &InvalidDescriptorError{Name: desc.Name, Reason: "early init requested after eager initialization ran"}
	}
	e := &entry{desc: desc, state: StateRegistered}
	r.entries[desc.Name] = e
	r.order = append(r.order, e)

	r.logger.V(logging.VERBOSE).Info("Service registered",
		"service", desc.Name, "implementation", desc.Implementation, "earlyInit", desc.EarlyInit)
	return nil
}

// RegisterAll registers descriptors in order and stops at the first error.
func (r *Registry) RegisterAll(descs []Descriptor) error {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// InitializeEager initializes every EarlyInit service in registration order.
// The first failure is returned and the remaining services are left alone;
// callers should treat it as fatal. Only the first call does any work.
func (r *Registry) InitializeEager(ctx context.Context) error {
	r.mu.Lock()
	if r.eagerStarted {
		r.mu.Unlock()
		return nil
	}
	r.eagerStarted = true
	names := make([]string, 0, len(r.order))
	for _, e := range r.order {
		if e.desc.EarlyInit {
			names = append(names, e.desc.Name)
		}
	}
	r.mu.Unlock()

	r.logger.V(logging.DEFAULT).Info("Initializing eager services", "count", len(names))
	for _, name := range names {
		if _, err := r.Get(ctx, name); err != nil {
			r.logger.Error(err, "Eager service initialization failed", "service", name)
			return err
		}
	}
	return nil
}

// Get returns the live instance registered under name, initializing it on
// first use. Concurrent callers for the same uninitialized service block
// until the single initializer finishes, or until their own ctx is done.
//
// A failed initialization is cached: every later Get returns the same
// *ServiceInitializationError.
func (r *Registry) Get(ctx context.Context, name string) (Service, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	chain := resolutionChain(ctx)
	for _, n := range chain {
		if n == name {
			return nil, cycleError(chain, name)
		}
	}
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return nil, &ServiceNotFoundError{Name: name}
	}
	var parent *entry
	if len(chain) > 0 {
		parent = r.entries[chain[len(chain)-1]]
	}

	for {
		switch e.state {
		case StateInitialized:
			inst := e.instance
			r.mu.Unlock()
			return inst, nil

		case StateFailedInit:
			err := e.err
			r.mu.Unlock()
			return nil, err

		case StateShuttingDown, StateDisposed:
			r.mu.Unlock()
			return nil, &ServiceDisposedError{Name: name}

		case StateInitializing:
			if self := goid(); (self > 0 && e.owner == self) || r.reaches(e, parent) {
				r.mu.Unlock()
				return nil, cycleError(chain, name)
			}
			done := e.done
			if parent != nil {
				parent.blockedOn = e
			}
			r.mu.Unlock()

			r.logger.V(logging.DEBUG).Info("Waiting for service initialization", "service", name)
			select {
			case <-done:
			case <-ctx.Done():
				r.mu.Lock()
				if parent != nil {
					parent.blockedOn = nil
				}
				r.mu.Unlock()
				return nil, ctx.Err()
			}

			r.mu.Lock()
			if parent != nil {
				parent.blockedOn = nil
			}

		case StateRegistered:
			if r.closed && (parent == nil || r.swept) {
				r.mu.Unlock()
				return nil, &ServiceDisposedError{Name: name}
			}
			e.state = StateInitializing
			e.owner = goid()
			e.done = make(chan struct{})
			if parent != nil {
				parent.blockedOn = e
			}
			r.mu.Unlock()

			inst, err := r.initialize(ctx, e, chain)

			if parent != nil {
				r.mu.Lock()
				parent.blockedOn = nil
				r.mu.Unlock()
			}
			return inst, err

		default:
			r.mu.Unlock()
			return nil, fmt.Errorf("service %s in unexpected state %s", name, e.state)
		}
	}
}

// reaches reports whether following blockedOn links from `from` arrives at
// `to`, i.e. whether waiting on `from` on behalf of `to` would deadlock.
// Must be called with r.mu held.
func (r *Registry) reaches(from, to *entry) bool {
	if to == nil {
		return false
	}
	steps := 0
	for cur := from; cur != nil; cur = cur.blockedOn {
		if cur == to {
			return true
		}
		if steps++; steps > len(r.entries) {
			return false
		}
	}
	return false
}

func cycleError(chain []string, name string) *CircularDependencyError {
	full := make([]string, 0, len(chain)+1)
	full = append(full, chain...)
	return &CircularDependencyError{Chain: append(full, name)}
}

// initialize runs construction and the init hook for an entry this goroutine
// moved to StateInitializing, then publishes the outcome.
func (r *Registry) initialize(ctx context.Context, e *entry, chain []string) (Service, error) {
	name := e.desc.Name
	log := r.logger.WithValues("service", name, "implementation", e.desc.Implementation)

	// Detached from the triggering caller's cancellation: every later caller
	// shares the outcome.
	hookCtx := withResolution(context.WithoutCancel(ctx), chain, name)

	start := time.Now()
	inst, err := r.construct(hookCtx, e)
	elapsed := time.Since(start)
	metrics.RecordServiceInit(name, elapsed, err)

	r.mu.Lock()
	late := r.swept
	switch {
	case err != nil:
		err = &ServiceInitializationError{Name: name, Err: err}
		e.state = StateFailedInit
		e.err = err
	case late:
		e.state = StateDisposed
	default:
		e.state = StateInitialized
		e.instance = inst
		r.initOrder = append(r.initOrder, e)
	}
	e.owner = 0
	close(e.done)
	r.mu.Unlock()

	if err != nil {
		log.Error(err, "Service initialization failed", "elapsed", elapsed)
		return nil, err
	}
	if late {
		log.V(logging.DEFAULT).Info("Registry shut down during initialization, disposing service")
		_ = r.teardown(context.Background(), e, inst)
		return nil, &ServiceDisposedError{Name: name}
	}
	log.V(logging.DEFAULT).Info("Service initialized", "elapsed", elapsed)
	return inst, nil
}

func (r *Registry) construct(ctx context.Context, e *entry) (Service, error) {
	factory, ok := r.catalog.Lookup(e.desc.Implementation)
	if !ok {
		return nil, &UnknownImplementationError{Name: e.desc.Name, Implementation: e.desc.Implementation}
	}
	inst := factory()
	if isNilService(inst) {
		return nil, &NilServiceError{Name: e.desc.Name, Implementation: e.desc.Implementation}
	}
	sctx := newServiceContext(ctx, r, &e.desc)
	if err := r.boot(sctx, e, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// boot runs the init hook, bounded by the init timeout when one is set.
func (r *Registry) boot(sctx *ServiceContext, e *entry, inst Service) error {
	if r.initTimeout <= 0 {
		return callHook("init", inst.OnBoot, sctx)
	}

	ctx, cancel := context.WithTimeout(sctx.Context, r.initTimeout)
	defer cancel()
	sctx.Context = ctx

	result := make(chan error, 1)
	go func() {
		r.mu.Lock()
		if e.state == StateInitializing {
			e.owner = goid()
		}
		r.mu.Unlock()
		result <- callHook("init", inst.OnBoot, sctx)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		go r.reapLateBoot(e, inst, result)
		return fmt.Errorf("init hook did not finish within %s: %w", r.initTimeout, ctx.Err())
	}
}

// reapLateBoot tears down an instance whose init hook completed after its
// timeout, so resources it acquired are not leaked.
func (r *Registry) reapLateBoot(e *entry, inst Service, result <-chan error) {
	if err := <-result; err != nil {
		return
	}
	r.logger.V(logging.DEFAULT).Info("Late init hook completed, shutting down orphaned instance", "service", e.desc.Name)
	sctx := newServiceContext(context.Background(), r, &e.desc)
	if err := callHook("shutdown", inst.OnShutdown, sctx); err != nil {
		r.logger.Error(err, "Failed to shut down orphaned instance", "service", e.desc.Name)
	}
}

// Shutdown disposes every initialized service in the reverse of the order the
// services were initialized. Initializations already in flight are waited for
// first, until ctx is done, so they are torn down in order with the rest.
// Teardown failures are logged and do not stop the sweep; they are returned
// joined. Services that were never initialized are marked disposed without
// running any hook. Only the first call does any work.
func (r *Registry) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	type live struct {
		e    *entry
		inst Service
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	if err := r.awaitInFlight(ctx); err != nil {
		r.logger.Error(err, "Gave up waiting for in-flight initializations")
		errs = append(errs, err)
	}

	r.mu.Lock()
	r.swept = true
	running := make([]live, 0, len(r.initOrder))
	for _, e := range r.initOrder {
		if e.state == StateInitialized {
			running = append(running, live{e: e, inst: e.instance})
			e.state = StateShuttingDown
		}
	}
	for _, e := range r.order {
		if e.state == StateRegistered || e.state == StateFailedInit {
			e.state = StateDisposed
		}
	}
	r.mu.Unlock()

	r.logger.V(logging.DEFAULT).Info("Shutting down services", "count", len(running))
	for i := len(running) - 1; i >= 0; i-- {
		if err := r.teardown(ctx, running[i].e, running[i].inst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// awaitInFlight blocks until no service is initializing, except those whose
// hook is running on the calling goroutine, or until ctx is done.
func (r *Registry) awaitInFlight(ctx context.Context) error {
	self := goid()
	for {
		r.mu.Lock()
		var pending []chan struct{}
		for _, e := range r.order {
			if e.state == StateInitializing && (self <= 0 || e.owner != self) {
				pending = append(pending, e.done)
			}
		}
		r.mu.Unlock()
		if len(pending) == 0 {
			return nil
		}

		r.logger.V(logging.VERBOSE).Info("Waiting for in-flight initializations", "count", len(pending))
		for _, done := range pending {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (r *Registry) teardown(ctx context.Context, e *entry, inst Service) error {
	name := e.desc.Name
	sctx := newServiceContext(ctx, r, &e.desc)
	err := callHook("shutdown", inst.OnShutdown, sctx)
	metrics.RecordServiceShutdown(name, err)

	r.mu.Lock()
	e.state = StateDisposed
	e.instance = nil
	r.mu.Unlock()

	if err != nil {
		err = &ShutdownError{Name: name, Err: err}
		r.logger.Error(err, "Service shutdown failed", "service", name)
		return err
	}
	r.logger.V(logging.VERBOSE).Info("Service shut down", "service", name)
	return nil
}

// State reports the lifecycle state of the named service.
func (r *Registry) State(name string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// Names returns every registered name in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.order))
	for i, e := range r.order {
		names[i] = e.desc.Name
	}
	return names
}

// InitOrder returns the names of services in the order their initialization
// completed.
func (r *Registry) InitOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.initOrder))
	for i, e := range r.initOrder {
		names[i] = e.desc.Name
	}
	return names
}

func callHook(hook string, fn func(*ServiceContext) error, ctx *ServiceContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &HookPanicError{Hook: hook, Value: rec}
		}
	}()
	return fn(ctx)
}

func isNilService(svc Service) bool {
	if svc == nil {
		return true
	}
	v := reflect.ValueOf(svc)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
