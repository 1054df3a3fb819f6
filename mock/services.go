// Package mock provides lifecycle services for exercising the registry.
package mock

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	services "github.com/centraunit/goallin_lifecycle"
)

// Implementation identifiers bound by NewCatalog.
const (
	DatabaseImpl      = "mock.database"
	CacheImpl         = "mock.cache"
	FailingImpl       = "mock.failing"
	DependentImpl     = "mock.dependent"
	PanickingImpl     = "mock.panicking"
	NilImpl           = "mock.nil"
	ShutdownFailsImpl = "mock.shutdown-fails"
)

// DependsOnKey lists, comma separated, the services a Dependent resolves in
// its init hook.
const DependsOnKey = "dependsOn"

// ErrSimulatedBoot is returned by FailingService.
var ErrSimulatedBoot = errors.New("simulated boot failure")

// Recorder collects lifecycle events across services in the order they happen.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) record(event string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events, e.g. "boot:db", "shutdown:db".
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns recorded events with the given prefix, prefix stripped.
func (r *Recorder) Filter(prefix string) []string {
	var out []string
	for _, ev := range r.Events() {
		if rest, ok := strings.CutPrefix(ev, prefix); ok {
			out = append(out, rest)
		}
	}
	return out
}

// Database is the capability a database facade expects.
type Database interface {
	services.Service
	IsConnected() bool
	DSN() string
}

// Cache is the capability a cache facade expects.
type Cache interface {
	services.Service
	Database() Database
}

// MockDB is a Database that records its lifecycle.
type MockDB struct {
	rec       *Recorder
	connected atomic.Bool
	dsn       string
}

func (m *MockDB) OnBoot(ctx *services.ServiceContext) error {
	m.dsn = ctx.Settings().Get("dsn")
	m.connected.Store(true)
	m.rec.record("boot:" + ctx.Name())
	return nil
}

func (m *MockDB) OnShutdown(ctx *services.ServiceContext) error {
	m.connected.Store(false)
	m.rec.record("shutdown:" + ctx.Name())
	return nil
}

func (m *MockDB) IsConnected() bool { return m.connected.Load() }
func (m *MockDB) DSN() string       { return m.dsn }

// MockCache resolves the service named by its "database" setting at boot.
type MockCache struct {
	rec *Recorder
	db  Database
}

func (m *MockCache) OnBoot(ctx *services.ServiceContext) error {
	dbName := ctx.Settings().Get("database")
	svc, err := ctx.Get(dbName)
	if err != nil {
		return err
	}
	db, ok := svc.(Database)
	if !ok {
		return fmt.Errorf("service %s is not a database", dbName)
	}
	if !db.IsConnected() {
		return fmt.Errorf("database %s not connected", dbName)
	}
	m.db = db
	m.rec.record("boot:" + ctx.Name())
	return nil
}

func (m *MockCache) OnShutdown(ctx *services.ServiceContext) error {
	m.rec.record("shutdown:" + ctx.Name())
	return nil
}

func (m *MockCache) Database() Database { return m.db }

// FailingService always fails its init hook.
type FailingService struct {
	rec *Recorder
}

func (f *FailingService) OnBoot(ctx *services.ServiceContext) error {
	f.rec.record("boot-failed:" + ctx.Name())
	return ErrSimulatedBoot
}

func (f *FailingService) OnShutdown(ctx *services.ServiceContext) error {
	f.rec.record("shutdown:" + ctx.Name())
	return nil
}

// Dependent resolves every service listed in its dependsOn setting, in
// order, before reporting itself booted.
type Dependent struct {
	rec  *Recorder
	Deps []services.Service
}

func (d *Dependent) OnBoot(ctx *services.ServiceContext) error {
	for _, name := range splitList(ctx.Settings().Get(DependsOnKey)) {
		svc, err := ctx.Get(name)
		if err != nil {
			return err
		}
		d.Deps = append(d.Deps, svc)
	}
	d.rec.record("boot:" + ctx.Name())
	return nil
}

func (d *Dependent) OnShutdown(ctx *services.ServiceContext) error {
	d.rec.record("shutdown:" + ctx.Name())
	return nil
}

// PanickingService panics in its init hook.
type PanickingService struct{}

func (PanickingService) OnBoot(*services.ServiceContext) error     { panic("init exploded") }
func (PanickingService) OnShutdown(*services.ServiceContext) error { return nil }

// ShutdownFailing boots normally and fails its teardown.
type ShutdownFailing struct {
	rec *Recorder
}

func (s *ShutdownFailing) OnBoot(ctx *services.ServiceContext) error {
	s.rec.record("boot:" + ctx.Name())
	return nil
}

func (s *ShutdownFailing) OnShutdown(ctx *services.ServiceContext) error {
	s.rec.record("shutdown-failed:" + ctx.Name())
	return fmt.Errorf("%s: connection reset during flush", ctx.Name())
}

// NewCatalog returns a catalog with every mock implementation bound, all
// recording into rec.
func NewCatalog(rec *Recorder) *services.Catalog {
	return services.NewCatalog().
		MustBind(DatabaseImpl, func() services.Service { return &MockDB{rec: rec} }).
		MustBind(CacheImpl, func() services.Service { return &MockCache{rec: rec} }).
		MustBind(FailingImpl, func() services.Service { return &FailingService{rec: rec} }).
		MustBind(DependentImpl, func() services.Service { return &Dependent{rec: rec} }).
		MustBind(PanickingImpl, func() services.Service { return PanickingService{} }).
		MustBind(NilImpl, func() services.Service { return (*MockDB)(nil) }).
		MustBind(ShutdownFailsImpl, func() services.Service { return &ShutdownFailing{rec: rec} })
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
