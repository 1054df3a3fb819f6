// Package services is a lifecycle runtime for named singleton services.
//
// A Registry holds one Descriptor per service name. Each descriptor names an
// implementation identifier which is resolved through a Catalog of factories
// the first time the service is needed: eagerly during InitializeEager for
// descriptors flagged EarlyInit, lazily on the first Get for everything else.
// Shutdown tears services down in the reverse of the order they came up.
package services

// Service defines the lifecycle every registered implementation provides.
type Service interface {
	// OnBoot is called once when the service is initialized. The context
	// carries the service's settings and may be used to resolve other
	// services. It is only valid for the duration of the call.
	OnBoot(ctx *ServiceContext) error

	// OnShutdown is called once during registry shutdown.
	// It should release any resources held by the service.
	OnShutdown(ctx *ServiceContext) error
}

// Factory constructs a fresh, uninitialized Service.
type Factory func() Service

// State is the lifecycle state of a registered service.
type State int

// Service states.
const (
	StateRegistered State = iota
	StateInitializing
	StateInitialized
	StateFailedInit
	StateShuttingDown
	StateDisposed
)

var stateNames = [...]string{
	StateRegistered:   "Registered",
	StateInitializing: "Initializing",
	StateInitialized:  "Initialized",
	StateFailedInit:   "FailedInit",
	StateShuttingDown: "ShuttingDown",
	StateDisposed:     "Disposed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}
