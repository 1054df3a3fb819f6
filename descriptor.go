package services

// Descriptor describes one named service as supplied by configuration.
type Descriptor struct {
	// Name is the unique key the service is looked up by.
	Name string
	// Implementation selects the Catalog factory used to build the service.
	Implementation string
	// EarlyInit services are brought up by InitializeEager regardless of use.
	EarlyInit bool
	// Settings is the service's own configuration.
	Settings Settings
}

// entry is the registry's runtime record for a descriptor.
// All fields except desc are guarded by Registry.mu.
type entry struct {
	desc     Descriptor
	state    State
	instance Service
	err      error

	// done is closed when the state leaves StateInitializing.
	done chan struct{}
	// owner is the goroutine running the init hook.
	owner int64
	// blockedOn is the service this entry's init hook is currently resolving.
	// Following blockedOn links from any entry must never lead back to it.
	blockedOn *entry
}
