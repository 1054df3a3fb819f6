package pool

// Recyclable is the capability every pooled object provides.
type Recyclable interface {
	// Recycle returns the object to its default state so it can be handed to
	// the next holder. Per-use fields must be cleared.
	Recycle()

	// Dispose releases any external resources held by the object and marks it
	// permanently unusable.
	Dispose()

	// IsDisposed reports whether Dispose has been called.
	IsDisposed() bool
}

// Poolable constrains Pool element types: recyclable, and comparable so the
// pool can track which instances are checked out. Pointer types satisfy it.
type Poolable interface {
	comparable
	Recyclable
}
