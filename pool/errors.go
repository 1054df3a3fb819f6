package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned by Checkout once the pool has been closed.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrCorrupted marks an instance whose state cannot be recovered by
	// Recycle. Errors wrapping it make With dispose the instance instead of
	// releasing it.
	ErrCorrupted = errors.New("pool: instance state corrupted")

	// ErrNilInstance is returned when the factory produces a zero value.
	ErrNilInstance = errors.New("pool: factory returned nil instance")
)

// DoubleReleaseError is returned when an instance is released or disposed
// while the pool does not consider it checked out.
type DoubleReleaseError struct {
	Pool string
	Op   string
}

func (e *DoubleReleaseError) Error() string {
	return fmt.Sprintf("pool %s: %s of an instance that is not checked out", e.Pool, e.Op)
}
