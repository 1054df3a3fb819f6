package request

import (
	"time"

	"github.com/google/uuid"
)

// Context is a request-scoped data holder. Instances are pooled; nothing in a
// Context survives Recycle.
type Context struct {
	ID      uuid.UUID
	Started time.Time

	keys     []string
	attrs    map[string]any
	disposed bool
}

func newContext() *Context {
	return &Context{
		keys:  make([]string, 0, 8),
		attrs: make(map[string]any, 8),
	}
}

// begin stamps the context for a new unit of work.
func (c *Context) begin() {
	c.ID = uuid.New()
	c.Started = time.Now()
}

// Set stores an attribute. Keys keep the order they were first set in.
func (c *Context) Set(key string, value any) {
	if _, ok := c.attrs[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.attrs[key] = value
}

// Get returns an attribute.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.attrs[key]
	return v, ok
}

// Keys returns attribute keys in insertion order.
func (c *Context) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Elapsed returns the time since the unit of work began.
func (c *Context) Elapsed() time.Duration {
	return time.Since(c.Started)
}

// Recycle clears every per-request field.
func (c *Context) Recycle() {
	c.ID = uuid.Nil
	c.Started = time.Time{}
	clear(c.attrs)
	clear(c.keys)
	c.keys = c.keys[:0]
}

func (c *Context) Dispose() {
	c.attrs = nil
	c.keys = nil
	c.disposed = true
}

func (c *Context) IsDisposed() bool {
	return c.disposed
}
