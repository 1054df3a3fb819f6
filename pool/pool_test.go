package pool_test

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/centraunit/goallin_lifecycle/pool"
)

type buffer struct {
	id       int64
	data     []byte
	holders  int32
	recycled int
	disposed bool
}

func (b *buffer) Recycle() {
	b.data = b.data[:0]
	b.recycled++
}

func (b *buffer) Dispose() {
	b.data = nil
	b.disposed = true
}

func (b *buffer) IsDisposed() bool {
	return b.disposed
}

func newBufferPool(name string, opts ...pool.Option) (*pool.Pool[*buffer], *int64) {
	var created int64
	p := pool.New(name, func() *buffer {
		id := atomic.AddInt64(&created, 1)
		return &buffer{id: id, data: make([]byte, 0, 64)}
	}, opts...)
	return p, &created
}

func TestCheckoutReleaseReuses(t *testing.T) {
	p, created := newBufferPool("reuse")

	for i := 0; i < 100; i++ {
		b, err := p.Checkout()
		require.NoError(t, err)
		b.data = append(b.data, "payload"...)
		require.NoError(t, p.Release(b))
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(created))
	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Allocated)
	assert.Equal(t, uint64(99), stats.Reused)
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 0, stats.CheckedOut)
}

func TestReleaseRecyclesState(t *testing.T) {
	p, _ := newBufferPool("recycle")

	b, err := p.Checkout()
	require.NoError(t, err)
	b.data = append(b.data, "dirty"...)
	require.NoError(t, p.Release(b))

	again, err := p.Checkout()
	require.NoError(t, err)
	assert.Same(t, b, again)
	assert.Empty(t, again.data)
	assert.Equal(t, 1, again.recycled)
}

func TestCheckoutIsLIFO(t *testing.T) {
	p, _ := newBufferPool("lifo")

	first, err := p.Checkout()
	require.NoError(t, err)
	second, err := p.Checkout()
	require.NoError(t, err)

	require.NoError(t, p.Release(first))
	require.NoError(t, p.Release(second))

	got, err := p.Checkout()
	require.NoError(t, err)
	assert.Same(t, second, got, "latest returned instance is reused first")
}

func TestDoubleRelease(t *testing.T) {
	p, _ := newBufferPool("double")

	b, err := p.Checkout()
	require.NoError(t, err)
	require.NoError(t, p.Release(b))

	err = p.Release(b)
	var dre *pool.DoubleReleaseError
	require.True(t, errors.As(err, &dre))
	assert.Equal(t, "double", dre.Pool)
	assert.Equal(t, 1, p.Stats().Idle, "pool state must be untouched")

	err = p.Dispose(b)
	assert.True(t, errors.As(err, &dre))

	assert.Error(t, p.Release(&buffer{}), "foreign instances are rejected")
}

func TestDisposedNeverReappears(t *testing.T) {
	p, _ := newBufferPool("dispose")

	victim, err := p.Checkout()
	require.NoError(t, err)
	require.NoError(t, p.Dispose(victim))
	assert.True(t, victim.IsDisposed())

	held := make([]*buffer, 0, 20)
	for i := 0; i < 20; i++ {
		b, err := p.Checkout()
		require.NoError(t, err)
		assert.NotSame(t, victim, b)
		held = append(held, b)
	}
	for _, b := range held {
		require.NoError(t, p.Release(b))
	}
	for i := 0; i < 20; i++ {
		b, err := p.Checkout()
		require.NoError(t, err)
		assert.NotSame(t, victim, b)
	}
}

func TestReleaseOfSelfDisposedInstanceDropsIt(t *testing.T) {
	p, _ := newBufferPool("self-disposed")

	b, err := p.Checkout()
	require.NoError(t, err)
	b.Dispose()
	require.NoError(t, p.Release(b))

	stats := p.Stats()
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, uint64(1), stats.Disposed)
	assert.Equal(t, 0, b.recycled)
}

func TestMaxIdle(t *testing.T) {
	p, _ := newBufferPool("max-idle", pool.WithMaxIdle(2))

	held := make([]*buffer, 0, 4)
	for i := 0; i < 4; i++ {
		b, err := p.Checkout()
		require.NoError(t, err)
		held = append(held, b)
	}
	for _, b := range held {
		require.NoError(t, p.Release(b))
	}

	stats := p.Stats()
	assert.Equal(t, 2, stats.Idle)
	assert.Equal(t, uint64(2), stats.Disposed)
	assert.True(t, held[2].IsDisposed())
	assert.True(t, held[3].IsDisposed())
}

func TestWithReleasesOnSuccessAndError(t *testing.T) {
	p, _ := newBufferPool("with")

	var seen *buffer
	require.NoError(t, p.With(func(b *buffer) error {
		seen = b
		return nil
	}))
	assert.Equal(t, 1, p.Stats().Idle)

	plain := errors.New("request failed")
	err := p.With(func(b *buffer) error {
		assert.Same(t, seen, b)
		return plain
	})
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, p.Stats().Idle)
	assert.False(t, seen.IsDisposed())
}

func TestWithDisposesCorrupted(t *testing.T) {
	p, _ := newBufferPool("with-corrupt")

	var seen *buffer
	err := p.With(func(b *buffer) error {
		seen = b
		return fmt.Errorf("truncated frame: %w", pool.ErrCorrupted)
	})
	assert.ErrorIs(t, err, pool.ErrCorrupted)
	assert.True(t, seen.IsDisposed())

	stats := p.Stats()
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, 0, stats.CheckedOut)
}

func TestWithDisposesOnPanic(t *testing.T) {
	p, _ := newBufferPool("with-panic")

	var seen *buffer
	assert.PanicsWithValue(t, "boom", func() {
		_ = p.With(func(b *buffer) error {
			seen = b
			panic("boom")
		})
	})
	assert.True(t, seen.IsDisposed())
	assert.Equal(t, 0, p.Stats().CheckedOut)
}

func TestCloseDisposesIdle(t *testing.T) {
	p, _ := newBufferPool("close")

	idle, err := p.Checkout()
	require.NoError(t, err)
	outstanding, err := p.Checkout()
	require.NoError(t, err)
	require.NoError(t, p.Release(idle))

	p.Close()
	p.Close()
	assert.True(t, idle.IsDisposed())
	assert.False(t, outstanding.IsDisposed())

	_, err = p.Checkout()
	assert.ErrorIs(t, err, pool.ErrPoolClosed)

	require.NoError(t, p.Release(outstanding))
	assert.True(t, outstanding.IsDisposed(), "instances handed back after close are disposed")
}

func TestWarmup(t *testing.T) {
	p, created := newBufferPool("warmup", pool.WithMaxIdle(3))

	require.NoError(t, p.Warmup(5))
	assert.Equal(t, int64(3), atomic.LoadInt64(created))
	assert.Equal(t, 3, p.Stats().Idle)

	_, err := p.Checkout()
	require.NoError(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(created))
}

func TestNilFactoryResult(t *testing.T) {
	p := pool.New("nil", func() *buffer { return nil })
	_, err := p.Checkout()
	assert.ErrorIs(t, err, pool.ErrNilInstance)
	assert.ErrorIs(t, p.Warmup(1), pool.ErrNilInstance)
}

func TestConcurrentHoldersAreExclusive(t *testing.T) {
	p, _ := newBufferPool("concurrent")

	var g errgroup.Group
	for w := 0; w < 16; w++ {
		g.Go(func() error {
			for i := 0; i < 500; i++ {
				b, err := p.Checkout()
				if err != nil {
					return err
				}
				if !atomic.CompareAndSwapInt32(&b.holders, 0, 1) {
					return fmt.Errorf("instance %d handed to two holders", b.id)
				}
				b.data = append(b.data, byte(i))
				atomic.StoreInt32(&b.holders, 0)
				if err := p.Release(b); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stats := p.Stats()
	assert.Equal(t, 0, stats.CheckedOut)
	assert.LessOrEqual(t, stats.Allocated, uint64(16))
	assert.Equal(t, int(stats.Allocated), stats.Idle)
}
