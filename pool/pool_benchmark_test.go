package pool_test

import (
	"testing"

	"github.com/centraunit/goallin_lifecycle/pool"
)

func BenchmarkCheckoutRelease(b *testing.B) {
	p, _ := newBufferPool("bench")
	defer p.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf, err := p.Checkout()
		if err != nil {
			b.Fatal(err)
		}
		_ = p.Release(buf)
	}
}

func BenchmarkWith(b *testing.B) {
	p, _ := newBufferPool("bench")
	defer p.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.With(func(buf *buffer) error {
			buf.data = append(buf.data, 'x')
			return nil
		})
	}
}

func BenchmarkCheckoutReleaseParallel(b *testing.B) {
	p, _ := newBufferPool("bench", pool.WithMaxIdle(64))
	defer p.Close()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, err := p.Checkout()
			if err != nil {
				b.Error(err)
				return
			}
			_ = p.Release(buf)
		}
	})
}
