package pool_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centraunit/goallin_lifecycle/metrics"
	"github.com/centraunit/goallin_lifecycle/pool"
)

var metricsRegistry = func() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	return reg
}()

func poolCounter(t *testing.T, family, poolName string) float64 {
	t.Helper()
	families, err := metricsRegistry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != family {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "pool" && l.GetValue() == poolName {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestAllocationMetricMatchesStats(t *testing.T) {
	p, _ := newBufferPool("metrics-warmup", pool.WithMaxIdle(8))
	require.NoError(t, p.Warmup(3))

	held := make([]*buffer, 0, 5)
	for i := 0; i < 5; i++ {
		b, err := p.Checkout()
		require.NoError(t, err)
		held = append(held, b)
	}

	stats := p.Stats()
	assert.Equal(t, uint64(5), stats.Allocated)
	assert.Equal(t, uint64(3), stats.Reused)
	assert.Equal(t, float64(stats.Allocated), poolCounter(t, "lifecycle_pool_allocations_total", "metrics-warmup"))
	assert.Equal(t, float64(stats.Reused), poolCounter(t, "lifecycle_pool_reuses_total", "metrics-warmup"))

	for _, b := range held {
		require.NoError(t, p.Release(b))
	}
}
