// Package metrics exposes Prometheus instrumentation for the service registry
// and object pools.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace        = "lifecycle"
	serviceSubsystem = "service"
	poolSubsystem    = "pool"
)

// Result label values for service initialization.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	serviceInitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceSubsystem,
			Name:      "init_total",
			Help:      "Count of service initializations by outcome.",
		},
		[]string{"service", "result"},
	)
	serviceInitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceSubsystem,
			Name:      "init_duration_seconds",
			Help:      "Time spent in service init hooks.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"service"},
	)
	serviceShutdownTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceSubsystem,
			Name:      "shutdown_total",
			Help:      "Count of service teardowns by outcome.",
		},
		[]string{"service", "result"},
	)
	servicesLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: serviceSubsystem,
			Name:      "live",
			Help:      "Number of services currently initialized.",
		},
	)

	poolCheckouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: poolSubsystem,
			Name:      "checkouts_total",
			Help:      "Total number of pool checkouts.",
		},
		[]string{"pool"},
	)
	poolAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: poolSubsystem,
			Name:      "allocations_total",
			Help:      "Total number of instances created by the pool factory.",
		},
		[]string{"pool"},
	)
	poolReuses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: poolSubsystem,
			Name:      "reuses_total",
			Help:      "Total number of checkouts served from idle instances.",
		},
		[]string{"pool"},
	)
	poolDisposals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: poolSubsystem,
			Name:      "disposals_total",
			Help:      "Total number of pooled instances permanently retired.",
		},
		[]string{"pool"},
	)
	poolIdle = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: poolSubsystem,
			Name:      "idle",
			Help:      "Number of idle instances held by the pool.",
		},
		[]string{"pool"},
	)
)

var registerMetrics sync.Once

// Register all metrics with reg. Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(serviceInitTotal)
		reg.MustRegister(serviceInitDuration)
		reg.MustRegister(serviceShutdownTotal)
		reg.MustRegister(servicesLive)
		reg.MustRegister(poolCheckouts)
		reg.MustRegister(poolAllocations)
		reg.MustRegister(poolReuses)
		reg.MustRegister(poolDisposals)
		reg.MustRegister(poolIdle)
	})
}

// RecordServiceInit records the outcome and duration of one init hook run.
func RecordServiceInit(service string, elapsed time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	} else {
		servicesLive.Inc()
	}
	serviceInitTotal.WithLabelValues(service, result).Inc()
	serviceInitDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// RecordServiceShutdown records one teardown hook run.
func RecordServiceShutdown(service string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	servicesLive.Dec()
	serviceShutdownTotal.WithLabelValues(service, result).Inc()
}

// RecordPoolCheckout records a checkout; reused reports whether an idle
// instance served it rather than the factory.
func RecordPoolCheckout(pool string, reused bool) {
	poolCheckouts.WithLabelValues(pool).Inc()
	if reused {
		poolReuses.WithLabelValues(pool).Inc()
	} else {
		RecordPoolAllocation(pool)
	}
}

// RecordPoolAllocation records the factory creating an instance.
func RecordPoolAllocation(pool string) {
	poolAllocations.WithLabelValues(pool).Inc()
}

// RecordPoolDisposal records an instance being retired.
func RecordPoolDisposal(pool string) {
	poolDisposals.WithLabelValues(pool).Inc()
}

// SetPoolIdle publishes the current idle count of a pool.
func SetPoolIdle(pool string, idle int) {
	poolIdle.WithLabelValues(pool).Set(float64(idle))
}
