package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promReportsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shareprice",
		Subsystem: "router",
		Name:      "reports_accepted_count",
		Help:      "Number of inbound vault reports written to the store",
	})
	promReportsStaleDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shareprice",
		Subsystem: "router",
		Name:      "reports_stale_dropped_count",
		Help:      "Number of valid inbound reports dropped for not being fresher than the stored record",
	})
	promBatchesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shareprice",
		Subsystem: "router",
		Name:      "batches_rejected_count",
		Help:      "Number of inbound batches rejected, by reason",
	},
		[]string{"reason"},
	)
	promResolveFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shareprice",
		Subsystem: "router",
		Name:      "resolve_fallback_count",
		Help:      "Number of price resolutions answered in the non-preferred denomination",
	})
)

// routerMetrics bundles the package counters so components can be tested
// without touching the global registry.
type routerMetrics struct {
	reportsAccepted prometheus.Counter
	staleDropped    prometheus.Counter
	batchesRejected *prometheus.CounterVec
	fallbackCount   prometheus.Counter
}

func newRouterMetrics() *routerMetrics {
	return &routerMetrics{
		reportsAccepted: promReportsAccepted,
		staleDropped:    promReportsStaleDropped,
		batchesRejected: promBatchesRejected,
		fallbackCount:   promResolveFallbacks,
	}
}

func newTestMetrics() *routerMetrics {
	return &routerMetrics{
		reportsAccepted: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_reports_accepted"}),
		staleDropped:    prometheus.NewCounter(prometheus.CounterOpts{Name: "test_stale_dropped"}),
		batchesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_batches_rejected"}, []string{"reason"}),
		fallbackCount:   prometheus.NewCounter(prometheus.CounterOpts{Name: "test_fallbacks"}),
	}
}
