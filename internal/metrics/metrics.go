// Package metrics registers the process-wide Prometheus collectors exposed
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by method, route template, and
	// response status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorus",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled, by method, route, and status code.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by route template.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chorus",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds, by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ReapedLocks counts expired lock leases deleted by the reaper.
	ReapedLocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chorus",
		Subsystem: "reaper",
		Name:      "expired_locks_total",
		Help:      "Expired task locks deleted by the background reaper.",
	})

	// ReapedIdempotencyRecords counts expired idempotency records deleted
	// by the reaper.
	ReapedIdempotencyRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chorus",
		Subsystem: "reaper",
		Name:      "expired_idempotency_records_total",
		Help:      "Expired idempotency records deleted by the background reaper.",
	})
)
