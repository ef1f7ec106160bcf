// Package metrics provides Prometheus instrumentation for siteverify.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled bool

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification metrics
	verificationTotal *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
)

// Init initializes the metrics system. Collectors are registered once per
// process; later calls only toggle the enabled flag. Every series carries
// the service name as a constant label.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag

	if !enabled || httpRequestsTotal != nil {
		return
	}

	constLabels := prometheus.Labels{"service": svcName}

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency in seconds",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Verification request counter
	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "verification_request_total",
			Help:        "Total number of verification requests",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	// Outbound authority latency
	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "upstream_request_duration_seconds",
			Help:        "Verification authority call latency in seconds",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		},
		[]string{"provider", "outcome"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}
