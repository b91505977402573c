package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type relayMetrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	redirectHops     prometheus.Histogram
	upstreamDuration prometheus.Histogram
	relayedBytes     *prometheus.CounterVec
}

func newRelayMetrics() *relayMetrics {
	m := &relayMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "relay_requests_total", Help: "Proxy requests by outcome"},
			[]string{"outcome"},
		),
		redirectHops: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_redirect_hops",
				Help:    "Redirect hops followed per successful resolution",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
			},
		),
		upstreamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_upstream_duration_seconds",
				Help:    "Time spent resolving and reading the upstream resource",
				Buckets: prometheus.DefBuckets,
			},
		),
		relayedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "relay_bytes_total", Help: "Bytes relayed to callers by strategy"},
			[]string{"strategy"},
		),
	}

	m.registry.MustRegister(m.requests, m.redirectHops, m.upstreamDuration, m.relayedBytes)

	return m
}

func (m *relayMetrics) observeUpstream(start time.Time, hops int) {
	m.upstreamDuration.Observe(time.Since(start).Seconds())
	m.redirectHops.Observe(float64(hops))
}

func (m *relayMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// outcomeFor labels a pipeline result for the requests counter
func outcomeFor(err error) string {
	if err == nil {
		return "success"
	}
	return describeFailure(err).outcome
}
