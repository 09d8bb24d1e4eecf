package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "toda", Name: "matches_total", Help: "Bookings assigned to a queued driver"})
	MatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "toda", Name: "match_failures_total", Help: "Match attempts that assigned no driver"}, []string{"reason"})
	MatchLatency  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "toda", Name: "match_latency_seconds", Help: "Match latency seconds"})
	QueueLength   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "toda", Name: "queue_length", Help: "Drivers currently in the queue"})
	NoShowsTotal  = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "toda", Name: "no_shows_total", Help: "Bookings closed as no-show"}, []string{"source"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "toda", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toda",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
