package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UsersOnline         = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "waymate", Name: "users_online", Help: "Number of users currently marked online"})
	StatusUpdatesTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "waymate", Name: "status_updates_total", Help: "Total status_update messages applied"})
	MessagesDropped     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "waymate", Name: "messages_dropped_total", Help: "Inbound socket messages dropped as malformed or unknown"})
	HeartbeatsTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "waymate", Name: "heartbeats_total", Help: "Heartbeat messages received by the hub"})
	CompositionsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "waymate", Name: "compositions_total", Help: "Custom-route compositions performed"})
	DirectionsRequests  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "waymate", Name: "directions_requests_total", Help: "Directions provider requests issued"})
	DirectionsFailures  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "waymate", Name: "directions_failures_total", Help: "Directions provider requests that failed"})
	StaleResponses      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "waymate", Name: "directions_stale_responses_total", Help: "Provider responses discarded by the sequence guard"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "waymate", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "waymate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
