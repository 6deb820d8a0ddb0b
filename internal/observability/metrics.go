package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	gradingRequests     *prometheus.CounterVec
	gradingLatency      prometheus.Histogram
	gradingLockWait     prometheus.Histogram
	gradingDeltaPoints  prometheus.Histogram
	eventsPublished     *prometheus.CounterVec
	realtimeClients     prometheus.Gauge
	leaderboardRequests *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_requests_total",
			Help: "Grading calls by outcome.",
		}, []string{"outcome"})

		gradingLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_latency_seconds",
			Help:    "Time spent grading a submission, lock wait included.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		})

		gradingLockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_lock_wait_seconds",
			Help:    "Time spent waiting for the team round lock.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		})

		gradingDeltaPoints = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_delta_points",
			Help:    "Signed score deltas applied to team totals.",
			Buckets: []float64{-500, -200, -100, -50, -1, 0, 1, 50, 100, 200, 500},
		})

		eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Realtime events delivered to local subscribers, by type.",
		}, []string{"type"})

		realtimeClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_clients_active",
			Help: "Connected websocket and SSE clients.",
		})

		leaderboardRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaderboard_requests_total",
			Help: "Leaderboard reads by cache result.",
		}, []string{"cache"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			gradingRequests, gradingLatency, gradingLockWait, gradingDeltaPoints,
			eventsPublished, realtimeClients, leaderboardRequests,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GradingRequests counts grading calls labelled by outcome.
func GradingRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingRequests
}

func GradingLatency() prometheus.Histogram {
	RegisterMetrics()
	return gradingLatency
}

func GradingLockWait() prometheus.Histogram {
	RegisterMetrics()
	return gradingLockWait
}

func GradingDeltaPoints() prometheus.Histogram {
	RegisterMetrics()
	return gradingDeltaPoints
}

// EventsPublished counts realtime events by type.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublished
}

// RealtimeClientsActive tracks open streaming connections.
func RealtimeClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return realtimeClients
}

// LeaderboardRequests counts leaderboard reads labelled hit or miss.
func LeaderboardRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardRequests
}
