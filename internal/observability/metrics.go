package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lwctl",
			Subsystem: "session",
			Name:      "sessions_total",
			Help:      "Sessions by handshake outcome and teardown.",
		},
		[]string{"event"},
	)
	envelopes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lwctl",
			Subsystem: "session",
			Name:      "envelopes_total",
			Help:      "Envelopes exchanged with the engine.",
		},
		[]string{"direction", "kind"},
	)
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lwctl",
			Subsystem: "session",
			Name:      "requests_total",
			Help:      "Engine requests by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lwctl",
			Subsystem: "session",
			Name:      "request_duration_seconds",
			Help:      "Engine request duration in seconds, including extraction streams.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)
	progressEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lwctl",
			Subsystem: "progress",
			Name:      "events_total",
			Help:      "Progress events by relay result.",
		},
		[]string{"result"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lwctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lwctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessions, envelopes, requests, requestDuration, progressEvents, httpRequests, httpDuration)
	})
}

// RecordSession counts a session lifecycle event: opened, handshake_failed, closed, aborted.
func RecordSession(event string) {
	RegisterMetrics()
	sessions.WithLabelValues(event).Inc()
}

func RecordEnvelope(direction, kind string) {
	RegisterMetrics()
	envelopes.WithLabelValues(direction, kind).Inc()
}

func RecordRequest(op, outcome string, duration time.Duration) {
	RegisterMetrics()
	requests.WithLabelValues(op, outcome).Inc()
	requestDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
}

func RecordProgress(delivered, coalesced uint64) {
	RegisterMetrics()
	if delivered > 0 {
		progressEvents.WithLabelValues("delivered").Add(float64(delivered))
	}
	if coalesced > 0 {
		progressEvents.WithLabelValues("coalesced").Add(float64(coalesced))
	}
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
