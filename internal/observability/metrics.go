package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActionDispatches   *prometheus.CounterVec
	DispatchLatency    prometheus.Histogram
	StoreErrors        *prometheus.CounterVec
	ChatTurns          prometheus.Counter
	SessionEvents      *prometheus.CounterVec
	ActiveChatSessions prometheus.Gauge
	SummariesWritten   prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActionDispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_dispatches_total",
			Help:      "Action requests by function and outcome.",
		}, []string{"function", "outcome"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_dispatch_latency_ms",
			Help:      "Latency of one action dispatch in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Backing store errors by store and operation.",
		}, []string{"store", "op"}),
		ChatTurns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Completed conversational turns.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Chat session lifecycle events by type.",
		}, []string{"event"}),
		ActiveChatSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_chat_sessions",
			Help:      "Number of active chat sessions.",
		}),
		SummariesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_summaries_written_total",
			Help:      "Session summaries persisted to long-term memory.",
		}),
	}
}

func (m *Metrics) ObserveDispatchLatency(d time.Duration) {
	m.DispatchLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
