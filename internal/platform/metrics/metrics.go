package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	Transitions           *prometheus.CounterVec
	CASConflicts          prometheus.Counter
	NotificationsCreated  prometheus.Counter
	NotificationsFailed   prometheus.Counter
	DispatchRetries       prometheus.Counter
	EventsParked          prometheus.Counter
	AuditEventsPublished  prometheus.Counter
	RequestDuration       *prometheus.HistogramVec
	ActorsRegistered      prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medvault_record_transitions_total",
			Help: "Record lifecycle transitions by operation and outcome",
		}, []string{"operation", "outcome"}),
		CASConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medvault_cas_conflicts_total",
			Help: "Lost compare-and-set races surfaced to callers",
		}),
		NotificationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medvault_notifications_created_total",
			Help: "Notifications durably persisted by the dispatcher",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medvault_notifications_failed_total",
			Help: "Notification writes that failed and were queued for retry",
		}),
		DispatchRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medvault_dispatch_retries_total",
			Help: "Retry attempts made by the dispatch retry worker",
		}),
		EventsParked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medvault_notify_events_parked_total",
			Help: "Dispatch events parked durably after the retry budget ran out",
		}),
		AuditEventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medvault_audit_events_published_total",
			Help: "Audit events relayed from the outbox to Kafka",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medvault_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		ActorsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medvault_actors_registered_total",
			Help: "Actors registered in the system",
		}),
	}
}

// ObserveTransition records one lifecycle operation outcome.
func (m *Metrics) ObserveTransition(operation, outcome string) {
	m.Transitions.WithLabelValues(operation, outcome).Inc()
}
