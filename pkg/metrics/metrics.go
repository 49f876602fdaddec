package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	PatientsCreatedTotal   prometheus.Counter
	AppointmentsScheduled  prometheus.Counter
	AppointmentTransitions *prometheus.CounterVec
	SchedulingConflicts    prometheus.Counter
	TreatmentTransitions   *prometheus.CounterVec
	PrescriptionsIssued    prometheus.Counter

	StoreQueryDuration *prometheus.HistogramVec

	AuditEntriesTotal  prometheus.Counter
	AuditBufferDropped prometheus.Counter
}

// NewCollector registers every metric on reg. Tests pass a fresh
// prometheus.NewRegistry(); the server passes prometheus.DefaultRegisterer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		PatientsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "patients_created_total",
			Help:      "Total number of patient records created.",
		}),

		AppointmentsScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "appointments_scheduled_total",
			Help:      "Total appointments successfully scheduled.",
		}),

		AppointmentTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "appointment_transitions_total",
			Help:      "Appointment status transitions by operation and outcome.",
		}, []string{"operation", "outcome"}),

		SchedulingConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "scheduling_conflicts_total",
			Help:      "Schedule or reschedule requests rejected because the doctor was busy.",
		}),

		TreatmentTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "treatment_transitions_total",
			Help:      "Treatment status transitions by operation and outcome.",
		}, []string{"operation", "outcome"}),

		PrescriptionsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clinical",
			Name:      "prescriptions_issued_total",
			Help:      "Total prescriptions issued.",
		}),

		StoreQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Storage latency distribution by backend, collection and operation.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"backend", "collection", "operation"}),

		AuditEntriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit log entries written.",
		}),

		AuditBufferDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),
	}
}

// Outcome labels a transition counter sample.
func Outcome(err error) string {
	if err != nil {
		return "rejected"
	}
	return "applied"
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
