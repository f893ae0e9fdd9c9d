package metrics

import "github.com/prometheus/client_golang/prometheus"

// AppointmentMetrics exposes counters/histograms for appointment operations.
type AppointmentMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	slotsFound        prometheus.Histogram
	auditFailures     prometheus.Counter
	toolCallsTotal    *prometheus.CounterVec
	chatCompletions   *prometheus.CounterVec
	completionLatency prometheus.Histogram
}

// NewAppointmentMetrics registers the collectors on reg (default registerer when nil).
func NewAppointmentMetrics(reg prometheus.Registerer) *AppointmentMetrics {
	m := &AppointmentMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Appointment operations by outcome",
		}, []string{"operation", "outcome"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmacy",
			Subsystem: "appointments",
			Name:      "operation_latency_seconds",
			Help:      "Latency of appointment operations including calendar calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		slotsFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pharmacy",
			Subsystem: "appointments",
			Name:      "free_slots",
			Help:      "Free slots found per availability check before capping",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "appointments",
			Name:      "audit_failures_total",
			Help:      "Audit log appends that failed and were swallowed",
		}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool invocations by action, surface and status",
		}, []string{"action", "surface", "status"}),
		chatCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacy",
			Subsystem: "chat",
			Name:      "completions_total",
			Help:      "Chat completion calls by status",
		}, []string{"status"}),
		completionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pharmacy",
			Subsystem: "chat",
			Name:      "completion_latency_seconds",
			Help:      "Latency of chat completion calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 10, 15, 20, 30},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.operationsTotal,
		m.operationLatency,
		m.slotsFound,
		m.auditFailures,
		m.toolCallsTotal,
		m.chatCompletions,
		m.completionLatency,
	)
	return m
}

func (m *AppointmentMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *AppointmentMetrics) ObserveSlots(n int) {
	if m == nil {
		return
	}
	m.slotsFound.Observe(float64(n))
}

func (m *AppointmentMetrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

func (m *AppointmentMetrics) ObserveToolCall(action, surface, status string) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(action, surface, status).Inc()
}

func (m *AppointmentMetrics) ObserveCompletion(status string, seconds float64) {
	if m == nil {
		return
	}
	m.chatCompletions.WithLabelValues(status).Inc()
	m.completionLatency.Observe(seconds)
}
