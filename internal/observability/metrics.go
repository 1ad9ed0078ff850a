package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for HTTP traffic and the intake pipeline.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec

	intakeOutcomes    *prometheus.CounterVec
	intakeRejections  *prometheus.CounterVec
	intakeDuration    *prometheus.HistogramVec
	acknowledgments   *prometheus.CounterVec
	userCreations     *prometheus.CounterVec
	eventPublications *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "Total number of HTTP error responses by error code",
		}, []string{"method", "path", "code"}),
		intakeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_intake_messages_total",
			Help: "Inbound messages by routing outcome",
		}, []string{"channel", "outcome"}),
		intakeRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_intake_rejections_total",
			Help: "Inbound messages rejected or aborted, by error code",
		}, []string{"channel", "code"}),
		intakeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_intake_processing_duration_seconds",
			Help:    "Time from receipt to routing decision",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"channel"}),
		acknowledgments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_intake_acknowledgments_total",
			Help: "Acknowledgment sends by result",
		}, []string{"channel", "result"}),
		userCreations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_intake_user_resolutions_total",
			Help: "Identity resolutions by result (existing, created, race_lost)",
		}, []string{"channel", "result"}),
		eventPublications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_intake_events_published_total",
			Help: "Intake events handed to sinks by result",
		}, []string{"type", "result"}),
	}
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(method, path, code).Inc()
}

// RecordIntake counts a routed message and its processing time.
func (m *Metrics) RecordIntake(channel, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.intakeOutcomes.WithLabelValues(channel, outcome).Inc()
	m.intakeDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordRejection counts a message that terminated without being routed.
func (m *Metrics) RecordRejection(channel, code string) {
	if m == nil {
		return
	}
	m.intakeRejections.WithLabelValues(channel, code).Inc()
}

// RecordAcknowledgment counts an acknowledgment attempt.
func (m *Metrics) RecordAcknowledgment(channel, result string) {
	if m == nil {
		return
	}
	m.acknowledgments.WithLabelValues(channel, result).Inc()
}

// RecordUserResolution counts identity resolution results.
func (m *Metrics) RecordUserResolution(channel, result string) {
	if m == nil {
		return
	}
	m.userCreations.WithLabelValues(channel, result).Inc()
}

// RecordEventPublication counts event sink deliveries.
func (m *Metrics) RecordEventPublication(eventType, result string) {
	if m == nil {
		return
	}
	m.eventPublications.WithLabelValues(eventType, result).Inc()
}
