package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "docchat"

// Metrics groups every collector the service exports. All methods are safe on
// a nil receiver so components can run without metrics in tests.
type Metrics struct {
	// QARequestsTotal labels: path (simple, doc), status (success, error)
	QARequestsTotal *prometheus.CounterVec

	// QADurationSeconds labels: path
	QADurationSeconds *prometheus.HistogramVec

	// QAEscalationsTotal labels: level (refined, ungrounded)
	QAEscalationsTotal *prometheus.CounterVec

	FollowUpFailuresTotal  prometheus.Counter
	ModerationFlaggedTotal prometheus.Counter

	// LLMDurationSeconds labels: provider, operation (complete, embed, moderate), status
	LLMDurationSeconds *prometheus.HistogramVec

	// IngestChunksTotal counts chunks written to the vector index
	IngestChunksTotal prometheus.Counter

	// HTTPRequestsTotal labels: method, status
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QARequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "qa_requests_total",
			Help:      "Question answering calls by path and outcome",
		}, []string{"path", "status"}),
		QADurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "qa_duration_seconds",
			Help:      "End-to-end question answering latency",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"path"}),
		QAEscalationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "qa_escalations_total",
			Help:      "Fallback strategies taken after a NONE answer",
		}, []string{"level"}),
		FollowUpFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "followup_failures_total",
			Help:      "Follow-up question generations that failed and were dropped",
		}),
		ModerationFlaggedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "moderation_flagged_total",
			Help:      "User inputs rejected by the moderation gate",
		}),
		LLMDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "llm_duration_seconds",
			Help:      "Latency of upstream model calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"provider", "operation", "status"}),
		IngestChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ingest_chunks_total",
			Help:      "Document chunks written to the vector index",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "status"}),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) ObserveQA(path string, start time.Time, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.QARequestsTotal.WithLabelValues(path, status).Inc()
	m.QADurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Escalation(level string) {
	if m == nil {
		return
	}
	m.QAEscalationsTotal.WithLabelValues(level).Inc()
}

func (m *Metrics) FollowUpFailed() {
	if m == nil {
		return
	}
	m.FollowUpFailuresTotal.Inc()
}

func (m *Metrics) ModerationFlagged() {
	if m == nil {
		return
	}
	m.ModerationFlaggedTotal.Inc()
}

func (m *Metrics) ObserveLLM(provider, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.LLMDurationSeconds.WithLabelValues(provider, operation, statusLabel(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ChunksIngested(n int) {
	if m == nil {
		return
	}
	m.IngestChunksTotal.Add(float64(n))
}

func (m *Metrics) HTTPRequest(method string, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
}
