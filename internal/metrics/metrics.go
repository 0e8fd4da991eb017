// Package metrics exposes prometheus instruments for the analysis pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "botscan"

// Metrics bundles every instrument the server records
type Metrics struct {
	analysesStarted  prometheus.Counter
	analysesFinished *prometheus.CounterVec
	staleCompletions *prometheus.CounterVec
	remoteDuration   *prometheus.HistogramVec
	feedback         *prometheus.CounterVec
	exports          *prometheus.CounterVec
	historyWrites    *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// New registers all instruments on reg. Tests pass a fresh
// prometheus.NewRegistry() to stay isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		analysesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "analyses_started_total",
			Help:      "Analyses started, including ones later superseded",
		}),
		analysesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "analyses_finished_total",
			Help:      "Analyses that reached a terminal state by outcome",
		}, []string{"outcome"}),
		staleCompletions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "stale_completions_total",
			Help:      "Results and timers discarded because a newer generation was current",
		}, []string{"source"}),
		remoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Remote analysis service latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"operation", "status"}),
		feedback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "submissions_total",
			Help:      "Feedback submissions by status",
		}, []string{"status"}),
		exports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "artifacts_total",
			Help:      "Report exports by format and status",
		}, []string{"format", "status"}),
		historyWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "writes_total",
			Help:      "Scan history writes by status",
		}, []string{"status"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently held by the manager",
		}),
	}
}

func (m *Metrics) AnalysisStarted() {
	if m == nil {
		return
	}
	m.analysesStarted.Inc()
}

// AnalysisFinished records a terminal outcome: ready, failed_lookup or failed_report
func (m *Metrics) AnalysisFinished(outcome string) {
	if m == nil {
		return
	}
	m.analysesFinished.WithLabelValues(outcome).Inc()
}

// StaleCompletion records a discarded lookup, report or timer result
func (m *Metrics) StaleCompletion(source string) {
	if m == nil {
		return
	}
	m.staleCompletions.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveRemote(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(operation, status(err)).Observe(time.Since(started).Seconds())
}

// Feedback records a submission outcome: ok, failed or invalid
func (m *Metrics) Feedback(outcome string) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Export(format string, err error) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, status(err)).Inc()
}

func (m *Metrics) HistoryWrite(err error) {
	if m == nil {
		return
	}
	m.historyWrites.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
