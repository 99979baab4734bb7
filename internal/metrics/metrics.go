// Package metrics provides Prometheus metrics for the session core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fomo"

// Metrics holds all Prometheus metrics for the app.
type Metrics struct {
	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	Recording        prometheus.Gauge

	// Ingestion metrics
	SegmentsApplied   prometheus.Counter
	SegmentsDuplicate prometheus.Counter
	ItemsApplied      prometheus.Counter
	UpdatesDropped    *prometheus.CounterVec
	PayloadsRejected  *prometheus.CounterVec
	Reconnects        *prometheus.CounterVec
	TransportErrors   *prometheus.CounterVec

	// Action item metrics
	IssueCreations *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg uses a
// private registry, which keeps tests independent of each other.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of recording sessions started",
		}),
		SessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of recording sessions finished, by final status",
		}, []string{"status"}),
		Recording: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording",
			Help:      "1 while a meeting is being recorded",
		}),

		SegmentsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_segments_applied_total",
			Help:      "Transcript segments appended to the current meeting",
		}),
		SegmentsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_segments_duplicate_total",
			Help:      "Transcript segments ignored because their id was already applied",
		}),
		ItemsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_items_applied_total",
			Help:      "Action items appended to the current meeting",
		}),
		UpdatesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_dropped_total",
			Help:      "Live updates dropped before reaching a meeting",
		}, []string{"reason"}),
		PayloadsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_rejected_total",
			Help:      "Malformed live update payloads",
		}, []string{"transport", "type"}),
		Reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_reconnects_total",
			Help:      "Reconnect or retry attempts made by ingestion",
		}, []string{"transport"}),
		TransportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_transport_errors_total",
			Help:      "Transport failures observed by ingestion",
		}, []string{"transport"}),

		IssueCreations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issue_creations_total",
			Help:      "GitHub issue creation attempts, by result",
		}, []string{"result"}),
	}
}

// RecordSessionStart records a new recording session.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.Recording.Set(1)
}

// RecordSessionEnd records a session leaving the current slot.
func (m *Metrics) RecordSessionEnd(status string) {
	m.Recording.Set(0)
	m.SessionsFinished.WithLabelValues(status).Inc()
}

// RecordDropped records a live update that never reached a meeting.
func (m *Metrics) RecordDropped(reason string) {
	m.UpdatesDropped.WithLabelValues(reason).Inc()
}

// RecordRejected records a malformed payload.
func (m *Metrics) RecordRejected(transport, kind string) {
	m.PayloadsRejected.WithLabelValues(transport, kind).Inc()
}

// RecordTransportError records a transport failure and the retry that follows.
func (m *Metrics) RecordTransportError(transport string) {
	m.TransportErrors.WithLabelValues(transport).Inc()
}

// RecordReconnect records a reconnect attempt.
func (m *Metrics) RecordReconnect(transport string) {
	m.Reconnects.WithLabelValues(transport).Inc()
}

// RecordIssueCreation records the result of a GitHub issue creation.
func (m *Metrics) RecordIssueCreation(err error) {
	result := "created"
	if err != nil {
		result = "failed"
	}
	m.IssueCreations.WithLabelValues(result).Inc()
}
