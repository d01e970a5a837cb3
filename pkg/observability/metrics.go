// Package observability provides event schemas, metrics, and tracing for
// editor sessions and render submissions.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EditorMetrics holds all Prometheus metrics for the editor core.
type EditorMetrics struct {
	// Highlight metrics
	HighlightTicksTotal       *prometheus.CounterVec
	HighlightTransitionsTotal *prometheus.CounterVec
	MissingAnchorsTotal       prometheus.Counter

	// Edit metrics
	EditsCommittedTotal *prometheus.CounterVec
	EditsCoalescedTotal *prometheus.CounterVec

	// Layout metrics
	LayoutScale   prometheus.Gauge
	ResizesTotal  prometheus.Counter
	PresetChanges *prometheus.CounterVec

	// Export metrics
	ExportsTotal       *prometheus.CounterVec
	ExportLayers       prometheus.Histogram
	SubmissionsTotal   *prometheus.CounterVec
	SubmissionSeconds  *prometheus.HistogramVec
	ProjectsSavedTotal *prometheus.CounterVec
}

// DefaultEditorMetrics creates metrics registered with the default registry.
func DefaultEditorMetrics() *EditorMetrics {
	return NewEditorMetrics(prometheus.DefaultRegisterer)
}

// NewEditorMetrics creates a new set of editor metrics on reg.
func NewEditorMetrics(reg prometheus.Registerer) *EditorMetrics {
	factory := promauto.With(reg)

	return &EditorMetrics{
		HighlightTicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelkit_highlight_ticks_total",
				Help: "Time-changed notifications processed, by resulting state",
			},
			[]string{"state"},
		),
		HighlightTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelkit_highlight_transitions_total",
				Help: "Active word changes",
			},
			[]string{"to"},
		),
		MissingAnchorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reelkit_highlight_missing_anchors_total",
				Help: "Active words whose anchor was not rendered yet",
			},
		),

		EditsCommittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelkit_edits_committed_total",
				Help: "Debounced edits committed",
			},
			[]string{"target"},
		),
		EditsCoalescedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelkit_edits_coalesced_total",
				Help: "Keystrokes discarded because a newer edit arrived within the window",
			},
			[]string{"target"},
		),

		LayoutScale: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reelkit_layout_scale",
				Help: "Current canvas to container scale",
			},
		),
		ResizesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reelkit_layout_resizes_total",
				Help: "Container resize notifications",
			},
		),
		PresetChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelkit_layout_preset_changes_total",
				Help: "Aspect ratio preset switches",
			},
			[]string{"preset"},
		),

		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelkit_exports_total",
				Help: "Export documents produced",
			},
			[]string{"status"},
		),
		ExportLayers: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reelkit_export_layers",
				Help:    "Layers per export document",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
			},
		),
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelkit_render_submissions_total",
				Help: "Render submissions by transport and status",
			},
			[]string{"transport", "status"},
		),
		SubmissionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reelkit_render_submission_seconds",
				Help:    "Render submission latency",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"transport"},
		),
		ProjectsSavedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reelkit_projects_saved_total",
				Help: "Projects saved by status",
			},
			[]string{"status"},
		),
	}
}

// RecordTick records one highlight tick ending in state "active" or "idle".
func (m *EditorMetrics) RecordTick(active bool) {
	state := "idle"
	if active {
		state = "active"
	}
	m.HighlightTicksTotal.WithLabelValues(state).Inc()
}

// RecordTransition records a change of active word.
func (m *EditorMetrics) RecordTransition(toActive bool) {
	to := "idle"
	if toActive {
		to = "active"
	}
	m.HighlightTransitionsTotal.WithLabelValues(to).Inc()
}

// RecordMissingAnchor records a skipped scroll for an unrendered anchor.
func (m *EditorMetrics) RecordMissingAnchor() {
	m.MissingAnchorsTotal.Inc()
}

// RecordEditCommitted records a committed edit for target ("chunk", "title").
func (m *EditorMetrics) RecordEditCommitted(target string) {
	m.EditsCommittedTotal.WithLabelValues(target).Inc()
}

// RecordEditCoalesced records a discarded intermediate edit.
func (m *EditorMetrics) RecordEditCoalesced(target string) {
	m.EditsCoalescedTotal.WithLabelValues(target).Inc()
}

// RecordResize records a container resize and the resulting scale.
func (m *EditorMetrics) RecordResize(scale float64) {
	m.ResizesTotal.Inc()
	m.LayoutScale.Set(scale)
}

// RecordPresetChange records an aspect ratio switch.
func (m *EditorMetrics) RecordPresetChange(preset string) {
	m.PresetChanges.WithLabelValues(preset).Inc()
}

// RecordExport records an export document and its layer count.
func (m *EditorMetrics) RecordExport(status string, layers int) {
	m.ExportsTotal.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		m.ExportLayers.Observe(float64(layers))
	}
}

// RecordSubmission records a render submission.
func (m *EditorMetrics) RecordSubmission(transport, status string, seconds float64) {
	m.SubmissionsTotal.WithLabelValues(transport, status).Inc()
	m.SubmissionSeconds.WithLabelValues(transport).Observe(seconds)
}

// RecordProjectSaved records a project save.
func (m *EditorMetrics) RecordProjectSaved(status string) {
	m.ProjectsSavedTotal.WithLabelValues(status).Inc()
}

// Status label values
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Transport label values
const (
	TransportGRPC = "grpc"
	TransportHTTP = "http"
)
