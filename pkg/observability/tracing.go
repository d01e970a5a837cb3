package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for editor operations.
	TracerName = "reelkit"
)

// Span attribute keys
const (
	AttrSessionID   = "session_id"
	AttrProjectID   = "project_id"
	AttrProjectName = "project_name"
	AttrPreset      = "aspect_ratio"
	AttrLayers      = "layers"
	AttrCues        = "cues"
	AttrTransport   = "transport"
	AttrJobID       = "job_id"
	AttrErrorCode   = "error_code"
	AttrRetryable   = "retryable"
)

// Span names
const (
	SpanExport      = "reelkit.export"
	SpanSave        = "reelkit.project.save"
	SpanLoad        = "reelkit.project.load"
	SpanSubmit      = "reelkit.render.submit"
	SpanHealthCheck = "reelkit.render.health"
)

// Tracer provides distributed tracing for editor operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// NewTracerFromProvider creates a tracer from an explicit provider.
func NewTracerFromProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(TracerName)}
}

// StartExportSpan starts the root span of an export.
func (t *Tracer) StartExportSpan(ctx context.Context, sessionID, preset string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanExport,
		trace.WithAttributes(
			attribute.String(AttrSessionID, sessionID),
			attribute.String(AttrPreset, preset),
		),
	)
}

// StartSaveSpan starts a span for persisting a project.
func (t *Tracer) StartSaveSpan(ctx context.Context, projectName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSave,
		trace.WithAttributes(attribute.String(AttrProjectName, projectName)),
	)
}

// StartLoadSpan starts a span for loading a project.
func (t *Tracer) StartLoadSpan(ctx context.Context, projectID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanLoad,
		trace.WithAttributes(attribute.String(AttrProjectID, projectID)),
	)
}

// StartSubmitSpan starts a span for a render submission.
func (t *Tracer) StartSubmitSpan(ctx context.Context, transport string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSubmit,
		trace.WithAttributes(attribute.String(AttrTransport, transport)),
	)
}

// StartHealthSpan starts a span for a render health check.
func (t *Tracer) StartHealthSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanHealthCheck)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetDocument records the shape of an export document.
func (h *SpanHelper) SetDocument(layers, cues int) {
	h.span.SetAttributes(
		attribute.Int(AttrLayers, layers),
		attribute.Int(AttrCues, cues),
	)
}

// SetJobID records the render job accepted by the service.
func (h *SpanHelper) SetJobID(jobID string) {
	h.span.SetAttributes(attribute.String(AttrJobID, jobID))
}

// SetProjectID records the stored project ID.
func (h *SpanHelper) SetProjectID(id string) {
	h.span.SetAttributes(attribute.String(AttrProjectID, id))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, code string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
