package observe

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Attribute keys shared by spans, metrics and log lines.
const (
	AttrClientID     = "token.client_id"
	AttrAuthority    = "token.authority"
	AttrFlow         = "token.flow"
	AttrCacheNotUsed = "token.cache_not_used"
	AttrError        = "token.error"
	AttrErrorKind    = "token.error_kind"
)

// RequestMeta describes one token acquisition for telemetry purposes.
type RequestMeta struct {
	ClientID  string // Application (client) ID
	Authority string // Authority URL or host (optional)
	Flow      string // silent, client_credentials, refresh_token, ...
	Scopes    []string
}

// FlowName returns Flow, or "unknown" when it is empty.
func (m RequestMeta) FlowName() string {
	if m.Flow == "" {
		return "unknown"
	}
	return strings.ToLower(m.Flow)
}

// SpanName returns the deterministic span name: token.acquire.<flow>.
func (m RequestMeta) SpanName() string {
	return "token.acquire." + m.FlowName()
}

func (m RequestMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrFlow, m.FlowName()),
	}
	if m.ClientID != "" {
		attrs = append(attrs, attribute.String(AttrClientID, m.ClientID))
	}
	if m.Authority != "" {
		attrs = append(attrs, attribute.String(AttrAuthority, m.Authority))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with acquisition span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a token acquisition.
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome and any error.
	EndSpan(span trace.Span, out Outcome, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool(AttrError, false))
	if len(meta.Scopes) > 0 {
		attrs = append(attrs, attribute.StringSlice("token.scopes", meta.Scopes))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, out Outcome, err error) {
	span.SetAttributes(attribute.Bool(AttrCacheNotUsed, !out.FromCache))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool(AttrError, true))
		if out.ErrorKind != "" {
			span.SetAttributes(attribute.String(AttrErrorKind, out.ErrorKind))
		}
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ Outcome, _ error) {
	span.End()
}
