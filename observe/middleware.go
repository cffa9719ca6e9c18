package observe

import (
	"context"
	"time"
)

// Outcome summarizes an acquisition for telemetry.
type Outcome struct {
	// FromCache is true when no network call was made.
	FromCache bool

	// ErrorKind classifies a failure (interaction_required, throttled, ...).
	ErrorKind string
}

// AcquireFunc is the signature Middleware wraps.
type AcquireFunc func(ctx context.Context, meta RequestMeta) (Outcome, error)

// Middleware wraps token acquisition with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe AcquireFunc.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

// NewMiddleware creates a Middleware. Nil components are replaced with
// no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Wrap wraps fn with a span, metric points and one log line.
func (m *Middleware) Wrap(fn AcquireFunc) AcquireFunc {
	return func(ctx context.Context, meta RequestMeta) (Outcome, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := m.now()

		out, err := fn(ctx, meta)

		duration := m.now().Sub(start)
		m.tracer.EndSpan(span, out, err)
		m.metrics.RecordAcquire(ctx, meta, out, duration, err)

		log := m.logger.WithRequest(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
			{Key: "cache_not_used", Value: !out.FromCache},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			if out.ErrorKind != "" {
				fields = append(fields, Field{Key: "error_kind", Value: out.ErrorKind})
			}
			log.Warn(ctx, "token acquisition failed", fields...)
		} else {
			log.Debug(ctx, "token acquisition completed", fields...)
		}

		return out, err
	}
}

// MiddlewareFromObserver builds a Middleware from an Observer's tracer,
// meter and logger.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
