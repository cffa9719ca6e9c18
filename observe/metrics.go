package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricAcquireTotal    = "tokenops.acquire.total"
	MetricAcquireErrors   = "tokenops.acquire.errors"
	MetricCacheHits       = "tokenops.acquire.cache_hits"
	MetricAcquireDuration = "tokenops.acquire.duration_ms"
)

// Metrics records acquisition metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordAcquire records one acquisition with its outcome and duration.
	RecordAcquire(ctx context.Context, meta RequestMeta, out Outcome, duration time.Duration, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	cacheHits    metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the acquisition instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		MetricAcquireTotal,
		metric.WithDescription("Total number of token acquisitions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		MetricAcquireErrors,
		metric.WithDescription("Total number of failed token acquisitions"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		MetricCacheHits,
		metric.WithDescription("Token acquisitions served from the token cache"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricAcquireDuration,
		metric.WithDescription("Token acquisition duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		cacheHits:    cacheHits,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordAcquire(ctx context.Context, meta RequestMeta, out Outcome, duration time.Duration, err error) {
	attrs := meta.attributes()
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)

	if err != nil {
		errAttrs := attrs
		if out.ErrorKind != "" {
			errAttrs = append(errAttrs, attribute.String(AttrErrorKind, out.ErrorKind))
		}
		m.errorCount.Add(ctx, 1, metric.WithAttributes(errAttrs...))
	} else if out.FromCache {
		m.cacheHits.Add(ctx, 1, opt)
	}

	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordAcquire(context.Context, RequestMeta, Outcome, time.Duration, error) {}
