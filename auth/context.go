package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const correlationIDKey contextKey = iota

// WithCorrelationID returns a context carrying id. Token requests made under
// it send id as client-request-id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation ID in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// ensureCorrelationID returns ctx with a correlation ID, generating a
// random one when ctx has none.
func ensureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}
