package tracing

import (
	"context"

	"github.com/google/uuid"
)

// Correlation carries out-of-band identifiers for one logical execution.
// Set it on the context before entering the outermost traced operation;
// backends consult it only when creating a root trace, so identifiers set
// mid-execution have no effect.
type Correlation struct {
	TraceID   string
	UserID    string
	SessionID string
	Tags      []string
	Version   string
}

type correlationKey struct{}

// WithCorrelation returns a context carrying corr. The value propagates
// through nested and concurrent calls the way any context value does, which
// replaces implicit task-local storage with an explicit hand-off.
func WithCorrelation(ctx context.Context, corr Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, corr)
}

// CorrelationFrom returns the correlation stored on ctx, or the zero value
// when none was set.
func CorrelationFrom(ctx context.Context) Correlation {
	corr, _ := ctx.Value(correlationKey{}).(Correlation)
	return corr
}

// NewTraceID generates a globally unique, time-sortable UUIDv7 (RFC 9562)
// suitable as a backend trace id.
func NewTraceID() string {
	return uuid.Must(uuid.NewV7()).String()
}
