package tracing

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// EndFunc closes a traced operation. Callers must invoke it on every exit
// path, typically via defer, so the backend span is ended and the tracer's
// nesting state unwinds even when the operation body fails or panics.
type EndFunc func()

// Tracer creates spans around pipeline and component operations.
// The langfuse and opentelemetry packages provide backend implementations.
type Tracer interface {
	// Trace opens a span for the given operation. Tag values under the
	// well-known component keys determine the span's name and kind. When
	// parentSpan is nil the tracer's current span (if any) becomes the
	// parent, which is how nested sub-pipelines attach to their caller.
	// The returned EndFunc must be called when the operation completes.
	Trace(ctx context.Context, operationName string, tags map[string]any, parentSpan Span) (Span, EndFunc, error)
	// CurrentSpan returns the innermost active span, or nil when no
	// operation is being traced.
	CurrentSpan() Span
}

// Span is one traced operation. Implementations cache every tag written to
// them; backends read that cache after the operation to enrich the span.
type Span interface {
	// SetTag attaches a metadata tag to the span.
	SetTag(key string, value any)
	// SetContentTag attaches a payload tag (component input or output).
	// Forwarding to the backend is gated by the content-tracing flag;
	// the local cache is written regardless.
	SetContentTag(key string, value any)
	// CorrelationDataForLogs returns fields log records should carry to
	// correlate with this span. May be empty.
	CorrelationDataForLogs() map[string]any
}

// ContentTracingEnvVar enables content tracing at startup when set to "true".
const ContentTracingEnvVar = "HAYSTACK_CONTENT_TRACING_ENABLED"

var contentTracing atomic.Bool

func init() {
	contentTracing.Store(strings.EqualFold(os.Getenv(ContentTracingEnvVar), "true"))
}

// SetContentTracing toggles forwarding of input/output payloads to tracing
// backends. Off by default: only metadata leaves the process.
func SetContentTracing(enabled bool) {
	contentTracing.Store(enabled)
}

// IsContentTracingEnabled reports whether payload forwarding is on.
func IsContentTracingEnabled() bool {
	return contentTracing.Load()
}

var (
	tracerMu sync.RWMutex
	tracer   Tracer = NullTracer{}
)

// Enable installs t as the process-wide tracer returned by Get.
func Enable(t Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	if t != nil {
		tracer = t
	}
}

// Disable resets the process-wide tracer to the no-op NullTracer.
func Disable() {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	tracer = NullTracer{}
}

// Get returns the process-wide tracer. Defaults to NullTracer until Enable
// is called, so instrumented code never needs a nil check.
func Get() Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	return tracer
}

// NullTracer discards every traced operation. It is the default backend.
type NullTracer struct{}

func (NullTracer) Trace(_ context.Context, _ string, _ map[string]any, _ Span) (Span, EndFunc, error) {
	return NullSpan{}, func() {}, nil
}

func (NullTracer) CurrentSpan() Span { return nil }

// NullSpan swallows all tag writes.
type NullSpan struct{}

func (NullSpan) SetTag(string, any) {}

func (NullSpan) SetContentTag(string, any) {}

func (NullSpan) CorrelationDataForLogs() map[string]any { return map[string]any{} }

var (
	_ Tracer = NullTracer{}
	_ Span   = NullSpan{}
)
