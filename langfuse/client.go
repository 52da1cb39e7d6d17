package langfuse

import "time"

// ObservationKind tags what a backend handle represents. Only spans and
// generations are ended explicitly; root traces close when the client
// flushes them.
type ObservationKind uint8

const (
	KindTrace ObservationKind = iota
	KindSpan
	KindGeneration
)

func (k ObservationKind) String() string {
	switch k {
	case KindTrace:
		return "trace"
	case KindSpan:
		return "span"
	case KindGeneration:
		return "generation"
	}
	return "unknown"
}

// TraceParams configures a new root trace.
type TraceParams struct {
	Name   string
	Public bool

	// Correlation fields, empty unless the caller provided them via
	// tracing.WithCorrelation. An empty ID lets the client mint one.
	ID        string
	UserID    string
	SessionID string
	Tags      []string
	Version   string
}

// Observation is a partial update to a backend trace, span, or generation.
// Zero-valued fields are left untouched; the Set* flags disambiguate a
// deliberate write of an empty Input/Output/Usage.
type Observation struct {
	Name     string
	Metadata map[string]any

	Input    any
	SetInput bool

	Output    any
	SetOutput bool

	Usage    any
	SetUsage bool

	Model               string
	CompletionStartTime *time.Time
}

// Handle is the write surface shared by every backend object. The adapter
// never reads anything back through it.
type Handle interface {
	// Update applies a partial update to the backend object.
	Update(obs Observation)
	// Span creates a plain child span.
	Span(name string) ObservationHandle
	// Generation creates a child generation (a model-inference span).
	Generation(name string) ObservationHandle
}

// TraceHandle is a root trace. It carries no End: traces close implicitly.
type TraceHandle interface {
	Handle
}

// ObservationHandle is a nested span or generation. End reports delivery
// problems so the tracer can log them; it is never propagated further.
type ObservationHandle interface {
	Handle
	End() error
}

// Client is the backend SDK boundary. Implementations own batching,
// transport, and retries; this package treats them as opaque and assumes
// they are safe for concurrent use.
type Client interface {
	// Trace creates a new root trace.
	Trace(params TraceParams) TraceHandle
	// Flush synchronously delivers all buffered observations.
	Flush() error
	// TraceURL returns the dashboard URL of the latest trace.
	TraceURL() string
	// TraceID returns the id of the latest trace.
	TraceID() string
}
