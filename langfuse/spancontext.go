package langfuse

import "fmt"

// SpanContext describes the span a handler should create next. It is built
// fresh per traced operation and discarded once CreateSpan consumed it;
// nothing mutates it afterwards.
type SpanContext struct {
	// Name of the span. For components this is the component name.
	Name string
	// OperationName is the operation being traced, e.g.
	// tracing.PipelineRunOperation.
	OperationName string
	// ComponentType of the component creating the span, e.g.
	// "OpenAIChatGenerator". Empty for pipeline-level spans.
	ComponentType string
	// Tags holds the component input/output data and other trace metadata.
	Tags map[string]any
	// ParentSpan, when set, nests the new span under it. When nil a new
	// root trace is created.
	ParentSpan *Span
	// TraceName names the root trace on the backend dashboard.
	TraceName string
	// Public makes the trace link viewable without a backend account.
	Public bool
}

// Validate fails fast on a malformed context. Required strings are never
// silently defaulted.
func (c *SpanContext) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: span name cannot be empty", ErrValidation)
	}
	if c.OperationName == "" {
		return fmt.Errorf("%w: operation name cannot be empty", ErrValidation)
	}
	if c.TraceName == "" {
		return fmt.Errorf("%w: trace name cannot be empty", ErrValidation)
	}
	return nil
}
