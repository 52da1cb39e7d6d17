package opentelemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	tracing "github.com/haystack-go/tracing"
)

// Metric attribute keys.
var (
	attrOperation     = attribute.Key("haystack.operation")
	attrComponentType = attribute.Key("haystack.component.type")
)

// Tracer implements tracing.Tracer on an OTel trace.Tracer. Besides spans it
// records operation counts, durations, and the token usage found in
// generator outputs.
//
// Like the Langfuse bridge, a Tracer serves one logical execution; its span
// stack is not synchronized.
type Tracer struct {
	inner trace.Tracer

	operations metric.Int64Counter
	duration   metric.Float64Histogram
	tokens     metric.Int64Counter

	stack []*span
}

// NewTracer returns a tracer backed by the global OTel providers. Call Init
// first to configure them; otherwise spans go to a no-op backend.
func NewTracer() (*Tracer, error) {
	meter := otel.Meter(scopeName)

	operations, err := meter.Int64Counter("pipeline.operations",
		metric.WithDescription("Traced pipeline operation count"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("pipeline.operation.duration",
		metric.WithDescription("Traced pipeline operation duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	tokens, err := meter.Int64Counter("llm.token.usage",
		metric.WithDescription("Total tokens consumed by generator components"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	return &Tracer{
		inner:      otel.Tracer(scopeName),
		operations: operations,
		duration:   duration,
		tokens:     tokens,
	}, nil
}

// Trace implements tracing.Tracer.
func (t *Tracer) Trace(ctx context.Context, operationName string, tags map[string]any, parentSpan tracing.Span) (tracing.Span, tracing.EndFunc, error) {
	if tags == nil {
		tags = map[string]any{}
	}
	name := operationName
	if n, ok := tags[tracing.ComponentNameKey].(string); ok && n != "" {
		name = n
	}
	componentType, _ := tags[tracing.ComponentTypeKey].(string)

	parent := asOTelSpan(parentSpan)
	if parent == nil {
		parent = t.top()
	}
	if parent != nil {
		ctx = trace.ContextWithSpan(ctx, parent.inner)
	}

	ctx, inner := t.inner.Start(ctx, name)
	s := &span{inner: inner, data: map[string]any{}}
	t.stack = append(t.stack, s)
	for k, v := range tags {
		s.SetTag(k, v)
	}

	start := time.Now()
	end := func() { t.finish(ctx, s, operationName, componentType, start) }
	return s, end, nil
}

func (t *Tracer) finish(ctx context.Context, s *span, operationName, componentType string, start time.Time) {
	defer func() {
		if n := len(t.stack); n > 0 && t.stack[n-1] == s {
			t.stack = t.stack[:n-1]
		}
	}()

	attrs := metric.WithAttributes(
		attrOperation.String(operationName),
		attrComponentType.String(componentType),
	)
	t.operations.Add(ctx, 1, attrs)
	t.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if usage, ok := usageIn(s.data[tracing.ComponentOutputKey]); ok {
		t.tokens.Add(ctx, int64(usage.TotalTokens), attrs)
		s.inner.SetAttributes(
			attribute.Int("llm.tokens.prompt", usage.PromptTokens),
			attribute.Int("llm.tokens.completion", usage.CompletionTokens),
		)
	}

	s.inner.End()
}

// CurrentSpan implements tracing.Tracer.
func (t *Tracer) CurrentSpan() tracing.Span {
	top := t.top()
	if top == nil {
		return nil
	}
	return top
}

func (t *Tracer) top() *span {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// span implements tracing.Span on an OTel trace.Span.
type span struct {
	inner trace.Span
	data  map[string]any
}

func (s *span) SetTag(key string, value any) {
	s.inner.SetAttributes(toAttr(key, tracing.CoerceTagValue(value)))
	s.data[key] = value
}

func (s *span) SetContentTag(key string, value any) {
	if tracing.IsContentTracingEnabled() && (strings.HasSuffix(key, ".input") || strings.HasSuffix(key, ".output")) {
		s.inner.SetAttributes(toAttr(key, tracing.CoerceTagValue(value)))
	}
	s.data[key] = value
}

func (s *span) CorrelationDataForLogs() map[string]any {
	sc := s.inner.SpanContext()
	if !sc.IsValid() {
		return map[string]any{}
	}
	return map[string]any{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
}

// toAttr converts a coerced tag value to an OTel attribute.
func toAttr(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// usageIn pulls the token usage out of a cached component output: chat
// generators carry it on the first reply's metadata, plain generators on the
// first entry of the output's meta list.
func usageIn(output any) (tracing.Usage, bool) {
	m, ok := output.(map[string]any)
	if !ok {
		return tracing.Usage{}, false
	}
	if replies, ok := m["replies"].([]tracing.ChatMessage); ok && len(replies) > 0 && replies[0].Meta != nil {
		if usage, ok := tracing.UsageFrom(replies[0].Meta); ok {
			return usage, true
		}
	}
	switch metas := m["meta"].(type) {
	case []map[string]any:
		if len(metas) > 0 {
			return tracing.UsageFrom(metas[0])
		}
	case []any:
		if len(metas) > 0 {
			if meta, ok := metas[0].(map[string]any); ok {
				return tracing.UsageFrom(meta)
			}
		}
	}
	return tracing.Usage{}, false
}

func asOTelSpan(s tracing.Span) *span {
	otelSpan, _ := s.(*span)
	return otelSpan
}

// compile-time checks
var (
	_ tracing.Tracer = (*Tracer)(nil)
	_ tracing.Span   = (*span)(nil)
)
