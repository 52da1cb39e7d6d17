package langfuse

import (
	"context"
	"log/slog"
	"os"
	"strings"

	tracing "github.com/haystack-go/tracing"
)

// EnforceFlushEnvVar disables the flush after every traced operation when
// set to "false". Flushing per operation is the default so short-lived
// processes never lose spans.
const EnforceFlushEnvVar = "HAYSTACK_LANGFUSE_ENFORCE_FLUSH"

// DefaultTraceName names root traces when no WithTraceName option is given.
const DefaultTraceName = "Haystack"

// Tracer bridges traced pipeline operations onto a Langfuse-style backend.
//
// It owns a stack of active spans: each Trace call pushes, each EndFunc
// pops, and the top of the stack is the implicit parent for the next span.
// The stack is not synchronized — a Tracer belongs to one logical execution,
// and concurrent executions need their own Tracer (the backend client may be
// shared; it is assumed thread-safe).
type Tracer struct {
	client       Client
	name         string
	public       bool
	handler      SpanHandler
	enforceFlush bool
	stack        []*Span
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithTraceName sets the name root traces carry on the backend dashboard.
func WithTraceName(name string) Option {
	return func(t *Tracer) { t.name = name }
}

// WithPublic makes trace links viewable by anyone with the URL.
func WithPublic(public bool) Option {
	return func(t *Tracer) { t.public = public }
}

// WithSpanHandler replaces the default span creation and enrichment policy.
func WithSpanHandler(handler SpanHandler) Option {
	return func(t *Tracer) {
		if handler != nil {
			t.handler = handler
		}
	}
}

// WithEnforceFlush overrides the per-operation flush behavior, including
// the EnforceFlushEnvVar setting.
func WithEnforceFlush(enforce bool) Option {
	return func(t *Tracer) { t.enforceFlush = enforce }
}

// NewTracer creates a tracer on top of client.
func NewTracer(client Client, opts ...Option) *Tracer {
	if !tracing.IsContentTracingEnabled() {
		slog.Warn("traces will not carry payloads because content tracing is disabled; " +
			"set " + tracing.ContentTracingEnvVar + "=true to enable")
	}
	t := &Tracer{
		client:       client,
		name:         DefaultTraceName,
		handler:      &DefaultSpanHandler{},
		enforceFlush: !strings.EqualFold(os.Getenv(EnforceFlushEnvVar), "false"),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.handler.InitClient(client)
	return t
}

// Trace opens a span for operationName. The span's name and kind come from
// the component tags; the current stack top is the parent unless parentSpan
// overrides it, which is how sub-pipelines nest under the component that ran
// them. The returned EndFunc enriches and ends the span, pops the stack, and
// flushes when configured — on every exit path, including panics in the
// operation body when called via defer.
//
// Trace fails only when the span context is invalid or no backend client is
// configured; everything after the span exists is cleanup and never fails
// the operation.
func (t *Tracer) Trace(ctx context.Context, operationName string, tags map[string]any, parentSpan tracing.Span) (tracing.Span, tracing.EndFunc, error) {
	if tags == nil {
		tags = map[string]any{}
	}
	spanName := operationName
	if name := stringFrom(tags[tracing.ComponentNameKey]); name != "" {
		spanName = name
	}
	componentType := stringFrom(tags[tracing.ComponentTypeKey])

	parent := asBridgeSpan(parentSpan)
	if parent == nil {
		parent = t.top()
	}

	sc := &SpanContext{
		Name:          spanName,
		OperationName: operationName,
		ComponentType: componentType,
		Tags:          tags,
		ParentSpan:    parent,
		TraceName:     t.name,
		Public:        t.public,
	}
	if err := sc.Validate(); err != nil {
		return nil, nil, err
	}

	span, err := t.handler.CreateSpan(ctx, sc)
	if err != nil {
		return nil, nil, err
	}

	t.stack = append(t.stack, span)
	span.SetTags(tags)

	return span, func() { t.finish(span, operationName, componentType) }, nil
}

// finish runs the ENDING half of the span lifecycle. Cleanup errors are
// logged and discarded so a failing backend can never corrupt the stack or
// mask the operation's own error.
func (t *Tracer) finish(span *Span, operationName, componentType string) {
	defer func() {
		if t.enforceFlush {
			t.Flush()
		}
	}()
	// Pop after cleanup, but only if the top is still this span: a
	// reentrant or misnested end must not drop someone else's span.
	defer func() {
		if n := len(t.stack); n > 0 && t.stack[n-1] == span {
			t.stack = t.stack[:n-1]
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("error during span cleanup", "operation", operationName, "panic", r)
		}
	}()

	t.handler.Handle(span, componentType)

	// Root traces close implicitly on flush; only spans and generations
	// carry an explicit end.
	if span.ender != nil {
		if err := span.ender.End(); err != nil {
			slog.Warn("error ending span", "operation", operationName, "error", err)
		}
	}
}

// CurrentSpan returns the innermost active span, or nil when idle.
func (t *Tracer) CurrentSpan() tracing.Span {
	top := t.top()
	if top == nil {
		return nil
	}
	return top
}

func (t *Tracer) top() *Span {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// Flush synchronously delivers buffered spans to the backend. Delivery
// errors are logged and discarded.
func (t *Tracer) Flush() {
	if err := t.client.Flush(); err != nil {
		slog.Warn("langfuse flush failed", "error", err)
	}
}

// TraceURL returns the dashboard URL of the latest trace.
func (t *Tracer) TraceURL() string { return t.client.TraceURL() }

// TraceID returns the id of the latest trace.
func (t *Tracer) TraceID() string { return t.client.TraceID() }

func asBridgeSpan(s tracing.Span) *Span {
	bridge, _ := s.(*Span)
	return bridge
}

var _ tracing.Tracer = (*Tracer)(nil)
