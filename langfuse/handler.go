package langfuse

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	tracing "github.com/haystack-go/tracing"
)

// Generator component types that map to Langfuse generations instead of
// plain spans. Chat variants additionally carry reply metadata (usage,
// model, streaming timing).
var supportedGenerators = map[string]bool{
	"AzureOpenAIGenerator":      true,
	"OpenAIGenerator":           true,
	"AnthropicGenerator":        true,
	"HuggingFaceAPIGenerator":   true,
	"HuggingFaceLocalGenerator": true,
	"CohereGenerator":           true,
	"OllamaGenerator":           true,
}

var supportedChatGenerators = map[string]bool{
	"AzureOpenAIChatGenerator":      true,
	"OpenAIChatGenerator":           true,
	"AnthropicChatGenerator":        true,
	"HuggingFaceAPIChatGenerator":   true,
	"HuggingFaceLocalChatGenerator": true,
	"CohereChatGenerator":           true,
	"OllamaChatGenerator":           true,
	"GoogleGenAIChatGenerator":      true,
}

func isGeneratorType(componentType string) bool {
	return supportedGenerators[componentType] || supportedChatGenerators[componentType]
}

// SpanHandler decides what kind of backend object a traced operation becomes
// and enriches the finished span with backend-specific data. Pass a custom
// implementation to NewTracer via WithSpanHandler; most custom handlers only
// need to override Handle and can embed DefaultSpanHandler for the rest.
type SpanHandler interface {
	// InitClient hands the handler the backend client it needs to create
	// root traces. Called by the tracer during construction.
	InitClient(client Client)
	// CreateSpan creates a span of the appropriate kind: a new trace when
	// the context has no parent, a generation for LLM generator
	// components, a plain span otherwise. The ambient correlation on ctx
	// is consulted only for root traces.
	CreateSpan(ctx context.Context, sc *SpanContext) (*Span, error)
	// Handle runs once after the traced operation finished, before the
	// span is ended. It may read the span's cached tags and write
	// enrichment through the raw handle. It must never fail the
	// operation: missing data means skipping a rule, not raising.
	Handle(span *Span, componentType string)
}

// DefaultSpanHandler implements the standard mapping and enrichment rules.
type DefaultSpanHandler struct {
	client Client
}

// InitClient implements SpanHandler.
func (h *DefaultSpanHandler) InitClient(client Client) { h.client = client }

// CreateSpan implements SpanHandler. A parentless context always yields a
// root trace, regardless of component type.
func (h *DefaultSpanHandler) CreateSpan(ctx context.Context, sc *SpanContext) (*Span, error) {
	if h.client == nil {
		return nil, fmt.Errorf("%w: pass a client to NewTracer or call InitClient first", ErrNoClient)
	}
	if sc.ParentSpan == nil {
		corr := tracing.CorrelationFrom(ctx)
		return newTraceSpan(h.client.Trace(TraceParams{
			Name:      sc.TraceName,
			Public:    sc.Public,
			ID:        corr.TraceID,
			UserID:    corr.UserID,
			SessionID: corr.SessionID,
			Tags:      corr.Tags,
			Version:   corr.Version,
		})), nil
	}
	if isGeneratorType(sc.ComponentType) {
		return newObservationSpan(sc.ParentSpan.Raw().Generation(sc.Name), KindGeneration), nil
	}
	return newObservationSpan(sc.ParentSpan.Raw().Span(sc.Name), KindSpan), nil
}

// Handle implements SpanHandler. Rule order matters: later rules may
// overwrite fields written by earlier ones.
func (h *DefaultSpanHandler) Handle(span *Span, componentType string) {
	data := span.Data()

	// Pipeline-level spans carry the pipeline input key; copy the full
	// pipeline input/output onto the trace.
	if _, atPipelineLevel := data[tracing.PipelineInputKey]; atPipelineLevel {
		span.Raw().Update(Observation{
			Input:     tracing.CoerceTagValue(data[tracing.PipelineInputKey]),
			SetInput:  true,
			Output:    tracing.CoerceTagValue(data[tracing.PipelineOutputKey]),
			SetOutput: true,
		})
	}

	if componentType == "ToolInvoker" {
		h.renameToolInvoker(span, data)
	}

	if supportedGenerators[componentType] {
		if meta, ok := firstMetaIn(data[tracing.ComponentOutputKey]); ok {
			span.Raw().Update(Observation{
				Usage:    meta["usage"],
				SetUsage: meta["usage"] != nil,
				Model:    stringFrom(meta["model"]),
			})
		}
	}

	if supportedChatGenerators[componentType] {
		if meta, ok := firstReplyMetaIn(data[tracing.ComponentOutputKey]); ok {
			span.Raw().Update(Observation{
				Usage:               meta["usage"],
				SetUsage:            meta["usage"] != nil,
				Model:               stringFrom(meta["model"]),
				CompletionStartTime: completionStartTimeIn(meta),
			})
		}
	}
}

// renameToolInvoker rewrites the span name to
// "<component name> - [tool, other (x2)]" based on the tool calls found in
// the cached input messages. No tool calls leaves the name untouched.
func (h *DefaultSpanHandler) renameToolInvoker(span *Span, data map[string]any) {
	messages, ok := chatMessagesIn(data[tracing.ComponentInputKey], "messages")
	if !ok {
		return
	}
	counts := map[string]int{}
	for _, m := range messages {
		for _, call := range m.ToolCalls {
			counts[call.ToolName]++
		}
	}
	if len(counts) == 0 {
		return
	}

	labels := make([]string, 0, len(counts))
	for name, count := range counts {
		if count > 1 {
			labels = append(labels, fmt.Sprintf("%s (x%d)", name, count))
		} else {
			labels = append(labels, name)
		}
	}
	sort.Strings(labels)

	invokerName := "ToolInvoker"
	if name := stringFrom(data[tracing.ComponentNameKey]); name != "" {
		invokerName = name
	}
	span.Raw().Update(Observation{
		Name: fmt.Sprintf("%s - [%s]", invokerName, strings.Join(labels, ", ")),
	})
}

// firstMetaIn reads output["meta"][0] from a non-chat generator output.
func firstMetaIn(output any) (map[string]any, bool) {
	raw, present := fieldIn(output, "meta")
	if !present {
		return nil, false
	}
	switch metas := raw.(type) {
	case []map[string]any:
		if len(metas) > 0 {
			return metas[0], true
		}
	case []any:
		if len(metas) > 0 {
			if m, ok := metas[0].(map[string]any); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// firstReplyMetaIn reads output["replies"][0].Meta from a chat generator
// output.
func firstReplyMetaIn(output any) (map[string]any, bool) {
	replies, ok := chatMessagesIn(output, "replies")
	if !ok || len(replies) == 0 || replies[0].Meta == nil {
		return nil, false
	}
	return replies[0].Meta, true
}

// ISO-8601 layouts providers use for completion_start_time, with and without
// an offset or sub-second precision.
var completionTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// completionStartTimeIn parses the streaming start timestamp out of reply
// metadata. An unparsable value is logged and treated as absent so it never
// fails the operation.
func completionStartTimeIn(meta map[string]any) *time.Time {
	raw := stringFrom(meta["completion_start_time"])
	if raw == "" {
		return nil
	}
	for _, layout := range completionTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	slog.Error("failed to parse completion_start_time", "value", raw)
	return nil
}

func stringFrom(v any) string {
	s, _ := v.(string)
	return s
}

var _ SpanHandler = (*DefaultSpanHandler)(nil)
