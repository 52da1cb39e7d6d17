package langfuse_test

import (
	"context"
	"errors"
	"testing"
	"time"

	tracing "github.com/haystack-go/tracing"
	"github.com/haystack-go/tracing/langfuse"
	"github.com/haystack-go/tracing/langfuse/langfusetest"
)

func newHandler(t *testing.T) (*langfuse.DefaultSpanHandler, *langfusetest.Client) {
	t.Helper()
	client := langfusetest.New()
	handler := &langfuse.DefaultSpanHandler{}
	handler.InitClient(client)
	return handler, client
}

func rootSpan(t *testing.T, handler *langfuse.DefaultSpanHandler) *langfuse.Span {
	t.Helper()
	span, err := handler.CreateSpan(context.Background(), &langfuse.SpanContext{
		Name:          "pipeline",
		OperationName: tracing.PipelineRunOperation,
		TraceName:     "Haystack",
	})
	if err != nil {
		t.Fatalf("CreateSpan: %v", err)
	}
	return span
}

func childSpan(t *testing.T, handler *langfuse.DefaultSpanHandler, parent *langfuse.Span, name, componentType string) *langfuse.Span {
	t.Helper()
	span, err := handler.CreateSpan(context.Background(), &langfuse.SpanContext{
		Name:          name,
		OperationName: "haystack.component.run",
		ComponentType: componentType,
		TraceName:     "Haystack",
		ParentSpan:    parent,
	})
	if err != nil {
		t.Fatalf("CreateSpan %s: %v", name, err)
	}
	return span
}

// ---------------------------------------------------------------------------
// CreateSpan
// ---------------------------------------------------------------------------

func TestCreateSpanWithoutClient(t *testing.T) {
	handler := &langfuse.DefaultSpanHandler{}
	_, err := handler.CreateSpan(context.Background(), &langfuse.SpanContext{
		Name:          "pipeline",
		OperationName: tracing.PipelineRunOperation,
		TraceName:     "Haystack",
	})
	if !errors.Is(err, langfuse.ErrNoClient) {
		t.Errorf("CreateSpan error = %v, want ErrNoClient", err)
	}
}

func TestCreateSpanRootTrace(t *testing.T) {
	handler, client := newHandler(t)
	span := rootSpan(t, handler)

	if span.Kind() != langfuse.KindTrace {
		t.Errorf("Kind = %v, want trace", span.Kind())
	}
	traces := client.Traces()
	if len(traces) != 1 || traces[0].Name != "Haystack" {
		t.Fatalf("traces = %v, want one named Haystack", traces)
	}
}

func TestCreateSpanRootWinsOverGeneratorKind(t *testing.T) {
	handler, client := newHandler(t)
	span, err := handler.CreateSpan(context.Background(), &langfuse.SpanContext{
		Name:          "llm",
		OperationName: "haystack.component.run",
		ComponentType: "OpenAIChatGenerator",
		TraceName:     "Haystack",
	})
	if err != nil {
		t.Fatalf("CreateSpan: %v", err)
	}
	if span.Kind() != langfuse.KindTrace {
		t.Errorf("Kind = %v, want trace even for generator kind without parent", span.Kind())
	}
	if len(client.Traces()) != 1 {
		t.Errorf("traces = %d, want 1", len(client.Traces()))
	}
}

func TestCreateSpanGeneratorBecomesGeneration(t *testing.T) {
	handler, client := newHandler(t)
	root := rootSpan(t, handler)

	for _, componentType := range []string{"OpenAIGenerator", "AnthropicChatGenerator", "OllamaChatGenerator"} {
		span := childSpan(t, handler, root, "llm", componentType)
		if span.Kind() != langfuse.KindGeneration {
			t.Errorf("%s: Kind = %v, want generation", componentType, span.Kind())
		}
	}
	span := childSpan(t, handler, root, "retriever", "InMemoryBM25Retriever")
	if span.Kind() != langfuse.KindSpan {
		t.Errorf("non-generator Kind = %v, want span", span.Kind())
	}

	children := client.Traces()[0].Children
	if len(children) != 4 {
		t.Fatalf("children = %d, want 4", len(children))
	}
}

func TestCreateSpanRootMergesCorrelation(t *testing.T) {
	handler, client := newHandler(t)
	ctx := tracing.WithCorrelation(context.Background(), tracing.Correlation{
		TraceID:   "trace-77",
		UserID:    "u-1",
		SessionID: "s-9",
		Tags:      []string{"beta"},
		Version:   "2.0",
	})

	if _, err := handler.CreateSpan(ctx, &langfuse.SpanContext{
		Name:          "pipeline",
		OperationName: tracing.PipelineRunOperation,
		TraceName:     "Haystack",
		Public:        true,
	}); err != nil {
		t.Fatalf("CreateSpan: %v", err)
	}

	params := client.Traces()[0].Params
	if params.ID != "trace-77" || params.UserID != "u-1" || params.SessionID != "s-9" || params.Version != "2.0" {
		t.Errorf("trace params = %+v, want correlation merged", params)
	}
	if !params.Public {
		t.Error("public flag not propagated")
	}
}

func TestCreateSpanChildIgnoresCorrelation(t *testing.T) {
	handler, client := newHandler(t)
	root := rootSpan(t, handler)

	ctx := tracing.WithCorrelation(context.Background(), tracing.Correlation{UserID: "u-ignored"})
	if _, err := handler.CreateSpan(ctx, &langfuse.SpanContext{
		Name:          "component",
		OperationName: "haystack.component.run",
		TraceName:     "Haystack",
		ParentSpan:    root,
	}); err != nil {
		t.Fatalf("CreateSpan: %v", err)
	}

	if got := client.Traces()[0].Params.UserID; got != "" {
		t.Errorf("root trace picked up mid-execution correlation: %q", got)
	}
}

// ---------------------------------------------------------------------------
// Handle
// ---------------------------------------------------------------------------

func TestHandlePipelineLevelCopiesInputOutput(t *testing.T) {
	handler, client := newHandler(t)
	span := rootSpan(t, handler)

	span.SetTag(tracing.PipelineInputKey, map[string]any{"query": "hi"})
	span.SetTag(tracing.PipelineOutputKey, map[string]any{"answer": "yo"})
	handler.Handle(span, "")

	node := client.Traces()[0]
	input, wrote := node.Input()
	if !wrote || input != `{"query":"hi"}` {
		t.Errorf("trace input = %v, want coerced pipeline input", input)
	}
	output, wrote := node.Output()
	if !wrote || output != `{"answer":"yo"}` {
		t.Errorf("trace output = %v, want coerced pipeline output", output)
	}
}

func TestHandleComponentLevelLeavesInputOutput(t *testing.T) {
	handler, client := newHandler(t)
	span := childSpan(t, handler, rootSpan(t, handler), "component", "")

	span.SetTag(tracing.ComponentInputKey, map[string]any{"q": "x"})
	handler.Handle(span, "")

	node := client.Traces()[0].Children[0]
	if _, wrote := node.Input(); wrote {
		t.Error("component span without pipeline input key must not copy input")
	}
}

func TestHandleToolInvokerRename(t *testing.T) {
	handler, client := newHandler(t)
	span := childSpan(t, handler, rootSpan(t, handler), "tool_invoker", "ToolInvoker")

	span.SetTag(tracing.ComponentNameKey, "tool_invoker")
	span.SetTag(tracing.ComponentInputKey, map[string]any{
		"messages": []tracing.ChatMessage{
			{Role: "assistant", ToolCalls: []tracing.ToolCall{
				{ToolName: "search"},
				{ToolName: "search"},
				{ToolName: "lookup"},
			}},
		},
	})
	handler.Handle(span, "ToolInvoker")

	node := client.Traces()[0].Children[0]
	want := "tool_invoker - [lookup, search (x2)]"
	if node.Name != want {
		t.Errorf("renamed span = %q, want %q", node.Name, want)
	}
}

func TestHandleToolInvokerFallbackName(t *testing.T) {
	handler, client := newHandler(t)
	span := childSpan(t, handler, rootSpan(t, handler), "invoker", "ToolInvoker")

	span.SetTag(tracing.ComponentInputKey, map[string]any{
		"messages": []tracing.ChatMessage{
			{Role: "assistant", ToolCalls: []tracing.ToolCall{{ToolName: "search"}}},
		},
	})
	handler.Handle(span, "ToolInvoker")

	node := client.Traces()[0].Children[0]
	if node.Name != "ToolInvoker - [search]" {
		t.Errorf("renamed span = %q, want literal ToolInvoker base", node.Name)
	}
}

func TestHandleToolInvokerNoToolCalls(t *testing.T) {
	handler, client := newHandler(t)
	span := childSpan(t, handler, rootSpan(t, handler), "tool_invoker", "ToolInvoker")

	span.SetTag(tracing.ComponentInputKey, map[string]any{
		"messages": []tracing.ChatMessage{tracing.UserMessage("no tools here")},
	})
	handler.Handle(span, "ToolInvoker")

	node := client.Traces()[0].Children[0]
	if node.Name != "tool_invoker" {
		t.Errorf("span name = %q, want untouched", node.Name)
	}
}

func TestHandleGeneratorUsageAndModel(t *testing.T) {
	handler, client := newHandler(t)
	span := childSpan(t, handler, rootSpan(t, handler), "llm", "OpenAIGenerator")

	span.SetTag(tracing.ComponentOutputKey, map[string]any{
		"meta": []map[string]any{
			{"usage": map[string]any{"total_tokens": 42}, "model": "gpt-x"},
		},
	})
	handler.Handle(span, "OpenAIGenerator")

	node := client.Traces()[0].Children[0]
	usage, wrote := node.Usage()
	if !wrote {
		t.Fatal("no usage written")
	}
	if usage.(map[string]any)["total_tokens"] != 42 {
		t.Errorf("usage = %v, want total_tokens 42", usage)
	}
	if got := lastModel(node); got != "gpt-x" {
		t.Errorf("model = %q, want gpt-x", got)
	}
}

func TestHandleGeneratorWithoutMeta(t *testing.T) {
	handler, client := newHandler(t)
	span := childSpan(t, handler, rootSpan(t, handler), "llm", "OpenAIGenerator")

	span.SetTag(tracing.ComponentOutputKey, map[string]any{"replies": []any{"text"}})
	handler.Handle(span, "OpenAIGenerator")

	node := client.Traces()[0].Children[0]
	if _, wrote := node.Usage(); wrote {
		t.Error("usage must stay absent without meta")
	}
}

func TestHandleChatGeneratorEnrichment(t *testing.T) {
	handler, client := newHandler(t)
	span := childSpan(t, handler, rootSpan(t, handler), "llm", "OpenAIChatGenerator")

	span.SetTag(tracing.ComponentOutputKey, map[string]any{
		"replies": []tracing.ChatMessage{{
			Role:    "assistant",
			Content: "hi",
			Meta: map[string]any{
				"usage":                 map[string]any{"total_tokens": 42},
				"model":                 "gpt-x",
				"completion_start_time": "2024-01-01T00:00:00",
			},
		}},
	})
	handler.Handle(span, "OpenAIChatGenerator")

	node := client.Traces()[0].Children[0]
	usage, wrote := node.Usage()
	if !wrote || usage.(map[string]any)["total_tokens"] != 42 {
		t.Errorf("usage = %v, want total_tokens 42", usage)
	}
	if got := lastModel(node); got != "gpt-x" {
		t.Errorf("model = %q, want gpt-x", got)
	}

	start := lastCompletionStart(node)
	if start == nil {
		t.Fatal("completion_start_time not parsed")
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("completion_start_time = %v, want %v", start, want)
	}
}

func TestHandleChatGeneratorBadTimestamp(t *testing.T) {
	handler, client := newHandler(t)
	span := childSpan(t, handler, rootSpan(t, handler), "llm", "OpenAIChatGenerator")

	span.SetTag(tracing.ComponentOutputKey, map[string]any{
		"replies": []tracing.ChatMessage{{
			Role: "assistant",
			Meta: map[string]any{
				"usage":                 map[string]any{"total_tokens": 7},
				"model":                 "gpt-x",
				"completion_start_time": "not-a-timestamp",
			},
		}},
	})
	handler.Handle(span, "OpenAIChatGenerator")

	node := client.Traces()[0].Children[0]
	if _, wrote := node.Usage(); !wrote {
		t.Error("usage must still apply with a bad timestamp")
	}
	if got := lastModel(node); got != "gpt-x" {
		t.Errorf("model = %q, want gpt-x despite bad timestamp", got)
	}
	if start := lastCompletionStart(node); start != nil {
		t.Errorf("completion_start_time = %v, want absent", start)
	}
}

func TestHandleDefensiveAgainstEmptyCache(t *testing.T) {
	handler, _ := newHandler(t)
	span := childSpan(t, handler, rootSpan(t, handler), "llm", "OpenAIChatGenerator")

	// Nothing cached at all: every rule must skip, not panic.
	handler.Handle(span, "OpenAIChatGenerator")
	handler.Handle(span, "ToolInvoker")
	handler.Handle(span, "OpenAIGenerator")
	handler.Handle(span, "")
}

func lastModel(n *langfusetest.Node) string {
	for i := len(n.Updates) - 1; i >= 0; i-- {
		if n.Updates[i].Model != "" {
			return n.Updates[i].Model
		}
	}
	return ""
}

func lastCompletionStart(n *langfusetest.Node) *time.Time {
	for i := len(n.Updates) - 1; i >= 0; i-- {
		if n.Updates[i].SetUsage {
			return n.Updates[i].CompletionStartTime
		}
	}
	return nil
}
