// Package tracing provides the span tracing layer for Haystack-style
// pipelines in Go.
//
// It defines small, interface-driven contracts — [Tracer] and [Span] — that
// pipeline and component execution code traces against, plus the well-known
// tag keys those callers use for pipeline and component payloads. Concrete
// backends live in subpackages:
//
//   - langfuse — bridges traced operations onto a Langfuse-style client,
//     mapping pipeline runs to traces, LLM generator components to
//     generations, and everything else to plain spans, with token usage,
//     model, and streaming-timing enrichment.
//   - opentelemetry — the same contracts over an OTel TracerProvider, with
//     OTLP exporter setup and derived metrics.
//
// # Quick Start
//
//	client := ...              // any langfuse.Client implementation
//	connector := langfuse.NewConnector(client, langfuse.WithTraceName("My Pipeline"))
//
//	ctx := tracing.WithCorrelation(context.Background(), tracing.Correlation{
//		UserID:    "u-42",
//		SessionID: "s-1",
//	})
//
//	span, end, err := tracing.Get().Trace(ctx, tracing.PipelineRunOperation, tags, nil)
//	if err != nil {
//		return err
//	}
//	defer end()
//
// A process-wide proxy tracer ([Enable], [Get]) lets instrumented code stay
// decoupled from the configured backend, and a content-tracing gate
// ([SetContentTracing]) controls whether potentially sensitive input/output
// payloads are forwarded or only metadata.
package tracing
