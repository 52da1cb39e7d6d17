package langfuse

import (
	tracing "github.com/haystack-go/tracing"
	"github.com/haystack-go/tracing/config"
)

// Connector wires a backend client into the process-wide tracer so every
// pipeline run in the process is traced. It also exposes the latest trace's
// url and id, which pipelines attach to their outputs for debugging.
type Connector struct {
	tracer *Tracer
}

// NewConnector builds a Tracer on client, applies opts, and installs it as
// the process-wide tracer.
func NewConnector(client Client, opts ...Option) *Connector {
	t := NewTracer(client, opts...)
	tracing.Enable(t)
	return &Connector{tracer: t}
}

// NewConnectorFromConfig is NewConnector with the trace name, visibility,
// flush, and content-tracing settings taken from cfg. Extra opts win over
// the config.
func NewConnectorFromConfig(client Client, cfg config.Config, opts ...Option) *Connector {
	tracing.SetContentTracing(cfg.Tracing.ContentTracing)
	base := []Option{
		WithTraceName(cfg.Langfuse.TraceName),
		WithPublic(cfg.Langfuse.Public),
		WithEnforceFlush(cfg.Langfuse.EnforceFlush),
	}
	return NewConnector(client, append(base, opts...)...)
}

// Tracer returns the underlying bridge tracer.
func (c *Connector) Tracer() *Tracer { return c.tracer }

// TraceURL returns the dashboard URL of the latest trace.
func (c *Connector) TraceURL() string { return c.tracer.TraceURL() }

// TraceID returns the id of the latest trace.
func (c *Connector) TraceID() string { return c.tracer.TraceID() }

// Close flushes buffered spans and detaches the tracer from the process-wide
// proxy.
func (c *Connector) Close() {
	c.tracer.Flush()
	tracing.Disable()
}
