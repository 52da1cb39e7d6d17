// Package langfusetest provides an in-memory langfuse.Client for tests and
// local development. It records every create, update, end, and flush in
// order, and keeps the resulting observation tree readable — the write-only
// backend boundary made inspectable.
package langfusetest

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/haystack-go/tracing/langfuse"
)

// Client records backend calls instead of delivering them.
type Client struct {
	mu sync.Mutex

	traces []*Node
	calls  []string

	// EndErr and FlushErr, when set, are returned by every End and Flush
	// call. Used to exercise cleanup error paths.
	EndErr   error
	FlushErr error
}

// New returns an empty recording client.
func New() *Client {
	return &Client{}
}

// Node is one recorded trace, span, or generation.
type Node struct {
	client *Client

	ID       string
	Name     string
	Kind     langfuse.ObservationKind
	Params   langfuse.TraceParams // set on traces only
	Updates  []langfuse.Observation
	Children []*Node
	Ended    bool
}

// Trace implements langfuse.Client.
func (c *Client) Trace(params langfuse.TraceParams) langfuse.TraceHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}
	node := &Node{
		client: c,
		ID:     id,
		Name:   params.Name,
		Kind:   langfuse.KindTrace,
		Params: params,
	}
	c.traces = append(c.traces, node)
	c.calls = append(c.calls, "create trace "+params.Name)
	return node
}

// Flush implements langfuse.Client.
func (c *Client) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "flush")
	return c.FlushErr
}

// TraceURL implements langfuse.Client.
func (c *Client) TraceURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.traces) == 0 {
		return ""
	}
	return "https://cloud.langfuse.com/trace/" + c.traces[len(c.traces)-1].ID
}

// TraceID implements langfuse.Client.
func (c *Client) TraceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.traces) == 0 {
		return ""
	}
	return c.traces[len(c.traces)-1].ID
}

// Traces returns the recorded root traces in creation order.
func (c *Client) Traces() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Node(nil), c.traces...)
}

// Calls returns the ordered log of backend calls, e.g.
// ["create trace Haystack", "create span retriever", "end span retriever",
// "flush"].
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Update implements langfuse.Handle.
func (n *Node) Update(obs langfuse.Observation) {
	n.client.mu.Lock()
	defer n.client.mu.Unlock()
	if obs.Name != "" {
		n.Name = obs.Name
	}
	n.Updates = append(n.Updates, obs)
}

// Span implements langfuse.Handle.
func (n *Node) Span(name string) langfuse.ObservationHandle {
	return n.child(name, langfuse.KindSpan)
}

// Generation implements langfuse.Handle.
func (n *Node) Generation(name string) langfuse.ObservationHandle {
	return n.child(name, langfuse.KindGeneration)
}

func (n *Node) child(name string, kind langfuse.ObservationKind) *Node {
	n.client.mu.Lock()
	defer n.client.mu.Unlock()
	child := &Node{
		client: n.client,
		ID:     uuid.NewString(),
		Name:   name,
		Kind:   kind,
	}
	n.Children = append(n.Children, child)
	n.client.calls = append(n.client.calls, fmt.Sprintf("create %s %s", kind, name))
	return child
}

// End implements langfuse.ObservationHandle.
func (n *Node) End() error {
	n.client.mu.Lock()
	defer n.client.mu.Unlock()
	n.Ended = true
	n.client.calls = append(n.client.calls, fmt.Sprintf("end %s %s", n.Kind, n.Name))
	return n.client.EndErr
}

// Metadata flattens all metadata updates on the node, later writes winning.
func (n *Node) Metadata() map[string]any {
	n.client.mu.Lock()
	defer n.client.mu.Unlock()
	merged := map[string]any{}
	for _, obs := range n.Updates {
		for k, v := range obs.Metadata {
			merged[k] = v
		}
	}
	return merged
}

// Input returns the last input written to the node.
func (n *Node) Input() (any, bool) {
	n.client.mu.Lock()
	defer n.client.mu.Unlock()
	for i := len(n.Updates) - 1; i >= 0; i-- {
		if n.Updates[i].SetInput {
			return n.Updates[i].Input, true
		}
	}
	return nil, false
}

// Output returns the last output written to the node.
func (n *Node) Output() (any, bool) {
	n.client.mu.Lock()
	defer n.client.mu.Unlock()
	for i := len(n.Updates) - 1; i >= 0; i-- {
		if n.Updates[i].SetOutput {
			return n.Updates[i].Output, true
		}
	}
	return nil, false
}

// Usage returns the last usage written to the node.
func (n *Node) Usage() (any, bool) {
	n.client.mu.Lock()
	defer n.client.mu.Unlock()
	for i := len(n.Updates) - 1; i >= 0; i-- {
		if n.Updates[i].SetUsage {
			return n.Updates[i].Usage, true
		}
	}
	return nil, false
}

var (
	_ langfuse.Client            = (*Client)(nil)
	_ langfuse.TraceHandle       = (*Node)(nil)
	_ langfuse.ObservationHandle = (*Node)(nil)
)
