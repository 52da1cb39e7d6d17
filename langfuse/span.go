package langfuse

import (
	"strings"

	tracing "github.com/haystack-go/tracing"
)

// Span bridges one traced operation onto a backend handle. It caches every
// tag written to it because the backend is write-only from this side; the
// cache is the only readable source of truth for enrichment.
type Span struct {
	handle Handle
	ender  ObservationHandle // nil for root traces
	kind   ObservationKind
	data   map[string]any
}

func newTraceSpan(h TraceHandle) *Span {
	return &Span{handle: h, kind: KindTrace, data: map[string]any{}}
}

func newObservationSpan(h ObservationHandle, kind ObservationKind) *Span {
	return &Span{handle: h, ender: h, kind: kind, data: map[string]any{}}
}

// SetTag forwards the coerced value as backend metadata and records the raw
// value in the cache.
func (s *Span) SetTag(key string, value any) {
	s.handle.Update(Observation{Metadata: map[string]any{key: tracing.CoerceTagValue(value)}})
	s.data[key] = value
}

// SetTags applies SetTag for every entry.
func (s *Span) SetTags(tags map[string]any) {
	for k, v := range tags {
		s.SetTag(k, v)
	}
}

// SetContentTag records a component input or output payload. The backend
// write happens only when content tracing is enabled; the cache is written
// regardless so enrichment never depends on the flag. Chat messages are
// converted to their wire form before forwarding.
func (s *Span) SetContentTag(key string, value any) {
	if tracing.IsContentTracingEnabled() {
		switch {
		case strings.HasSuffix(key, ".input"):
			if messages, ok := chatMessagesIn(value, "messages"); ok {
				s.handle.Update(Observation{Input: toWireFormat(messages), SetInput: true})
			} else {
				s.handle.Update(Observation{Input: tracing.CoerceTagValue(value), SetInput: true})
			}
		case strings.HasSuffix(key, ".output"):
			if replies, present := fieldIn(value, "replies"); present {
				// Structured chat replies get the wire form; anything
				// else is forwarded as-is.
				if messages, ok := asChatMessages(replies); ok {
					s.handle.Update(Observation{Output: toWireFormat(messages), SetOutput: true})
				} else {
					s.handle.Update(Observation{Output: replies, SetOutput: true})
				}
			} else {
				s.handle.Update(Observation{Output: tracing.CoerceTagValue(value), SetOutput: true})
			}
		}
	}
	s.data[key] = value
}

// Raw returns the backend handle for advanced access. Nested spans are
// created through it.
func (s *Span) Raw() Handle { return s.handle }

// Kind reports what backend object this span wraps.
func (s *Span) Kind() ObservationKind { return s.kind }

// Data returns the cached tags.
func (s *Span) Data() map[string]any { return s.data }

// CorrelationDataForLogs returns no fields; Langfuse spans carry no log
// correlation ids.
func (s *Span) CorrelationDataForLogs() map[string]any { return map[string]any{} }

// chatMessagesIn extracts a chat-message list stored under field in a
// map-shaped payload.
func chatMessagesIn(value any, field string) ([]tracing.ChatMessage, bool) {
	raw, present := fieldIn(value, field)
	if !present {
		return nil, false
	}
	return asChatMessages(raw)
}

func fieldIn(value any, field string) (any, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	raw, present := m[field]
	return raw, present
}

func asChatMessages(value any) ([]tracing.ChatMessage, bool) {
	switch v := value.(type) {
	case []tracing.ChatMessage:
		return v, true
	case []any:
		messages := make([]tracing.ChatMessage, len(v))
		for i, el := range v {
			m, ok := el.(tracing.ChatMessage)
			if !ok {
				return nil, false
			}
			messages[i] = m
		}
		return messages, len(messages) > 0
	}
	return nil, false
}

func toWireFormat(messages []tracing.ChatMessage) []map[string]any {
	out := make([]map[string]any, len(messages))
	for i, m := range messages {
		out[i] = m.ToOpenAIFormat()
	}
	return out
}

var _ tracing.Span = (*Span)(nil)
