package langfuse

import "errors"

var (
	// ErrValidation marks a malformed SpanContext. Surfaced to the caller
	// of Trace before any backend object is created.
	ErrValidation = errors.New("invalid span context")

	// ErrNoClient is returned when a root trace must be created but the
	// handler was never given a backend client.
	ErrNoClient = errors.New("langfuse client not configured")
)
