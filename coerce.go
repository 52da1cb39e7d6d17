package tracing

import (
	"encoding/json"
	"fmt"
)

// Coercible values know their own backend-safe representation. CoerceTagValue
// consults it before falling back to JSON.
type Coercible interface {
	CoerceTagValue() any
}

// CoerceTagValue converts an arbitrary tag value to something any tracing
// backend can store: primitives pass through untouched, everything else is
// JSON-serialized, and values that cannot be serialized degrade to their
// string form.
func CoerceTagValue(value any) any {
	switch value.(type) {
	case nil:
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return value
	}
	if c, ok := value.(Coercible); ok {
		return c.CoerceTagValue()
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}
