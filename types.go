package tracing

import "encoding/json"

// --- Chat protocol types ---

// ChatMessage is one turn of an LLM conversation as it flows through a
// pipeline. Meta carries provider metadata on generated replies (usage,
// model, completion_start_time, ...).
type ChatMessage struct {
	Role       string         `json:"role"` // "system", "user", "assistant", "tool"
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ToolCall is a tool invocation requested by an assistant message.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToOpenAIFormat converts the message to the plain OpenAI-style wire map
// that tracing backends store as span input/output content.
func (m ChatMessage) ToOpenAIFormat() map[string]any {
	out := map[string]any{"role": m.Role}
	if m.Content != "" || len(m.ToolCalls) == 0 {
		out["content"] = m.Content
	}
	if m.Name != "" {
		out["name"] = m.Name
	}
	if m.ToolCallID != "" {
		out["tool_call_id"] = m.ToolCallID
	}
	if len(m.ToolCalls) > 0 {
		calls := make([]map[string]any, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			args, err := json.Marshal(c.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			call := map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":      c.ToolName,
					"arguments": string(args),
				},
			}
			if c.ID != "" {
				call["id"] = c.ID
			}
			calls[i] = call
		}
		out["tool_calls"] = calls
	}
	return out
}

// --- Constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: callID}
}

// --- Token accounting ---

// Usage is the token count block providers attach to reply metadata.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageFrom reads a usage block out of provider metadata. Counts may arrive
// as int or float64 depending on how the payload was decoded.
func UsageFrom(meta map[string]any) (Usage, bool) {
	raw, ok := meta["usage"].(map[string]any)
	if !ok {
		return Usage{}, false
	}
	u := Usage{
		PromptTokens:     intFrom(raw["prompt_tokens"]),
		CompletionTokens: intFrom(raw["completion_tokens"]),
		TotalTokens:      intFrom(raw["total_tokens"]),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u, true
}

func intFrom(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
