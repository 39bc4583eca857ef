// Package chat defines the message types exchanged with the model oracle
// and the token accounting used to budget them.
package chat

// Message roles, matching the chat-completions wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a single tool invocation requested by the assistant.
// Arguments is the raw JSON string as produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in the conversation transcript. Tool result messages
// carry ToolCallID and Name; assistant messages may carry ToolCalls.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// System returns a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant returns an assistant message with optional tool calls.
func Assistant(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResult returns a tool message pairing a result payload with the
// assistant tool call that requested it.
func ToolResult(callID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Name: name, Content: content}
}

// ToolDefinition describes a callable tool advertised to the model.
// Parameters holds a JSON-schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Clone returns a copy of the transcript slice. Compression builds new
// transcripts instead of mutating the one callers hold.
func Clone(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}
