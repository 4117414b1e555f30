package core

import "strings"

// Kind classifies a Message. The set is closed.
type Kind string

const (
	// KindHuman is a user turn (or an agent-synthesized human-shaped turn when Name is set).
	KindHuman Kind = "human"
	// KindAssistant is a model turn, optionally carrying tool calls.
	KindAssistant Kind = "assistant"
	// KindTool is the result of executing a tool call.
	KindTool Kind = "tool"
	// KindSystem is a system instruction.
	KindSystem Kind = "system"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindHuman, KindAssistant, KindTool, KindSystem:
		return true
	}
	return false
}

// ToolCall describes a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // JSON encoded argument object
}

// Message is one conversation turn. Messages are owned by the State that
// contains them and must not be modified after being appended.
type Message struct {
	Kind       Kind       `json:"type"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// NewHumanMessage creates a user-authored message.
func NewHumanMessage(content string) Message {
	return Message{Kind: KindHuman, Content: content}
}

// NewAssistantMessage creates a model-authored message.
func NewAssistantMessage(content string) Message {
	return Message{Kind: KindAssistant, Content: content}
}

// NewSystemMessage creates a system instruction.
func NewSystemMessage(content string) Message {
	return Message{Kind: KindSystem, Content: content}
}

// NewToolMessage creates a tool result. Tool messages always carry the id of
// the call they answer; an empty id is replaced by "unknown".
func NewToolMessage(toolCallID, name, content string) Message {
	if toolCallID == "" {
		toolCallID = "unknown"
	}
	return Message{Kind: KindTool, Content: content, ToolCallID: toolCallID, Name: name}
}

// NewSpecialistMessage creates a human-shaped message synthesized by a
// specialist node. The author name distinguishes it from real user input.
func NewSpecialistMessage(author, content string) Message {
	return Message{Kind: KindHuman, Content: content, Name: author}
}

// Role maps the kind to the role name used by external consumers.
func (m Message) Role() string {
	switch m.Kind {
	case KindHuman:
		return "user"
	case KindAssistant:
		return "assistant"
	case KindTool:
		return "tool"
	case KindSystem:
		return "system"
	default:
		return string(m.Kind)
	}
}

// IsBlank reports whether the content is empty or whitespace only.
func (m Message) IsBlank() bool { return strings.TrimSpace(m.Content) == "" }

// HasToolCalls reports whether an assistant message requests tool execution.
func (m Message) HasToolCalls() bool {
	return m.Kind == KindAssistant && len(m.ToolCalls) > 0
}

// IsSpecialistAuthored reports whether the message is a human-shaped turn
// written by an agent rather than the user.
func (m Message) IsSpecialistAuthored() bool {
	return m.Kind == KindHuman && strings.TrimSpace(m.Name) != ""
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	if m.ToolCalls != nil {
		calls := make([]ToolCall, len(m.ToolCalls))
		copy(calls, m.ToolCalls)
		m.ToolCalls = calls
	}
	return m
}
