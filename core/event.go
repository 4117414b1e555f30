package core

import "encoding/json"

// EventType categorizes a StreamEvent.
type EventType string

const (
	// EventResponse carries the (replacement) response buffer, or the end-of-turn marker.
	EventResponse EventType = "response"
	// EventToolOutput carries one tool result.
	EventToolOutput EventType = "tool_output"
	// EventStatus reports orchestration progress such as specialist delegation.
	EventStatus EventType = "status"
	// EventError terminates a turn that failed.
	EventError EventType = "error"
)

// StreamEvent is the unit of the external streaming wire contract.
//
// Consumers must treat a response event with Complete == false as replacing
// the previously received response content. A response or error event with
// Complete == true ends the turn; tool_output events are complete on their
// own but do not end the turn.
//
// The final response event always carries tool_outputs, as [] when the turn
// produced none. Other events omit it.
type StreamEvent struct {
	Content     string    `json:"content"`
	Type        EventType `json:"type"`
	Complete    bool      `json:"complete"`
	ToolOutputs []string  `json:"tool_outputs,omitempty"`
	ToolCallID  string    `json:"tool_call_id,omitempty"`
	Node        string    `json:"node,omitempty"`
}

// NewResponseEvent builds an in-progress response event.
func NewResponseEvent(content string) StreamEvent {
	return StreamEvent{Content: content, Type: EventResponse}
}

// NewToolOutputEvent builds the event for one tool result.
func NewToolOutputEvent(m Message) StreamEvent {
	return StreamEvent{Content: m.Content, Type: EventToolOutput, Complete: true, ToolCallID: m.ToolCallID}
}

// NewStatusEvent builds a progress event.
func NewStatusEvent(node, content string) StreamEvent {
	return StreamEvent{Content: content, Type: EventStatus, Node: node}
}

// NewFinalEvent builds the single end-of-turn event.
func NewFinalEvent(toolOutputs []string) StreamEvent {
	if toolOutputs == nil {
		toolOutputs = []string{}
	}
	return StreamEvent{Type: EventResponse, Complete: true, ToolOutputs: toolOutputs}
}

// NewErrorEvent builds the terminal error event.
func NewErrorEvent(err error) StreamEvent {
	return StreamEvent{Content: err.Error(), Type: EventError, Complete: true}
}

// MarshalJSON implements json.Marshaler.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	type wire StreamEvent
	if e.Type != EventResponse || !e.Complete {
		return json.Marshal(wire(e))
	}

	outputs := e.ToolOutputs
	if outputs == nil {
		outputs = []string{}
	}
	return json.Marshal(struct {
		wire
		ToolOutputs []string `json:"tool_outputs"`
	}{wire: wire(e), ToolOutputs: outputs})
}

// IsFinal reports whether the event ends the turn.
func (e StreamEvent) IsFinal() bool {
	return e.Complete && (e.Type == EventResponse || e.Type == EventError)
}
