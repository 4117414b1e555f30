package testutil

import (
	"github.com/hupe1980/threadmesh/core"
)

// StateBuilder helps construct conversation states with fluent chaining.
// Example:
//
//	s := NewStateBuilder("general_chat", "chat").Human("hi").Assistant("hello").Build()
type StateBuilder struct {
	state *core.State
}

// NewStateBuilder creates a builder for an empty state with the given context.
func NewStateBuilder(contextType, task string) *StateBuilder {
	return &StateBuilder{state: core.NewState(contextType, task)}
}

// Human appends a user message (chainable).
func (b *StateBuilder) Human(text string) *StateBuilder {
	b.state.Append(core.NewHumanMessage(text))
	return b
}

// Assistant appends an assistant reply (chainable).
func (b *StateBuilder) Assistant(text string) *StateBuilder {
	b.state.Append(core.NewAssistantMessage(text))
	return b
}

// ToolCalls appends an assistant message requesting the given tool calls (chainable).
func (b *StateBuilder) ToolCalls(calls ...core.ToolCall) *StateBuilder {
	b.state.Append(core.Message{Kind: core.KindAssistant, ToolCalls: calls})
	return b
}

// Tool appends a tool result (chainable).
func (b *StateBuilder) Tool(callID, name, content string) *StateBuilder {
	b.state.Append(core.NewToolMessage(callID, name, content))
	return b
}

// Specialist appends a human-kind message authored by a specialist (chainable).
func (b *StateBuilder) Specialist(author, content string) *StateBuilder {
	b.state.Append(core.NewSpecialistMessage(author, content))
	return b
}

// System appends a system message (chainable).
func (b *StateBuilder) System(text string) *StateBuilder {
	b.state.Append(core.NewSystemMessage(text))
	return b
}

// Message appends an arbitrary message (chainable).
func (b *StateBuilder) Message(m core.Message) *StateBuilder {
	b.state.Append(m)
	return b
}

// Flag sets a task flag (chainable).
func (b *StateBuilder) Flag(name string, v bool) *StateBuilder {
	b.state.MergeFlags(map[string]bool{name: v})
	return b
}

// Build returns a copy of the constructed state.
func (b *StateBuilder) Build() *core.State { return b.state.Clone() }
