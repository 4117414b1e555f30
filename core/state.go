package core

import (
	"encoding/json"
	"maps"
)

// ThreadContext describes what kind of conversation a thread is.
type ThreadContext struct {
	Type string `json:"type"`
	Task string `json:"task"`
}

// State is the in-memory conversation state of a thread.
//
// Contract:
//   - Messages is append-only; order is significant
//   - TaskFlags are monotonic: MergeFlags never clears a true flag
//   - A normalized State never has nil Messages or TaskFlags
type State struct {
	Messages  []Message       `json:"messages"`
	Context   ThreadContext   `json:"context"`
	TaskFlags map[string]bool `json:"task_flags"`
}

// NewState returns an empty, normalized state for the given context.
func NewState(contextType, taskType string) *State {
	return &State{
		Messages:  []Message{},
		Context:   ThreadContext{Type: contextType, Task: taskType},
		TaskFlags: map[string]bool{},
	}
}

// Normalize replaces absent collections with empty ones and returns s.
func (s *State) Normalize() *State {
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.TaskFlags == nil {
		s.TaskFlags = map[string]bool{}
	}
	return s
}

// Append adds messages to the end of the conversation.
func (s *State) Append(msgs ...Message) {
	for _, m := range msgs {
		s.Messages = append(s.Messages, m.Clone())
	}
}

// MergeFlags applies flag updates. A flag that is already true stays true.
func (s *State) MergeFlags(flags map[string]bool) {
	if len(flags) == 0 {
		return
	}
	if s.TaskFlags == nil {
		s.TaskFlags = map[string]bool{}
	}
	for k, v := range flags {
		if s.TaskFlags[k] {
			continue
		}
		s.TaskFlags[k] = v
	}
}

// Flag reports the value of a task flag.
func (s *State) Flag(name string) bool { return s.TaskFlags[name] }

// Apply merges a node result into the state.
func (s *State) Apply(r NodeResult) {
	s.Append(r.Messages...)
	s.MergeFlags(r.Flags)
}

// LastMessage returns the final message, if any.
func (s *State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastUserMessage returns the most recent human message that was written by
// the user rather than synthesized by a specialist.
func (s *State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Kind == KindHuman && !m.IsSpecialistAuthored() {
			return m, true
		}
	}
	return Message{}, false
}

// PendingToolCalls returns the tool calls of the last assistant message that
// have no matching tool result after it.
func (s *State) PendingToolCalls() []ToolCall {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Kind == KindTool {
			continue
		}
		if !m.HasToolCalls() {
			return nil
		}
		answered := map[string]bool{}
		for _, later := range s.Messages[i+1:] {
			answered[later.ToolCallID] = true
		}
		var pending []ToolCall
		for _, c := range m.ToolCalls {
			if !answered[c.ID] {
				pending = append(pending, c)
			}
		}
		return pending
	}
	return nil
}

// Clone returns a deep copy safe for independent mutation.
func (s *State) Clone() *State {
	c := &State{
		Messages:  make([]Message, len(s.Messages)),
		Context:   s.Context,
		TaskFlags: make(map[string]bool, len(s.TaskFlags)),
	}
	for i, m := range s.Messages {
		c.Messages[i] = m.Clone()
	}
	maps.Copy(c.TaskFlags, s.TaskFlags)
	return c
}

// EncodeState serializes the state in the canonical checkpoint shape.
func EncodeState(s *State) (json.RawMessage, error) {
	return json.Marshal(s.Clone().Normalize())
}

// DecodeState rebuilds a State from a persisted checkpoint value. Anything
// that is not a JSON object is reported as absent (ok == false). A null or
// missing message list becomes empty; individual messages that cannot be
// decoded are skipped and their errors returned for logging.
func DecodeState(raw json.RawMessage) (*State, bool, []error) {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return nil, false, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false, nil
	}

	st := NewState("", "")
	var errs []error

	if items, ok := obj["messages"].([]any); ok {
		for _, item := range items {
			m, err := DecodeValue(item)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			st.Messages = append(st.Messages, m)
		}
	}

	if ctx, ok := obj["context"].(map[string]any); ok {
		st.Context.Type, _ = ctx["type"].(string)
		st.Context.Task, _ = ctx["task"].(string)
	}

	if flags, ok := obj["task_flags"].(map[string]any); ok {
		for k, fv := range flags {
			if b, ok := fv.(bool); ok {
				st.TaskFlags[k] = b
			}
		}
	}

	return st, true, errs
}
