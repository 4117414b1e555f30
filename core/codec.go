package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape selects one of the historical on-disk encodings of a Message.
type Shape int

const (
	// ShapeFlat is the canonical {"type","content",...} object.
	ShapeFlat Shape = iota
	// ShapeNested is the serialized-constructor form carrying the fields in a "kwargs" sub-object.
	ShapeNested
	// ShapeBare is a plain JSON string. Only plain human messages can be
	// represented; every other message falls back to ShapeFlat.
	ShapeBare
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeFlat:
		return "flat"
	case ShapeNested:
		return "nested"
	case ShapeBare:
		return "bare"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// legacy kind names written by older checkpoints
var nestedKindNames = map[Kind]string{
	KindHuman:     "human",
	KindAssistant: "ai",
	KindTool:      "tool",
	KindSystem:    "system",
}

var nestedClassNames = map[Kind]string{
	KindHuman:     "HumanMessage",
	KindAssistant: "AIMessage",
	KindTool:      "ToolMessage",
	KindSystem:    "SystemMessage",
}

// EncodeMessage serializes m in the requested shape.
func EncodeMessage(m Message, shape Shape) (json.RawMessage, error) {
	switch shape {
	case ShapeBare:
		if m.Kind == KindHuman && m.Name == "" && len(m.ToolCalls) == 0 && m.ToolCallID == "" {
			return json.Marshal(m.Content)
		}
		return json.Marshal(m)
	case ShapeNested:
		kwargs := map[string]any{
			"type":    nestedKindNames[m.Kind],
			"content": m.Content,
		}
		if m.ToolCallID != "" {
			kwargs["tool_call_id"] = m.ToolCallID
		}
		if m.Name != "" {
			kwargs["name"] = m.Name
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				calls = append(calls, map[string]any{"id": c.ID, "name": c.Name, "arguments": c.Arguments})
			}
			kwargs["tool_calls"] = calls
		}
		return json.Marshal(map[string]any{
			"lc":     1,
			"type":   "constructor",
			"id":     []string{"langchain", "schema", "messages", nestedClassNames[m.Kind]},
			"kwargs": kwargs,
		})
	default:
		return json.Marshal(m)
	}
}

// decodeStrategy attempts to interpret a generic JSON value as a Message.
// Strategies never fail; they either match or pass.
type decodeStrategy struct {
	name   string
	decode func(v any) (Message, bool)
}

// Tried in order; the first match wins.
var decodeStrategies = []decodeStrategy{
	{name: "flat", decode: decodeFlat},
	{name: "nested", decode: decodeNested},
	{name: "bare", decode: decodeBare},
	{name: "heuristic", decode: decodeHeuristic},
}

// DecodeMessage interprets raw as a Message using every known historical
// shape. It returns a *DecodeError only when no content can be extracted;
// callers are expected to log and skip such entries.
func DecodeMessage(raw json.RawMessage) (Message, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Message{}, &DecodeError{Raw: truncate(string(raw)), Reason: "invalid json", Err: err}
	}
	return DecodeValue(v)
}

// DecodeValue is DecodeMessage for an already unmarshalled JSON value.
func DecodeValue(v any) (Message, error) {
	for _, s := range decodeStrategies {
		if m, ok := s.decode(v); ok {
			return m, nil
		}
	}
	return Message{}, &DecodeError{Raw: truncate(stringify(v)), Reason: "unrecognized message shape"}
}

func decodeFlat(v any) (Message, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Message{}, false
	}
	kind, ok := kindOf(obj["type"])
	if !ok {
		kind, ok = kindOf(obj["role"])
	}
	if !ok {
		return Message{}, false
	}
	content, ok := contentOf(obj)
	if !ok {
		return Message{}, false
	}
	return buildMessage(kind, content, obj), true
}

var nestedKeys = []string{"kwargs", "data", "message"}

func decodeNested(v any) (Message, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Message{}, false
	}
	for _, key := range nestedKeys {
		sub, ok := obj[key].(map[string]any)
		if !ok {
			continue
		}
		content, ok := contentOf(sub)
		if !ok {
			continue
		}
		kind, ok := kindOf(sub["type"])
		if !ok {
			kind, ok = kindOf(sub["role"])
		}
		if !ok {
			kind, ok = kindOf(obj["type"])
		}
		if !ok {
			kind, ok = kindFromClassID(obj["id"])
		}
		if !ok {
			continue
		}
		return buildMessage(kind, content, sub), true
	}
	return Message{}, false
}

func decodeBare(v any) (Message, bool) {
	s, ok := v.(string)
	if !ok {
		return Message{}, false
	}
	return NewHumanMessage(s), true
}

// decodeHeuristic classifies messages whose content is readable but whose
// kind is not: anything mentioning "human" or "user" is human, the rest
// assistant.
func decodeHeuristic(v any) (Message, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Message{}, false
	}
	source := obj
	content, ok := contentOf(obj)
	if !ok {
		for _, key := range nestedKeys {
			sub, isObj := obj[key].(map[string]any)
			if !isObj {
				continue
			}
			if content, ok = contentOf(sub); ok {
				source = sub
				break
			}
		}
	}
	if !ok {
		return Message{}, false
	}
	blob := strings.ToLower(stringify(v))
	kind := KindAssistant
	if strings.Contains(blob, "human") || strings.Contains(blob, "user") {
		kind = KindHuman
	}
	return buildMessage(kind, content, source), true
}

func buildMessage(kind Kind, content string, fields map[string]any) Message {
	m := Message{Kind: kind, Content: content}
	m.Name, _ = fields["name"].(string)
	m.ToolCallID, _ = fields["tool_call_id"].(string)
	if kind == KindTool && m.ToolCallID == "" {
		m.ToolCallID = "unknown"
	}
	if kind == KindAssistant {
		m.ToolCalls = toolCallsOf(fields["tool_calls"])
	}
	return m
}

var kindAliases = map[string]Kind{
	"human":              KindHuman,
	"user":               KindHuman,
	"humanmessage":       KindHuman,
	"humanmessagechunk":  KindHuman,
	"ai":                 KindAssistant,
	"assistant":          KindAssistant,
	"model":              KindAssistant,
	"aimessage":          KindAssistant,
	"aimessagechunk":     KindAssistant,
	"tool":               KindTool,
	"function":           KindTool,
	"toolmessage":        KindTool,
	"functionmessage":    KindTool,
	"system":             KindSystem,
	"developer":          KindSystem,
	"systemmessage":      KindSystem,
	"systemmessagechunk": KindSystem,
}

func kindOf(v any) (Kind, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

func kindFromClassID(v any) (Kind, bool) {
	ids, ok := v.([]any)
	if !ok || len(ids) == 0 {
		return "", false
	}
	return kindOf(ids[len(ids)-1])
}

var contentKeys = []string{"content", "text", "body"}

// contentOf extracts text from the first content-like field. List contents
// (multi-part messages) are flattened to their text parts.
func contentOf(obj map[string]any) (string, bool) {
	for _, key := range contentKeys {
		raw, exists := obj[key]
		if !exists || raw == nil {
			continue
		}
		switch c := raw.(type) {
		case string:
			return c, true
		case []any:
			var b strings.Builder
			for _, part := range c {
				switch p := part.(type) {
				case string:
					b.WriteString(p)
				case map[string]any:
					if t, ok := p["text"].(string); ok {
						b.WriteString(t)
					}
				}
			}
			return b.String(), true
		}
	}
	return "", false
}

// toolCallsOf accepts the flat {id,name,arguments}, the {id,name,args}
// and the {id,function:{name,arguments}} call layouts.
func toolCallsOf(v any) []ToolCall {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	calls := make([]ToolCall, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		call := ToolCall{}
		call.ID, _ = obj["id"].(string)
		call.Name, _ = obj["name"].(string)
		args := obj["arguments"]
		if fn, ok := obj["function"].(map[string]any); ok {
			if call.Name == "" {
				call.Name, _ = fn["name"].(string)
			}
			args = fn["arguments"]
		}
		if args == nil {
			args = obj["args"]
		}
		switch a := args.(type) {
		case string:
			call.Arguments = a
		case nil:
		default:
			if b, err := json.Marshal(a); err == nil {
				call.Arguments = string(b)
			}
		}
		if call.Name == "" {
			continue
		}
		calls = append(calls, call)
	}
	if len(calls) == 0 {
		return nil
	}
	return calls
}

func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func truncate(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
