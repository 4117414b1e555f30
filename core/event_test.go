package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestStreamEvent_Constructors(t *testing.T) {
	tool := NewToolOutputEvent(NewToolMessage("c1", "web_search", "result"))
	if tool.Type != EventToolOutput || !tool.Complete || tool.ToolCallID != "c1" || tool.IsFinal() {
		t.Fatalf("tool output event malformed: %+v", tool)
	}

	resp := NewResponseEvent("partial")
	if resp.Complete || resp.IsFinal() {
		t.Fatalf("response event must be incomplete: %+v", resp)
	}

	final := NewFinalEvent(nil)
	if !final.IsFinal() || final.Content != "" || final.ToolOutputs == nil {
		t.Fatalf("final event malformed: %+v", final)
	}

	errEv := NewErrorEvent(errors.New("boom"))
	if errEv.Type != EventError || !errEv.IsFinal() || errEv.Content != "boom" {
		t.Fatalf("error event malformed: %+v", errEv)
	}

	status := NewStatusEvent("research", "delegating")
	if status.IsFinal() || status.Node != "research" {
		t.Fatalf("status event malformed: %+v", status)
	}
}

func TestStreamEvent_WireShape(t *testing.T) {
	b, err := json.Marshal(NewFinalEvent([]string{"out"}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"content":"","type":"response","complete":true,"tool_outputs":["out"]}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}

func TestStreamEvent_FinalAlwaysCarriesToolOutputs(t *testing.T) {
	tests := []struct {
		name  string
		event StreamEvent
		want  string
	}{
		{"FinalWithoutOutputs", NewFinalEvent(nil), `{"content":"","type":"response","complete":true,"tool_outputs":[]}`},
		{"FinalLiteralNil", StreamEvent{Type: EventResponse, Complete: true}, `{"content":"","type":"response","complete":true,"tool_outputs":[]}`},
		{"Partial", NewResponseEvent("hi"), `{"content":"hi","type":"response","complete":false}`},
		{"Status", NewStatusEvent("research", "delegating to research"), `{"content":"delegating to research","type":"status","complete":false,"node":"research"}`},
		{"Error", NewErrorEvent(errors.New("boom")), `{"content":"boom","type":"error","complete":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Fatalf("got %s, want %s", b, tt.want)
			}
		})
	}
}

func TestStreamEvent_FinalRoundTrip(t *testing.T) {
	b, err := json.Marshal(NewFinalEvent(nil))
	if err != nil {
		t.Fatal(err)
	}
	var got StreamEvent
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if !got.IsFinal() || got.ToolOutputs == nil || len(got.ToolOutputs) != 0 {
		t.Fatalf("decoded final event malformed: %+v", got)
	}
}

func TestErrors_Taxonomy(t *testing.T) {
	cycle := &RoutingCycleError{MaxSteps: 25, LastNode: "supervisor"}
	wrapped := fmt.Errorf("run: %w", cycle)
	if !errors.Is(wrapped, ErrStepLimitExceeded) {
		t.Fatal("routing cycle error should match ErrStepLimitExceeded")
	}

	base := errors.New("down")
	var pErr *PersistenceError
	if err := error(&PersistenceError{Op: "save", ThreadID: "t", Err: base}); !errors.As(err, &pErr) || !errors.Is(err, base) {
		t.Fatal("persistence error should unwrap")
	}

	mErr := &ModelInvocationError{Node: "supervisor", Err: base}
	if !errors.Is(mErr, base) {
		t.Fatal("model invocation error should unwrap")
	}
}
