package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/model"
)

// ErrScriptExhausted is returned once every scripted turn has been replayed.
var ErrScriptExhausted = errors.New("scripted model: no more turns")

// Turn is one scripted model answer. Chunks are emitted as partial
// responses before Final; Err, when set, is reported after the chunks and
// suppresses Final.
type Turn struct {
	Chunks []string
	Final  core.Message
	Err    error
}

// Reply builds a turn answering with text, streamed in the given chunks.
func Reply(text string, chunks ...string) Turn {
	return Turn{Chunks: chunks, Final: core.NewAssistantMessage(text)}
}

// CallTools builds a turn requesting the given tool calls.
func CallTools(calls ...core.ToolCall) Turn {
	return Turn{Final: core.Message{Kind: core.KindAssistant, ToolCalls: calls}}
}

// Fail builds a turn failing with err.
func Fail(err error) Turn { return Turn{Err: err} }

// ScriptedModel replays scripted turns in order and records every request.
// It is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	turns    []Turn
	requests []model.Request
}

// NewScriptedModel creates a model answering with turns.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		turn Turn
		ok   bool
	)
	if len(m.turns) > 0 {
		turn, m.turns, ok = m.turns[0], m.turns[1:], true
	}
	m.mu.Unlock()

	respCh := make(chan model.Response, len(turn.Chunks)+1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if !ok {
			errCh <- ErrScriptExhausted
			return
		}
		for _, chunk := range turn.Chunks {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- model.Response{Partial: true, Message: core.NewAssistantMessage(chunk)}:
			}
		}
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}
		respCh <- model.Response{Message: turn.Final, FinishReason: "stop"}
	}()

	return respCh, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// Remaining returns the number of turns not yet replayed.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}
