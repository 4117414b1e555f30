package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/graph"
	"github.com/hupe1980/threadmesh/logging"
	"github.com/hupe1980/threadmesh/model"
)

// emptyToolResult replaces blank tool results; dropping them would leave a
// tool call without an answer, which providers reject.
const emptyToolResult = "(no output)"

var errEmptyConversation = errors.New("no non-empty messages to send")

// modelCall describes one defensive model invocation made by a node.
type modelCall struct {
	node        string
	llm         model.Model
	instruction string
	tools       []model.ToolDefinition
	stream      bool
	timeout     time.Duration
}

// invokeModel sends messages to the model and always yields a well-formed
// assistant message. On failure the returned message carries visible error
// text and the error is a *core.ModelInvocationError.
func invokeModel(nc *graph.NodeContext, call modelCall, messages []core.Message) (core.Message, error) {
	logger := nc.Logger()
	start := time.Now()

	msg, err := generate(nc, call, prepareMessages(messages, call.instruction))

	info := call.llm.Info()
	if err != nil {
		logging.ModelCall(logger, call.node, info.Name, time.Since(start), err)
		return core.NewAssistantMessage(fmt.Sprintf("Sorry, I ran into a problem while generating a response: %v", err)),
			&core.ModelInvocationError{Node: call.node, Err: err}
	}

	logging.ModelCall(logger, call.node, info.Name, time.Since(start), nil, "tool_calls", len(msg.ToolCalls))
	return msg, nil
}

// prepareMessages strips blank turns and ensures a system instruction leads
// the conversation. Assistant tool-call requests are kept even without text.
func prepareMessages(messages []core.Message, instruction string) []core.Message {
	out := make([]core.Message, 0, len(messages)+1)
	hasSystem := false
	for _, m := range messages {
		switch {
		case m.Kind == core.KindTool && m.IsBlank():
			m = m.Clone()
			m.Content = emptyToolResult
		case m.Kind == core.KindAssistant && m.HasToolCalls():
		case m.IsBlank():
			continue
		}
		if m.Kind == core.KindSystem {
			hasSystem = true
		}
		out = append(out, m)
	}

	if !hasSystem && strings.TrimSpace(instruction) != "" {
		out = append([]core.Message{core.NewSystemMessage(instruction)}, out...)
	}
	return out
}

func generate(nc *graph.NodeContext, call modelCall, messages []core.Message) (core.Message, error) {
	conversational := 0
	for _, m := range messages {
		if m.Kind != core.KindSystem {
			conversational++
		}
	}
	if conversational == 0 {
		return core.Message{}, errEmptyConversation
	}

	ctx := nc.Context()
	if call.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.timeout)
		defer cancel()
	}

	respCh, errCh := call.llm.Generate(ctx, model.Request{
		Messages: messages,
		Tools:    call.tools,
		Stream:   call.stream,
	})

	var (
		streamed strings.Builder
		final    *core.Message
		genErr   error
	)

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				streamed.WriteString(resp.Message.Content)
				if call.stream {
					nc.Stream(core.NewAssistantMessage(streamed.String()))
				}
				continue
			}
			m := resp.Message
			final = &m
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil && genErr == nil {
				genErr = err
			}
		}
	}

	if genErr != nil {
		return core.Message{}, genErr
	}
	if final == nil {
		if streamed.Len() == 0 {
			return core.Message{}, errors.New("model returned no response")
		}
		return core.NewAssistantMessage(streamed.String()), nil
	}
	return coerce(*final, streamed.String()), nil
}

// coerce turns whatever the model returned into an assistant message with
// addressable tool calls.
func coerce(m core.Message, streamed string) core.Message {
	out := core.Message{
		Kind:    core.KindAssistant,
		Content: m.Content,
	}
	if strings.TrimSpace(out.Content) == "" && len(m.ToolCalls) == 0 {
		out.Content = streamed
	}
	for _, c := range m.ToolCalls {
		if c.Name == "" {
			continue
		}
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		if strings.TrimSpace(c.Arguments) == "" {
			c.Arguments = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, c)
	}
	return out
}
