package graph

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/routing"
)

func reply(name, content string) Node {
	return NewNodeFunc(name, func(*NodeContext) (core.NodeResult, error) {
		return core.NewNodeResult(core.NewAssistantMessage(content)), nil
	})
}

func research() Node {
	return NewNodeFunc("research", func(nc *NodeContext) (core.NodeResult, error) {
		return core.NewNodeResult(core.NewSpecialistMessage("research", "findings")).WithFlag("research", true), nil
	})
}

func userState(text string) *core.State {
	s := core.NewState("general_chat", "chat")
	s.Append(core.NewHumanMessage(text))
	return s
}

func collect(stepCh <-chan Step, errCh <-chan error) ([]Step, error) {
	var steps []Step
	for s := range stepCh {
		steps = append(steps, s)
	}
	return steps, <-errCh
}

func nodeOrder(steps []Step) []string {
	var names []string
	for _, s := range steps {
		switch {
		case s.IsStatus():
			names = append(names, "status:"+s.Node)
		case s.IsPartial():
			names = append(names, "partial:"+s.Node)
		default:
			names = append(names, s.Node)
		}
	}
	return names
}

func TestRun_DirectResponse(t *testing.T) {
	g, err := New(reply("supervisor", "hello"), WithSpecialist(research()))
	require.NoError(t, err)

	input := userState("tell me a joke")
	steps, err := collect(g.Run(context.Background(), input))
	require.NoError(t, err)

	assert.Equal(t, []string{"supervisor"}, nodeOrder(steps))
	final := steps[0].State
	require.Len(t, final.Messages, 2)
	assert.Equal(t, "hello", final.Messages[1].Content)
	assert.Len(t, input.Messages, 1, "input state must not be modified")
}

func TestRun_DelegatesToSpecialist(t *testing.T) {
	var supervisorRuns int32
	supervisor := NewNodeFunc("supervisor", func(nc *NodeContext) (core.NodeResult, error) {
		atomic.AddInt32(&supervisorRuns, 1)
		last, _ := nc.State().LastMessage()
		return core.NewNodeResult(core.NewAssistantMessage("summary of " + last.Content)), nil
	})

	g, err := New(supervisor, WithSpecialist(research()))
	require.NoError(t, err)

	steps, err := collect(g.Run(context.Background(), userState("what's the latest news on Go")))
	require.NoError(t, err)

	assert.Equal(t, []string{"status:research", "research", "supervisor"}, nodeOrder(steps))
	assert.Equal(t, "delegating to research", steps[0].Status)
	assert.EqualValues(t, 1, supervisorRuns)

	final := steps[len(steps)-1].State
	assert.True(t, final.Flag("research"))
	last, _ := final.LastMessage()
	assert.Equal(t, "summary of findings", last.Content)
}

func TestRun_SatisfiedFlagIsNotRedelegated(t *testing.T) {
	g, err := New(reply("supervisor", "answer"), WithSpecialist(research()))
	require.NoError(t, err)

	state := userState("any recent updates?")
	state.MergeFlags(map[string]bool{"research": true})

	steps, err := collect(g.Run(context.Background(), state))
	require.NoError(t, err)
	assert.Equal(t, []string{"supervisor"}, nodeOrder(steps))
}

func TestRun_ToolCallsReturnToCaller(t *testing.T) {
	toolCall := core.Message{Kind: core.KindAssistant, ToolCalls: []core.ToolCall{{ID: "c1", Name: "write_blog", Arguments: `{"query":"go"}`}}}

	supervisor := NewNodeFunc("supervisor", func(nc *NodeContext) (core.NodeResult, error) {
		if last, _ := nc.State().LastMessage(); last.Kind == core.KindTool {
			return core.NewNodeResult(core.NewAssistantMessage("done")), nil
		}
		return core.NewNodeResult(toolCall), nil
	})
	tools := NewNodeFunc("tools", func(nc *NodeContext) (core.NodeResult, error) {
		var out []core.Message
		for _, c := range nc.State().PendingToolCalls() {
			out = append(out, core.NewToolMessage(c.ID, c.Name, "draft"))
		}
		return core.NewNodeResult(out...), nil
	})

	g, err := New(supervisor, WithToolNode(tools), WithPolicy(routing.Direct()))
	require.NoError(t, err)

	steps, err := collect(g.Run(context.Background(), userState("write a blog about go")))
	require.NoError(t, err)
	assert.Equal(t, []string{"supervisor", "tools", "supervisor"}, nodeOrder(steps))

	final := steps[len(steps)-1].State
	assert.Empty(t, final.PendingToolCalls())
	assert.Equal(t, core.KindTool, final.Messages[2].Kind)
}

func TestRun_SpecialistToolCallsReturnToSpecialist(t *testing.T) {
	specialist := NewNodeFunc("research", func(nc *NodeContext) (core.NodeResult, error) {
		if last, _ := nc.State().LastMessage(); last.Kind == core.KindTool {
			return core.NewNodeResult(core.NewSpecialistMessage("research", last.Content)).WithFlag("research", true), nil
		}
		return core.NewNodeResult(core.Message{Kind: core.KindAssistant, ToolCalls: []core.ToolCall{{ID: "s1", Name: "web_search"}}}), nil
	})
	tools := NewNodeFunc("tools", func(nc *NodeContext) (core.NodeResult, error) {
		return core.NewNodeResult(core.NewToolMessage("s1", "web_search", "results")), nil
	})

	g, err := New(reply("supervisor", "answer"), WithSpecialist(specialist), WithToolNode(tools))
	require.NoError(t, err)

	steps, err := collect(g.Run(context.Background(), userState("today's headlines")))
	require.NoError(t, err)
	assert.Equal(t, []string{"status:research", "research", "tools", "research", "supervisor"}, nodeOrder(steps))
}

func TestRun_StepCeiling(t *testing.T) {
	g, err := New(reply("supervisor", "never"),
		WithSpecialist(research()),
		WithPolicy(routing.Always("research")),
		WithMaxSteps(5),
	)
	require.NoError(t, err)

	steps, err := collect(g.Run(context.Background(), userState("loop forever")))

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStepLimitExceeded))
	var cycleErr *core.RoutingCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, 5, cycleErr.MaxSteps)
	assert.Equal(t, "research", cycleErr.LastNode)
	assert.Equal(t, []string{"status:research", "research", "status:research", "research", "status:research"}, nodeOrder(steps))
}

func TestRun_DefaultCeilingTerminates(t *testing.T) {
	g, err := New(reply("supervisor", "never"), WithSpecialist(research()), WithPolicy(routing.Always("research")))
	require.NoError(t, err)

	steps, err := collect(g.Run(context.Background(), userState("loop")))
	assert.ErrorIs(t, err, core.ErrStepLimitExceeded)
	assert.Len(t, steps, DefaultMaxSteps)
}

func TestRun_NonPositiveMaxStepsUsesDefaultCeiling(t *testing.T) {
	for _, n := range []int{0, -1} {
		g, err := New(reply("supervisor", "never"),
			WithSpecialist(research()),
			WithPolicy(routing.Always("research")),
			WithMaxSteps(n),
		)
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxSteps, g.MaxSteps())

		steps, err := collect(g.Run(context.Background(), userState("loop")))
		var cycleErr *core.RoutingCycleError
		require.ErrorAs(t, err, &cycleErr, "max steps %d", n)
		assert.Equal(t, DefaultMaxSteps, cycleErr.MaxSteps)
		assert.Len(t, steps, DefaultMaxSteps)
	}
}

func TestRun_NodeFailuresBecomeMessages(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{
			name: "error",
			node: NewNodeFunc("supervisor", func(*NodeContext) (core.NodeResult, error) {
				return core.NodeResult{}, errors.New("provider down")
			}),
			want: "Error in supervisor: provider down",
		},
		{
			name: "panic",
			node: NewNodeFunc("supervisor", func(*NodeContext) (core.NodeResult, error) {
				panic("nil map")
			}),
			want: "Error in supervisor: node supervisor panicked: nil map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.node)
			require.NoError(t, err)

			final, err := g.Invoke(context.Background(), userState("hi"))
			require.NoError(t, err)
			last, _ := final.LastMessage()
			assert.Equal(t, core.KindAssistant, last.Kind)
			assert.Equal(t, tt.want, last.Content)
		})
	}
}

func TestRun_UnknownDelegate(t *testing.T) {
	g, err := New(reply("supervisor", "x"), WithPolicy(routing.Always("coder")))
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), userState("hi"))
	var unknown *core.UnknownNodeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "coder", unknown.Name)
}

func TestRun_PartialSteps(t *testing.T) {
	supervisor := NewNodeFunc("supervisor", func(nc *NodeContext) (core.NodeResult, error) {
		nc.Stream(core.NewAssistantMessage("Hi"))
		nc.Stream(core.NewAssistantMessage("Hi there"))
		return core.NewNodeResult(core.NewAssistantMessage("Hi there")), nil
	})
	g, err := New(supervisor)
	require.NoError(t, err)

	steps, err := collect(g.Run(context.Background(), userState("hello")))
	require.NoError(t, err)
	require.Equal(t, []string{"partial:supervisor", "partial:supervisor", "supervisor"}, nodeOrder(steps))
	assert.Equal(t, "Hi", steps[0].Partial.Content)
	assert.Equal(t, "Hi there", steps[1].Partial.Content)
	assert.Nil(t, steps[0].State)
	assert.Equal(t, 1, steps[2].Number)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	supervisor := NewNodeFunc("supervisor", func(nc *NodeContext) (core.NodeResult, error) {
		cancel()
		return core.NodeResult{}, nc.Context().Err()
	})
	g, err := New(supervisor)
	require.NoError(t, err)

	_, err = g.Invoke(ctx, userState("hello"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(reply("supervisor", ""), WithSpecialist(reply("supervisor", "")))
	assert.Error(t, err)

	_, err = New(reply(Terminal, ""))
	assert.Error(t, err)
}

func TestStepLimiter(t *testing.T) {
	l := NewStepLimiter(2)
	assert.True(t, l.Increment())
	assert.Equal(t, 1, l.Remaining())
	assert.True(t, l.Increment())
	assert.False(t, l.Increment())
	assert.Equal(t, 3, l.Count())
	assert.Equal(t, 0, l.Remaining())

	assert.Equal(t, DefaultMaxSteps, NewStepLimiter(0).Remaining())
	assert.Equal(t, DefaultMaxSteps, NewStepLimiter(-3).Remaining())
}
