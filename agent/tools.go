package agent

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/graph"
	"github.com/hupe1980/threadmesh/tool"
)

// ToolsName is the default name of the tool execution node.
const ToolsName = "tools"

// ToolExecutorOptions configures a ToolExecutor.
type ToolExecutorOptions struct {
	Name string
	// Timeout bounds every individual tool call. Zero means no timeout.
	Timeout time.Duration
}

// ToolExecutor runs the pending tool calls of the last assistant message.
// Every call is answered by exactly one tool message, in call order.
type ToolExecutor struct {
	name     string
	registry *tool.Registry
	timeout  time.Duration
}

// NewToolExecutor creates a tool node dispatching through registry.
func NewToolExecutor(registry *tool.Registry, optFns ...func(o *ToolExecutorOptions)) *ToolExecutor {
	opts := ToolExecutorOptions{
		Name:    ToolsName,
		Timeout: 15 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ToolExecutor{name: opts.Name, registry: registry, timeout: opts.Timeout}
}

// Name implements graph.Node.
func (e *ToolExecutor) Name() string { return e.name }

// Run implements graph.Node. Failed calls are answered with their error text.
func (e *ToolExecutor) Run(nc *graph.NodeContext) (core.NodeResult, error) {
	calls := nc.State().PendingToolCalls()
	if len(calls) == 0 {
		return core.NodeResult{}, nil
	}

	out := make([]core.Message, 0, len(calls))
	for _, call := range calls {
		if err := nc.Context().Err(); err != nil {
			return core.NodeResult{}, err
		}

		msg, err := e.execute(nc.Context(), call)
		if err != nil {
			var execErr *core.ToolExecutionError
			if errors.As(err, &execErr) {
				nc.Logger().Warn("agent.tool.failed", "node", e.name, "tool", execErr.Tool, "tool_call_id", execErr.ToolCallID, "error", execErr.Err.Error())
			}
		}
		out = append(out, msg)
	}

	return core.NewNodeResult(out...), nil
}

func (e *ToolExecutor) execute(ctx context.Context, call core.ToolCall) (core.Message, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.registry.Execute(ctx, call)
}
