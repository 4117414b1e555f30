package graph

import (
	"context"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/logging"
)

// Node is one state of the conversation state machine. A node receives the
// full conversation state and returns the delta it wants merged.
type Node interface {
	Name() string
	Run(nc *NodeContext) (core.NodeResult, error)
}

// NodeFunc adapts a function to Node.
type NodeFunc struct {
	name string
	fn   func(nc *NodeContext) (core.NodeResult, error)
}

// NewNodeFunc creates a named node backed by fn.
func NewNodeFunc(name string, fn func(nc *NodeContext) (core.NodeResult, error)) *NodeFunc {
	return &NodeFunc{name: name, fn: fn}
}

// Name implements Node.
func (n *NodeFunc) Name() string { return n.name }

// Run implements Node.
func (n *NodeFunc) Run(nc *NodeContext) (core.NodeResult, error) { return n.fn(nc) }

// NodeContext is handed to a node for the duration of one step.
type NodeContext struct {
	ctx    context.Context
	node   string
	step   int
	state  *core.State
	logger logging.Logger
	emit   func(core.Message)
}

// NewNodeContext builds a context outside of a graph run. Partial messages
// passed to Stream go to emit, which may be nil.
func NewNodeContext(ctx context.Context, node string, state *core.State, logger logging.Logger, emit func(core.Message)) *NodeContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if state == nil {
		state = core.NewState("", "")
	}
	return &NodeContext{ctx: ctx, node: node, state: state, logger: logger, emit: emit}
}

// Context returns the run context. Nodes must honor its cancellation.
func (nc *NodeContext) Context() context.Context { return nc.ctx }

// Node returns the name of the executing node.
func (nc *NodeContext) Node() string { return nc.node }

// Step returns the 1-based step number within the run.
func (nc *NodeContext) Step() int { return nc.step }

// State returns a snapshot of the conversation state. Mutating it has no
// effect on the run; changes are expressed through the returned NodeResult.
func (nc *NodeContext) State() *core.State { return nc.state }

// Logger returns the run logger.
func (nc *NodeContext) Logger() logging.Logger { return nc.logger }

// Stream publishes in-progress content. Each call carries the whole content
// generated so far, replacing the previous partial.
func (nc *NodeContext) Stream(partial core.Message) {
	if nc.emit != nil {
		nc.emit(partial)
	}
}
