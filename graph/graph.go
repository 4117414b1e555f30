package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/logging"
	"github.com/hupe1980/threadmesh/routing"
)

// DefaultMaxSteps is the step ceiling applied when none is configured.
const DefaultMaxSteps = 25

// Terminal is the pseudo node name that ends a run.
const Terminal = "__end__"

// Step is one item of a run's output stream.
//
// Exactly one of three shapes is used:
//   - a completed node step: Result holds the delta and State the merged state
//   - a partial step: Partial holds the content generated so far by the node
//   - a status step: Status describes a routing event such as delegation
type Step struct {
	Number  int
	Node    string
	Result  core.NodeResult
	State   *core.State
	Partial *core.Message
	Status  string
}

// IsPartial reports whether the step carries in-progress content.
func (s Step) IsPartial() bool { return s.Partial != nil }

// IsStatus reports whether the step is a routing notification.
func (s Step) IsStatus() bool { return s.Status != "" }

// Options configures a Graph.
type Options struct {
	// Specialists are the nodes the routing policy may delegate to.
	Specialists []Node

	// ToolNode executes pending tool calls. Without it, tool calls end the run.
	ToolNode Node

	// Policy decides, at every supervisor step, whether to delegate.
	// Defaults to a keyword policy for the only specialist, or Direct.
	Policy routing.Policy

	// MaxSteps is the step ceiling; exceeding it ends the run with a
	// *core.RoutingCycleError. Values <= 0 mean DefaultMaxSteps; a run is
	// never unbounded.
	MaxSteps int

	// BufferSize is the capacity of the step channel.
	BufferSize int

	Logger logging.Logger
}

// WithSpecialist registers a specialist node.
func WithSpecialist(n Node) func(o *Options) {
	return func(o *Options) { o.Specialists = append(o.Specialists, n) }
}

// WithToolNode sets the node that executes tool calls.
func WithToolNode(n Node) func(o *Options) {
	return func(o *Options) { o.ToolNode = n }
}

// WithPolicy sets the routing policy.
func WithPolicy(p routing.Policy) func(o *Options) {
	return func(o *Options) { o.Policy = p }
}

// WithMaxSteps sets the step ceiling.
func WithMaxSteps(n int) func(o *Options) {
	return func(o *Options) { o.MaxSteps = n }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Graph is a closed registry of nodes plus the transition rules between them:
//
//	supervisor --delegate--> specialist --> supervisor
//	supervisor --direct----> terminal
//	any node with pending tool calls --> tool node --> that node
//
// A Graph is immutable after New and safe for concurrent runs.
type Graph struct {
	supervisor  string
	nodes       map[string]Node
	specialists map[string]bool
	toolNode    string
	policy      routing.Policy
	maxSteps    int
	bufferSize  int
	logger      logging.Logger
}

// New builds a graph around the supervisor node.
func New(supervisor Node, optFns ...func(o *Options)) (*Graph, error) {
	if supervisor == nil {
		return nil, fmt.Errorf("graph: supervisor node is required")
	}

	opts := Options{
		MaxSteps:   DefaultMaxSteps,
		BufferSize: 32,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}

	g := &Graph{
		supervisor:  supervisor.Name(),
		nodes:       map[string]Node{},
		specialists: map[string]bool{},
		maxSteps:    opts.MaxSteps,
		bufferSize:  opts.BufferSize,
		logger:      opts.Logger,
	}
	if g.logger == nil {
		g.logger = logging.NoOpLogger{}
	}
	if g.bufferSize < 0 {
		g.bufferSize = 0
	}

	if err := g.register(supervisor); err != nil {
		return nil, err
	}
	for _, n := range opts.Specialists {
		if err := g.register(n); err != nil {
			return nil, err
		}
		g.specialists[n.Name()] = true
	}
	if opts.ToolNode != nil {
		if err := g.register(opts.ToolNode); err != nil {
			return nil, err
		}
		g.toolNode = opts.ToolNode.Name()
	}

	g.policy = opts.Policy
	if g.policy == nil {
		if len(opts.Specialists) == 1 {
			g.policy = routing.NewKeywordPolicy(opts.Specialists[0].Name())
		} else {
			g.policy = routing.Direct()
		}
	}

	return g, nil
}

func (g *Graph) register(n Node) error {
	if n == nil {
		return fmt.Errorf("graph: nil node")
	}
	name := n.Name()
	if name == "" || name == Terminal {
		return fmt.Errorf("graph: invalid node name %q", name)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("graph: duplicate node %q", name)
	}
	g.nodes[name] = n
	return nil
}

// Supervisor returns the name of the entry node.
func (g *Graph) Supervisor() string { return g.supervisor }

// MaxSteps returns the configured step ceiling.
func (g *Graph) MaxSteps() int { return g.maxSteps }

// Run executes one turn starting at the supervisor. Steps are produced
// strictly sequentially. The step channel is closed when the run reaches
// the terminal state or fails; a failure is delivered on the error channel.
// The input state is not modified.
func (g *Graph) Run(ctx context.Context, state *core.State) (<-chan Step, <-chan error) {
	stepCh := make(chan Step, g.bufferSize)
	errCh := make(chan error, 1)

	go func() {
		defer close(stepCh)
		defer close(errCh)

		if err := g.run(ctx, state, stepCh); err != nil {
			errCh <- err
		}
	}()

	return stepCh, errCh
}

// Invoke runs a turn to completion and returns the final state.
func (g *Graph) Invoke(ctx context.Context, state *core.State) (*core.State, error) {
	stepCh, errCh := g.Run(ctx, state)

	final := state.Clone().Normalize()
	for step := range stepCh {
		if step.State != nil {
			final = step.State
		}
	}
	if err := <-errCh; err != nil {
		return final, err
	}
	return final, nil
}

func (g *Graph) run(ctx context.Context, initial *core.State, stepCh chan<- Step) error {
	if initial == nil {
		initial = core.NewState("", "")
	}
	state := initial.Clone().Normalize()
	limiter := NewStepLimiter(g.maxSteps)

	current := g.supervisor
	caller := g.supervisor

	for current != Terminal {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !limiter.Increment() {
			g.logger.Warn("graph.step.limit", "max_steps", g.maxSteps, "last_node", current)
			return &core.RoutingCycleError{MaxSteps: g.maxSteps, LastNode: current}
		}
		number := limiter.Count()

		if current == g.supervisor {
			decision := g.policy.Route(state)
			if !decision.IsDirect() {
				if !g.specialists[decision.Node] {
					return &core.UnknownNodeError{Name: decision.Node}
				}
				g.logger.Info("graph.route.delegate", "from", current, "to", decision.Node, "step", number)
				status := Step{Number: number, Node: decision.Node, Status: "delegating to " + decision.Node}
				if err := send(ctx, stepCh, status); err != nil {
					return err
				}
				current = decision.Node
				continue
			}
		}

		node, ok := g.nodes[current]
		if !ok {
			return &core.UnknownNodeError{Name: current}
		}

		result, err := g.step(ctx, node, number, state, stepCh)
		if err != nil {
			return err
		}
		state.Apply(result)

		if err := send(ctx, stepCh, Step{Number: number, Node: current, Result: result, State: state.Clone()}); err != nil {
			return err
		}

		current, caller = g.next(current, caller, state)
	}

	g.logger.Debug("graph.run.complete", "steps", limiter.Count(), "messages", len(state.Messages))
	return nil
}

// step executes one node, converting node failures into a visible
// assistant message. Only context cancellation aborts the run.
func (g *Graph) step(ctx context.Context, node Node, number int, state *core.State, stepCh chan<- Step) (core.NodeResult, error) {
	name := node.Name()
	nc := &NodeContext{
		ctx:    ctx,
		node:   name,
		step:   number,
		state:  state.Clone(),
		logger: g.logger,
		emit: func(m core.Message) {
			partial := m.Clone()
			_ = send(ctx, stepCh, Step{Number: number, Node: name, Partial: &partial})
		},
	}

	g.logger.Debug("graph.step.start", "node", name, "step", number)
	start := time.Now()

	result, err := safeRun(node, nc)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.NodeResult{}, ctxErr
		}
		logging.NodeStep(g.logger, name, number, time.Since(start), err)
		return core.NewNodeResult(core.NewAssistantMessage(fmt.Sprintf("Error in %s: %v", name, err))), nil
	}

	logging.NodeStep(g.logger, name, number, time.Since(start), nil)
	return result, nil
}

func (g *Graph) next(current, caller string, state *core.State) (string, string) {
	if current != g.toolNode && len(state.PendingToolCalls()) > 0 {
		if g.toolNode == "" {
			g.logger.Warn("graph.tool_calls.unhandled", "node", current)
			return Terminal, caller
		}
		return g.toolNode, current
	}

	switch {
	case current == g.toolNode:
		return caller, g.supervisor
	case g.specialists[current]:
		return g.supervisor, caller
	default:
		return Terminal, caller
	}
}

func safeRun(node Node, nc *NodeContext) (result core.NodeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node %s panicked: %v", node.Name(), r)
		}
	}()
	return node.Run(nc)
}

func send(ctx context.Context, ch chan<- Step, s Step) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- s:
		return nil
	}
}
