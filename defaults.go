package threadmesh

import (
	"fmt"
	"time"

	"github.com/hupe1980/threadmesh/agent"
	"github.com/hupe1980/threadmesh/graph"
	"github.com/hupe1980/threadmesh/logging"
	"github.com/hupe1980/threadmesh/model"
	"github.com/hupe1980/threadmesh/routing"
	"github.com/hupe1980/threadmesh/tool"
)

// GraphOptions configures the default conversation graph.
type GraphOptions struct {
	// ResearchModel drives the research specialist. Defaults to the
	// supervisor model.
	ResearchModel model.Model
	// Searcher backs the web_search tool. Without it the research
	// specialist is not registered and every turn is answered directly.
	Searcher tool.Searcher
	// Triggers overrides the keyword vocabulary that delegates to research.
	Triggers []string
	// ExtraTools are offered to the supervisor next to write_blog.
	ExtraTools []tool.Tool
	MaxSteps   int
	// NodeTimeout bounds every model call. Zero means no timeout.
	NodeTimeout time.Duration
	// ToolTimeout bounds every tool call.
	ToolTimeout time.Duration
	Stream      bool
	Logger      logging.Logger
}

// NewDefaultGraph assembles the standard graph: a streaming supervisor
// with the write_blog tool, a research specialist behind the keyword
// routing policy, and a tool node serving both.
func NewDefaultGraph(llm model.Model, optFns ...func(o *GraphOptions)) (*graph.Graph, error) {
	if llm == nil {
		return nil, fmt.Errorf("threadmesh: model is required")
	}

	opts := GraphOptions{
		MaxSteps:    graph.DefaultMaxSteps,
		ToolTimeout: 15 * time.Second,
		Stream:      true,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	supervisor := agent.NewSupervisor(llm, func(o *agent.SupervisorOptions) {
		o.Tools = append(o.Tools, opts.ExtraTools...)
		o.Stream = opts.Stream
		o.Timeout = opts.NodeTimeout
	})
	tools := supervisor.Tools()

	graphOpts := []func(o *graph.Options){
		graph.WithMaxSteps(opts.MaxSteps),
		graph.WithLogger(opts.Logger),
	}

	if opts.Searcher != nil {
		researchModel := opts.ResearchModel
		if researchModel == nil {
			researchModel = llm
		}
		research := agent.NewResearch(researchModel, opts.Searcher, func(o *agent.ResearchOptions) {
			o.Timeout = opts.NodeTimeout
		})
		tools = append(tools, research.Tools()...)

		policy := routing.NewKeywordPolicy(research.Name(), func(p *routing.KeywordPolicy) {
			p.Flag = research.Flag()
			if len(opts.Triggers) > 0 {
				p.Triggers = opts.Triggers
			}
		})
		graphOpts = append(graphOpts, graph.WithSpecialist(research), graph.WithPolicy(policy))
	}

	registry, err := tool.NewRegistry(tools, func(o *tool.RegistryOptions) { o.Logger = opts.Logger })
	if err != nil {
		return nil, err
	}
	executor := agent.NewToolExecutor(registry, func(o *agent.ToolExecutorOptions) {
		o.Timeout = opts.ToolTimeout
	})
	graphOpts = append(graphOpts, graph.WithToolNode(executor))

	return graph.New(supervisor, graphOpts...)
}
