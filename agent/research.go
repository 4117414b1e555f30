package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/graph"
	"github.com/hupe1980/threadmesh/model"
	"github.com/hupe1980/threadmesh/tool"
)

// ResearchName is the default name of the research specialist, and of the
// task flag it sets once it has answered.
const ResearchName = "research"

// DefaultResearchInstruction steers the research model towards the search tool.
const DefaultResearchInstruction = `You are a research assistant. Use the web_search tool to find current,
factual information that answers the user's question. Summarize what you
found in a few short paragraphs and cite the sources you used.`

// Fallback replies of the research specialist.
const (
	ResearchEmptyInput   = "Research agent received empty input and could not respond."
	ResearchNoResults    = "I couldn't find relevant information at the moment."
	researchFailedPrefix = "Research failed: "
)

// ResearchOptions configures a Research specialist.
type ResearchOptions struct {
	Name string
	// Flag is the task flag set when research completes. Defaults to Name.
	Flag        string
	Instruction Instruction
	Stream      bool
	Timeout     time.Duration
}

// Research is a specialist that answers with fresh information gathered
// through the web_search tool. Its answer is recorded as a human-kind
// message authored by the specialist, so the supervisor reads it as input.
type Research struct {
	name        string
	flag        string
	llm         model.Model
	search      tool.Tool
	instruction Instruction
	stream      bool
	timeout     time.Duration
}

// NewResearch creates a research specialist searching through searcher.
func NewResearch(llm model.Model, searcher tool.Searcher, optFns ...func(o *ResearchOptions)) *Research {
	opts := ResearchOptions{
		Name:        ResearchName,
		Instruction: NewInstructionFromText(DefaultResearchInstruction),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Flag == "" {
		opts.Flag = opts.Name
	}

	return &Research{
		name:        opts.Name,
		flag:        opts.Flag,
		llm:         llm,
		search:      tool.NewWebSearchTool(searcher),
		instruction: opts.Instruction,
		stream:      opts.Stream,
		timeout:     opts.Timeout,
	}
}

// Name implements graph.Node.
func (r *Research) Name() string { return r.name }

// Flag returns the task flag this specialist satisfies.
func (r *Research) Flag() string { return r.flag }

// Tools returns the tools the specialist calls.
func (r *Research) Tools() []tool.Tool { return []tool.Tool{r.search} }

// Run implements graph.Node. While the model requests searches the node
// returns those tool calls; the final answer sets the task flag, including
// the fallback answers for empty input, empty results and failures.
func (r *Research) Run(nc *graph.NodeContext) (core.NodeResult, error) {
	state := nc.State()

	idx := lastUserIndex(state)
	if idx < 0 || state.Messages[idx].IsBlank() {
		nc.Logger().Warn("agent.research.empty_input", "node", r.name)
		return r.finish(ResearchEmptyInput), nil
	}

	instruction, err := r.instruction.Resolve(state)
	if err != nil {
		instruction = DefaultResearchInstruction
	}

	msg, err := invokeModel(nc, modelCall{
		node:        r.name,
		llm:         r.llm,
		instruction: instruction,
		tools:       []model.ToolDefinition{tool.Definition(r.search)},
		stream:      r.stream,
		timeout:     r.timeout,
	}, state.Messages[idx:])
	if err != nil {
		var mie *core.ModelInvocationError
		if errors.As(err, &mie) {
			err = mie.Err
		}
		return r.finish(fmt.Sprintf("%s%v", researchFailedPrefix, err)), nil
	}

	if msg.HasToolCalls() {
		return core.NewNodeResult(msg), nil
	}
	if msg.IsBlank() {
		return r.finish(ResearchNoResults), nil
	}

	nc.Logger().Info("agent.research.complete", "node", r.name, "chars", len(msg.Content))
	return r.finish(msg.Content), nil
}

func (r *Research) finish(content string) core.NodeResult {
	return core.NewNodeResult(core.NewSpecialistMessage(r.name, content)).WithFlag(r.flag, true)
}

func lastUserIndex(s *core.State) int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Kind == core.KindHuman && !m.IsSpecialistAuthored() {
			return i
		}
	}
	return -1
}
