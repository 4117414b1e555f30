package agent

import (
	"time"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/graph"
	"github.com/hupe1980/threadmesh/model"
	"github.com/hupe1980/threadmesh/tool"
)

// SupervisorName is the default name of the supervisor node.
const SupervisorName = "supervisor"

// FallbackSupervisorInstruction is sent when the configured instruction
// cannot be resolved. It contains no template actions.
const FallbackSupervisorInstruction = `You are a helpful AI assistant with access to specialized tools.

AVAILABLE TOOLS:
- write_blog: Use this tool to draft blog posts or articles

WHEN TO USE TOOLS:
- Use the write_blog tool when asked to create blog content or articles
- When research findings are present in the conversation, answer from them and cite the sources

Keep your responses concise and well-organized.`

// DefaultSupervisorInstruction is rendered against the thread context.
const DefaultSupervisorInstruction = FallbackSupervisorInstruction + `

Current context: {{ .Type }}, Task: {{ .Task }}`

const emptySupervisorReply = "I'm sorry, I couldn't generate a response. Please try rephrasing your request."

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	Name        string
	Instruction Instruction
	// Tools are advertised to the model. They must also be registered with
	// the tool executor of the graph.
	Tools []tool.Tool
	// Stream publishes partial content while the model generates.
	Stream bool
	// Timeout bounds a single model call. Zero means no timeout.
	Timeout time.Duration
}

// Supervisor is the entry node of the graph. It answers the user directly,
// calling tools when the model asks for them.
type Supervisor struct {
	name        string
	llm         model.Model
	instruction Instruction
	tools       []tool.Tool
	stream      bool
	timeout     time.Duration
}

// NewSupervisor creates a supervisor backed by llm. By default it streams
// and offers the write_blog tool.
func NewSupervisor(llm model.Model, optFns ...func(o *SupervisorOptions)) *Supervisor {
	opts := SupervisorOptions{
		Name:        SupervisorName,
		Instruction: NewInstructionFromText(DefaultSupervisorInstruction),
		Tools:       []tool.Tool{tool.NewBlogWriterTool()},
		Stream:      true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Supervisor{
		name:        opts.Name,
		llm:         llm,
		instruction: opts.Instruction,
		tools:       opts.Tools,
		stream:      opts.Stream,
		timeout:     opts.Timeout,
	}
}

// Name implements graph.Node.
func (s *Supervisor) Name() string { return s.name }

// Tools returns the tools advertised to the model.
func (s *Supervisor) Tools() []tool.Tool { return s.tools }

// Run implements graph.Node. Model failures become a visible assistant
// message; the node itself never fails.
func (s *Supervisor) Run(nc *graph.NodeContext) (core.NodeResult, error) {
	state := nc.State()

	instruction, err := s.instruction.Resolve(state)
	if err != nil {
		nc.Logger().Warn("agent.instruction.error", "node", s.name, "error", err.Error())
		instruction = FallbackSupervisorInstruction
	}

	defs := make([]model.ToolDefinition, 0, len(s.tools))
	for _, t := range s.tools {
		defs = append(defs, tool.Definition(t))
	}

	msg, err := invokeModel(nc, modelCall{
		node:        s.name,
		llm:         s.llm,
		instruction: instruction,
		tools:       defs,
		stream:      s.stream,
		timeout:     s.timeout,
	}, state.Messages)
	if err != nil {
		return core.NewNodeResult(msg), nil
	}

	if msg.IsBlank() && !msg.HasToolCalls() {
		msg.Content = emptySupervisorReply
	}
	return core.NewNodeResult(msg), nil
}
