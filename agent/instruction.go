package agent

import (
	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from the conversation state.
type Provider interface {
	Instruction(*core.State) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(*core.State) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(s *core.State) (string, error) { return f(s) }

// Instruction represents either a static template or a dynamic provider.
//
// Static text is rendered as a text/template against the thread context, so
// "{{ .Type }}" and "{{ .Task }}" expand to the thread's context type and task.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static template.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.State) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static template.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text for the given state.
func (i Instruction) Resolve(s *core.State) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(s)
	}
	var tc core.ThreadContext
	if s != nil {
		tc = s.Context
	}
	return util.RenderTemplate(i.text, tc)
}
