// Package routing decides, once per supervisor step, whether the turn is
// delegated to a specialist or answered directly.
//
// KeywordPolicy is an explicit heuristic gate over a fixed trigger
// vocabulary. It is not a classifier and makes no attempt to understand
// intent beyond substring matching.
package routing

import (
	"strings"

	"github.com/hupe1980/threadmesh/core"
)

// Decision names the next node. An empty Node means direct response.
type Decision struct {
	Node string
}

// IsDirect reports whether the supervisor answers itself.
func (d Decision) IsDirect() bool { return d.Node == "" }

// Delegate routes to the named specialist.
func Delegate(node string) Decision { return Decision{Node: node} }

// DirectResponse answers without delegation.
func DirectResponse() Decision { return Decision{} }

// Policy is a pure function of the state.
type Policy interface {
	Route(s *core.State) Decision
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(s *core.State) Decision

// Route calls f.
func (f PolicyFunc) Route(s *core.State) Decision { return f(s) }

// DefaultTriggers is the vocabulary that signals a need for fresh information.
var DefaultTriggers = []string{
	"latest",
	"recent",
	"news",
	"today",
	"current",
	"trending",
	"real-time",
	"update",
	"announcement",
	"headline",
}

// KeywordPolicy delegates to Specialist when the last user message contains
// a trigger word, unless Flag is already set. Rules are evaluated in order
// and the first match wins:
//
//  1. Flag already true: direct response.
//  2. No user-authored human message: direct response.
//  3. Lower-cased content contains a trigger: delegate, otherwise direct.
type KeywordPolicy struct {
	Specialist string
	// Flag defaults to Specialist.
	Flag     string
	Triggers []string
}

// NewKeywordPolicy builds a policy for specialist using DefaultTriggers.
func NewKeywordPolicy(specialist string, optFns ...func(p *KeywordPolicy)) *KeywordPolicy {
	p := &KeywordPolicy{Specialist: specialist, Flag: specialist, Triggers: DefaultTriggers}
	for _, fn := range optFns {
		fn(p)
	}
	return p
}

// Route implements Policy.
func (p *KeywordPolicy) Route(s *core.State) Decision {
	flag := p.Flag
	if flag == "" {
		flag = p.Specialist
	}
	if s.Flag(flag) {
		return DirectResponse()
	}
	m, ok := s.LastUserMessage()
	if !ok {
		return DirectResponse()
	}
	text := strings.ToLower(m.Content)
	for _, trigger := range p.Triggers {
		if trigger != "" && strings.Contains(text, strings.ToLower(trigger)) {
			return Delegate(p.Specialist)
		}
	}
	return DirectResponse()
}

// Always delegates to node on every step. Paired with a specialist that
// never sets its flag it drives the executor into its step ceiling.
func Always(node string) Policy {
	return PolicyFunc(func(*core.State) Decision { return Delegate(node) })
}

// Direct never delegates.
func Direct() Policy {
	return PolicyFunc(func(*core.State) Decision { return DirectResponse() })
}
