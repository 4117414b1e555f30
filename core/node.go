package core

// NodeResult is the delta produced by one graph node execution: messages to
// append and flag updates to merge.
type NodeResult struct {
	Messages []Message
	Flags    map[string]bool
}

// NewNodeResult builds a result carrying the given messages.
func NewNodeResult(msgs ...Message) NodeResult {
	return NodeResult{Messages: msgs}
}

// WithFlag returns a copy of r with flag name set to value.
func (r NodeResult) WithFlag(name string, value bool) NodeResult {
	flags := make(map[string]bool, len(r.Flags)+1)
	for k, v := range r.Flags {
		flags[k] = v
	}
	flags[name] = value
	r.Flags = flags
	return r
}

// IsEmpty reports whether the result carries no change.
func (r NodeResult) IsEmpty() bool { return len(r.Messages) == 0 && len(r.Flags) == 0 }
