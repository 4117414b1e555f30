package core

import (
	"errors"
	"fmt"
)

// ErrStepLimitExceeded is matched by every RoutingCycleError via errors.Is.
var ErrStepLimitExceeded = errors.New("step limit exceeded")

// ModelInvocationError reports a failed or malformed language-model call.
// Nodes recover from it locally by emitting a visible assistant message.
type ModelInvocationError struct {
	Node string
	Err  error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed in node %s: %v", e.Node, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// ToolExecutionError reports a failed tool call. The error text becomes the
// tool result so the conversation can continue.
type ToolExecutionError struct {
	Tool       string
	ToolCallID string
	Err        error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s (call %s) failed: %v", e.Tool, e.ToolCallID, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// PersistenceError reports a failed checkpoint store operation. Store
// operations are idempotent, so callers may retry.
type PersistenceError struct {
	Op       string
	ThreadID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s for thread %s failed: %v", e.Op, e.ThreadID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RoutingCycleError ends a run that hit the executor's step ceiling. It is
// never retried automatically.
type RoutingCycleError struct {
	MaxSteps int
	LastNode string
}

func (e *RoutingCycleError) Error() string {
	return fmt.Sprintf("step limit exceeded: %d steps (last node %q)", e.MaxSteps, e.LastNode)
}

func (e *RoutingCycleError) Is(target error) bool { return target == ErrStepLimitExceeded }

// DecodeError reports a persisted message in an unrecognized shape. The
// message is dropped; the error is informational.
type DecodeError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot decode message (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot decode message (%s): %s", e.Reason, e.Raw)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnknownNodeError reports a routing decision naming a node that is not registered.
type UnknownNodeError struct {
	Name string
}

func (e *UnknownNodeError) Error() string { return fmt.Sprintf("unknown node %q", e.Name) }
