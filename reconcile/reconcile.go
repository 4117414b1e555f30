// Package reconcile rebuilds a thread's working state from its persisted
// checkpoint and the message that starts a new turn.
package reconcile

import (
	"github.com/hupe1980/threadmesh/checkpoint"
	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/logging"
)

// Overrides carries the context supplied with an incoming turn. Non-empty
// values replace what the checkpoint stored.
type Overrides struct {
	ContextType string
	TaskType    string
}

// Incoming builds the human message for a turn.
func Incoming(text string) core.Message { return core.NewHumanMessage(text) }

// Reconcile returns the state a turn starts from.
//
// Without a usable checkpoint the state holds only incoming. Otherwise every
// stored message is decoded in order, undecodable ones are dropped and
// logged, and incoming is appended last. Task flags carry over unchanged.
func Reconcile(cp *checkpoint.Checkpoint, incoming core.Message, ov Overrides, logger logging.Logger) *core.State {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	st := restore(cp, logger)
	if st == nil {
		st = core.NewState(ov.ContextType, ov.TaskType)
	} else {
		if ov.ContextType != "" {
			st.Context.Type = ov.ContextType
		}
		if ov.TaskType != "" {
			st.Context.Task = ov.TaskType
		}
	}

	st.Append(incoming)
	return st
}

// Restore decodes a checkpoint without adding a turn. It returns nil when
// there is no checkpoint or its state is not an object.
func Restore(cp *checkpoint.Checkpoint, logger logging.Logger) *core.State {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return restore(cp, logger)
}

func restore(cp *checkpoint.Checkpoint, logger logging.Logger) *core.State {
	if cp == nil {
		return nil
	}
	st, ok, errs := core.DecodeState(cp.State)
	if !ok {
		logger.Warn("reconcile.state.invalid", "thread_id", cp.ThreadID)
		return nil
	}
	for _, err := range errs {
		logger.Warn("reconcile.message.dropped", "thread_id", cp.ThreadID, "error", err)
	}
	return st
}
