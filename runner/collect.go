package runner

import (
	"errors"

	"github.com/hupe1980/threadmesh/core"
)

// ErrIncompleteStream is returned by Collect when the event channel closes
// without an event completing the turn.
var ErrIncompleteStream = errors.New("stream ended without a final event")

// TurnError is the failure reported by a turn's error event.
type TurnError struct {
	Message string
}

func (e *TurnError) Error() string { return "turn failed: " + e.Message }

// Result is the aggregated outcome of one streamed turn.
type Result struct {
	// Response is the last content of the response buffer.
	Response    string
	ToolOutputs []string
	Statuses    []string
	Events      []core.StreamEvent
}

// Collect drains a turn's events. A turn ending in an error event yields
// the partial result together with a *TurnError.
func Collect(events <-chan core.StreamEvent) (*Result, error) {
	res := &Result{}
	final := false

	for ev := range events {
		res.Events = append(res.Events, ev)

		switch ev.Type {
		case core.EventResponse:
			if ev.IsFinal() {
				final = true
				res.ToolOutputs = append([]string(nil), ev.ToolOutputs...)
				continue
			}
			res.Response = ev.Content
		case core.EventStatus:
			res.Statuses = append(res.Statuses, ev.Content)
		case core.EventError:
			return res, &TurnError{Message: ev.Content}
		}
	}

	if !final {
		return res, ErrIncompleteStream
	}
	return res, nil
}
