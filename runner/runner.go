package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/threadmesh/checkpoint"
	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/graph"
	"github.com/hupe1980/threadmesh/logging"
)

// CheckpointStatusNode is the node name of status events reporting a failed
// checkpoint save.
const CheckpointStatusNode = "checkpoint"

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Store receives a checkpoint after every merged step. Nil disables
	// persistence.
	Store checkpoint.Store
	// MaxConcurrentRuns limits turns streaming at the same time across all
	// threads. Zero means unlimited.
	MaxConcurrentRuns int
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// Logging services.
	Logger logging.Logger
}

// Runner turns graph runs into the external event stream and checkpoints
// the thread state as the run progresses. Public methods are safe for
// concurrent use; turns on the same thread must be serialized by the caller.
type Runner struct {
	graph      *graph.Graph
	store      checkpoint.Store
	sem        *semaphore.Weighted
	bufferSize int
	logger     logging.Logger
}

// New constructs a Runner with optional overrides.
func New(g *graph.Graph, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		EventBufferSize:   100,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	r := &Runner{
		graph:      g,
		store:      opts.Store,
		bufferSize: opts.EventBufferSize,
		logger:     opts.Logger,
	}
	if opts.MaxConcurrentRuns > 0 {
		r.sem = semaphore.NewWeighted(int64(opts.MaxConcurrentRuns))
	}
	return r
}

// Stream runs one turn for threadID starting from state and returns its
// events. The channel always ends with exactly one event that completes the
// turn: the final response or an error, and is closed afterwards.
//
// Event rules:
//   - every tool result is emitted immediately as a tool_output event
//   - any other non-blank content replaces the response buffer and is
//     emitted as an in-progress response whenever the buffer changes
//   - delegation to a specialist is announced with a status event
//   - a failed checkpoint save is reported with a status event from
//     CheckpointStatusNode
//   - the final response event carries the turn's tool outputs
func (r *Runner) Stream(ctx context.Context, threadID string, state *core.State) <-chan core.StreamEvent {
	events := make(chan core.StreamEvent, r.bufferSize)

	go func() {
		defer close(events)

		t := &turn{
			runner:   r,
			ctx:      ctx,
			threadID: threadID,
			events:   events,
			logger:   logging.WithThread(r.logger, threadID),
		}
		t.finish(t.run(state))
	}()

	return events
}

// turn holds the multiplexing state of one Stream call.
type turn struct {
	runner   *Runner
	ctx      context.Context
	threadID string
	events   chan<- core.StreamEvent
	logger   logging.Logger

	buffer      string
	toolOutputs []string
	saves       int
}

func (t *turn) run(state *core.State) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stream panicked: %v", rec)
		}
	}()

	r := t.runner
	if r.sem != nil {
		if err := r.sem.Acquire(t.ctx, 1); err != nil {
			return err
		}
		defer r.sem.Release(1)
	}

	if state == nil {
		state = core.NewState("", "")
	}

	// Stops the graph if the turn ends early.
	ctx, cancel := context.WithCancel(t.ctx)
	defer cancel()

	start := time.Now()
	t.logger.Info("runner.turn.start", "messages", len(state.Messages))

	stepCh, errCh := r.graph.Run(ctx, state)
	for step := range stepCh {
		switch {
		case step.IsStatus():
			t.emit(core.NewStatusEvent(step.Node, step.Status))
		case step.IsPartial():
			t.respond(step.Partial.Content)
		default:
			for _, m := range step.Result.Messages {
				if m.Kind == core.KindTool {
					t.toolOutputs = append(t.toolOutputs, m.Content)
					t.emit(core.NewToolOutputEvent(m))
					continue
				}
				t.respond(m.Content)
			}
			t.save(step)
		}
	}
	if err := <-errCh; err != nil {
		return err
	}

	t.logger.Info("runner.turn.complete", "checkpoints", t.saves, "tool_outputs", len(t.toolOutputs), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// respond replaces the response buffer, emitting only actual changes.
func (t *turn) respond(content string) {
	if strings.TrimSpace(content) == "" || content == t.buffer {
		return
	}
	t.buffer = content
	t.emit(core.NewResponseEvent(content))
}

// save persists the merged state. A failure is reported to the consumer as
// a status event and the turn goes on; the last successful save stays
// authoritative.
func (t *turn) save(step graph.Step) {
	r := t.runner
	if r.store == nil || step.State == nil {
		return
	}
	err := checkpoint.SaveState(t.ctx, r.store, t.threadID, step.State)
	logging.Checkpoint(t.logger, "save", err, "node", step.Node, "step", step.Number)
	if err != nil {
		t.emit(core.NewStatusEvent(CheckpointStatusNode, "checkpoint save failed: "+err.Error()))
		return
	}
	t.saves++
}

func (t *turn) finish(err error) {
	if err == nil {
		t.emit(core.NewFinalEvent(t.toolOutputs))
		return
	}

	t.logger.Error("runner.turn.failed", "error", err.Error())
	ev := core.NewErrorEvent(err)
	if t.ctx.Err() != nil {
		// Nobody may be reading anymore; deliver only if there is room.
		select {
		case t.events <- ev:
		default:
		}
		return
	}
	t.events <- ev
}

func (t *turn) emit(ev core.StreamEvent) {
	select {
	case <-t.ctx.Done():
	case t.events <- ev:
	}
}
