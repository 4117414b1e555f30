package threadmesh

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hupe1980/threadmesh/checkpoint"
	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/graph"
	"github.com/hupe1980/threadmesh/logging"
	"github.com/hupe1980/threadmesh/reconcile"
	"github.com/hupe1980/threadmesh/runner"
)

// Default thread context used when nothing else is known about a thread.
const (
	DefaultContextType = "general_chat"
	DefaultTaskType    = "chat"
)

// ThreadLookup supplies the default context of a thread, used when a
// thread is created without one and when it is reset.
type ThreadLookup interface {
	ThreadDefaults(ctx context.Context, threadID string) (contextType, taskType string, err error)
}

// StaticLookup returns the same defaults for every thread.
type StaticLookup struct {
	ContextType string
	TaskType    string
}

// ThreadDefaults implements ThreadLookup.
func (l StaticLookup) ThreadDefaults(context.Context, string) (string, string, error) {
	return l.ContextType, l.TaskType, nil
}

// Options configures a Service.
type Options struct {
	// Store is the durable source of truth for thread state.
	// Defaults to an in-memory store.
	Store checkpoint.Store
	// Lookup defaults to StaticLookup{DefaultContextType, DefaultTaskType}.
	Lookup ThreadLookup
	// MaxConcurrentRuns limits turns streaming at the same time.
	MaxConcurrentRuns int
	// EventBufferSize sets channel buffering for turn events.
	EventBufferSize int
	Logger          logging.Logger
}

// Service is the entry point for request handlers. Construct it once at
// startup and share it; it holds no per-thread state of its own.
type Service struct {
	graph  *graph.Graph
	runner *runner.Runner
	store  checkpoint.Store
	lookup ThreadLookup
	logger logging.Logger
}

// New creates a Service running turns on g.
func New(g *graph.Graph, optFns ...func(o *Options)) *Service {
	opts := Options{
		Store:             checkpoint.NewMemoryStore(),
		Lookup:            StaticLookup{ContextType: DefaultContextType, TaskType: DefaultTaskType},
		MaxConcurrentRuns: 10,
		EventBufferSize:   100,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Service{
		graph: g,
		runner: runner.New(g, func(o *runner.Options) {
			o.Store = opts.Store
			o.MaxConcurrentRuns = opts.MaxConcurrentRuns
			o.EventBufferSize = opts.EventBufferSize
			o.Logger = opts.Logger
		}),
		store:  opts.Store,
		lookup: opts.Lookup,
		logger: opts.Logger,
	}
}

// CreateThread allocates a new thread id and stores an empty checkpoint for
// it. Empty context values fall back to the lookup defaults.
func (s *Service) CreateThread(ctx context.Context, contextType, taskType string) (string, error) {
	threadID := uuid.NewString()

	if contextType == "" || taskType == "" {
		defType, defTask, err := s.lookup.ThreadDefaults(ctx, threadID)
		if err != nil {
			return "", fmt.Errorf("thread defaults: %w", err)
		}
		if contextType == "" {
			contextType = defType
		}
		if taskType == "" {
			taskType = defTask
		}
	}

	if err := checkpoint.InitializeEmpty(ctx, s.store, threadID, contextType, taskType); err != nil {
		return "", err
	}

	s.logger.Info("thread.created", "thread_id", threadID, "context_type", contextType, "task_type", taskType)
	return threadID, nil
}

// Chat starts a turn: the stored state is reconciled with the new user
// message and the graph streams its events. Only a failed checkpoint read
// prevents the turn from starting; everything later is reported in-band.
func (s *Service) Chat(ctx context.Context, threadID, text string, ov reconcile.Overrides) (<-chan core.StreamEvent, error) {
	state, err := s.prepare(ctx, threadID, text, ov)
	if err != nil {
		return nil, err
	}
	return s.runner.Stream(ctx, threadID, state), nil
}

// ChatSync runs a turn to completion.
func (s *Service) ChatSync(ctx context.Context, threadID, text string, ov reconcile.Overrides) (*runner.Result, error) {
	events, err := s.Chat(ctx, threadID, text, ov)
	if err != nil {
		return nil, err
	}
	return runner.Collect(events)
}

func (s *Service) prepare(ctx context.Context, threadID, text string, ov reconcile.Overrides) (*core.State, error) {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return nil, err
	}

	cp, ok, err := s.store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		defType, defTask, err := s.lookup.ThreadDefaults(ctx, threadID)
		if err != nil {
			return nil, fmt.Errorf("thread defaults: %w", err)
		}
		if ov.ContextType == "" {
			ov.ContextType = defType
		}
		if ov.TaskType == "" {
			ov.TaskType = defTask
		}
	}

	return reconcile.Reconcile(cp, reconcile.Incoming(text), ov, s.logger), nil
}

// Reset replaces the thread's checkpoint with an empty one carrying the
// thread's default context. It reports whether a checkpoint existed.
func (s *Service) Reset(ctx context.Context, threadID string) (bool, error) {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return false, err
	}
	contextType, taskType, err := s.lookup.ThreadDefaults(ctx, threadID)
	if err != nil {
		return false, fmt.Errorf("thread defaults: %w", err)
	}

	existed, err := checkpoint.Reset(ctx, s.store, threadID, contextType, taskType)
	if err != nil {
		return existed, err
	}
	s.logger.Info("thread.reset", "thread_id", threadID, "existed", existed)
	return existed, nil
}

// HistoryMessage is one entry of a thread's user-facing transcript.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Author  string `json:"author,omitempty"`
}

// History returns the transcript of a thread. Messages that cannot be
// decoded are skipped, as are system instructions and tool-call requests
// without text. An unknown thread has an empty history.
func (s *Service) History(ctx context.Context, threadID string) ([]HistoryMessage, error) {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return nil, err
	}
	cp, ok, err := s.store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []HistoryMessage{}, nil
	}

	state := reconcile.Restore(cp, s.logger)
	if state == nil {
		return []HistoryMessage{}, nil
	}
	out := make([]HistoryMessage, 0, len(state.Messages))
	for _, m := range state.Messages {
		if m.Kind == core.KindSystem || (m.IsBlank() && m.HasToolCalls()) {
			continue
		}
		out = append(out, HistoryMessage{Role: m.Role(), Content: m.Content, Author: m.Name})
	}
	return out, nil
}

// Checkpoint returns the raw stored checkpoint of a thread.
func (s *Service) Checkpoint(ctx context.Context, threadID string) (*checkpoint.Checkpoint, bool, error) {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return nil, false, err
	}
	return s.store.Get(ctx, threadID)
}

// State returns the decoded state of a thread.
func (s *Service) State(ctx context.Context, threadID string) (*core.State, bool, error) {
	cp, ok, err := s.Checkpoint(ctx, threadID)
	if err != nil || !ok {
		return nil, ok, err
	}
	state := reconcile.Restore(cp, s.logger)
	if state == nil {
		return nil, false, nil
	}
	return state, true, nil
}

// Graph returns the graph the service runs.
func (s *Service) Graph() *graph.Graph { return s.graph }
