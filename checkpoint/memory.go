package checkpoint

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// MemoryStore is a volatile Store keeping checkpoints in a process local
// map. It is safe for concurrent access and best suited for tests or
// ephemeral dev servers. Stored values are copied on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	opts    Options
	threads map[string]*Checkpoint
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(optFns ...func(o *Options)) *MemoryStore {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &MemoryStore{opts: opts, threads: make(map[string]*Checkpoint)}
}

// Save replaces the checkpoint of threadID.
func (s *MemoryStore) Save(_ context.Context, threadID string, state json.RawMessage) error {
	if err := CheckThreadID(threadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = &Checkpoint{ThreadID: threadID, State: slices.Clone(state), CreatedAt: s.opts.Now()}
	return nil
}

// Get returns a copy of the stored checkpoint.
func (s *MemoryStore) Get(_ context.Context, threadID string) (*Checkpoint, bool, error) {
	if err := CheckThreadID(threadID); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.threads[threadID]
	if !ok {
		return nil, false, nil
	}
	c := *cp
	c.State = slices.Clone(cp.State)
	return &c, true, nil
}

// Delete removes the checkpoint of threadID.
func (s *MemoryStore) Delete(_ context.Context, threadID string) (bool, error) {
	if err := CheckThreadID(threadID); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.threads[threadID]
	delete(s.threads, threadID)
	return ok, nil
}

// Len returns the number of stored threads.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}
