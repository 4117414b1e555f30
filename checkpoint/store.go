package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hupe1980/threadmesh/core"
)

// ErrEmptyThreadID is returned by every store operation called with an empty thread id.
var ErrEmptyThreadID = errors.New("checkpoint: empty thread id")

// Checkpoint is the persisted snapshot of one thread. There is at most one
// checkpoint per thread id; a newer save fully replaces the older one.
//
// State holds the raw persisted value so that older on-disk shapes survive
// until the reconciler interprets them.
type Checkpoint struct {
	ThreadID  string
	State     json.RawMessage
	CreatedAt time.Time
}

// Store persists the latest state snapshot per thread.
//
// Implementations must make Save an atomic upsert (last write wins), return
// (nil, false, nil) from Get for unknown threads and report from Delete
// whether a row existed.
type Store interface {
	Save(ctx context.Context, threadID string, state json.RawMessage) error
	Get(ctx context.Context, threadID string) (*Checkpoint, bool, error)
	Delete(ctx context.Context, threadID string) (bool, error)
}

// SaveState encodes s in the canonical shape and saves it.
func SaveState(ctx context.Context, store Store, threadID string, s *core.State) error {
	raw, err := core.EncodeState(s)
	if err != nil {
		return &core.PersistenceError{Op: "encode", ThreadID: threadID, Err: err}
	}
	return store.Save(ctx, threadID, raw)
}

// InitializeEmpty writes an empty state carrying the given context.
func InitializeEmpty(ctx context.Context, store Store, threadID, contextType, taskType string) error {
	return SaveState(ctx, store, threadID, core.NewState(contextType, taskType))
}

// Reset replaces the checkpoint of a thread with an empty one. The returned
// bool reports whether a checkpoint existed before. The empty state is
// written as a single upsert, so the thread is never without a checkpoint
// and a failed reset leaves the previous one in place.
func Reset(ctx context.Context, store Store, threadID, contextType, taskType string) (bool, error) {
	_, existed, err := store.Get(ctx, threadID)
	if err != nil {
		return false, err
	}
	if err := InitializeEmpty(ctx, store, threadID, contextType, taskType); err != nil {
		return existed, err
	}
	return existed, nil
}

// Options holds settings shared by the store implementations.
type Options struct {
	// Now supplies the created_at timestamp. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the baseline store options.
func DefaultOptions() Options {
	return Options{Now: time.Now}
}

func persistenceError(op, threadID string, err error) error {
	if err == nil {
		return nil
	}
	var pErr *core.PersistenceError
	if errors.As(err, &pErr) {
		return err
	}
	return &core.PersistenceError{Op: op, ThreadID: threadID, Err: err}
}

// Wrap converts a backend failure into a *core.PersistenceError. Store
// implementations outside this package use it to report errors uniformly.
func Wrap(op, threadID string, err error) error { return persistenceError(op, threadID, err) }

// CheckThreadID validates a thread id argument.
func CheckThreadID(threadID string) error {
	if threadID == "" {
		return ErrEmptyThreadID
	}
	return nil
}
