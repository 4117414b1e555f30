package checkpoint

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/threadmesh/logging"
)

// Cache holds recently read checkpoints. Cache failures never fail a store
// operation; they are logged and the backing store is used instead.
type Cache interface {
	Get(ctx context.Context, threadID string) (*Checkpoint, bool, error)
	Set(ctx context.Context, cp *Checkpoint) error
	Delete(ctx context.Context, threadID string) error
}

// CachedStoreOptions configures a CachedStore.
type CachedStoreOptions struct {
	Logger logging.Logger
}

// generationStripes bounds the invalidation counters kept by a CachedStore.
const generationStripes = 256

// CachedStore is a read-through cache in front of a Store. Writes go to the
// backing store first and then invalidate the cached entry. Concurrent
// misses for the same thread share one backend read.
//
// A read that raced with a write must not repopulate the cache with what it
// read. Every invalidation bumps a generation counter for the thread (striped
// by hash, so unrelated threads may share one), and a fill whose generation
// moved is removed again.
type CachedStore struct {
	store       Store
	cache       Cache
	group       singleflight.Group
	generations [generationStripes]atomic.Uint64
	logger      logging.Logger
}

// NewCachedStore wraps store with cache.
func NewCachedStore(store Store, cache Cache, optFns ...func(o *CachedStoreOptions)) *CachedStore {
	opts := CachedStoreOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &CachedStore{store: store, cache: cache, logger: opts.Logger}
}

// Save writes through to the backing store and drops the cached entry.
func (s *CachedStore) Save(ctx context.Context, threadID string, state json.RawMessage) error {
	if err := s.store.Save(ctx, threadID, state); err != nil {
		return err
	}
	s.invalidate(ctx, threadID)
	return nil
}

// Get serves from the cache when possible.
func (s *CachedStore) Get(ctx context.Context, threadID string) (*Checkpoint, bool, error) {
	if err := CheckThreadID(threadID); err != nil {
		return nil, false, err
	}
	logger := logging.WithThread(s.logger, threadID)

	if cp, ok, err := s.cache.Get(ctx, threadID); err != nil {
		logger.Warn("checkpoint.cache.get_failed", "error", err)
	} else if ok {
		return cp, true, nil
	}

	type result struct {
		cp *Checkpoint
		ok bool
	}
	v, err, _ := s.group.Do(threadID, func() (any, error) {
		gen := s.generation(threadID).Load()
		cp, ok, err := s.store.Get(ctx, threadID)
		if err != nil {
			return nil, err
		}
		if ok {
			s.fill(ctx, logger, threadID, cp, gen)
		}
		return result{cp: cp, ok: ok}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(result)
	if !r.ok {
		return nil, false, nil
	}
	c := *r.cp
	c.State = slices.Clone(r.cp.State)
	return &c, true, nil
}

// fill caches cp unless the thread was invalidated since gen was read. The
// generation is checked again after Set because an invalidation may land
// between the check and the write.
func (s *CachedStore) fill(ctx context.Context, logger logging.Logger, threadID string, cp *Checkpoint, gen uint64) {
	counter := s.generation(threadID)
	if counter.Load() != gen {
		return
	}
	if err := s.cache.Set(ctx, cp); err != nil {
		logger.Warn("checkpoint.cache.set_failed", "error", err)
		return
	}
	if counter.Load() != gen {
		if err := s.cache.Delete(ctx, threadID); err != nil {
			logger.Warn("checkpoint.cache.invalidate_failed", "error", err)
		}
	}
}

// Delete removes the checkpoint from the backing store and the cache.
func (s *CachedStore) Delete(ctx context.Context, threadID string) (bool, error) {
	existed, err := s.store.Delete(ctx, threadID)
	if err != nil {
		return false, err
	}
	s.invalidate(ctx, threadID)
	return existed, nil
}

// invalidate bumps the generation before deleting, so a concurrent fill
// either sees the new generation or is overwritten by the delete.
func (s *CachedStore) invalidate(ctx context.Context, threadID string) {
	s.generation(threadID).Add(1)
	s.group.Forget(threadID)
	if err := s.cache.Delete(ctx, threadID); err != nil {
		logging.WithThread(s.logger, threadID).Warn("checkpoint.cache.invalidate_failed", "error", err)
	}
}

func (s *CachedStore) generation(threadID string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(threadID))
	return &s.generations[h.Sum32()%generationStripes]
}

// MemoryCache is an unbounded in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Checkpoint
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]Checkpoint{}}
}

// Get returns a copy of the cached checkpoint.
func (c *MemoryCache) Get(_ context.Context, threadID string) (*Checkpoint, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp, ok := c.entries[threadID]
	if !ok {
		return nil, false, nil
	}
	cp.State = slices.Clone(cp.State)
	return &cp, true, nil
}

// Set caches a copy of cp.
func (c *MemoryCache) Set(_ context.Context, cp *Checkpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := *cp
	stored.State = slices.Clone(cp.State)
	c.entries[cp.ThreadID] = stored
	return nil
}

// Delete drops a cached entry.
func (c *MemoryCache) Delete(_ context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, threadID)
	return nil
}
