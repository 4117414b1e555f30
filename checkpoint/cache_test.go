package checkpoint_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/threadmesh/checkpoint"
	"github.com/hupe1980/threadmesh/checkpoint/storetest"
)

type countingStore struct {
	checkpoint.Store
	gets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, threadID string) (*checkpoint.Checkpoint, bool, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, threadID)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*checkpoint.Checkpoint, bool, error) {
	return nil, false, errors.New("cache down")
}
func (failingCache) Set(context.Context, *checkpoint.Checkpoint) error { return errors.New("cache down") }
func (failingCache) Delete(context.Context, string) error             { return errors.New("cache down") }

func TestCachedStore(t *testing.T) {
	storetest.Run(t, func(_ *testing.T, clock *storetest.Clock) checkpoint.Store {
		backing := checkpoint.NewMemoryStore(func(o *checkpoint.Options) { o.Now = clock.Now })
		return checkpoint.NewCachedStore(backing, checkpoint.NewMemoryCache())
	})
}

func TestCachedStore_ServesHitsFromCache(t *testing.T) {
	backing := &countingStore{Store: checkpoint.NewMemoryStore()}
	s := checkpoint.NewCachedStore(backing, checkpoint.NewMemoryCache())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "t", json.RawMessage(`{"v":1}`)))
	for range 3 {
		_, ok, err := s.Get(ctx, "t")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.EqualValues(t, 1, backing.gets.Load())

	require.NoError(t, s.Save(ctx, "t", json.RawMessage(`{"v":2}`)))
	cp, _, err := s.Get(ctx, "t")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(cp.State))
	assert.EqualValues(t, 2, backing.gets.Load())
}

func TestCachedStore_AbsentIsNotCached(t *testing.T) {
	backing := &countingStore{Store: checkpoint.NewMemoryStore()}
	s := checkpoint.NewCachedStore(backing, checkpoint.NewMemoryCache())
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "t")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backing.Save(ctx, "t", json.RawMessage(`{}`)))
	_, ok, err = s.Get(ctx, "t")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCachedStore_CacheFailuresFallBack(t *testing.T) {
	s := checkpoint.NewCachedStore(checkpoint.NewMemoryStore(), failingCache{})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "t", json.RawMessage(`{"v":1}`)))
	cp, ok, err := s.Get(ctx, "t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(cp.State))

	existed, err := s.Delete(ctx, "t")
	require.NoError(t, err)
	assert.True(t, existed)
}

// pausingStore blocks the first armed Get after it has read the backing
// store, until release is closed.
type pausingStore struct {
	checkpoint.Store
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{Store: checkpoint.NewMemoryStore(), read: make(chan struct{}), release: make(chan struct{})}
}

func (s *pausingStore) Get(ctx context.Context, threadID string) (*checkpoint.Checkpoint, bool, error) {
	cp, ok, err := s.Store.Get(ctx, threadID)
	if s.armed.CompareAndSwap(true, false) {
		close(s.read)
		<-s.release
	}
	return cp, ok, err
}

func TestCachedStore_ReadRacingSaveDoesNotCacheOldState(t *testing.T) {
	backing := newPausingStore()
	s := checkpoint.NewCachedStore(backing, checkpoint.NewMemoryCache())
	ctx := context.Background()

	require.NoError(t, backing.Store.Save(ctx, "t", json.RawMessage(`{"v":1}`)))
	backing.armed.Store(true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		cp, ok, err := s.Get(ctx, "t")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"v":1}`, string(cp.State))
	}()

	<-backing.read
	require.NoError(t, s.Save(ctx, "t", json.RawMessage(`{"v":2}`)))
	close(backing.release)
	<-done

	cp, ok, err := s.Get(ctx, "t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(cp.State))
}

func TestCachedStore_SaveInvalidatesOnlyItsThread(t *testing.T) {
	backing := &countingStore{Store: checkpoint.NewMemoryStore()}
	s := checkpoint.NewCachedStore(backing, checkpoint.NewMemoryCache())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "a", json.RawMessage(`{"v":"a"}`)))
	require.NoError(t, s.Save(ctx, "b", json.RawMessage(`{"v":"b"}`)))
	_, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.EqualValues(t, 1, backing.gets.Load())

	require.NoError(t, s.Save(ctx, "b", json.RawMessage(`{"v":"b2"}`)))
	cp, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"a"}`, string(cp.State))
	assert.EqualValues(t, 1, backing.gets.Load())
}
