// Package storetest holds the behavioural suite every checkpoint.Store
// implementation must pass.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/threadmesh/checkpoint"
	"github.com/hupe1980/threadmesh/core"
)

// Clock is a settable time source for created_at assertions.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current clock value.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory builds a fresh, empty store using clock for created_at.
type Factory func(t *testing.T, clock *Clock) checkpoint.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetUnknownIsAbsent", func(t *testing.T) {
		s := newStore(t, NewClock())
		cp, ok, err := s.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, cp)
	})

	t.Run("SaveIsUpsert", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, "t1", json.RawMessage(`{"messages":[],"v":1}`)))
		first := clock.Now()
		clock.Advance(time.Minute)
		require.NoError(t, s.Save(ctx, "t1", json.RawMessage(`{"messages":[],"v":2}`)))

		cp, ok, err := s.Get(ctx, "t1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "t1", cp.ThreadID)
		assert.JSONEq(t, `{"messages":[],"v":2}`, string(cp.State))
		assert.True(t, cp.CreatedAt.After(first), "created_at must be refreshed on every save")
		assert.WithinDuration(t, clock.Now(), cp.CreatedAt, time.Second)
	})

	t.Run("DeleteReportsExistence", func(t *testing.T) {
		s := newStore(t, NewClock())
		ctx := context.Background()

		existed, err := s.Delete(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, existed)

		require.NoError(t, s.Save(ctx, "t2", json.RawMessage(`{}`)))
		existed, err = s.Delete(ctx, "t2")
		require.NoError(t, err)
		assert.True(t, existed)

		_, ok, err := s.Get(ctx, "t2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("EmptyThreadID", func(t *testing.T) {
		s := newStore(t, NewClock())
		ctx := context.Background()
		assert.True(t, errors.Is(s.Save(ctx, "", json.RawMessage(`{}`)), checkpoint.ErrEmptyThreadID))
		_, _, err := s.Get(ctx, "")
		assert.True(t, errors.Is(err, checkpoint.ErrEmptyThreadID))
		_, err = s.Delete(ctx, "")
		assert.True(t, errors.Is(err, checkpoint.ErrEmptyThreadID))
	})

	t.Run("ResetLeavesEmptyState", func(t *testing.T) {
		s := newStore(t, NewClock())
		ctx := context.Background()

		st := core.NewState("blog", "write")
		st.Append(core.NewHumanMessage("hello"))
		st.MergeFlags(map[string]bool{"research": true})
		require.NoError(t, checkpoint.SaveState(ctx, s, "t3", st))

		existed, err := checkpoint.Reset(ctx, s, "t3", "general_chat", "chat")
		require.NoError(t, err)
		assert.True(t, existed)

		cp, ok, err := s.Get(ctx, "t3")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"messages":[],"context":{"type":"general_chat","task":"chat"},"task_flags":{}}`, string(cp.State))
	})

	t.Run("ConcurrentSavesLastWriteWins", func(t *testing.T) {
		s := newStore(t, NewClock())
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Save(ctx, "t4", json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))))
			}(i)
		}
		wg.Wait()

		cp, ok, err := s.Get(ctx, "t4")
		require.NoError(t, err)
		require.True(t, ok)
		var v struct{ N int }
		require.NoError(t, json.Unmarshal(cp.State, &v))
		assert.GreaterOrEqual(t, v.N, 0)
		assert.Less(t, v.N, 8)
	})
}
