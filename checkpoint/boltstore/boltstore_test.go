package boltstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/threadmesh/checkpoint"
	"github.com/hupe1980/threadmesh/checkpoint/storetest"
)

var _ checkpoint.Store = (*Store)(nil)

func TestStore_Bolt(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) checkpoint.Store {
		s, err := Open(filepath.Join(t.TempDir(), "cp.bolt"), func(o *checkpoint.Options) { o.Now = clock.Now })
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cp.bolt")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "t", json.RawMessage(`{"messages":[]}`)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	cp, ok, err := s.Get(ctx, "t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"messages":[]}`, string(cp.State))
}
