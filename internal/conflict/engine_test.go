package conflict

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "wc.db"), 1, store.DefaultBusyTimeoutMS)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckTreeConflict_NoLayerAboveDest_NotConflicted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	e := New(s, 1, NewRootTracker(), &Seq{})
	conflicted, err := e.CheckTreeConflict(ctx, tx, "b/f", model.ActionAdd, model.Revpair{}, model.Revpair{}, model.OperationUpdate)
	require.NoError(t, err)
	assert.False(t, conflicted)
}

func TestCheckTreeConflict_RaisesAtOpRootAndRemembers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	// A local add above the destination op-depth: op-root "b/local".
	require.NoError(t, s.PutNode(ctx, tx, "b/local", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.PutNode(ctx, tx, "b/local/child", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile}))

	e := New(s, 1, NewRootTracker(), &Seq{})

	conflicted, err := e.CheckTreeConflict(ctx, tx, "b/local/child", model.ActionDelete, model.Revpair{Old: 5, New: 6}, model.Revpair{}, model.OperationUpdate)
	require.NoError(t, err)
	assert.True(t, conflicted)

	sk, err := s.ReadConflict(ctx, tx, "b/local")
	require.NoError(t, err)
	require.NotNil(t, sk)
	assert.Equal(t, model.ConflictKindTree, sk.Kind)

	// A second, nested path under the same root is suppressed without
	// touching the store again.
	conflicted, err = e.CheckTreeConflict(ctx, tx, "b/local/child/grandchild", model.ActionAdd, model.Revpair{}, model.Revpair{}, model.OperationUpdate)
	require.NoError(t, err)
	assert.True(t, conflicted)
}

func TestMergeProps_OnlyIncomingChanged_TakesIncoming(t *testing.T) {
	e := New(nil, 0, NewRootTracker(), &Seq{})
	old := model.Props{"k": "1"}
	actual := model.Props{"k": "1"}
	incoming := model.Props{"k": "2"}

	merged, conflict, state := e.MergeProps(old, actual, incoming)
	assert.Nil(t, conflict)
	assert.Equal(t, model.StateChanged, state)
	assert.Equal(t, "2", merged["k"])
}

func TestMergeProps_BothSidesChangeDifferently_Conflicts(t *testing.T) {
	e := New(nil, 0, NewRootTracker(), &Seq{})
	old := model.Props{"k": "1"}
	actual := model.Props{"k": "local"}
	incoming := model.Props{"k": "incoming"}

	_, conflict, state := e.MergeProps(old, actual, incoming)
	require.NotNil(t, conflict)
	assert.Equal(t, model.ConflictKindProperty, conflict.Kind)
	assert.Equal(t, model.StateConflicted, state)
}

func TestMergeProps_NoChanges_Unchanged(t *testing.T) {
	e := New(nil, 0, NewRootTracker(), &Seq{})
	props := model.Props{"k": "1"}

	merged, conflict, state := e.MergeProps(props, props, props)
	assert.Nil(t, conflict)
	assert.Equal(t, model.StateUnchanged, state)
	assert.Equal(t, props, merged)
}
