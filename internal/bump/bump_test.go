package bump

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svnmove/internal/conflict"
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

func TestBumpAll_InfinityDepthReplacesDestinationLayer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 0, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir, Checksum: "v2"}))
	require.NoError(t, s.RecordMove(ctx, tx, model.MoveRecord{SrcRelpath: "a", DstRelpath: "moved/a", SrcOpDepth: 0}))

	ce := conflict.New(s, 1, conflict.NewRootTracker(), &conflict.Seq{})
	e := New(s, ce, model.OperationUpdate, model.Revpair{Old: 5, New: 6})
	require.NoError(t, e.BumpAll(ctx, tx, "a", model.UpdateDepthInfinity))

	dstDepth := model.Depth("moved/a")
	info, err := s.DepthGetInfo(ctx, tx, "moved/a", dstDepth)
	require.NoError(t, err)
	assert.True(t, info.Present)
	assert.Equal(t, "v2", info.Checksum)

	sk, err := s.ReadConflict(ctx, tx, "a")
	require.NoError(t, err)
	assert.Nil(t, sk)
}

func TestBumpAll_EmptyDepthInsufficientRaisesConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 0, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.PutNode(ctx, tx, "a/f", 0, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile}))
	require.NoError(t, s.RecordMove(ctx, tx, model.MoveRecord{SrcRelpath: "a", DstRelpath: "moved/a", SrcOpDepth: 0}))

	ce := conflict.New(s, 1, conflict.NewRootTracker(), &conflict.Seq{})
	e := New(s, ce, model.OperationUpdate, model.Revpair{Old: 5, New: 6})
	require.NoError(t, e.BumpAll(ctx, tx, "a", model.UpdateDepthEmpty))

	sk, err := s.ReadConflict(ctx, tx, "a")
	require.NoError(t, err)
	require.NotNil(t, sk)
	assert.Equal(t, model.ConflictKindTree, sk.Kind)
}

func TestBumpAll_EntangledIntervalLayerRaisesConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 0, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.PutNode(ctx, tx, "a", 1, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.RecordMove(ctx, tx, model.MoveRecord{SrcRelpath: "a", DstRelpath: "moved/a", SrcOpDepth: 0}))

	ce := conflict.New(s, 1, conflict.NewRootTracker(), &conflict.Seq{})
	e := New(s, ce, model.OperationUpdate, model.Revpair{Old: 5, New: 6})
	require.NoError(t, e.BumpAll(ctx, tx, "a", model.UpdateDepthInfinity))

	sk, err := s.ReadConflict(ctx, tx, "a")
	require.NoError(t, err)
	require.NotNil(t, sk)
}

func TestBumpAll_ExistingConflictSkipsSilently(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 0, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.RecordMove(ctx, tx, model.MoveRecord{SrcRelpath: "a", DstRelpath: "moved/a", SrcOpDepth: 0}))
	require.NoError(t, s.MarkConflict(ctx, tx, "a", model.ConflictSkeleton{Kind: model.ConflictKindTree, Reason: model.ReasonMovedAway, Action: model.ActionDelete}))

	ce := conflict.New(s, 1, conflict.NewRootTracker(), &conflict.Seq{})
	e := New(s, ce, model.OperationUpdate, model.Revpair{Old: 5, New: 6})
	require.NoError(t, e.BumpAll(ctx, tx, "a", model.UpdateDepthInfinity))

	dstDepth := model.Depth("moved/a")
	info, err := s.DepthGetInfo(ctx, tx, "moved/a", dstDepth)
	require.NoError(t, err)
	assert.False(t, info.Present, "bump must not replace the destination layer once the source already carries a conflict")
}

func TestBreakMove_ClearsLinkageAndCascadesToChildren(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.RecordMove(ctx, tx, model.MoveRecord{SrcRelpath: "a", DstRelpath: "moved/a", SrcOpDepth: 0}))
	require.NoError(t, s.RecordMove(ctx, tx, model.MoveRecord{SrcRelpath: "moved/a/child", DstRelpath: "elsewhere/child", SrcOpDepth: 1}))

	ce := conflict.New(s, 1, conflict.NewRootTracker(), &conflict.Seq{})
	e := New(s, ce, model.OperationUpdate, model.Revpair{})
	require.NoError(t, e.BreakMove(ctx, tx, "a", 0, "moved/a"))

	mv, err := s.MoveByDst(ctx, tx, "moved/a")
	require.NoError(t, err)
	assert.Nil(t, mv)

	mv2, err := s.MoveByDst(ctx, tx, "elsewhere/child")
	require.NoError(t, err)
	assert.Nil(t, mv2, "a move nested under the broken destination is also broken")
}
