package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svnmove/internal/errs"
	"github.com/roach88/svnmove/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wc.db")
	s, err := Open(path, 1, DefaultBusyTimeoutMS)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutNodeAndDepthGetInfo_Roundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	info := model.NodeInfo{
		Present:      true,
		Presence:     model.PresenceNormal,
		Kind:         model.KindFile,
		Revision:     42,
		ReposRelpath: "trunk/a/f",
		Checksum:     "sha1:abc",
		Props:        model.Props{"k": "v"},
	}
	require.NoError(t, s.PutNode(ctx, tx, "a/f", 1, info))

	got, err := s.DepthGetInfo(ctx, tx, "a/f", 1)
	require.NoError(t, err)
	assert.True(t, got.Present)
	assert.Equal(t, model.KindFile, got.Kind)
	assert.Equal(t, int64(42), got.Revision)
	assert.Equal(t, "v", got.Props["k"])
}

func TestDepthGetInfo_MissingRowIsKindNone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	info, err := s.DepthGetInfo(ctx, tx, "nope", 0)
	require.NoError(t, err)
	assert.False(t, info.Present)
	assert.Equal(t, model.KindNone, info.Kind)
	assert.True(t, info.IsNone())
}

func TestGetChildren_SortedLexicographically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.PutNode(ctx, tx, model.Join("dir", name), 0, model.NodeInfo{
			Present: true, Presence: model.PresenceNormal, Kind: model.KindFile,
		}))
	}

	names, err := s.GetChildren(ctx, tx, "dir", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestMarkConflict_IdempotentOnEquivalentSkeleton(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	sk := model.ConflictSkeleton{
		Kind: model.ConflictKindTree, Operation: model.OperationUpdate,
		Reason: model.ReasonMovedAway, Action: model.ActionAdd, SrcOpRoot: "a",
	}
	require.NoError(t, s.MarkConflict(ctx, tx, "b/new", sk))
	require.NoError(t, s.MarkConflict(ctx, tx, "b/new", sk))

	got, err := s.ReadConflict(ctx, tx, "b/new")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ReasonMovedAway, got.Reason)
}

func TestMarkConflict_ObstructedOnIncompatibleSkeleton(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	first := model.ConflictSkeleton{Kind: model.ConflictKindTree, Reason: model.ReasonEdited, Action: model.ActionDelete}
	second := model.ConflictSkeleton{Kind: model.ConflictKindTree, Reason: model.ReasonDeleted, Action: model.ActionDelete}

	require.NoError(t, s.MarkConflict(ctx, tx, "b/x", first))
	err = s.MarkConflict(ctx, tx, "b/x", second)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ObstructedUpdate))
}

func TestWriteLock_VerifiedBeforeMutation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	locked, err := s.OwnsWriteLock(ctx, tx, "a")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, s.TakeWriteLock(ctx, tx, "a"))
	locked, err = s.OwnsWriteLock(ctx, tx, "a/child")
	require.NoError(t, err)
	assert.True(t, locked, "descendants of a locked op-root are covered")

	require.NoError(t, s.ReleaseWriteLock(ctx, tx, "a"))
	locked, err = s.OwnsWriteLock(ctx, tx, "a")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestOpDepthMovedTo_FindsCoveringMove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.RecordMove(ctx, tx, model.MoveRecord{SrcRelpath: "a", DstRelpath: "b", SrcOpDepth: 1}))

	dst, srcRoot, srcOpRoot, srcOpDepth, ok, err := s.OpDepthMovedTo(ctx, tx, "a/f", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b/f", dst)
	assert.Equal(t, "a", srcRoot)
	assert.Equal(t, "a", srcOpRoot)
	assert.Equal(t, 1, srcOpDepth)

	_, _, _, _, ok, err = s.OpDepthMovedTo(ctx, tx, "a/f", 1)
	require.NoError(t, err)
	assert.False(t, ok, "op_depth_moved_to only sees moves strictly above the given depth")
}

func TestDrainWorkQueue_PreservesInsertionOrderAndTruncates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	items := []model.WorkItem{
		{ID: "1", Kind: model.WorkInstallDir, Path: "b", Seq: 1},
		{ID: "2", Kind: model.WorkInstallFile, Path: "b/f", Seq: 2},
	}
	require.NoError(t, s.WQAdd(ctx, tx, items))

	drained, err := s.DrainWorkQueue(ctx, tx)
	require.NoError(t, err)
	require.Len(t, drained, 2)
	assert.Equal(t, "b", drained[0].Path)
	assert.Equal(t, "b/f", drained[1].Path)

	again, err := s.DrainWorkQueue(ctx, tx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestUpdateOpDepthRecursive_MovesSubtree(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "b/sub", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.PutNode(ctx, tx, "b/sub/f", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile}))

	require.NoError(t, s.UpdateOpDepthRecursive(ctx, tx, "b/sub", 2, 1))

	rootInfo, err := s.DepthGetInfo(ctx, tx, "b/sub", 1)
	require.NoError(t, err)
	assert.True(t, rootInfo.Present)

	childInfo, err := s.DepthGetInfo(ctx, tx, "b/sub/f", 1)
	require.NoError(t, err)
	assert.True(t, childInfo.Present)

	oldInfo, err := s.DepthGetInfo(ctx, tx, "b/sub", 2)
	require.NoError(t, err)
	assert.False(t, oldInfo.Present)
}
