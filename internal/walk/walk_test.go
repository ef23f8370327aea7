package walk

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/store"
)

type recordedCall struct {
	op      string
	relpath string
	shadowed bool
}

type fakeReceiver struct {
	calls []recordedCall
}

func (f *fakeReceiver) AddDirectory(ctx context.Context, tx *sql.Tx, relpath string, srcInfo model.NodeInfo, shadowed bool) error {
	f.calls = append(f.calls, recordedCall{"add_dir", relpath, shadowed})
	return nil
}

func (f *fakeReceiver) AddFile(ctx context.Context, tx *sql.Tx, relpath string, srcInfo model.NodeInfo, shadowed bool) error {
	f.calls = append(f.calls, recordedCall{"add_file", relpath, shadowed})
	return nil
}

func (f *fakeReceiver) AlterDirectory(ctx context.Context, tx *sql.Tx, relpath string, newProps model.Props, shadowed bool) error {
	f.calls = append(f.calls, recordedCall{"alter_dir", relpath, shadowed})
	return nil
}

func (f *fakeReceiver) AlterFile(ctx context.Context, tx *sql.Tx, relpath string, oldChecksum, newChecksum string, oldProps, newProps model.Props) error {
	f.calls = append(f.calls, recordedCall{"alter_file", relpath, false})
	return nil
}

func (f *fakeReceiver) Delete(ctx context.Context, tx *sql.Tx, relpath string, kind model.Kind, shadowed bool) error {
	f.calls = append(f.calls, recordedCall{"delete", relpath, shadowed})
	return nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "wc.db"), 1, store.DefaultBusyTimeoutMS)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWalk_PureAdd_RecursesIntoNewSubtree(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.PutNode(ctx, tx, "a/f", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile, Checksum: "c1"}))

	fr := &fakeReceiver{}
	w := New(s, fr, 2, 1, nil)
	require.NoError(t, w.Walk(ctx, tx, "a", "a", false))

	require.Len(t, fr.calls, 2)
	assert.Equal(t, "add_dir", fr.calls[0].op)
	assert.Equal(t, "add_file", fr.calls[1].op)
	assert.Equal(t, "a/f", fr.calls[1].relpath)
}

func TestWalk_PureDelete_NoRecursionAndRowRetracted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 1, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.PutNode(ctx, tx, "a/f", 1, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile}))

	fr := &fakeReceiver{}
	w := New(s, fr, 2, 1, nil)
	require.NoError(t, w.Walk(ctx, tx, "a", "a", false))

	require.Len(t, fr.calls, 1)
	assert.Equal(t, "delete", fr.calls[0].op)
	assert.Equal(t, "a", fr.calls[0].relpath)

	info, err := s.DepthGetInfo(ctx, tx, "a", 1)
	require.NoError(t, err)
	assert.False(t, info.Present)
}

func TestWalk_SameKindUnchanged_NoEventEmitted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile, Checksum: "c1"}))
	require.NoError(t, s.PutNode(ctx, tx, "a", 1, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile, Checksum: "c1"}))

	fr := &fakeReceiver{}
	w := New(s, fr, 2, 1, nil)
	require.NoError(t, w.Walk(ctx, tx, "a", "a", false))

	assert.Empty(t, fr.calls)
}

func TestWalk_ChecksumDiffers_EmitsAlterFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile, Checksum: "c2"}))
	require.NoError(t, s.PutNode(ctx, tx, "a", 1, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile, Checksum: "c1"}))

	fr := &fakeReceiver{}
	w := New(s, fr, 2, 1, nil)
	require.NoError(t, w.Walk(ctx, tx, "a", "a", false))

	require.Len(t, fr.calls, 1)
	assert.Equal(t, "alter_file", fr.calls[0].op)
}

func TestWalk_KindMismatch_DeletesWithoutRecursingAndRetractsRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile, Checksum: "c1"}))
	require.NoError(t, s.PutNode(ctx, tx, "a", 1, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.PutNode(ctx, tx, "a/child", 1, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile}))

	fr := &fakeReceiver{}
	w := New(s, fr, 2, 1, nil)
	require.NoError(t, w.Walk(ctx, tx, "a", "a", false))

	require.Len(t, fr.calls, 1, "kind-mismatch is delete-only; the new content is installed by the layer replacer")
	assert.Equal(t, "delete", fr.calls[0].op)

	info, err := s.DepthGetInfo(ctx, tx, "a", 1)
	require.NoError(t, err)
	assert.False(t, info.Present)
}

func TestWalk_ShadowedAdd_ExtendsParentDeleteBeforeDispatching(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile, Checksum: "c1"}))

	fr := &fakeReceiver{}
	w := New(s, fr, 2, 1, nil)
	require.NoError(t, w.Walk(ctx, tx, "a", "a", true))

	require.Len(t, fr.calls, 1)
	assert.Equal(t, "add_file", fr.calls[0].op)
	assert.True(t, fr.calls[0].shadowed)

	info, err := s.DepthGetInfo(ctx, tx, "a", 1)
	require.NoError(t, err)
	assert.True(t, info.Present)
	assert.Equal(t, model.PresenceBaseDeleted, info.Presence)
	assert.Equal(t, model.KindFile, info.Kind)
}

func TestWalk_CancelStopsRecursion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, s.PutNode(ctx, tx, "a", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindDir}))
	require.NoError(t, s.PutNode(ctx, tx, "a/f", 2, model.NodeInfo{Present: true, Presence: model.PresenceNormal, Kind: model.KindFile}))

	fr := &fakeReceiver{}
	cancelled := errsSentinel()
	w := New(s, fr, 2, 1, func(ctx context.Context) error { return cancelled })
	err = w.Walk(ctx, tx, "a", "a", false)
	require.Error(t, err)
}

func errsSentinel() error {
	return sentinelErr{}
}

type sentinelErr struct{}

func (sentinelErr) Error() string { return "cancelled for test" }
