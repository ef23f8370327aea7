// Package walk is the C2 Tree Walker: a depth-first, single-threaded
// driver that compares the source and destination layers at every
// path and emits the corresponding event to the edit receiver
// (package editor). It never mutates the store directly except for
// the leaf-delete retraction step spec.md §4.2 assigns it and the
// base-delete extension it makes before a shadowed add, and it
// never touches the filesystem: all filesystem effects flow through
// the work-item spool the receiver populates.
package walk

import (
	"context"
	"database/sql"

	"github.com/roach88/svnmove/internal/errs"
	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/store"
)

// Receiver is the subset of editor.Receiver the walker drives. Kept
// narrow so the walker can be tested against a fake.
type Receiver interface {
	AddDirectory(ctx context.Context, tx *sql.Tx, relpath string, srcInfo model.NodeInfo, shadowed bool) error
	AddFile(ctx context.Context, tx *sql.Tx, relpath string, srcInfo model.NodeInfo, shadowed bool) error
	AlterDirectory(ctx context.Context, tx *sql.Tx, relpath string, newProps model.Props, shadowed bool) error
	AlterFile(ctx context.Context, tx *sql.Tx, relpath string, oldChecksum, newChecksum string, oldProps, newProps model.Props) error
	Delete(ctx context.Context, tx *sql.Tx, relpath string, kind model.Kind, shadowed bool) error
}

// Cancel is polled once per child iteration (spec.md §5's cooperative
// scheduling model); returning a non-nil error aborts the walk. A nil
// Cancel disables polling.
type Cancel func(ctx context.Context) error

// Walker is C2.
type Walker struct {
	store       *store.Store
	receiver    Receiver
	srcOpDepth  int
	destOpDepth int
	cancel      Cancel
}

// New constructs a walker over one source/destination op-depth pair.
func New(s *store.Store, r Receiver, srcOpDepth, destOpDepth int, cancel Cancel) *Walker {
	return &Walker{store: s, receiver: r, srcOpDepth: srcOpDepth, destOpDepth: destOpDepth, cancel: cancel}
}

// Walk implements spec.md §4.2's walk(S, D, shadowed).
func (w *Walker) Walk(ctx context.Context, tx *sql.Tx, src, dst string, shadowed bool) error {
	srcInfo, err := w.store.DepthGetInfo(ctx, tx, src, w.srcOpDepth)
	if err != nil {
		return err
	}
	dstInfo, err := w.store.DepthGetInfo(ctx, tx, dst, w.destOpDepth)
	if err != nil {
		return err
	}

	kindS, kindD := model.KindNone, model.KindNone
	if !srcInfo.IsNone() {
		kindS = srcInfo.Kind
	}
	if !dstInfo.IsNone() {
		kindD = dstInfo.Kind
	}

	switch {
	case kindS == model.KindNone:
		if kindD == model.KindNone {
			return nil
		}
		return w.retract(ctx, tx, dst, kindD, shadowed)

	case kindD != model.KindNone && kindS != kindD:
		return w.retract(ctx, tx, dst, kindD, shadowed)

	case kindD == model.KindNone:
		if err := w.add(ctx, tx, dst, kindS, srcInfo, shadowed); err != nil {
			return err
		}
		if kindS == model.KindDir {
			return w.recurse(ctx, tx, src, dst, shadowed)
		}
		return nil

	default:
		if err := w.alter(ctx, tx, src, dst, kindS, srcInfo, dstInfo); err != nil {
			return err
		}
		if kindS == model.KindDir {
			return w.recurse(ctx, tx, src, dst, shadowed)
		}
		return nil
	}
}

// retract implements the delete branches of step 2 (source absent,
// or a kind mismatch): emit
// delete via C3, then retract the destination row. The new content at
// this path (if any) is materialized later by the layer replacer
// (C5), not by a recursive add here.
func (w *Walker) retract(ctx context.Context, tx *sql.Tx, dst string, kindD model.Kind, shadowed bool) error {
	if err := w.receiver.Delete(ctx, tx, dst, kindD, shadowed); err != nil {
		return err
	}
	belowOpDepth := w.destOpDepth - 1
	if belowOpDepth < 0 {
		belowOpDepth = 0
	}
	return w.store.DeleteNoLowerLayer(ctx, tx, dst, w.destOpDepth, belowOpDepth)
}

func (w *Walker) add(ctx context.Context, tx *sql.Tx, dst string, kindS model.Kind, srcInfo model.NodeInfo, shadowed bool) error {
	if shadowed {
		if err := w.store.ExtendParentDelete(ctx, tx, dst, kindS, w.destOpDepth); err != nil {
			return err
		}
	}
	if kindS == model.KindDir {
		return w.receiver.AddDirectory(ctx, tx, dst, srcInfo, shadowed)
	}
	return w.receiver.AddFile(ctx, tx, dst, srcInfo, shadowed)
}

// alter implements step 2's "both present, same kind" branch: it only
// emits an event when a real difference exists, per spec.md §4.2.
func (w *Walker) alter(ctx context.Context, tx *sql.Tx, src, dst string, kindS model.Kind, srcInfo, dstInfo model.NodeInfo) error {
	if kindS == model.KindDir {
		if srcInfo.Props.Equal(dstInfo.Props) {
			return nil
		}
		return w.receiver.AlterDirectory(ctx, tx, dst, srcInfo.Props, false)
	}
	if srcInfo.Checksum == dstInfo.Checksum && srcInfo.Props.Equal(dstInfo.Props) {
		return nil
	}
	return w.receiver.AlterFile(ctx, tx, dst, dstInfo.Checksum, srcInfo.Checksum, dstInfo.Props, srcInfo.Props)
}

// recurse merge-walks children_s and children_d in lexicographic
// order (step 3), polling the cancellation callback once per child.
func (w *Walker) recurse(ctx context.Context, tx *sql.Tx, src, dst string, shadowed bool) error {
	childrenS, err := w.store.GetChildren(ctx, tx, src, w.srcOpDepth)
	if err != nil {
		return err
	}
	childrenD, err := w.store.GetChildren(ctx, tx, dst, w.destOpDepth)
	if err != nil {
		return err
	}

	for _, name := range mergeNames(childrenS, childrenD) {
		if w.cancel != nil {
			if err := w.cancel(ctx); err != nil {
				return errs.Wrap(errs.Cancelled, model.Join(dst, name), err)
			}
		}

		childDst := model.Join(dst, name)
		_, _, layered, err := w.store.LowestLayerAbove(ctx, tx, childDst, w.destOpDepth)
		if err != nil {
			return err
		}
		childShadowed := shadowed || layered

		if err := w.Walk(ctx, tx, model.Join(src, name), childDst, childShadowed); err != nil {
			return err
		}
	}
	return nil
}

// mergeNames merges two already-sorted name lists, deduplicating
// names present on both sides.
func mergeNames(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
