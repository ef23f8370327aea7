package editor

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/roach88/svnmove/internal/model"
)

// Delete implements spec.md §4.3's delete case.
func (r *Receiver) Delete(ctx context.Context, tx *sql.Tx, relpath string, kind model.Kind, shadowed bool) error {
	conflicted, err := r.conflict.CheckTreeConflict(ctx, tx, relpath, model.ActionDelete, model.Revpair{}, r.versions, r.operation)
	if err != nil {
		return err
	}
	if conflicted || shadowed {
		return nil
	}

	modified, allDeletes, err := r.wc.ModificationsUnder(relpath)
	if err != nil {
		return err
	}

	children, err := r.store.GetChildren(ctx, tx, relpath, r.destOpDepth)
	if err != nil {
		return err
	}

	var items []model.WorkItem
	removeKind := model.WorkRemoveFile
	if kind == model.KindDir {
		removeKind = model.WorkRemoveDir
	}
	for _, child := range children {
		items = append(items, model.WorkItem{
			ID: uuid.NewString(), Kind: model.WorkRemoveFile, Path: model.Join(relpath, child), Seq: r.seq.Next(),
		})
	}
	items = append(items, model.WorkItem{ID: uuid.NewString(), Kind: removeKind, Path: relpath, Seq: r.seq.Next()})

	switch {
	case !modified:
		if err := r.store.WQAdd(ctx, tx, items); err != nil {
			return err
		}
		if err := r.store.DeleteNode(ctx, tx, relpath, r.destOpDepth); err != nil {
			return err
		}
		return r.notify(ctx, tx, relpath, model.NotifyDelete, kind, model.StateUnchanged, model.StateUnchanged)

	case !allDeletes:
		if err := r.store.UpdateOpDepthRecursive(ctx, tx, relpath, r.destOpDepth+1, r.destOpDepth); err != nil {
			return err
		}
		return r.conflict.MarkTreeConflict(ctx, tx, relpath, model.ReasonEdited, model.ActionDelete, model.Revpair{}, r.versions, r.operation, "")

	default:
		if err := r.store.DeleteWorkingOpDepth(ctx, tx, relpath, r.destOpDepth); err != nil {
			return err
		}
		if err := r.store.WQAdd(ctx, tx, items); err != nil {
			return err
		}
		return r.conflict.MarkTreeConflict(ctx, tx, relpath, model.ReasonDeleted, model.ActionDelete, model.Revpair{}, r.versions, r.operation, "")
	}
}
