// Package editor is the C3 Edit Receiver: it applies the events the
// tree walker (package walk) emits to the destination, raising
// conflicts through the conflict engine (package conflict) and
// scheduling deferred filesystem work through the node store's spool.
package editor

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/roach88/svnmove/internal/conflict"
	"github.com/roach88/svnmove/internal/merge"
	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/pristine"
	"github.com/roach88/svnmove/internal/store"
)

// WorkingCopy is the narrow probe the receiver uses to inspect the
// on-disk state it must not blindly overwrite: whether an unversioned
// obstruction exists, and whether a working file has been locally
// modified relative to a pristine checksum.
type WorkingCopy interface {
	Stat(relpath string) (exists bool, kind model.Kind, versioned bool, err error)
	IsFileModified(relpath, checksum string) (bool, error)
	AbsPath(relpath string) string
	// ModificationsUnder reports whether relpath's subtree carries
	// local modifications and, if so, whether every one of them is a
	// deletion (spec.md §4.3's delete case analysis).
	ModificationsUnder(relpath string) (modified bool, allDeletes bool, err error)
}

// Receiver is C3.
type Receiver struct {
	store       *store.Store
	conflict    *conflict.Engine
	merger      merge.Merger
	pristine    pristine.Store
	wc          WorkingCopy
	destOpDepth int
	seq         *conflict.Seq
	operation   model.Operation
	versions    model.Revpair
}

// New constructs an edit receiver for one resolution drive.
func New(s *store.Store, ce *conflict.Engine, merger merge.Merger, pr pristine.Store, wc WorkingCopy, destOpDepth int, seq *conflict.Seq, operation model.Operation, versions model.Revpair) *Receiver {
	return &Receiver{store: s, conflict: ce, merger: merger, pristine: pr, wc: wc, destOpDepth: destOpDepth, seq: seq, operation: operation, versions: versions}
}

// AddDirectory implements spec.md §4.3's add_directory.
func (r *Receiver) AddDirectory(ctx context.Context, tx *sql.Tx, relpath string, srcInfo model.NodeInfo, shadowed bool) error {
	return r.add(ctx, tx, relpath, model.KindDir, srcInfo, shadowed)
}

// AddFile implements spec.md §4.3's add_file.
func (r *Receiver) AddFile(ctx context.Context, tx *sql.Tx, relpath string, srcInfo model.NodeInfo, shadowed bool) error {
	return r.add(ctx, tx, relpath, model.KindFile, srcInfo, shadowed)
}

func (r *Receiver) add(ctx context.Context, tx *sql.Tx, relpath string, kind model.Kind, srcInfo model.NodeInfo, shadowed bool) error {
	dst, err := r.store.DepthGetInfo(ctx, tx, relpath, r.destOpDepth)
	if err != nil {
		return err
	}

	conflicted, err := r.conflict.CheckTreeConflict(ctx, tx, relpath, model.ActionAdd, model.Revpair{}, r.versions, r.operation)
	if err != nil {
		return err
	}
	if conflicted || shadowed {
		return nil
	}
	_ = dst // dst kind = none is the expected precondition for a pure add

	exists, onDiskKind, versioned, err := r.wc.Stat(relpath)
	if err != nil {
		return err
	}

	// add_directory over an existing unversioned directory adopts it
	// rather than conflicting; any other on-disk kind there conflicts.
	// add_file conflicts on any on-disk obstruction at all, matching
	// kind or not.
	obstructed := exists && !versioned
	installNeeded := true
	if obstructed && kind == model.KindDir && onDiskKind == model.KindDir {
		obstructed = false
		installNeeded = false
	}

	if obstructed {
		if err := r.conflict.MarkTreeConflict(ctx, tx, relpath, model.ReasonUnversioned, model.ActionAdd, model.Revpair{}, r.versions, r.operation, ""); err != nil {
			return err
		}
		return r.notify(ctx, tx, relpath, model.NotifyTreeConflict, kind, model.StateUnchanged, model.StateUnchanged)
	}

	contentState := model.StateUnchanged
	if installNeeded {
		item := model.WorkItem{ID: uuid.NewString(), Path: relpath, RecordInfo: true, Seq: r.seq.Next()}
		if kind == model.KindDir {
			item.Kind = model.WorkInstallDir
		} else {
			item.Kind = model.WorkInstallFile // from_pristine left empty: materialize a placeholder
		}
		if err := r.store.WQAdd(ctx, tx, []model.WorkItem{item}); err != nil {
			return err
		}
		contentState = model.StateChanged
	}
	return r.notify(ctx, tx, relpath, model.NotifyAdd, kind, contentState, model.StateUnchanged)
}

// AlterDirectory implements spec.md §4.3's alter_directory: props only,
// children are handled by the walker's own recursion.
func (r *Receiver) AlterDirectory(ctx context.Context, tx *sql.Tx, relpath string, newProps model.Props, shadowed bool) error {
	conflicted, err := r.conflict.CheckTreeConflict(ctx, tx, relpath, model.ActionEdit, model.Revpair{}, r.versions, r.operation)
	if err != nil {
		return err
	}
	if conflicted || shadowed {
		return nil
	}
	return r.store.SetProps(ctx, tx, relpath, newProps, newProps)
}

// AlterFile implements spec.md §4.3's alter_file.
func (r *Receiver) AlterFile(ctx context.Context, tx *sql.Tx, relpath string, oldChecksum, newChecksum string, oldProps, newProps model.Props) error {
	conflicted, err := r.conflict.CheckTreeConflict(ctx, tx, relpath, model.ActionEdit, model.Revpair{}, r.versions, r.operation)
	if err != nil {
		return err
	}
	if conflicted {
		return nil
	}

	actualProps, err := r.store.ActualProps(ctx, tx, relpath, r.destOpDepth)
	if err != nil {
		return err
	}

	mergedProps, propConflict, propState := r.conflict.MergeProps(oldProps, actualProps, newProps)

	contentState := model.StateUnchanged
	var textConflict *model.ConflictSkeleton
	var items []model.WorkItem

	if oldChecksum != newChecksum {
		modified, err := r.wc.IsFileModified(relpath, oldChecksum)
		if err != nil {
			return err
		}
		if !modified {
			items = append(items, model.WorkItem{
				ID: uuid.NewString(), Kind: model.WorkInstallFile, Path: relpath,
				FromPristine: newChecksum, RecordInfo: true, Seq: r.seq.Next(),
			})
			contentState = model.StateChanged
		} else {
			oldPath, err := r.pristine.Path(oldChecksum)
			if err != nil {
				return err
			}
			newPath, err := r.pristine.Path(newChecksum)
			if err != nil {
				return err
			}
			result, err := r.merger.Merge(merge.Request{
				OldPristinePath: oldPath,
				NewPristinePath: newPath,
				WorkingPath:     r.wc.AbsPath(relpath),
				ActualProps:     actualProps,
			})
			if err != nil {
				return err
			}
			mergedFile, err := os.Open(result.MergedPath)
			if err != nil {
				return err
			}
			mergedChecksum, err := r.pristine.Put(mergedFile)
			mergedFile.Close()
			if err != nil {
				return err
			}
			items = append(items, model.WorkItem{
				ID: uuid.NewString(), Kind: model.WorkInstallFile, Path: relpath,
				FromPristine: mergedChecksum, RecordInfo: true, Seq: r.seq.Next(),
			})
			contentState = result.Outcome
			textConflict = result.Conflict
		}
	}

	if err := r.store.SetProps(ctx, tx, relpath, mergedProps, newProps); err != nil {
		return err
	}

	if textConflict != nil || propConflict != nil {
		skeleton := combineConflicts(r.operation, r.versions, textConflict, propConflict)
		markerPath := relpath + ".conflict"
		items = append(items, model.WorkItem{
			ID: uuid.NewString(), Kind: model.WorkWriteMarker, Path: markerPath,
			MarkerText: fmt.Sprintf("conflict on %s: %s", relpath, skeleton), Seq: r.seq.Next(),
		})
		skeleton.Marker = markerPath
		if err := r.store.MarkConflict(ctx, tx, relpath, *skeleton); err != nil {
			return err
		}
	}

	if err := r.store.WQAdd(ctx, tx, items); err != nil {
		return err
	}

	return r.notify(ctx, tx, relpath, model.NotifyUpdate, model.KindFile, contentState, propState)
}

// combineConflicts turns an optional text and an optional property
// conflict into one skeleton: the text conflict's when there is one
// (a property conflict beside it is then not part of the skeleton),
// otherwise the property conflict's. Per spec.md §9's open question, when
// only one side actually conflicts the reported kind reflects that
// side, and the pairing (content unchanged, property state from the
// merge) is preserved rather than invented.
func combineConflicts(operation model.Operation, versions model.Revpair, textConflict, propConflict *model.ConflictSkeleton) *model.ConflictSkeleton {
	if textConflict != nil {
		sk := *textConflict
		sk.Operation = operation
		sk.NewVersion = versions
		return &sk
	}
	sk := *propConflict
	sk.Operation = operation
	sk.NewVersion = versions
	return &sk
}

func (r *Receiver) notify(ctx context.Context, tx *sql.Tx, relpath string, action model.NotifyAction, kind model.Kind, content, prop model.ContentState) error {
	return r.store.NotifyAdd(ctx, tx, model.NotificationRecord{
		ID: uuid.NewString(), Path: relpath, Action: action, Kind: kind,
		ContentState: content, PropState: prop,
		OldRevision: r.versions.Old, NewRevision: r.versions.New,
		Seq: r.seq.Next(),
	})
}
