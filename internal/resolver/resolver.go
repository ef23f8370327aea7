// Package resolver ties the six components together: it opens the
// outer transaction, drives the walker and layer replacer, commits,
// and only then flushes the work-item and notification spools to the
// outside world (spec.md invariant 5).
package resolver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/svnmove/internal/bump"
	"github.com/roach88/svnmove/internal/conflict"
	"github.com/roach88/svnmove/internal/editor"
	"github.com/roach88/svnmove/internal/errs"
	"github.com/roach88/svnmove/internal/layer"
	"github.com/roach88/svnmove/internal/merge"
	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/notify"
	"github.com/roach88/svnmove/internal/pristine"
	"github.com/roach88/svnmove/internal/store"
	"github.com/roach88/svnmove/internal/walk"
	"github.com/roach88/svnmove/internal/workqueue"
)

// Request describes one update-move resolution drive.
type Request struct {
	Src        string
	Dst        string
	SrcOpDepth int
	Operation  model.Operation
	Versions   model.Revpair

	WorkingCopy editor.WorkingCopy
}

// DefaultWorkQueueBatch is the batch size New applies when a caller
// passes 0, matching config.Default's workqueue.batch_size.
const DefaultWorkQueueBatch = 64

// Resolver drives Resolve, BumpAll and BreakMove against one store.
type Resolver struct {
	store     *store.Store
	merger    merge.Merger
	pristine  pristine.Store
	executor  workqueue.Executor
	sink      notify.Sink
	cancel    walk.Cancel
	batchSize int
}

// New constructs a resolver. executor and sink may be nil: in that
// case the drained work items/notifications are simply discarded
// after commit (useful for dry runs and tests that only check store
// state). batchSize caps how many work items are handed to executor
// per Run call; 0 falls back to DefaultWorkQueueBatch.
func New(s *store.Store, merger merge.Merger, pr pristine.Store, executor workqueue.Executor, sink notify.Sink, cancel walk.Cancel, batchSize int) *Resolver {
	if batchSize <= 0 {
		batchSize = DefaultWorkQueueBatch
	}
	return &Resolver{store: s, merger: merger, pristine: pr, executor: executor, sink: sink, cancel: cancel, batchSize: batchSize}
}

// Resolve is the resolver's public entry point, implementing spec.md
// §2's control flow: given a tree-conflict victim path at a move
// source, it loads the conflict descriptor C1 recorded there,
// resolves the move destination via op_depth_moved_to, and only then
// drives the full resolution. wc is bound to the resolved destination
// depth before the drive begins.
func (r *Resolver) Resolve(ctx context.Context, victim string, wc *FSWorkingCopy) error {
	req, err := r.requestForVictim(ctx, victim)
	if err != nil {
		return err
	}
	wc.destOpDepth = model.Depth(req.Dst)
	req.WorkingCopy = wc
	return r.ResolveRequest(ctx, *req)
}

// requestForVictim resolves a victim path into a full Request by
// reading its conflict skeleton and locating its move destination.
func (r *Resolver) requestForVictim(ctx context.Context, victim string) (*Request, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	skeleton, err := r.store.ReadConflict(ctx, tx, victim)
	if err != nil {
		return nil, err
	}
	if skeleton == nil {
		return nil, errs.AtPath(errs.NotInConflict, victim, "no tree conflict recorded at this path")
	}
	if skeleton.Operation != model.OperationUpdate && skeleton.Operation != model.OperationSwitch {
		return nil, errs.AtPath(errs.UnsupportedConflict, victim,
			fmt.Sprintf("conflict operation %q is neither update nor switch", skeleton.Operation))
	}

	dst, _, _, srcOpDepth, ok, err := r.store.OpDepthMovedTo(ctx, tx, victim, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.AtPath(errs.NotMovedAway, victim, "victim has no recorded move destination")
	}

	return &Request{
		Src:        victim,
		Dst:        dst,
		SrcOpDepth: srcOpDepth,
		Operation:  skeleton.Operation,
		Versions:   skeleton.NewVersion,
	}, nil
}

// ResolveRequest is the low-level drive primitive Resolve builds on:
// mixed-revision and switched-subtree rejection happen in a separate
// read-only transaction, before the drive's own transaction opens
// (spec.md §9 / SPEC_FULL.md §C.3); the walk, the
// conflict engine and the layer replacer all run inside one
// transaction; the spools are flushed only after that transaction
// commits successfully. Exported for scenario harnesses that need to
// drive a resolution from an already-known Request rather than a
// recorded conflict; production callers should use Resolve.
func (r *Resolver) ResolveRequest(ctx context.Context, req Request) error {
	if err := r.checkSourceConsistency(ctx, req.Src, req.SrcOpDepth); err != nil {
		return err
	}

	destOpDepth := model.Depth(req.Dst)

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.store.VerifyWriteLock(ctx, tx, req.Src); err != nil {
		return err
	}
	if err := r.store.VerifyWriteLock(ctx, tx, req.Dst); err != nil {
		return err
	}

	if fsWC, ok := req.WorkingCopy.(*FSWorkingCopy); ok {
		fsWC.BindTx(ctx, tx)
	}

	seq := &conflict.Seq{}
	tracker := conflict.NewRootTracker()
	ce := conflict.New(r.store, destOpDepth, tracker, seq)
	rec := editor.New(r.store, ce, r.merger, r.pristine, req.WorkingCopy, destOpDepth, seq, req.Operation, req.Versions)
	driver := walk.New(r.store, rec, req.SrcOpDepth, destOpDepth, r.cancel)

	if err := driver.Walk(ctx, tx, req.Src, req.Dst, false); err != nil {
		return err
	}

	replacer := layer.New(r.store, req.SrcOpDepth, destOpDepth)
	if err := replacer.Replace(ctx, tx, req.Src, req.Dst); err != nil {
		return err
	}

	return r.commitAndFlush(ctx, tx, &committed)
}

// BumpAll tries to fast-forward every move rooted under updatedRoot
// without a full editor drive (spec.md §4.6).
func (r *Resolver) BumpAll(ctx context.Context, updatedRoot string, depth model.UpdateDepth, operation model.Operation, versions model.Revpair) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.store.VerifyWriteLock(ctx, tx, updatedRoot); err != nil {
		return err
	}

	ce := conflict.New(r.store, 0, conflict.NewRootTracker(), &conflict.Seq{})
	engine := bump.New(r.store, ce, operation, versions)
	if err := engine.BumpAll(ctx, tx, updatedRoot, depth); err != nil {
		return err
	}

	return r.commitAndFlush(ctx, tx, &committed)
}

// BreakMove clears the move linkage between src and dst, per spec.md
// §4.6 and SPEC_FULL.md §C.1.
func (r *Resolver) BreakMove(ctx context.Context, src string, srcOpDepth int, dst string) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.store.VerifyWriteLock(ctx, tx, dst); err != nil {
		return err
	}

	ce := conflict.New(r.store, 0, conflict.NewRootTracker(), &conflict.Seq{})
	engine := bump.New(r.store, ce, model.OperationUpdate, model.Revpair{})
	if err := engine.BreakMove(ctx, tx, src, srcOpDepth, dst); err != nil {
		return err
	}

	return r.commitAndFlush(ctx, tx, &committed)
}

func (r *Resolver) commitAndFlush(ctx context.Context, tx *sql.Tx, committed *bool) error {
	workItems, err := r.store.DrainWorkQueue(ctx, tx)
	if err != nil {
		return err
	}
	notifications, err := r.store.DrainNotifications(ctx, tx)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	*committed = true

	if r.executor != nil {
		for len(workItems) > 0 {
			n := r.batchSize
			if n > len(workItems) {
				n = len(workItems)
			}
			if err := r.executor.Run(workItems[:n]); err != nil {
				return err
			}
			workItems = workItems[n:]
		}
	}
	if r.sink != nil {
		for _, n := range notifications {
			if err := r.sink.Notify(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkSourceConsistency implements invariant 2: a move is
// single-revision and single-op-depth at the source. It runs in its
// own read-only transaction, before the mutating drive opens one.
func (r *Resolver) checkSourceConsistency(ctx context.Context, src string, srcOpDepth int) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rootInfo, err := r.store.DepthGetInfo(ctx, tx, src, srcOpDepth)
	if err != nil {
		return err
	}
	if rootInfo.IsNone() {
		return nil
	}

	return r.checkSubtreeConsistency(ctx, tx, src, srcOpDepth, src, rootInfo.Revision, rootInfo.ReposRelpath)
}

func (r *Resolver) checkSubtreeConsistency(ctx context.Context, tx *sql.Tx, path string, opDepth int, root string, rootRevision int64, rootReposRelpath string) error {
	info, err := r.store.DepthGetInfo(ctx, tx, path, opDepth)
	if err != nil {
		return err
	}
	if info.IsNone() {
		return nil
	}

	if info.Revision != rootRevision {
		return errs.AtPath(errs.MixedRevisionSource, path, "move source spans multiple revisions")
	}

	suffix := strings.TrimPrefix(path, root)
	suffix = strings.TrimPrefix(suffix, "/")
	expectedReposRelpath := rootReposRelpath
	if suffix != "" {
		expectedReposRelpath = model.Join(rootReposRelpath, suffix)
	}
	if expectedReposRelpath != info.ReposRelpath {
		return errs.AtPath(errs.SwitchedSubtree, path, "move source is under a switched URL")
	}

	if info.Kind != model.KindDir {
		return nil
	}
	children, err := r.store.GetChildren(ctx, tx, path, opDepth)
	if err != nil {
		return err
	}
	for _, name := range children {
		if err := r.checkSubtreeConsistency(ctx, tx, model.Join(path, name), opDepth, root, rootRevision, rootReposRelpath); err != nil {
			return err
		}
	}
	return nil
}
