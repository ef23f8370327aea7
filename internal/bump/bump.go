// Package bump is the C6 Bump Engine: it tries to fast-forward a
// move destination that sits beneath a bulk base update without
// running the full tree walker, and implements break_move, which
// drops move linkage without touching content.
package bump

import (
	"context"
	"database/sql"

	"github.com/roach88/svnmove/internal/conflict"
	"github.com/roach88/svnmove/internal/layer"
	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/store"
)

// Engine is C6.
type Engine struct {
	store     *store.Store
	conflict  *conflict.Engine
	operation model.Operation
	versions  model.Revpair
}

// New constructs a bump engine for one resolution drive.
func New(s *store.Store, ce *conflict.Engine, operation model.Operation, versions model.Revpair) *Engine {
	return &Engine{store: s, conflict: ce, operation: operation, versions: versions}
}

// BumpAll discovers every move rooted at or under updatedRoot and
// tries to bump each one, per spec.md §4.6.
func (e *Engine) BumpAll(ctx context.Context, tx *sql.Tx, updatedRoot string, depth model.UpdateDepth) error {
	moves, err := e.store.MovesUnder(ctx, tx, updatedRoot)
	if err != nil {
		return err
	}
	for _, mv := range moves {
		if err := e.bumpOne(ctx, tx, mv, depth); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) bumpOne(ctx context.Context, tx *sql.Tx, mv model.MoveRecord, depth model.UpdateDepth) error {
	if existing, err := e.store.ReadConflict(ctx, tx, mv.SrcRelpath); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	_, _, entangled, err := e.store.LowestLayerAbove(ctx, tx, mv.SrcRelpath, mv.SrcOpDepth)
	if err != nil {
		return err
	}

	sufficient := false
	if !entangled {
		sufficient, err = e.depthSuffices(ctx, tx, mv.SrcRelpath, mv.SrcOpDepth, depth)
		if err != nil {
			return err
		}
	}

	if entangled || !sufficient {
		return e.conflict.MarkTreeConflict(ctx, tx, mv.SrcRelpath, model.ReasonEdited, model.ActionEdit,
			model.Revpair{}, e.versions, e.operation, "")
	}

	destOpDepth := model.Depth(mv.DstRelpath)
	replacer := layer.New(e.store, mv.SrcOpDepth, destOpDepth)
	if err := replacer.Replace(ctx, tx, mv.SrcRelpath, mv.DstRelpath); err != nil {
		return err
	}

	return e.BumpAll(ctx, tx, mv.DstRelpath, depth)
}

// depthSuffices implements spec.md §4.6 step 2: "empty" suffices only
// if src has no children at srcOpDepth; "files" suffices only if none
// of its immediate children are directories; "infinity" always
// suffices.
func (e *Engine) depthSuffices(ctx context.Context, tx *sql.Tx, src string, srcOpDepth int, depth model.UpdateDepth) (bool, error) {
	if depth == model.UpdateDepthInfinity {
		return true, nil
	}

	children, err := e.store.GetChildren(ctx, tx, src, srcOpDepth)
	if err != nil {
		return false, err
	}
	if depth == model.UpdateDepthEmpty {
		return len(children) == 0, nil
	}

	// depth == files: no immediate child may be a directory.
	for _, name := range children {
		info, err := e.store.DepthGetInfo(ctx, tx, model.Join(src, name), srcOpDepth)
		if err != nil {
			return false, err
		}
		if info.Kind == model.KindDir {
			return false, nil
		}
	}
	return true, nil
}

// BreakMove clears the move linkage between src and dst, leaving
// content on both sides intact, and recurses into any move whose
// source lies under dst — the moved-away children of the destination
// being broken (mirroring break_moved_away_children_internal).
func (e *Engine) BreakMove(ctx context.Context, tx *sql.Tx, src string, srcOpDepth int, dst string) error {
	children, err := e.store.MovesUnder(ctx, tx, dst)
	if err != nil {
		return err
	}

	if err := e.store.ClearMove(ctx, tx, dst); err != nil {
		return err
	}

	for _, child := range children {
		if err := e.BreakMove(ctx, tx, child.SrcRelpath, child.SrcOpDepth, child.DstRelpath); err != nil {
			return err
		}
	}
	return nil
}
