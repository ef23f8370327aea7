package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/svnmove/internal/model"
)

// The primitives in this file rewrite op-depth layers. The layer
// replacer (C5, package layer) uses CopyNodeMove and
// ReplaceWithBaseDeleted to make the destination's layer mirror the
// source's; the tree walker uses DeleteNoLowerLayer for its leaf
// delete; the edit receiver's delete uses DeleteWorkingOpDepth and
// UpdateOpDepthRecursive.

// CopyNodeMove copies the row at (src, srcOpDepth) into
// (dst, dstOpDepth), rewriting parent_relpath to parentDst. Used to
// mirror a source-layer row into the destination during a bump or a
// full layer replace.
func (s *Store) CopyNodeMove(ctx context.Context, tx *sql.Tx, src string, srcOpDepth int, dst string, dstOpDepth int, parentDst string) error {
	info, err := s.DepthGetInfo(ctx, tx, src, srcOpDepth)
	if err != nil {
		return err
	}
	if info.IsNone() {
		return fmt.Errorf("copy_node_move(%s,%d -> %s,%d): source row absent", src, srcOpDepth, dst, dstOpDepth)
	}
	_ = parentDst // parent_relpath is derived from dst by PutNode
	return s.PutNode(ctx, tx, dst, dstOpDepth, info)
}

// DeleteNoLowerLayer removes the row at (path, opDepth). If a layer
// survives at opDepthBelow, it is left untouched (the node becomes
// visible again at that lower layer, which is the desired behavior
// for a leaf delete during the walk); if none does, RetractParentDelete
// is applied to path at opDepthBelow.
func (s *Store) DeleteNoLowerLayer(ctx context.Context, tx *sql.Tx, path string, opDepth int, opDepthBelow int) error {
	if err := s.DeleteNode(ctx, tx, path, opDepth); err != nil {
		return err
	}
	lower, err := s.DepthGetInfo(ctx, tx, path, opDepthBelow)
	if err != nil {
		return err
	}
	if lower.IsNone() {
		return s.RetractParentDelete(ctx, tx, path, opDepthBelow)
	}
	return nil
}

// ReplaceWithBaseDeleted overwrites the row at (path, opDepth) with a
// base-deleted shadow row, preserving only its kind.
func (s *Store) ReplaceWithBaseDeleted(ctx context.Context, tx *sql.Tx, path string, opDepth int) error {
	info, err := s.DepthGetInfo(ctx, tx, path, opDepth)
	if err != nil {
		return err
	}
	kind := info.Kind
	return s.PutNode(ctx, tx, path, opDepth, model.NodeInfo{
		Present:  true,
		Presence: model.PresenceBaseDeleted,
		Kind:     kind,
	})
}

// DeleteWorkingOpDepth removes every row at path whose op-depth is
// strictly above opDepth: the "delete the working rows above this
// op-depth" step of the delete/all-deletes tree-conflict case
// (spec.md §4.3).
func (s *Store) DeleteWorkingOpDepth(ctx context.Context, tx *sql.Tx, path string, opDepth int) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM nodes WHERE wc_id = ? AND local_relpath = ? AND op_depth > ?
	`, s.wcID, path, opDepth); err != nil {
		return fmt.Errorf("delete_working_op_depth(%s,%d): %w", path, opDepth, err)
	}
	return nil
}

// UpdateOpDepthRecursive rewrites the op-depth of path and every one
// of its descendants from fromOpDepth to toOpDepth: used to reparent
// a modified layer to a shallower op-depth, converting a move into a
// copy (spec.md §4.3, delete/edited case).
func (s *Store) UpdateOpDepthRecursive(ctx context.Context, tx *sql.Tx, path string, fromOpDepth, toOpDepth int) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT local_relpath FROM nodes
		WHERE wc_id = ? AND op_depth = ? AND (local_relpath = ? OR local_relpath LIKE ? ESCAPE '\')
	`, s.wcID, fromOpDepth, path, likePrefix(path)+"%")
	if err != nil {
		return fmt.Errorf("update_op_depth_recursive(%s,%d->%d): %w", path, fromOpDepth, toOpDepth, err)
	}
	var relpaths []string
	for rows.Next() {
		var rp string
		if err := rows.Scan(&rp); err != nil {
			rows.Close()
			return fmt.Errorf("update_op_depth_recursive(%s,%d->%d): scan: %w", path, fromOpDepth, toOpDepth, err)
		}
		relpaths = append(relpaths, rp)
	}
	closeErr := rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("update_op_depth_recursive(%s,%d->%d): iterate: %w", path, fromOpDepth, toOpDepth, err)
	}
	if closeErr != nil {
		return closeErr
	}

	for _, rp := range relpaths {
		info, err := s.DepthGetInfo(ctx, tx, rp, fromOpDepth)
		if err != nil {
			return err
		}
		if info.IsNone() {
			continue
		}
		if err := s.PutNode(ctx, tx, rp, toOpDepth, info); err != nil {
			return err
		}
		if err := s.DeleteNode(ctx, tx, rp, fromOpDepth); err != nil {
			return err
		}
	}
	return nil
}

// likePrefix escapes a relpath for use as a LIKE prefix pattern.
func likePrefix(path string) string {
	esc := make([]byte, 0, len(path)+2)
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '%' || c == '_' || c == '\\' {
			esc = append(esc, '\\')
		}
		esc = append(esc, c)
	}
	esc = append(esc, '/')
	return string(esc)
}
