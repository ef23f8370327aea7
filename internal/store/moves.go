package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/svnmove/internal/model"
)

// RecordMove inserts a move record. Moves are op-root entries: the
// caller is responsible for giving the destination a fresh op-depth
// equal to its own path depth and marking the source base-deleted at
// the same op-depth (spec.md §3).
func (s *Store) RecordMove(ctx context.Context, tx *sql.Tx, mv model.MoveRecord) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO moves (wc_id, dst_relpath, src_relpath, src_op_depth)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(wc_id, dst_relpath) DO UPDATE SET
			src_relpath = excluded.src_relpath,
			src_op_depth = excluded.src_op_depth
	`, s.wcID, mv.DstRelpath, mv.SrcRelpath, mv.SrcOpDepth); err != nil {
		return fmt.Errorf("record_move(%s->%s): %w", mv.SrcRelpath, mv.DstRelpath, err)
	}
	return nil
}

// ClearMove removes the move record whose destination is dst
// (break_move's linkage clear, spec.md §4.6).
func (s *Store) ClearMove(ctx context.Context, tx *sql.Tx, dst string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM moves WHERE wc_id = ? AND dst_relpath = ?
	`, s.wcID, dst); err != nil {
		return fmt.Errorf("clear_move(%s): %w", dst, err)
	}
	return nil
}

// MoveByDst returns the move record whose destination is dst, if any.
func (s *Store) MoveByDst(ctx context.Context, tx *sql.Tx, dst string) (*model.MoveRecord, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT src_relpath, src_op_depth FROM moves WHERE wc_id = ? AND dst_relpath = ?
	`, s.wcID, dst)
	var mv model.MoveRecord
	mv.DstRelpath = dst
	if err := row.Scan(&mv.SrcRelpath, &mv.SrcOpDepth); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("move_by_dst(%s): %w", dst, err)
	}
	return &mv, nil
}

// OpDepthMovedTo finds the move whose source covers path at any
// op-depth strictly greater than aboveOpDepth, returning the move's
// destination relpath, its source root, source op-root and the
// op-depth the move was recorded at. Returns ok=false if path was
// never moved away above that depth.
func (s *Store) OpDepthMovedTo(ctx context.Context, tx *sql.Tx, path string, aboveOpDepth int) (dst, srcRoot, srcOpRoot string, srcOpDepth int, ok bool, err error) {
	rows, qerr := tx.QueryContext(ctx, `
		SELECT dst_relpath, src_relpath, src_op_depth FROM moves
		WHERE wc_id = ? AND src_op_depth > ?
	`, s.wcID, aboveOpDepth)
	if qerr != nil {
		return "", "", "", 0, false, fmt.Errorf("op_depth_moved_to(%s,%d): %w", path, aboveOpDepth, qerr)
	}
	defer rows.Close()

	bestDepth := -1
	for rows.Next() {
		var d, sr string
		var sd int64
		if scanErr := rows.Scan(&d, &sr, &sd); scanErr != nil {
			return "", "", "", 0, false, fmt.Errorf("op_depth_moved_to(%s,%d): scan: %w", path, aboveOpDepth, scanErr)
		}
		if !model.IsAncestor(sr, path) {
			continue
		}
		if int(sd) > bestDepth {
			bestDepth = int(sd)
			dst = d
			srcRoot = sr
			srcOpRoot = sr
		}
	}
	if err := rows.Err(); err != nil {
		return "", "", "", 0, false, fmt.Errorf("op_depth_moved_to(%s,%d): iterate: %w", path, aboveOpDepth, err)
	}
	if bestDepth < 0 {
		return "", "", "", 0, false, nil
	}

	// The move destination corresponding to a descendant of the
	// source root is the same descendant relative to the destination.
	suffix := strings.TrimPrefix(path, srcRoot)
	suffix = strings.TrimPrefix(suffix, "/")
	if suffix != "" {
		dst = model.Join(dst, suffix)
	}
	return dst, srcRoot, srcOpRoot, bestDepth, true, nil
}

// MovesUnder returns every move record whose source lies at or under
// root, used by the bump engine to discover candidate moves inside a
// freshly updated subtree.
func (s *Store) MovesUnder(ctx context.Context, tx *sql.Tx, root string) ([]model.MoveRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT src_relpath, dst_relpath, src_op_depth FROM moves WHERE wc_id = ?
	`, s.wcID)
	if err != nil {
		return nil, fmt.Errorf("moves_under(%s): %w", root, err)
	}
	defer rows.Close()

	var out []model.MoveRecord
	for rows.Next() {
		var mv model.MoveRecord
		var depth int64
		if err := rows.Scan(&mv.SrcRelpath, &mv.DstRelpath, &depth); err != nil {
			return nil, fmt.Errorf("moves_under(%s): scan: %w", root, err)
		}
		mv.SrcOpDepth = int(depth)
		if model.IsAncestor(root, mv.SrcRelpath) {
			out = append(out, mv)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("moves_under(%s): iterate: %w", root, err)
	}
	return out, nil
}

// ExtendParentDelete records a base-delete shadow at path/opDepth so
// that a lower layer remains marked as deleted once a higher layer
// adds a new node above it (spec.md's C1 primitive of the same name).
func (s *Store) ExtendParentDelete(ctx context.Context, tx *sql.Tx, path string, kind model.Kind, opDepth int) error {
	existing, err := s.DepthGetInfo(ctx, tx, path, opDepth)
	if err != nil {
		return err
	}
	if existing.Present {
		return nil
	}
	return s.PutNode(ctx, tx, path, opDepth, model.NodeInfo{
		Present:  true,
		Presence: model.PresenceBaseDeleted,
		Kind:     kind,
	})
}

// RetractParentDelete removes a base-delete shadow row at
// path/opDepth, used when the node it shadowed is itself removed.
func (s *Store) RetractParentDelete(ctx context.Context, tx *sql.Tx, path string, opDepth int) error {
	info, err := s.DepthGetInfo(ctx, tx, path, opDepth)
	if err != nil {
		return err
	}
	if !info.Present || info.Presence != model.PresenceBaseDeleted {
		return nil
	}
	return s.DeleteNode(ctx, tx, path, opDepth)
}
