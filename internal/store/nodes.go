package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/svnmove/internal/errs"
	"github.com/roach88/svnmove/internal/model"
)

// DepthGetInfo reads the row for path at exactly op_depth. A missing
// row is not an error: it is the one locally-recovered condition
// spec.md §7 names, translated into a NodeInfo with Present=false
// (kind = none).
func (s *Store) DepthGetInfo(ctx context.Context, tx *sql.Tx, path string, opDepth int) (model.NodeInfo, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT presence, kind, revision, repos_relpath, checksum, properties
		FROM nodes
		WHERE wc_id = ? AND local_relpath = ? AND op_depth = ?
	`, s.wcID, path, opDepth)

	var presence, kind, reposRelpath, checksum, propsJSON string
	var revision int64
	if err := row.Scan(&presence, &kind, &revision, &reposRelpath, &checksum, &propsJSON); err != nil {
		if err == sql.ErrNoRows {
			return model.NodeInfo{Present: false, Kind: model.KindNone}, nil
		}
		return model.NodeInfo{}, fmt.Errorf("depth_get_info(%s,%d): %w", path, opDepth, err)
	}

	props, err := unmarshalProps(propsJSON)
	if err != nil {
		return model.NodeInfo{}, err
	}

	return model.NodeInfo{
		Present:      true,
		Presence:     model.Presence(presence),
		Kind:         model.Kind(kind),
		Revision:     revision,
		ReposRelpath: reposRelpath,
		Checksum:     checksum,
		Props:        props,
	}, nil
}

// GetChildren returns the sorted base names of every child of path
// visible at op_depth (i.e. whose covering layer is exactly opDepth;
// lower layers are shadowed and higher layers belong to a different
// walk side entirely).
func (s *Store) GetChildren(ctx context.Context, tx *sql.Tx, path string, opDepth int) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT local_relpath
		FROM nodes
		WHERE wc_id = ? AND parent_relpath = ? AND op_depth = ?
	`, s.wcID, path, opDepth)
	if err != nil {
		return nil, fmt.Errorf("get_children(%s,%d): %w", path, opDepth, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var relpath string
		if err := rows.Scan(&relpath); err != nil {
			return nil, fmt.Errorf("get_children(%s,%d): scan: %w", path, opDepth, err)
		}
		names = append(names, model.Base(relpath))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get_children(%s,%d): iterate: %w", path, opDepth, err)
	}
	sort.Strings(names)
	return names, nil
}

// PutNode writes (or overwrites) the row at (path, opDepth). It is
// the single write primitive the higher layers (editor, layer
// replacer) build every mutation from.
func (s *Store) PutNode(ctx context.Context, tx *sql.Tx, path string, opDepth int, info model.NodeInfo) error {
	propsJSON, err := marshalProps(info.Props)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (wc_id, local_relpath, op_depth, parent_relpath, presence, kind, revision, repos_relpath, checksum, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wc_id, local_relpath, op_depth) DO UPDATE SET
			parent_relpath = excluded.parent_relpath,
			presence = excluded.presence,
			kind = excluded.kind,
			revision = excluded.revision,
			repos_relpath = excluded.repos_relpath,
			checksum = excluded.checksum,
			properties = excluded.properties
	`, s.wcID, path, opDepth, model.Parent(path), string(info.Presence), string(info.Kind), info.Revision, info.ReposRelpath, info.Checksum, propsJSON); err != nil {
		return fmt.Errorf("put_node(%s,%d): %w", path, opDepth, err)
	}
	return nil
}

// DeleteNode removes the row at (path, opDepth) outright.
func (s *Store) DeleteNode(ctx context.Context, tx *sql.Tx, path string, opDepth int) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM nodes WHERE wc_id = ? AND local_relpath = ? AND op_depth = ?
	`, s.wcID, path, opDepth); err != nil {
		return fmt.Errorf("delete_node(%s,%d): %w", path, opDepth, err)
	}
	return nil
}

// LowestLayerAbove returns the lowest op-depth strictly greater than
// belowOpDepth that carries a row at path, or ok=false if none
// exists. This is the "lowest working layer strictly above Dd" query
// the conflict engine's anchor search needs (spec.md §4.4 step 2).
func (s *Store) LowestLayerAbove(ctx context.Context, tx *sql.Tx, path string, belowOpDepth int) (opDepth int, presence model.Presence, ok bool, err error) {
	row := tx.QueryRowContext(ctx, `
		SELECT op_depth, presence FROM nodes
		WHERE wc_id = ? AND local_relpath = ? AND op_depth > ?
		ORDER BY op_depth ASC LIMIT 1
	`, s.wcID, path, belowOpDepth)

	var d int64
	var p string
	if scanErr := row.Scan(&d, &p); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, "", false, nil
		}
		return 0, "", false, fmt.Errorf("lowest_layer_above(%s,%d): %w", path, belowOpDepth, scanErr)
	}
	return int(d), model.Presence(p), true, nil
}

// OpRootOf walks upward from path, at the fixed op-depth opDepth,
// until it finds the topmost ancestor that still carries a row at
// that same op-depth: the op-root of the layer path belongs to.
func (s *Store) OpRootOf(ctx context.Context, tx *sql.Tx, path string, opDepth int) (string, error) {
	current := path
	for {
		parent := model.Parent(current)
		if parent == current {
			return current, nil
		}
		info, err := s.DepthGetInfo(ctx, tx, parent, opDepth)
		if err != nil {
			return "", err
		}
		if info.IsNone() {
			return current, nil
		}
		if parent == "" {
			return parent, nil
		}
		current = parent
	}
}

// VerifyWriteLock fails with NotLocked unless opRoot is covered by a
// previously taken write lock. Called by the resolver before driving
// any mutation (spec.md invariant 1).
func (s *Store) VerifyWriteLock(ctx context.Context, tx *sql.Tx, opRoot string) error {
	return s.requireLocked(ctx, tx, opRoot)
}

// requireLocked fails with NotLocked unless OwnsWriteLock reports
// opRoot as locked. VerifyWriteLock is its only caller.
func (s *Store) requireLocked(ctx context.Context, tx *sql.Tx, opRoot string) error {
	locked, err := s.OwnsWriteLock(ctx, tx, opRoot)
	if err != nil {
		return err
	}
	if !locked {
		return errs.AtPath(errs.NotLocked, opRoot, "no write-lock on op-root")
	}
	return nil
}
