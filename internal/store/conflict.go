package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/svnmove/internal/errs"
	"github.com/roach88/svnmove/internal/model"
)

// ReadConflict returns the conflict skeleton recorded on path, or nil
// if none is recorded.
func (s *Store) ReadConflict(ctx context.Context, tx *sql.Tx, path string) (*model.ConflictSkeleton, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT conflict_data FROM actual WHERE wc_id = ? AND local_relpath = ?
	`, s.wcID, path)

	var data sql.NullString
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("read_conflict(%s): %w", path, err)
	}
	if !data.Valid {
		return nil, nil
	}
	return unmarshalConflict(data.String)
}

// MarkConflict records skeleton on path. Idempotent: a second call
// with an equivalent skeleton is a no-op. A call with a differing
// skeleton on a node that already carries one fails with
// ObstructedUpdate (spec.md invariant 4).
func (s *Store) MarkConflict(ctx context.Context, tx *sql.Tx, path string, skeleton model.ConflictSkeleton) error {
	existing, err := s.ReadConflict(ctx, tx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Equivalent(skeleton) {
			return nil
		}
		return errs.AtPath(errs.ObstructedUpdate, path,
			fmt.Sprintf("existing conflict %s incompatible with new %s", existing, skeleton))
	}

	data, err := marshalConflict(&skeleton)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO actual (wc_id, local_relpath, properties, conflict_data)
		VALUES (?, ?, NULL, ?)
		ON CONFLICT(wc_id, local_relpath) DO UPDATE SET conflict_data = excluded.conflict_data
	`, s.wcID, path, data); err != nil {
		return fmt.Errorf("mark_conflict(%s): %w", path, err)
	}
	return nil
}

// ClearConflict removes a previously recorded conflict on path (an
// explicit resolve, per spec.md's conflict-skeleton lifecycle).
func (s *Store) ClearConflict(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE actual SET conflict_data = NULL WHERE wc_id = ? AND local_relpath = ?
	`, s.wcID, path); err != nil {
		return fmt.Errorf("clear_conflict(%s): %w", path, err)
	}
	return nil
}

// SetProps writes actual (working) properties for path. baseline is
// the properties the destination layer will hold once the layer
// replacer runs (the source's incoming new.props); if props matches
// baseline, the actual row is cleared instead of recording a
// divergence that the replace step is about to erase on its own.
func (s *Store) SetProps(ctx context.Context, tx *sql.Tx, path string, props, baseline model.Props) error {
	if props.Equal(baseline) {
		if _, err := tx.ExecContext(ctx, `
			UPDATE actual SET properties = NULL WHERE wc_id = ? AND local_relpath = ?
		`, s.wcID, path); err != nil {
			return fmt.Errorf("set_props(%s): clear: %w", path, err)
		}
		return nil
	}

	propsJSON, err := marshalProps(props)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO actual (wc_id, local_relpath, properties, conflict_data)
		VALUES (?, ?, ?, NULL)
		ON CONFLICT(wc_id, local_relpath) DO UPDATE SET properties = excluded.properties
	`, s.wcID, path, propsJSON); err != nil {
		return fmt.Errorf("set_props(%s): %w", path, err)
	}
	return nil
}

// HasPropsOverride reports whether path carries an actual-properties
// override row, as opposed to falling back to its layer's own
// properties.
func (s *Store) HasPropsOverride(ctx context.Context, tx *sql.Tx, path string) (bool, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT properties FROM actual WHERE wc_id = ? AND local_relpath = ?
	`, s.wcID, path)

	var data sql.NullString
	err := row.Scan(&data)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("has_props_override(%s): %w", path, err)
	default:
		return data.Valid, nil
	}
}

// ActualProps returns the actual (working) properties recorded for
// path, falling back to the layer's own properties if no override
// exists.
func (s *Store) ActualProps(ctx context.Context, tx *sql.Tx, path string, opDepth int) (model.Props, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT properties FROM actual WHERE wc_id = ? AND local_relpath = ?
	`, s.wcID, path)

	var data sql.NullString
	err := row.Scan(&data)
	switch {
	case err == sql.ErrNoRows, err == nil && !data.Valid:
		info, infoErr := s.DepthGetInfo(ctx, tx, path, opDepth)
		if infoErr != nil {
			return nil, infoErr
		}
		return info.Props, nil
	case err != nil:
		return nil, fmt.Errorf("actual_props(%s): %w", path, err)
	default:
		return unmarshalProps(data.String)
	}
}
