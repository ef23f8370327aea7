package store

import (
	"context"
	"database/sql"
	"fmt"
)

// TakeWriteLock records that the caller holds a write lock on
// opRoot. Idempotent: taking a lock already held is a no-op.
func (s *Store) TakeWriteLock(ctx context.Context, tx *sql.Tx, opRoot string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wc_locks (wc_id, local_relpath) VALUES (?, ?)
		ON CONFLICT(wc_id, local_relpath) DO NOTHING
	`, s.wcID, opRoot); err != nil {
		return fmt.Errorf("take write lock(%s): %w", opRoot, err)
	}
	return nil
}

// ReleaseWriteLock drops a previously taken write lock.
func (s *Store) ReleaseWriteLock(ctx context.Context, tx *sql.Tx, opRoot string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM wc_locks WHERE wc_id = ? AND local_relpath = ?
	`, s.wcID, opRoot); err != nil {
		return fmt.Errorf("release write lock(%s): %w", opRoot, err)
	}
	return nil
}

// OwnsWriteLock reports whether opRoot, or an ancestor of it, is
// currently locked. It is consulted through VerifyWriteLock, which the
// resolver calls on the op-roots at the start of each drive's
// transaction; the mutating store methods (PutNode, MarkConflict,
// WQAdd and the rest) do not check the lock themselves.
func (s *Store) OwnsWriteLock(ctx context.Context, tx *sql.Tx, opRoot string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT local_relpath FROM wc_locks WHERE wc_id = ?
	`, s.wcID)
	if err != nil {
		return false, fmt.Errorf("owns write lock(%s): %w", opRoot, err)
	}
	defer rows.Close()

	for rows.Next() {
		var locked string
		if err := rows.Scan(&locked); err != nil {
			return false, fmt.Errorf("owns write lock(%s): scan: %w", opRoot, err)
		}
		if locked == "" || locked == opRoot || isUnder(locked, opRoot) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// isUnder reports whether path is at or below root.
func isUnder(root, path string) bool {
	if root == path {
		return true
	}
	if root == "" {
		return true
	}
	return len(path) > len(root) && path[:len(root)] == root && path[len(root)] == '/'
}
