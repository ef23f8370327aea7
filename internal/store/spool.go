package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/svnmove/internal/model"
)

// WQAdd appends work items to the transaction-scoped work-queue
// spool, in order. Rows are meaningless outside the enclosing
// transaction until it commits (spec.md §5, "shared resources").
func (s *Store) WQAdd(ctx context.Context, tx *sql.Tx, items []model.WorkItem) error {
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO work_queue (wc_id, seq, item_id, kind, path, from_pristine, record_info, marker_text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, s.wcID, item.Seq, item.ID, string(item.Kind), item.Path, item.FromPristine, boolToInt(item.RecordInfo), item.MarkerText); err != nil {
			return fmt.Errorf("wq_add(%s): %w", item.Path, err)
		}
	}
	return nil
}

// NotifyAdd appends a notification record to the spool.
func (s *Store) NotifyAdd(ctx context.Context, tx *sql.Tx, record model.NotificationRecord) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (wc_id, seq, notify_id, path, action, kind, content_state, prop_state, old_revision, new_revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.wcID, record.Seq, record.ID, record.Path, string(record.Action), string(record.Kind),
		string(record.ContentState), string(record.PropState), record.OldRevision, record.NewRevision); err != nil {
		return fmt.Errorf("notify_add(%s): %w", record.Path, err)
	}
	return nil
}

// DrainWorkQueue returns every spooled work item in insertion (seq)
// order and deletes them from the spool. The resolver calls it inside
// the drive's transaction just before committing, and hands the items
// to the external executor only after the commit succeeds.
func (s *Store) DrainWorkQueue(ctx context.Context, tx *sql.Tx) ([]model.WorkItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT item_id, kind, path, from_pristine, record_info, marker_text, seq
		FROM work_queue WHERE wc_id = ? ORDER BY seq ASC, id ASC
	`, s.wcID)
	if err != nil {
		return nil, fmt.Errorf("drain_work_queue: %w", err)
	}
	var items []model.WorkItem
	for rows.Next() {
		var it model.WorkItem
		var kind string
		var recordInfo int
		if err := rows.Scan(&it.ID, &kind, &it.Path, &it.FromPristine, &recordInfo, &it.MarkerText, &it.Seq); err != nil {
			rows.Close()
			return nil, fmt.Errorf("drain_work_queue: scan: %w", err)
		}
		it.Kind = model.WorkItemKind(kind)
		it.RecordInfo = recordInfo != 0
		items = append(items, it)
	}
	closeErr := rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drain_work_queue: iterate: %w", err)
	}
	if closeErr != nil {
		return nil, closeErr
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM work_queue WHERE wc_id = ?`, s.wcID); err != nil {
		return nil, fmt.Errorf("drain_work_queue: truncate: %w", err)
	}
	return items, nil
}

// DrainNotifications returns every spooled notification in insertion
// order and deletes them from the spool.
func (s *Store) DrainNotifications(ctx context.Context, tx *sql.Tx) ([]model.NotificationRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT notify_id, path, action, kind, content_state, prop_state, old_revision, new_revision, seq
		FROM notifications WHERE wc_id = ? ORDER BY seq ASC, id ASC
	`, s.wcID)
	if err != nil {
		return nil, fmt.Errorf("drain_notifications: %w", err)
	}
	var records []model.NotificationRecord
	for rows.Next() {
		var rec model.NotificationRecord
		var action, kind, content, prop string
		if err := rows.Scan(&rec.ID, &rec.Path, &action, &kind, &content, &prop, &rec.OldRevision, &rec.NewRevision, &rec.Seq); err != nil {
			rows.Close()
			return nil, fmt.Errorf("drain_notifications: scan: %w", err)
		}
		rec.Action = model.NotifyAction(action)
		rec.Kind = model.Kind(kind)
		rec.ContentState = model.ContentState(content)
		rec.PropState = model.PropState(prop)
		records = append(records, rec)
	}
	closeErr := rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drain_notifications: iterate: %w", err)
	}
	if closeErr != nil {
		return nil, closeErr
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE wc_id = ?`, s.wcID); err != nil {
		return nil, fmt.Errorf("drain_notifications: truncate: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
