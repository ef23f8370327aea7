package harness

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/svnmove/internal/errs"
	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/store"
)

// evaluateAssertion checks one Assertion against the result of a
// drive. It reports a human-readable failure message and false when
// the assertion does not hold.
func evaluateAssertion(ctx context.Context, s *store.Store, tx *sql.Tx, result *Result, a Assertion) (string, bool) {
	switch a.Type {
	case AssertError:
		if result.DriveErr == nil {
			return fmt.Sprintf("expected error %s, drive succeeded", a.Code), false
		}
		if a.Code != "" && !errs.Is(result.DriveErr, errs.Code(a.Code)) {
			return fmt.Sprintf("expected error code %s, got %v", a.Code, result.DriveErr), false
		}
		return "", true

	case AssertNotification:
		if result.DriveErr != nil && a.Code == "" && (a.Count == nil || *a.Count > 0) {
			return fmt.Sprintf("drive failed unexpectedly: %v", result.DriveErr), false
		}
		n := countNotifications(result.Notifications, a)
		if a.Count != nil {
			if n != *a.Count {
				return fmt.Sprintf("notification %+v: expected count %d, got %d", a, *a.Count, n), false
			}
			return "", true
		}
		if n == 0 {
			return fmt.Sprintf("no notification matched %+v", a), false
		}
		return "", true

	case AssertWorkItem:
		n := countWorkItems(result.WorkItems, a)
		if a.Count != nil {
			if n != *a.Count {
				return fmt.Sprintf("work item %+v: expected count %d, got %d", a, *a.Count, n), false
			}
			return "", true
		}
		if n == 0 {
			return fmt.Sprintf("no work item matched %+v", a), false
		}
		return "", true

	case AssertConflict:
		sk, err := s.ReadConflict(ctx, tx, a.Path)
		if err != nil {
			return fmt.Sprintf("reading conflict at %s: %v", a.Path, err), false
		}
		if sk == nil {
			return fmt.Sprintf("expected conflict at %s, found none", a.Path), false
		}
		if a.Reason != "" && string(sk.Reason) != a.Reason {
			return fmt.Sprintf("conflict at %s: expected reason %s, got %s", a.Path, a.Reason, sk.Reason), false
		}
		if a.Action != "" && string(sk.Action) != a.Action {
			return fmt.Sprintf("conflict at %s: expected action %s, got %s", a.Path, a.Action, sk.Action), false
		}
		return "", true

	case AssertNoConflict:
		sk, err := s.ReadConflict(ctx, tx, a.Path)
		if err != nil {
			return fmt.Sprintf("reading conflict at %s: %v", a.Path, err), false
		}
		if sk != nil {
			return fmt.Sprintf("expected no conflict at %s, found %s", a.Path, sk), false
		}
		return "", true

	case AssertProps:
		// The visible layer is the highest op-depth holding a row for
		// the path; no layer lies deeper than the path itself.
		opDepth := model.Depth(a.Path)
		for opDepth > 0 {
			info, err := s.DepthGetInfo(ctx, tx, a.Path, opDepth)
			if err != nil {
				return fmt.Sprintf("reading node at %s: %v", a.Path, err), false
			}
			if info.Present {
				break
			}
			opDepth--
		}
		props, err := s.ActualProps(ctx, tx, a.Path, opDepth)
		if err != nil {
			return fmt.Sprintf("reading actual props at %s: %v", a.Path, err), false
		}
		want := model.Props(a.Props)
		if !props.Equal(want) {
			return fmt.Sprintf("props at %s: expected %v, got %v", a.Path, want, props), false
		}
		return "", true

	case AssertNoPropsOverride:
		override, err := s.HasPropsOverride(ctx, tx, a.Path)
		if err != nil {
			return fmt.Sprintf("reading props override at %s: %v", a.Path, err), false
		}
		if override {
			return fmt.Sprintf("expected no props override at %s, found one", a.Path), false
		}
		return "", true

	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type), false
	}
}

func countNotifications(records []model.NotificationRecord, a Assertion) int {
	n := 0
	for _, r := range records {
		if a.Path != "" && r.Path != a.Path {
			continue
		}
		if a.Action != "" && string(r.Action) != a.Action {
			continue
		}
		if a.Kind != "" && string(r.Kind) != a.Kind {
			continue
		}
		if a.ContentState != "" && string(r.ContentState) != a.ContentState {
			continue
		}
		if a.PropState != "" && string(r.PropState) != a.PropState {
			continue
		}
		n++
	}
	return n
}

func countWorkItems(items []model.WorkItem, a Assertion) int {
	n := 0
	for _, it := range items {
		if a.Path != "" && it.Path != a.Path {
			continue
		}
		if a.Kind != "" && string(it.Kind) != a.Kind {
			continue
		}
		n++
	}
	return n
}
