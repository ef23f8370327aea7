// Package conflict is the C4 Conflict Engine: it detects, classifies
// and records tree/text/property conflicts, and performs the
// three-way property merge that alter_file and alter_directory
// depend on.
package conflict

import (
	"context"
	"database/sql"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/store"
)

// Engine is C4. It is constructed once per resolution drive and
// remembers, across the whole walk, every conflict root raised so
// far (spec.md §4.3's "receiver invariant").
type Engine struct {
	store       *store.Store
	destOpDepth int
	tracker     *RootTracker
	seq         *Seq
}

// Seq is the shared monotonic sequence source for notifications and
// work items produced during one drive, so that both spools preserve
// walk order even though they're written by different components.
type Seq struct{ n int64 }

// Next returns the next sequence number.
func (s *Seq) Next() int64 {
	s.n++
	return s.n
}

// New constructs a conflict engine bound to one drive's destination
// op-depth.
func New(s *store.Store, destOpDepth int, tracker *RootTracker, seq *Seq) *Engine {
	return &Engine{store: s, destOpDepth: destOpDepth, tracker: tracker, seq: seq}
}

// CheckTreeConflict implements spec.md §4.4's check_tree_conflict. It
// returns true if relpath is (or falls under) a raised tree conflict;
// callers other than the one that raises it must treat that as "stop,
// this branch is already conflicted."
func (e *Engine) CheckTreeConflict(ctx context.Context, tx *sql.Tx, relpath string, action model.ConflictAction, oldVersion, newVersion model.Revpair, operation model.Operation) (bool, error) {
	if e.tracker.IsUnderRoot(relpath) {
		return true, nil
	}

	opDepth, _, ok, err := e.store.LowestLayerAbove(ctx, tx, relpath, e.destOpDepth)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	anchor, err := e.store.OpRootOf(ctx, tx, relpath, opDepth)
	if err != nil {
		return false, err
	}

	reason := model.ReasonDeleted
	srcOpRoot := ""
	if _, _, movedSrcRoot, _, movedOK, mErr := e.store.OpDepthMovedTo(ctx, tx, anchor, e.destOpDepth); mErr != nil {
		return false, mErr
	} else if movedOK {
		reason = model.ReasonMovedAway
		srcOpRoot = movedSrcRoot
	}

	if err := e.MarkTreeConflict(ctx, tx, anchor, reason, action, oldVersion, newVersion, operation, srcOpRoot); err != nil {
		return false, err
	}
	return true, nil
}

// MarkTreeConflict composes and persists a tree-conflict skeleton at
// anchor, recording it as the current conflict root for the rest of
// the walk (spec.md §4.4's mark_tree_conflict).
func (e *Engine) MarkTreeConflict(ctx context.Context, tx *sql.Tx, anchor string, reason model.ConflictReason, action model.ConflictAction, oldVersion, newVersion model.Revpair, operation model.Operation, srcOpRoot string) error {
	skeleton := model.ConflictSkeleton{
		Kind:       model.ConflictKindTree,
		Operation:  operation,
		OldVersion: oldVersion,
		NewVersion: newVersion,
		Reason:     reason,
		Action:     action,
		SrcOpRoot:  srcOpRoot,
	}
	if err := e.store.MarkConflict(ctx, tx, anchor, skeleton); err != nil {
		return err
	}
	e.tracker.MarkRoot(anchor)
	return nil
}

// MergeProps performs the three-way property merge described in
// spec.md §4.4: base = old.props, merge-left = actual, merge-right =
// new.props. Values are NFC-normalized before comparison so that
// differently-composed but canonically-equal strings never spuriously
// conflict.
//
// Returns the merged properties (the caller records them as the
// node's actual, working properties), an
// optional property conflict skeleton, and the property state to
// report on the notification.
func (e *Engine) MergeProps(oldProps, actualProps, newProps model.Props) (model.Props, *model.ConflictSkeleton, model.PropState) {
	merged := actualProps.Clone()
	if merged == nil {
		merged = model.Props{}
	}
	var conflicted []string

	names := propNameUnion(oldProps, actualProps, newProps)
	for _, name := range names {
		oldVal, oldHas := oldProps[name]
		actVal, actHas := actualProps[name]
		newVal, newHas := newProps[name]

		oldNorm, actNorm, newNorm := normalize(oldVal), normalize(actVal), normalize(newVal)

		localChanged := oldHas != actHas || oldNorm != actNorm
		incomingChanged := oldHas != newHas || oldNorm != newNorm

		switch {
		case !incomingChanged:
			// New side didn't touch it; keep whatever actual already has.
		case !localChanged:
			// Only the incoming side changed: take it.
			if newHas {
				merged[name] = newVal
			} else {
				delete(merged, name)
			}
		case actNorm == newNorm && actHas == newHas:
			// Both sides converged on the same value.
		default:
			conflicted = append(conflicted, name)
		}
	}

	if len(conflicted) > 0 {
		return merged, &model.ConflictSkeleton{
			Kind:   model.ConflictKindProperty,
			Reason: model.ReasonEdited,
			Action: model.ActionEdit,
		}, model.StateConflicted
	}

	if !merged.Equal(newProps) {
		return merged, nil, model.StateMerged
	}
	if !merged.Equal(actualProps) {
		return merged, nil, model.StateChanged
	}
	return merged, nil, model.StateUnchanged
}

func normalize(s string) string {
	return norm.NFC.String(s)
}

func propNameUnion(sets ...model.Props) []string {
	seen := map[string]bool{}
	var names []string
	for _, set := range sets {
		for name := range set {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
