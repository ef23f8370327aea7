package conflict

import "github.com/roach88/svnmove/internal/model"

// RootTracker remembers the tree-conflict roots raised during one
// walk. Exactly one tree conflict is raised per branch (spec.md
// invariant 3): once a root is marked, every path at or under it is
// treated as already conflicted, suppressing nested raises.
//
// Unlike a set of exact paths, membership is a path-prefix test,
// mirroring how a single conflict on a directory covers its entire
// subtree.
type RootTracker struct {
	roots []string
}

// NewRootTracker creates an empty tracker for a fresh walk.
func NewRootTracker() *RootTracker {
	return &RootTracker{}
}

// IsUnderRoot reports whether relpath is at or beneath any
// previously marked conflict root.
func (t *RootTracker) IsUnderRoot(relpath string) bool {
	for _, root := range t.roots {
		if model.IsAncestor(root, relpath) {
			return true
		}
	}
	return false
}

// MarkRoot records a newly raised conflict root.
func (t *RootTracker) MarkRoot(relpath string) {
	t.roots = append(t.roots, relpath)
}

// Roots returns the conflict roots raised so far, for diagnostics and
// tests.
func (t *RootTracker) Roots() []string {
	out := make([]string, len(t.roots))
	copy(out, t.roots)
	return out
}
