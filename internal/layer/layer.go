// Package layer is the C5 Layer Replacer: after the walk completes,
// it rewrites the destination's single op-depth layer so that it
// mirrors the source's layer exactly (spec.md invariant 6), while
// every higher destination layer — local adds, moves, deletes stacked
// on top of the destination op-root — is left untouched.
package layer

import (
	"context"
	"database/sql"

	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/store"
)

// Replacer is C5.
type Replacer struct {
	store       *store.Store
	srcOpDepth  int
	destOpDepth int
}

// New constructs a layer replacer bound to one source/destination
// op-depth pair.
func New(s *store.Store, srcOpDepth, destOpDepth int) *Replacer {
	return &Replacer{store: s, srcOpDepth: srcOpDepth, destOpDepth: destOpDepth}
}

// Replace implements spec.md §4.5: for every path in the source layer
// rooted at src, copy the row into the destination op-depth at the
// mapped path under dst, then extend any base-delete shadow that
// would otherwise be left uncovered.
func (r *Replacer) Replace(ctx context.Context, tx *sql.Tx, src, dst string) error {
	paths, err := r.sourceSubtree(ctx, tx, src)
	if err != nil {
		return err
	}

	for _, srcPath := range paths {
		dstPath := remap(src, dst, srcPath)
		if err := r.store.CopyNodeMove(ctx, tx, srcPath, r.srcOpDepth, dstPath, r.destOpDepth, model.Parent(dstPath)); err != nil {
			return err
		}
	}

	return r.extendShadows(ctx, tx, dst, paths, src)
}

// sourceSubtree collects src and every descendant carrying a row at
// srcOpDepth, depth-first, so that parents are copied before their
// children.
func (r *Replacer) sourceSubtree(ctx context.Context, tx *sql.Tx, src string) ([]string, error) {
	info, err := r.store.DepthGetInfo(ctx, tx, src, r.srcOpDepth)
	if err != nil {
		return nil, err
	}
	if info.IsNone() {
		return nil, nil
	}

	paths := []string{src}
	if info.Kind != model.KindDir {
		return paths, nil
	}

	children, err := r.store.GetChildren(ctx, tx, src, r.srcOpDepth)
	if err != nil {
		return nil, err
	}
	for _, name := range children {
		sub, err := r.sourceSubtree(ctx, tx, model.Join(src, name))
		if err != nil {
			return nil, err
		}
		paths = append(paths, sub...)
	}
	return paths, nil
}

// extendShadows walks every path strictly under dst that the source
// subtree did *not* cover and, where the destination layer still
// carries a live row there, replaces it with a base-delete shadow so that
// the replaced layer doesn't resurrect content the source no longer
// has (spec.md §4.5 step 2).
func (r *Replacer) extendShadows(ctx context.Context, tx *sql.Tx, dst string, copied []string, src string) error {
	covered := make(map[string]bool, len(copied))
	for _, p := range copied {
		covered[remap(src, dst, p)] = true
	}

	var walkCovered func(path string) error
	walkCovered = func(path string) error {
		children, err := r.store.GetChildren(ctx, tx, path, r.destOpDepth)
		if err != nil {
			return err
		}
		for _, name := range children {
			child := model.Join(path, name)
			if !covered[child] {
				info, err := r.store.DepthGetInfo(ctx, tx, child, r.destOpDepth)
				if err != nil {
					return err
				}
				if info.Present && info.Presence != model.PresenceBaseDeleted {
					if err := r.store.ReplaceWithBaseDeleted(ctx, tx, child, r.destOpDepth); err != nil {
						return err
					}
				}
			}
			if err := walkCovered(child); err != nil {
				return err
			}
		}
		return nil
	}
	return walkCovered(dst)
}

// remap translates a path rooted at src into the equivalent path
// rooted at dst.
func remap(src, dst, path string) string {
	if path == src {
		return dst
	}
	suffix := path[len(src):]
	if len(suffix) > 0 && suffix[0] == '/' {
		suffix = suffix[1:]
	}
	return model.Join(dst, suffix)
}
