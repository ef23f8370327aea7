// Package workqueue defines the work-queue executor collaborator
// (spec.md §6): it reads work items in insertion order and performs
// the file effects, after the transaction that spooled them has
// committed. The default implementation is idempotent on replay:
// installing a file that already has the right content, or removing
// a path that is already gone, is a no-op rather than an error.
package workqueue

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/pristine"
)

// Executor performs the filesystem effects a resolution scheduled.
type Executor interface {
	Run(items []model.WorkItem) error
}

// FSExecutor is the default Executor: it materializes work items
// under a working-copy root on the local filesystem.
type FSExecutor struct {
	Root      string
	Pristine  pristine.Store
}

// NewFSExecutor constructs an executor rooted at wcRoot, resolving
// install_file pristine references through store.
func NewFSExecutor(wcRoot string, store pristine.Store) *FSExecutor {
	return &FSExecutor{Root: wcRoot, Pristine: store}
}

// Run applies every item in order. It does not stop at the first
// error: it collects failures and returns them joined, so that a
// partial filesystem failure doesn't strand later, unrelated items.
func (e *FSExecutor) Run(items []model.WorkItem) error {
	var errs []error
	for _, item := range items {
		if err := e.runOne(item); err != nil {
			errs = append(errs, fmt.Errorf("work item %s (%s): %w", item.ID, item.Kind, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return joinErrors(errs)
}

func (e *FSExecutor) runOne(item model.WorkItem) error {
	full := filepath.Join(e.Root, filepath.FromSlash(item.Path))

	switch item.Kind {
	case model.WorkInstallDir:
		return os.MkdirAll(full, 0o755)

	case model.WorkInstallFile:
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if item.FromPristine == "" {
			// record_info=true with no pristine reference materializes
			// an empty file, per spec.md §4.3 add_file step 4.
			_, err := os.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			return err
		}
		src, err := e.Pristine.Path(item.FromPristine)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return os.WriteFile(full, data, 0o644)

	case model.WorkRemoveFile, model.WorkRemoveDir:
		err := os.RemoveAll(full)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil

	case model.WorkWriteMarker:
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		return os.WriteFile(full, []byte(item.MarkerText), 0o644)

	default:
		return fmt.Errorf("unknown work item kind %q", item.Kind)
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d work items failed:", len(errs))
	for _, e := range errs {
		msg += "\n  " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
