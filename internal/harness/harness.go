package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/svnmove/internal/merge"
	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/notify"
	"github.com/roach88/svnmove/internal/pristine"
	"github.com/roach88/svnmove/internal/resolver"
	"github.com/roach88/svnmove/internal/store"
	"github.com/roach88/svnmove/internal/workqueue"
)

// Result is the outcome of running one Scenario.
type Result struct {
	Pass          bool
	Errors        []string
	DriveErr      error
	Notifications []model.NotificationRecord
	WorkItems     []model.WorkItem
}

// recordingExecutor captures every scheduled work item in addition to
// applying it through a real FSExecutor, so assertions can inspect
// what was scheduled without re-reading the filesystem.
type recordingExecutor struct {
	inner workqueue.Executor
	items []model.WorkItem
}

func (e *recordingExecutor) Run(items []model.WorkItem) error {
	e.items = append(e.items, items...)
	return e.inner.Run(items)
}

// Run executes one scenario against a fresh working copy (a temp-dir
// sqlite store plus a temp-dir filesystem root) and checks
// the declared assertions against the outcome.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	dbPath := filepath.Join(mustTempDir(), "wc.db")
	s, err := store.Open(dbPath, 1, store.DefaultBusyTimeoutMS)
	if err != nil {
		return nil, fmt.Errorf("harness: open store: %w", err)
	}
	defer s.Close()

	wcRoot := mustTempDir()
	for relpath, content := range scenario.Disk {
		full := filepath.Join(wcRoot, filepath.FromSlash(relpath))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("harness: seeding disk fixture %s: %w", relpath, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("harness: seeding disk fixture %s: %w", relpath, err)
		}
	}

	pr := pristine.NewFSStore(mustTempDir())
	checksumByLabel := make(map[string]string, len(scenario.Pristine))
	for label, content := range scenario.Pristine {
		sum, err := pr.Put(strings.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("harness: seeding pristine %s: %w", label, err)
		}
		checksumByLabel[label] = sum
	}

	setupTx, err := s.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("harness: begin setup: %w", err)
	}
	for _, lockRoot := range scenario.Locks {
		if err := s.TakeWriteLock(ctx, setupTx, lockRoot); err != nil {
			setupTx.Rollback()
			return nil, fmt.Errorf("harness: take write lock %s: %w", lockRoot, err)
		}
	}
	for _, n := range scenario.Nodes {
		checksum := n.Checksum
		if label, ok := strings.CutPrefix(checksum, pristineRefPrefix); ok {
			checksum = checksumByLabel[label]
		}
		if err := s.PutNode(ctx, setupTx, n.Path, n.OpDepth, model.NodeInfo{
			Present:      true,
			Presence:     model.PresenceNormal,
			Kind:         model.Kind(n.Kind),
			Revision:     n.Revision,
			ReposRelpath: n.ReposRelpath,
			Checksum:     checksum,
			Props:        model.Props(n.Props),
		}); err != nil {
			setupTx.Rollback()
			return nil, fmt.Errorf("harness: seeding node %s: %w", n.Path, err)
		}
	}
	for _, mv := range scenario.Moves {
		if err := s.RecordMove(ctx, setupTx, model.MoveRecord{SrcRelpath: mv.Src, DstRelpath: mv.Dst, SrcOpDepth: mv.OpDepth}); err != nil {
			setupTx.Rollback()
			return nil, fmt.Errorf("harness: seeding move %s->%s: %w", mv.Src, mv.Dst, err)
		}
	}
	if err := setupTx.Commit(); err != nil {
		return nil, fmt.Errorf("harness: commit setup: %w", err)
	}

	rec := &recordingExecutor{inner: workqueue.NewFSExecutor(wcRoot, pr)}
	sink := &notify.CollectingSink{}
	r := resolver.New(s, merge.NewTextMerger(), pr, rec, sink, nil, resolver.DefaultWorkQueueBatch)

	var driveErr error
	switch scenario.Drive.Op {
	case "resolve":
		destOpDepth := model.Depth(scenario.Drive.Dst)
		wc := resolver.NewFSWorkingCopy(wcRoot, s, destOpDepth)
		driveErr = r.ResolveRequest(ctx, resolver.Request{
			Src:         scenario.Drive.Src,
			Dst:         scenario.Drive.Dst,
			SrcOpDepth:  scenario.Drive.SrcOpDepth,
			Operation:   model.Operation(scenario.Drive.Operation),
			Versions:    model.Revpair{Old: scenario.Drive.OldRev, New: scenario.Drive.NewRev},
			WorkingCopy: wc,
		})
	case "bump":
		driveErr = r.BumpAll(ctx, scenario.Drive.Src, model.UpdateDepth(scenario.Drive.Depth),
			model.Operation(scenario.Drive.Operation), model.Revpair{Old: scenario.Drive.OldRev, New: scenario.Drive.NewRev})
	case "break_move":
		driveErr = r.BreakMove(ctx, scenario.Drive.Src, scenario.Drive.SrcOpDepth, scenario.Drive.Dst)
	default:
		return nil, fmt.Errorf("harness: unknown drive op %q", scenario.Drive.Op)
	}

	result := &Result{
		Pass:          true,
		DriveErr:      driveErr,
		Notifications: sink.Records,
		WorkItems:     rec.items,
	}

	checkTx, err := s.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("harness: begin check: %w", err)
	}
	defer checkTx.Rollback()

	for _, a := range scenario.Assertions {
		if msg, ok := evaluateAssertion(ctx, s, checkTx, result, a); !ok {
			result.Pass = false
			result.Errors = append(result.Errors, msg)
		}
	}

	return result, nil
}

func mustTempDir() string {
	dir, err := os.MkdirTemp("", "svnmove-harness-*")
	if err != nil {
		panic(err)
	}
	return dir
}
