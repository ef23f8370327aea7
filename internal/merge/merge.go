// Package merge defines the Merger collaborator (spec.md §6): given
// the old and new pristine content plus the locally modified working
// file, produce a merged result or a text conflict. The default
// implementation is a three-way text merge built on
// github.com/sergi/go-diff's diffmatchpatch, applying the old->new
// patch set to the working text.
package merge

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/roach88/svnmove/internal/model"
)

// PropChange is a single property addition/removal/modification
// carried into the merge so the marker file (if any) can report it.
type PropChange struct {
	Name     string
	OldValue string
	NewValue string
}

// Request bundles everything the merger is purely a function of.
type Request struct {
	OldPristinePath string
	NewPristinePath string
	WorkingPath     string
	ActualProps     model.Props
	PropChanges     []PropChange
}

// Result is what the merger hands back to the edit receiver.
type Result struct {
	MergedPath string // path holding merged content, to be installed by a work item
	Conflict   *model.ConflictSkeleton
	Outcome    model.ContentState // StateMerged or StateConflicted
}

// Merger is the narrow, purely-functional external collaborator
// interface the edit receiver invokes for a locally-modified file.
type Merger interface {
	Merge(req Request) (Result, error)
}

// TextMerger is the default Merger: a three-way line merge via
// diffmatchpatch, writing conflict markers to a sibling file when the
// patch set does not apply cleanly.
type TextMerger struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewTextMerger constructs the default merger.
func NewTextMerger() *TextMerger {
	dmp := diffmatchpatch.New()
	// A hunk applies only where its context appears verbatim in the
	// working text (at any offset); anything else is a conflict.
	dmp.MatchThreshold = 0.01
	dmp.MatchDistance = 1 << 30
	dmp.PatchDeleteThreshold = 0
	return &TextMerger{dmp: dmp}
}

func (m *TextMerger) Merge(req Request) (Result, error) {
	oldText, err := readFile(req.OldPristinePath)
	if err != nil {
		return Result{}, fmt.Errorf("merge: read old pristine: %w", err)
	}
	newText, err := readFile(req.NewPristinePath)
	if err != nil {
		return Result{}, fmt.Errorf("merge: read new pristine: %w", err)
	}
	workingText, err := readFile(req.WorkingPath)
	if err != nil {
		return Result{}, fmt.Errorf("merge: read working file: %w", err)
	}

	diffs := m.dmp.DiffMain(oldText, newText, false)
	patches := m.dmp.PatchMake(oldText, diffs)

	merged, applied := m.dmp.PatchApply(patches, workingText)

	allApplied := true
	for _, ok := range applied {
		if !ok {
			allApplied = false
			break
		}
	}

	mergedPath := req.WorkingPath + ".merged"
	if allApplied {
		if err := os.WriteFile(mergedPath, []byte(merged), 0o644); err != nil {
			return Result{}, fmt.Errorf("merge: write merged: %w", err)
		}
		return Result{MergedPath: mergedPath, Outcome: model.StateMerged}, nil
	}

	markerText := renderConflictMarkers(oldText, workingText, newText)
	if err := os.WriteFile(mergedPath, []byte(markerText), 0o644); err != nil {
		return Result{}, fmt.Errorf("merge: write conflict markers: %w", err)
	}

	return Result{
		MergedPath: mergedPath,
		Outcome:    model.StateConflicted,
		Conflict: &model.ConflictSkeleton{
			Kind:   model.ConflictKindText,
			Reason: model.ReasonEdited,
			Action: model.ActionEdit,
		},
	}, nil
}

func renderConflictMarkers(old, mine, theirs string) string {
	var b strings.Builder
	b.WriteString("<<<<<<< working\n")
	b.WriteString(mine)
	b.WriteString("\n||||||| base\n")
	b.WriteString(old)
	b.WriteString("\n=======\n")
	b.WriteString(theirs)
	b.WriteString("\n>>>>>>> incoming\n")
	return b.String()
}

func readFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
