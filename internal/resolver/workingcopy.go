package resolver

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/roach88/svnmove/internal/model"
	"github.com/roach88/svnmove/internal/store"
)

// FSWorkingCopy is the default editor.WorkingCopy: it probes a real
// working-copy directory on disk, comparing file content against the
// checksums the node store already has on record for the destination
// layer. BindTx must be called before use, once per resolution drive,
// since a drive runs entirely inside one transaction.
type FSWorkingCopy struct {
	root        string
	store       *store.Store
	destOpDepth int

	ctx context.Context
	tx  *sql.Tx
}

// NewFSWorkingCopy constructs a working-copy probe rooted at root.
func NewFSWorkingCopy(root string, s *store.Store, destOpDepth int) *FSWorkingCopy {
	return &FSWorkingCopy{root: root, store: s, destOpDepth: destOpDepth}
}

// BindTx attaches the transaction the current drive is running
// inside. Every probe issued until the next BindTx call reads through
// this transaction.
func (wc *FSWorkingCopy) BindTx(ctx context.Context, tx *sql.Tx) {
	wc.ctx = ctx
	wc.tx = tx
}

func (wc *FSWorkingCopy) AbsPath(relpath string) string {
	return filepath.Join(wc.root, filepath.FromSlash(relpath))
}

func (wc *FSWorkingCopy) Stat(relpath string) (exists bool, kind model.Kind, versioned bool, err error) {
	fi, statErr := os.Lstat(wc.AbsPath(relpath))
	if os.IsNotExist(statErr) {
		return false, model.KindNone, false, nil
	}
	if statErr != nil {
		return false, model.KindNone, false, statErr
	}

	onDiskKind := model.KindFile
	if fi.IsDir() {
		onDiskKind = model.KindDir
	}

	info, err := wc.store.DepthGetInfo(wc.ctx, wc.tx, relpath, wc.destOpDepth)
	if err != nil {
		return false, model.KindNone, false, err
	}
	return true, onDiskKind, info.Present, nil
}

func (wc *FSWorkingCopy) IsFileModified(relpath, checksum string) (bool, error) {
	data, err := os.ReadFile(wc.AbsPath(relpath))
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return sha1Hex(data) != checksum, nil
}

// ModificationsUnder reports whether any file under relpath (as
// recorded in the destination layer) differs from what's on disk, and
// whether every such difference is a missing file rather than a
// changed one.
func (wc *FSWorkingCopy) ModificationsUnder(relpath string) (modified bool, allDeletes bool, err error) {
	sawContentChange := false

	var visit func(path string) error
	visit = func(path string) error {
		info, infoErr := wc.store.DepthGetInfo(wc.ctx, wc.tx, path, wc.destOpDepth)
		if infoErr != nil {
			return infoErr
		}
		if info.IsNone() {
			return nil
		}

		if info.Kind == model.KindFile {
			data, readErr := os.ReadFile(wc.AbsPath(path))
			switch {
			case os.IsNotExist(readErr):
				modified = true
			case readErr != nil:
				return readErr
			case sha1Hex(data) != info.Checksum:
				modified = true
				sawContentChange = true
			}
			return nil
		}

		children, childErr := wc.store.GetChildren(wc.ctx, wc.tx, path, wc.destOpDepth)
		if childErr != nil {
			return childErr
		}
		for _, name := range children {
			if err := visit(model.Join(path, name)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(relpath); err != nil {
		return false, false, err
	}
	return modified, modified && !sawContentChange, nil
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
