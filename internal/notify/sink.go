// Package notify defines the notification sink collaborator (spec.md
// §6): invoked once per spooled record after commit, in walk order.
package notify

import (
	"fmt"
	"io"

	"github.com/roach88/svnmove/internal/model"
)

// Sink receives one call per notification record, after the
// transaction that produced it has committed.
type Sink interface {
	Notify(record model.NotificationRecord) error
}

// WriterSink is a human-readable Sink used by the CLI, mirroring the
// one-line-per-event style the teacher's CLI output layer uses.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink builds a Sink that writes one line per notification.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Notify(record model.NotificationRecord) error {
	switch record.Action {
	case model.NotifyTreeConflict:
		_, err := fmt.Fprintf(s.w, "   C %s\n", record.Path)
		return err
	case model.NotifyDelete:
		_, err := fmt.Fprintf(s.w, "   D %s\n", record.Path)
		return err
	case model.NotifyAdd:
		_, err := fmt.Fprintf(s.w, "   A %s\n", record.Path)
		return err
	default:
		_, err := fmt.Fprintf(s.w, "   U %s (content=%s, prop=%s)\n", record.Path, record.ContentState, record.PropState)
		return err
	}
}

// CollectingSink accumulates notifications in order, for tests and
// for the harness's scenario assertions.
type CollectingSink struct {
	Records []model.NotificationRecord
}

func (s *CollectingSink) Notify(record model.NotificationRecord) error {
	s.Records = append(s.Records, record)
	return nil
}
