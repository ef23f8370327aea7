// Package errs defines the closed error taxonomy raised across the
// resolver's boundary. The conditions the resolver detects itself are
// reported as a *ResolverError with one of the Code values below.
// Failures from the underlying store and filesystem (SQL and I/O
// errors) are returned as plain wrapped errors, not as a
// *ResolverError.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies one of the resolver's error categories.
type Code string

const (
	// NotLocked: a mutation was attempted without a verified write
	// lock on the relevant op-root.
	NotLocked Code = "NOT_LOCKED"
	// NotInConflict: the caller asked to resolve a victim that
	// carries no tree conflict.
	NotInConflict Code = "NOT_IN_CONFLICT"
	// UnsupportedConflict: the conflict's operation is neither
	// update nor switch.
	UnsupportedConflict Code = "UNSUPPORTED_CONFLICT"
	// NotMovedAway: the victim has no recorded move destination.
	NotMovedAway Code = "NOT_MOVED_AWAY"
	// MixedRevisionSource: the move source spans multiple revisions.
	MixedRevisionSource Code = "MIXED_REVISION_SOURCE"
	// SwitchedSubtree: the move source is under a switched URL.
	SwitchedSubtree Code = "SWITCHED_SUBTREE"
	// ObstructedUpdate: a second, incompatible tree conflict was
	// attempted on a node that already carries one.
	ObstructedUpdate Code = "OBSTRUCTED_UPDATE"
	// ResolverFailure: any other invariant violation.
	ResolverFailure Code = "RESOLVER_FAILURE"
	// Cancelled: the cancellation callback signalled during a walk.
	Cancelled Code = "CANCELLED"
)

// ResolverError is the single error type the core raises. Fields
// beyond Code/Message are optional context for the caller.
type ResolverError struct {
	Code    Code
	Message string
	Path    string
	Err     error // wrapped cause, if any
}

func (e *ResolverError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ResolverError) Unwrap() error {
	return e.Err
}

// New builds a ResolverError with no path context.
func New(code Code, message string) *ResolverError {
	return &ResolverError{Code: code, Message: message}
}

// Newf builds a ResolverError with a formatted message.
func Newf(code Code, format string, args ...any) *ResolverError {
	return &ResolverError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AtPath builds a ResolverError scoped to a working-copy path.
func AtPath(code Code, path, message string) *ResolverError {
	return &ResolverError{Code: code, Message: message, Path: path}
}

// Wrap builds a ResolverError that carries an underlying cause.
func Wrap(code Code, path string, err error) *ResolverError {
	return &ResolverError{Code: code, Message: err.Error(), Path: path, Err: err}
}

// Is reports whether err is a ResolverError with the given code.
// Uses errors.As so wrapped errors are matched transparently.
func Is(err error, code Code) bool {
	var re *ResolverError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsNotLocked reports whether err is a NotLocked ResolverError.
func IsNotLocked(err error) bool { return Is(err, NotLocked) }

// IsNotInConflict reports whether err is a NotInConflict ResolverError.
func IsNotInConflict(err error) bool { return Is(err, NotInConflict) }

// IsUnsupportedConflict reports whether err is an UnsupportedConflict
// ResolverError.
func IsUnsupportedConflict(err error) bool { return Is(err, UnsupportedConflict) }

// IsNotMovedAway reports whether err is a NotMovedAway ResolverError.
func IsNotMovedAway(err error) bool { return Is(err, NotMovedAway) }

// IsMixedRevisionSource reports whether err is a MixedRevisionSource
// ResolverError.
func IsMixedRevisionSource(err error) bool { return Is(err, MixedRevisionSource) }

// IsSwitchedSubtree reports whether err is a SwitchedSubtree
// ResolverError.
func IsSwitchedSubtree(err error) bool { return Is(err, SwitchedSubtree) }

// IsObstructedUpdate reports whether err is an ObstructedUpdate
// ResolverError.
func IsObstructedUpdate(err error) bool { return Is(err, ObstructedUpdate) }

// IsResolverFailure reports whether err is a ResolverFailure
// ResolverError.
func IsResolverFailure(err error) bool { return Is(err, ResolverFailure) }

// IsCancelled reports whether err is a Cancelled ResolverError.
func IsCancelled(err error) bool { return Is(err, Cancelled) }
