package multipart

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the planner and executor. The remote store
// taxonomy (with RemoteError below) mirrors the negative-error-code boundary
// of the original implementation: BAD_HANDLE, IO, REMOTE_*, CANCELLED.
var (
	// ErrBadHandle: handle not open, or not writable for the attempted operation.
	ErrBadHandle = errors.New("multipart: handle not open or not writable")

	// ErrCancelled is set by CancelAll and observed by workers and waiters.
	ErrCancelled = errors.New("multipart: operation cancelled")

	// ErrIO covers local read/dup/seek/fstat failures and planner-internal
	// invariant violations (a misaligned manifest entry, a non-contiguous
	// append, an unresolved etag at finalize).
	ErrIO = errors.New("multipart: io or invariant error")

	// ErrNotContiguous is returned by Manifest.Append when start does not
	// immediately follow the manifest tail.
	ErrNotContiguous = fmt.Errorf("%w: append is not contiguous with manifest tail", ErrIO)

	// ErrMisaligned is returned by the whole-file planner when a manifest
	// entry's interval does not coincide with exactly one window.
	ErrMisaligned = fmt.Errorf("%w: uploaded list is not on boundary", ErrIO)

	// ErrNoUntreatedArea names the case where the boundary-last-flush path
	// finds nothing aligned to submit. FlushBoundaryLastUntreated reports
	// that case as success (nil) and does not return this error.
	ErrNoUntreatedArea = fmt.Errorf("%w: no aligned untreated area", ErrIO)
)

// RemoteError wraps an error returned by the remote object store so that a
// REMOTE_* status can pass through the planner/executor boundary unchanged.
type RemoteError struct {
	Op  string // e.g. "UploadPart", "CreateMultipartUpload"
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("multipart: remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func remoteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Err: err}
}
