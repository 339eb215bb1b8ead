package multipart

import "context"

// RemoteStore is the seam to the remote object store (spec.md §6). It is
// intentionally narrow: the planner and executor depend only on this
// interface, never on a concrete SDK client, so tests can substitute a
// fake.
type RemoteStore interface {
	// PreMultipartUpload is the prerequisite to any part upload for path.
	PreMultipartUpload(ctx context.Context, path string) (uploadID string, err error)

	// UploadPart uploads bytes as partNum of the named upload.
	// MinPartSize <= len(bytes) <= MaxPartSize except for the final part.
	UploadPart(ctx context.Context, path, uploadID string, partNum int, data []byte) (etag string, err error)

	// CopyPart server-side copies sourceRange of path's previous object
	// version into partNum of the named upload.
	CopyPart(ctx context.Context, path, uploadID string, partNum int, sourceRange Interval) (etag string, err error)

	// CompleteMultipart finalizes the upload. parts must be sorted by
	// PartNum, contiguous from 1, and complete.
	CompleteMultipart(ctx context.Context, path, uploadID string, parts []CompletedPart) error

	// AbortMultipart releases uploadID after a planner-level failure.
	AbortMultipart(ctx context.Context, path, uploadID string) error
}

// LocalReader is the seam to the locally cached file descriptor. Workers
// read [start, start+size) from it using pread-style access so concurrent
// reads never share a single file offset.
type LocalReader interface {
	ReadAt(p []byte, off int64) (n int, err error)
}
