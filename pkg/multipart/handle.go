package multipart

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/soitun/s3fs-fuse/internal/logger"
)

// OpenFlags mirrors the subset of open(2) flags the handle cares about.
type OpenFlags struct {
	Writable bool
	Readable bool
}

// Handle binds one open file-handle identity to one backing descriptor,
// one upload id, and one instance of components A-E (component F). It is
// the top-level entry point for flush, boundary-flush, and finalize.
type Handle struct {
	mu sync.Mutex

	id      PseudoFD
	allocator *PseudoFDAllocator

	path  string
	flags OpenFlags

	physicalFile LocalReader
	upload       *os.File // lazily-duplicated fd positioned at 0, validated via Stat

	dirty    *UntreatedParts
	registry *EtagRegistry
	manifest *Manifest
	planner  *Planner
	executor *Executor

	remote RemoteStore
	pool   *WorkerPool

	uploadID  string
	cancelled bool
}

// NewHandle allocates a pseudo id from allocator and binds path/flags/reader
// to a fresh planner state. pool is the process-global worker pool shared
// by every handle.
func NewHandle(allocator *PseudoFDAllocator, pool *WorkerPool, remote RemoteStore, m int64, path string, flags OpenFlags, reader LocalReader) *Handle {
	h := &Handle{
		id:           allocator.Allocate(),
		allocator:    allocator,
		path:         path,
		flags:        flags,
		physicalFile: reader,
		dirty:        NewUntreatedParts(),
		registry:     NewEtagRegistry(),
		planner:      NewPlanner(m),
		remote:       remote,
		pool:         pool,
	}
	h.manifest = NewManifest(h.registry)
	h.executor = NewExecutor(h.pool, &h.mu)
	return h
}

// ID returns the pseudo fd identifying this handle.
func (h *Handle) ID() PseudoFD { return h.id }

// Rebind reinitializes the handle for a new logical file while preserving
// its pseudo id allocation — the Set() re-initialization semantics of the
// original fd-info object (spec.md §12/SPEC_FULL.md).
func (h *Handle) Rebind(path string, flags OpenFlags, reader LocalReader) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
	h.flags = flags
	h.physicalFile = reader
	h.dirty = NewUntreatedParts()
	h.registry = NewEtagRegistry()
	h.manifest = NewManifest(h.registry)
	h.uploadID = ""
	h.cancelled = false
}

// Writable reports whether the handle was opened for writing.
func (h *Handle) Writable() bool { return h.flags.Writable }

// Readable reports whether the handle was opened for reading.
func (h *Handle) Readable() bool { return h.flags.Readable }

// AddDirty records a write of size bytes at start into the handle's dirty
// set. The host calls this on every write.
func (h *Handle) AddDirty(start, size int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirty.Add(start, size)
}

// IsUploading reports whether a multipart upload id has been obtained.
func (h *Handle) IsUploading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isUploadingLocked()
}

// isUploadingLocked is IsUploadingHasLock: the same predicate for call
// sites that already hold the manifest lock.
func (h *Handle) isUploadingLocked() bool {
	return h.uploadID != ""
}

// preMultipartUploadRequest obtains an upload id from the remote store if
// the handle is not already uploading.
func (h *Handle) preMultipartUploadRequest(ctx context.Context) error {
	h.mu.Lock()
	alreadyUploading := h.isUploadingLocked()
	h.mu.Unlock()
	if alreadyUploading {
		return nil
	}

	id, err := h.remote.PreMultipartUpload(ctx, h.path)
	if err != nil {
		return remoteErr("PreMultipartUpload", err)
	}

	h.mu.Lock()
	h.uploadID = id
	h.mu.Unlock()
	NewMetrics().RecordActiveUpload(1)
	return nil
}

// openUploadFD lazily duplicates the physical fd on first upload, seeks it
// to 0, and validates it via Stat before returning it — mirroring the
// original's fstat-equivalent validation of OpenUploadFd.
func (h *Handle) openUploadFD(physicalFD int) (*os.File, error) {
	if h.upload != nil {
		return h.upload, nil
	}
	if physicalFD < 0 {
		return nil, ErrBadHandle
	}
	dup, err := dupFD(physicalFD)
	if err != nil {
		return nil, fmt.Errorf("%w: dup upload fd: %v", ErrIO, err)
	}
	if _, err := dup.Stat(); err != nil {
		dup.Close()
		return nil, fmt.Errorf("%w: fstat upload fd: %v", ErrIO, err)
	}
	if _, err := dup.Seek(0, 0); err != nil {
		dup.Close()
		return nil, fmt.Errorf("%w: seek upload fd: %v", ErrIO, err)
	}
	h.upload = dup
	return dup, nil
}

func (h *Handle) closeUploadFD() {
	if h.upload != nil {
		h.upload.Close()
		h.upload = nil
	}
}

// submitPlannedParts pushes upload/copy entries to the Executor, inserting
// each into the manifest first so its ETag ref and part number are stable
// before the worker runs. The manifest insert is locked; Submit is not,
// since Executor.Submit locks the same mutex itself.
func (h *Handle) submitPlannedParts(ctx context.Context, upload, copyParts []PlannedPart, sink *ErrorSink) {
	for _, u := range upload {
		h.mu.Lock()
		fp := h.manifest.Insert(u.Start, u.Size, u.PartNum, false, -1)
		h.mu.Unlock()
		h.executor.Submit(ctx, h.path, h.uploadID, h.physicalFile, fp, h.remote, sink)
	}
	for _, c := range copyParts {
		h.mu.Lock()
		fp := h.manifest.Insert(c.Start, c.Size, c.PartNum, true, -1)
		h.mu.Unlock()
		h.executor.Submit(ctx, h.path, h.uploadID, h.physicalFile, fp, h.remote, sink)
	}
}

// FlushBoundaryLastUntreated is UploadBoundaryLastUntreatedArea (spec.md
// §4.D.1): opportunistically flush the most recently written region.
func (h *Handle) FlushBoundaryLastUntreated(ctx context.Context) (err error) {
	started := time.Now()
	defer func() { NewMetrics().ObserveFlush(time.Since(started), err) }()

	h.mu.Lock()
	if !h.flags.Writable {
		h.mu.Unlock()
		return ErrBadHandle
	}
	last, has := h.dirty.GetLast()
	h.mu.Unlock()
	if !has || last.Empty() {
		return nil
	}

	h.mu.Lock()
	upload, cancel, front, back, ok := h.planner.PlanBoundaryLastFlush(last, h.manifest)
	h.mu.Unlock()
	if !ok {
		return nil
	}

	if err := h.preMultipartUploadRequest(ctx); err != nil {
		return err
	}

	for _, fp := range cancel {
		logger.L().Debug("cancel uploaded part superseded by boundary flush",
			slog.String(logger.KeyPath, h.path), slog.Int(logger.KeyPartNum, fp.PartNum))
	}

	sink := &ErrorSink{}
	for _, u := range upload {
		h.mu.Lock()
		fp := h.manifest.Insert(u.Start, u.Size, u.PartNum, false, -1)
		h.mu.Unlock()
		h.executor.Submit(ctx, h.path, h.uploadID, h.physicalFile, fp, h.remote, sink)
	}

	if err := h.executor.WaitAll(); err != nil {
		return err
	}
	if err := sink.Get(); err != nil {
		return err
	}

	h.mu.Lock()
	if !h.dirty.ReplaceLast(last, front, back) {
		// Non-fatal per spec.md §4.D.1: the next planner invocation
		// still converges against the manifest and file size.
		logger.L().Warn("could not replace last untreated area after boundary flush",
			slog.String(logger.KeyPath, h.path))
	}
	h.mu.Unlock()

	return nil
}

// FlushAll is ExtractUploadPartsFromAllArea plus submission (spec.md
// §4.D.2): produce a complete plan covering [0, fileSize) and submit its
// upload and copy parts. The plan's download ranges are returned to the
// caller and are not fetched here.
func (h *Handle) FlushAll(ctx context.Context, fileSize int64, useCopy bool) (plan *Plan, err error) {
	started := time.Now()
	defer func() { NewMetrics().ObserveFlush(time.Since(started), err) }()

	h.mu.Lock()
	if !h.flags.Writable {
		h.mu.Unlock()
		return nil, ErrBadHandle
	}
	dirtySnapshot := h.dirty.Duplicate()
	plan, err = h.planner.PlanWholeFile(dirtySnapshot, h.manifest, fileSize, useCopy)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if len(plan.Upload) == 0 && len(plan.Copy) == 0 {
		return plan, nil
	}

	if err := h.preMultipartUploadRequest(ctx); err != nil {
		return plan, err
	}

	if plan.WaitUploadComplete {
		if err := h.executor.WaitAll(); err != nil {
			return plan, err
		}
	}

	sink := &ErrorSink{}
	h.submitPlannedParts(ctx, plan.Upload, plan.Copy, sink)

	if err := h.executor.WaitAll(); err != nil {
		return plan, err
	}
	return plan, sink.Get()
}

// Finalize commits the manifest to the remote store, completing the
// multipart upload.
func (h *Handle) Finalize(ctx context.Context) error {
	h.mu.Lock()
	uploadID := h.uploadID
	h.mu.Unlock()
	if uploadID == "" {
		return nil
	}

	if err := h.executor.WaitAll(); err != nil {
		return err
	}

	h.mu.Lock()
	parts, err := h.manifest.EtagList()
	h.mu.Unlock()
	if err != nil {
		return err
	}

	if err := h.remote.CompleteMultipart(ctx, h.path, uploadID, parts); err != nil {
		return remoteErr("CompleteMultipart", err)
	}

	h.mu.Lock()
	h.uploadID = ""
	h.mu.Unlock()
	NewMetrics().RecordActiveUpload(-1)
	return nil
}

// Abort releases the upload id remotely and discards the manifest.
func (h *Handle) Abort(ctx context.Context) error {
	h.mu.Lock()
	uploadID := h.uploadID
	h.mu.Unlock()
	if uploadID == "" {
		return nil
	}

	_ = h.executor.CancelAll(&ErrorSink{})

	if err := h.remote.AbortMultipart(ctx, h.path, uploadID); err != nil {
		return remoteErr("AbortMultipart", err)
	}

	h.resetUploadInfo()
	return nil
}

// resetUploadInfo is RowInitialUploadInfo: clears upload id, manifest, and
// the cancellation flag, and (through Executor.Reset) the executor's last
// result and cancellation flag, so a handle reused after Abort/Close does
// not inherit stale cancellation state. The instruction count is not reset
// here; it is already zero because both callers run CancelAll first.
func (h *Handle) resetUploadInfo() {
	h.mu.Lock()
	h.uploadID = ""
	h.registry = NewEtagRegistry()
	h.manifest = NewManifest(h.registry)
	h.cancelled = false
	h.mu.Unlock()
	// Executor.Reset locks the same mutex (the executor shares h.mu).
	h.executor.Reset()
}

// Close runs the destruction sequence of spec.md §4.F: cancel outstanding
// work, reset upload info, close the upload fd, release the pseudo id.
func (h *Handle) Close() {
	_ = h.executor.CancelAll(&ErrorSink{})
	h.resetUploadInfo()
	h.closeUploadFD()
	h.allocator.Release(h.id)
}
