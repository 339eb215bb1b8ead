package multipart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soitun/s3fs-fuse/internal/logger"
)

// PartRequest is one unit of work submitted to the worker pool: upload or
// server-side copy of a single part. Workers do not download ranges from
// the remote store.
type PartRequest struct {
	Ctx      context.Context
	Path     string
	UploadID string
	Reader   LocalReader
	Fp       *Filepart
	Remote   RemoteStore

	// CompletionSem is released by the worker exactly once on exit.
	CompletionSem chan struct{}

	// ManifestLock guards EtagRef.Set and ResultSink writes.
	ManifestLock *sync.Mutex

	// ResultSink receives the first non-nil error observed by any worker
	// for this flush (see ErrorSink).
	ResultSink *ErrorSink

	// Cancelled is polled before any network I/O; if true when observed,
	// the worker exits without submitting the request to the remote.
	Cancelled func() bool
}

// ErrorSink records at most one outstanding error per flush under the
// caller-supplied manifest lock. Workers and Executor.CancelAll write to
// it; the Handle reads it after Executor.WaitAll returns. Both last-writer-wins and first-writer-wins satisfy spec.md
// §7's acceptance criterion ("some non-zero error surfaces when any worker
// failed"); this implementation keeps the first, which is sufficient and
// deterministic for tests.
type ErrorSink struct {
	err error
}

// Set records err if no error has been recorded yet for this flush.
func (s *ErrorSink) Set(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Get returns the recorded error, or nil.
func (s *ErrorSink) Get() error { return s.err }

// WorkerPool is the process-global, non-blocking submission surface of
// spec.md §6 ("the pool is process-global"). A single pool instance is
// expected to be shared across every open handle in the process; Submit
// never blocks the caller — requests beyond the pool's concurrency budget
// queue internally on a buffered channel of fixed capacity drained by a
// fixed worker count, and Submit reports false when that channel is full.
type WorkerPool struct {
	requests chan PartRequest
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWorkerPool starts workers goroutines draining a request queue of the
// given capacity. queueSize <= 0 defaults to 1024.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &WorkerPool{
		requests: make(chan PartRequest, queueSize),
		stopCh:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Submit enqueues req without blocking. It reports false if the queue is
// full; the caller (Executor) is expected to treat that as a transient
// backpressure condition and retry, since Submit must never block per
// spec.md §6.
func (p *WorkerPool) Submit(req PartRequest) bool {
	select {
	case p.requests <- req:
		return true
	default:
		return false
	}
}

// Stop waits for requests that are already executing to finish and stops
// all worker goroutines; requests still waiting in the queue may be left
// unexecuted. Intended for process shutdown, not per-handle cancellation
// (that is Executor.CancelAll).
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *WorkerPool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case req, ok := <-p.requests:
			if !ok {
				return
			}
			executePartRequest(req)
		}
	}
}

// executePartRequest is the worker body described in spec.md §4.E: read
// locally (unless this is a copy part), PUT or copy-part, record the ETag
// under the manifest lock on success, record the error under the manifest
// lock on failure, release the completion semaphore exactly once.
func executePartRequest(req PartRequest) {
	defer func() { req.CompletionSem <- struct{}{} }()

	metrics := NewMetrics()
	started := time.Now()

	if req.Cancelled != nil && req.Cancelled() {
		req.ManifestLock.Lock()
		req.ResultSink.Set(ErrCancelled)
		req.ManifestLock.Unlock()
		return
	}

	var etag string
	var err error

	if req.Fp.IsCopy {
		etag, err = req.Remote.CopyPart(req.Ctx, req.Path, req.UploadID, req.Fp.PartNum, req.Fp.Interval())
	} else {
		buf := make([]byte, req.Fp.Size)
		if _, rerr := req.Reader.ReadAt(buf, req.Fp.Start); rerr != nil {
			err = rerr
		} else {
			etag, err = req.Remote.UploadPart(req.Ctx, req.Path, req.UploadID, req.Fp.PartNum, buf)
		}
	}

	metrics.ObservePart(req.Fp.IsCopy, req.Fp.Size, time.Since(started), err)

	req.ManifestLock.Lock()
	if err != nil {
		logger.L().Warn("part request failed",
			slog.String(logger.KeyPath, req.Path),
			slog.Int(logger.KeyPartNum, req.Fp.PartNum),
			slog.Bool(logger.KeyIsCopy, req.Fp.IsCopy),
			slog.String(logger.KeyError, err.Error()))
		req.ResultSink.Set(err)
	} else {
		req.Fp.EtagRef.Set(etag)
		req.Fp.Uploaded = true
	}
	req.ManifestLock.Unlock()
}
