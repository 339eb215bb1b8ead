package multipart

import (
	"context"
	"runtime"
	"sync"
)

// Executor dispatches plan entries to a shared worker pool, counts
// outstanding work, and supports cancel-and-wait (component E). One
// Executor is owned by exactly one Handle; the manifest lock and
// completion semaphore it uses belong to that handle.
type Executor struct {
	pool *WorkerPool

	mu            *sync.Mutex // the handle's manifest lock
	completionSem chan struct{}

	instructCount int
	lastResult    error
	cancelled     bool
}

// NewExecutor returns an Executor bound to pool, sharing mu (the handle's
// manifest lock) for its own bookkeeping. The only two suspension points
// in the whole Planner/Executor pair live here: acquiring completionSem in
// WaitAll, and acquiring mu.
func NewExecutor(pool *WorkerPool, mu *sync.Mutex) *Executor {
	return &Executor{
		pool:          pool,
		mu:            mu,
		completionSem: make(chan struct{}, MaxPartCount),
	}
}

// Submit dispatches one part request. It increments instructCount and
// returns once the pool has accepted the request. WorkerPool.Submit itself
// never blocks; if the pool's queue is full, this method yields and retries
// until there is room rather than dropping the request, so the caller waits
// for as long as the queue stays full.
func (e *Executor) Submit(ctx context.Context, path, uploadID string, reader LocalReader, fp *Filepart, remote RemoteStore, resultSink *ErrorSink) {
	e.mu.Lock()
	e.instructCount++
	e.mu.Unlock()

	req := PartRequest{
		Ctx:           ctx,
		Path:          path,
		UploadID:      uploadID,
		Reader:        reader,
		Fp:            fp,
		Remote:        remote,
		CompletionSem: e.completionSem,
		ManifestLock:  e.mu,
		ResultSink:    resultSink,
		Cancelled:     e.isCancelled,
	}
	for !e.pool.Submit(req) {
		// Process-global pool is momentarily saturated; yield rather than
		// block the caller, matching the non-blocking submit contract of
		// spec.md §6.
		runtime.Gosched()
	}
}

func (e *Executor) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// WaitAll blocks acquiring completionSem until instructCount decrements to
// zero, then returns lastResult.
func (e *Executor) WaitAll() error {
	for {
		e.mu.Lock()
		remaining := e.instructCount
		e.mu.Unlock()
		if remaining == 0 {
			break
		}
		<-e.completionSem
		e.mu.Lock()
		e.instructCount--
		e.mu.Unlock()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

// CancelAll is idempotent and non-blocking with respect to workers (they
// poll Cancelled before issuing I/O). It always ends by awaiting every
// outstanding worker — no detached goroutine survives a handle's
// destruction.
func (e *Executor) CancelAll(sink *ErrorSink) error {
	e.mu.Lock()
	didCancel := e.instructCount > 0
	if didCancel {
		e.cancelled = true
		e.lastResult = ErrCancelled
		if sink != nil {
			sink.Set(ErrCancelled)
		}
	}
	e.mu.Unlock()
	if didCancel {
		NewMetrics().RecordCancelled()
	}
	return e.WaitAll()
}

// SetLastResult records err as the executor's outstanding result if one
// has not already been recorded, honoring the ambiguity spec.md §9 leaves
// between first-writer-wins and last-writer-wins: this implementation
// keeps the first non-nil error observed.
func (e *Executor) SetLastResult(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastResult == nil {
		e.lastResult = err
	}
}

// InstructCount returns the current outstanding submission count. Intended
// for tests asserting invariant 5 (after CancelAll returns, count == 0).
func (e *Executor) InstructCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instructCount
}

// Reset clears cancellation and result state for reuse by a subsequent
// flush on the same handle, once WaitAll has observed instructCount == 0.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled = false
	e.lastResult = nil
}
