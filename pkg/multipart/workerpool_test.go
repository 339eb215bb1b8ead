package multipart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeRemote is an in-memory RemoteStore used by executor/worker-pool tests.
// It never talks to the network.
type fakeRemote struct {
	mu         sync.Mutex
	uploadIDs  int
	uploaded   map[int][]byte
	copied     map[int]Interval
	failPart   int // part number that should fail, 0 to disable
	completed  bool
	aborted    bool
	completeErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{uploaded: map[int][]byte{}, copied: map[int]Interval{}}
}

func (f *fakeRemote) PreMultipartUpload(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadIDs++
	return fmt.Sprintf("upload-%d", f.uploadIDs), nil
}

func (f *fakeRemote) UploadPart(ctx context.Context, path, uploadID string, partNum int, data []byte) (string, error) {
	if partNum == f.failPart {
		return "", errors.New("simulated upload failure")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[partNum] = append([]byte(nil), data...)
	return fmt.Sprintf("etag-%d", partNum), nil
}

func (f *fakeRemote) CopyPart(ctx context.Context, path, uploadID string, partNum int, sourceRange Interval) (string, error) {
	if partNum == f.failPart {
		return "", errors.New("simulated copy failure")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copied[partNum] = sourceRange
	return fmt.Sprintf("etag-%d", partNum), nil
}

func (f *fakeRemote) CompleteMultipart(ctx context.Context, path, uploadID string, parts []CompletedPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = true
	return nil
}

func (f *fakeRemote) AbortMultipart(ctx context.Context, path, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = true
	return nil
}

// fakeReader serves ReadAt from an in-memory buffer, simulating the locally
// cached file descriptor.
type fakeReader struct {
	data []byte
}

func (r *fakeReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.data)) {
		return 0, errors.New("offset out of range")
	}
	n := copy(p, r.data[off:])
	return n, nil
}

func TestWorkerPool_UploadSucceeds(t *testing.T) {
	pool := NewWorkerPool(2, 8)
	defer pool.Stop()

	registry := NewEtagRegistry()
	manifest := NewManifest(registry)
	fp, _ := manifest.Append(0, 4, false, -1)

	remote := newFakeRemote()
	reader := &fakeReader{data: []byte("abcd")}

	var mu sync.Mutex
	sink := &ErrorSink{}
	sem := make(chan struct{}, 1)

	req := PartRequest{
		Ctx:           context.Background(),
		Path:          "obj",
		UploadID:      "upload-1",
		Reader:        reader,
		Fp:            fp,
		Remote:        remote,
		CompletionSem: sem,
		ManifestLock:  &mu,
		ResultSink:    sink,
	}

	if !pool.Submit(req) {
		t.Fatal("Submit() = false, want true")
	}

	select {
	case <-sem:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
	}

	if err := sink.Get(); err != nil {
		t.Fatalf("sink.Get() = %v, want nil", err)
	}
	etag, ok := fp.EtagRef.ETag()
	if !ok || etag != "etag-1" {
		t.Errorf("EtagRef.ETag() = %q, %v, want etag-1, true", etag, ok)
	}
	if !fp.Uploaded {
		t.Error("fp.Uploaded = false, want true")
	}
}

func TestWorkerPool_UploadFailureRecordsError(t *testing.T) {
	pool := NewWorkerPool(1, 8)
	defer pool.Stop()

	registry := NewEtagRegistry()
	manifest := NewManifest(registry)
	fp, _ := manifest.Append(0, 4, false, -1)

	remote := newFakeRemote()
	remote.failPart = 1
	reader := &fakeReader{data: []byte("abcd")}

	var mu sync.Mutex
	sink := &ErrorSink{}
	sem := make(chan struct{}, 1)

	req := PartRequest{
		Ctx:           context.Background(),
		Path:          "obj",
		UploadID:      "upload-1",
		Reader:        reader,
		Fp:            fp,
		Remote:        remote,
		CompletionSem: sem,
		ManifestLock:  &mu,
		ResultSink:    sink,
	}
	pool.Submit(req)

	<-sem

	if err := sink.Get(); err == nil {
		t.Fatal("sink.Get() = nil, want the simulated failure")
	}
	if fp.Uploaded {
		t.Error("fp.Uploaded = true after a failed upload, want false")
	}
}

func TestWorkerPool_CancelledRequestSkipsRemote(t *testing.T) {
	pool := NewWorkerPool(1, 8)
	defer pool.Stop()

	registry := NewEtagRegistry()
	manifest := NewManifest(registry)
	fp, _ := manifest.Append(0, 4, true, -1)

	remote := newFakeRemote()
	var mu sync.Mutex
	sink := &ErrorSink{}
	sem := make(chan struct{}, 1)

	req := PartRequest{
		Ctx:           context.Background(),
		Path:          "obj",
		UploadID:      "upload-1",
		Fp:            fp,
		Remote:        remote,
		CompletionSem: sem,
		ManifestLock:  &mu,
		ResultSink:    sink,
		Cancelled:     func() bool { return true },
	}
	pool.Submit(req)
	<-sem

	if err := sink.Get(); !errors.Is(err, ErrCancelled) {
		t.Errorf("sink.Get() = %v, want ErrCancelled", err)
	}
	remote.mu.Lock()
	copied := len(remote.copied)
	remote.mu.Unlock()
	if copied != 0 {
		t.Error("a cancelled request reached the remote store")
	}
}

func TestErrorSink_FirstWriterWins(t *testing.T) {
	sink := &ErrorSink{}
	first := errors.New("first")
	second := errors.New("second")

	sink.Set(first)
	sink.Set(second)

	if got := sink.Get(); got != first {
		t.Errorf("Get() = %v, want %v", got, first)
	}
}

func TestWorkerPool_SubmitNonBlockingWhenFull(t *testing.T) {
	pool := &WorkerPool{requests: make(chan PartRequest)} // unbuffered, no workers draining

	ok := pool.Submit(PartRequest{})
	if ok {
		t.Error("Submit() on a pool with no draining workers and a zero-capacity queue should report false")
	}
}
