package multipart

import "sync"

// PseudoFD is a small per-process integer identifying one open handle.
type PseudoFD int

// PseudoFDAllocator is the pseudo-fd identifier allocator (spec.md §9,
// "Singleton surfaces"). It is a process-wide resource, but modeled as an
// explicit allocator handle threaded through constructors rather than
// implicit global mutable state — callers construct one allocator and pass
// it to every Handle they create.
type PseudoFDAllocator struct {
	mu     sync.Mutex
	next   PseudoFD
	free   []PseudoFD
}

// NewPseudoFDAllocator returns an allocator starting ids at 1 (0 is
// reserved to mean "unallocated").
func NewPseudoFDAllocator() *PseudoFDAllocator {
	return &PseudoFDAllocator{next: 1}
}

// Allocate returns a monotonic id, reusing a released one if available.
func (a *PseudoFDAllocator) Allocate() PseudoFD {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id
	}
	id := a.next
	a.next++
	return id
}

// Release returns id to the free pool for reuse.
func (a *PseudoFDAllocator) Release(id PseudoFD) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free = append(a.free, id)
}
