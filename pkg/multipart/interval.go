package multipart

import "sort"

// Interval is a half-open byte range [Start, Start+Size) over non-negative
// 64-bit offsets. Size must be > 0 for any interval held in a set.
type Interval struct {
	Start int64
	Size  int64
}

// End returns the exclusive end offset of the interval.
func (iv Interval) End() int64 { return iv.Start + iv.Size }

// Empty reports whether the interval carries no bytes.
func (iv Interval) Empty() bool { return iv.Size <= 0 }

// overlapsOrTouches reports whether a and b overlap or share a boundary,
// i.e. whether inserting both into a coalesced set would require merging.
func overlapsOrTouches(a, b Interval) bool {
	return a.Start <= b.End() && b.Start <= a.End()
}

// UntreatedParts is the dirty-set interval store (component A). It holds a
// set of non-overlapping, non-adjacent intervals produced by host writes,
// kept sorted by Start and coalesced on every insertion.
//
// UntreatedParts is not safe for concurrent use by itself; callers hold
// Handle's manifest lock around mutations, matching the rest of the
// planner's single-mutex discipline.
type UntreatedParts struct {
	list []Interval
	last Interval
	has  bool
}

// NewUntreatedParts returns an empty dirty set.
func NewUntreatedParts() *UntreatedParts {
	return &UntreatedParts{}
}

// Add inserts [start, start+size), merging with any touching or
// overlapping interval. O(log n + k) where k is the count merged.
func (u *UntreatedParts) Add(start, size int64) {
	if size <= 0 {
		return
	}
	nv := Interval{Start: start, Size: size}

	i := sort.Search(len(u.list), func(i int) bool { return u.list[i].Start >= nv.Start })

	lo := i
	for lo > 0 && overlapsOrTouches(u.list[lo-1], nv) {
		lo--
	}
	hi := i
	for hi < len(u.list) && overlapsOrTouches(u.list[hi], nv) {
		hi++
	}

	if lo < hi {
		merged := u.list[lo]
		for _, other := range u.list[lo+1 : hi] {
			merged = union(merged, other)
		}
		merged = union(merged, nv)
		u.list = append(u.list[:lo], append([]Interval{merged}, u.list[hi:]...)...)
	} else {
		u.list = append(u.list[:lo], append([]Interval{nv}, u.list[lo:]...)...)
	}

	u.last = nv
	u.has = true
}

func union(a, b Interval) Interval {
	start := a.Start
	if b.Start < start {
		start = b.Start
	}
	end := a.End()
	if b.End() > end {
		end = b.End()
	}
	return Interval{Start: start, Size: end - start}
}

// Duplicate returns a cheap independent copy of the interval set so the
// planner may iterate without holding the caller's lock across long
// operations.
func (u *UntreatedParts) Duplicate() []Interval {
	out := make([]Interval, len(u.list))
	copy(out, u.list)
	return out
}

// GetLast returns the most recently added interval (the boundary-last-flush
// fast path's input), and whether one exists.
func (u *UntreatedParts) GetLast() (Interval, bool) {
	return u.last, u.has
}

// ReplaceLast atomically removes the region just planned ([planned.Start,
// planned.End())) and re-inserts any leading/trailing remainder that falls
// outside the aligned window. Either remainder may be empty. It returns
// false (non-fatal to the caller, see spec.md §4.D.1) if the planned region
// cannot be located verbatim in the set — this can happen if a concurrent
// writer mutated the set between GetLast and ReplaceLast.
func (u *UntreatedParts) ReplaceLast(planned Interval, front, back Interval) bool {
	idx := -1
	for i, iv := range u.list {
		if iv.Start == planned.Start && iv.Size == planned.Size {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	u.list = append(u.list[:idx], u.list[idx+1:]...)
	if !front.Empty() {
		u.Add(front.Start, front.Size)
	}
	if !back.Empty() {
		u.Add(back.Start, back.Size)
	}
	if u.last.Start == planned.Start && u.last.Size == planned.Size {
		u.has = false
	}
	return true
}

// Snapshot is a point-in-time duplicate of a dirty set, consumed by the
// whole-file planner. Mutating operations on Snapshot never touch the live
// UntreatedParts they were duplicated from.
type Snapshot struct {
	intervals []Interval
}

// NewSnapshot wraps a duplicated interval list.
func NewSnapshot(intervals []Interval) *Snapshot {
	return &Snapshot{intervals: append([]Interval(nil), intervals...)}
}

// Overlapping returns the sub-ranges of window that are dirty according to
// the snapshot, trimmed to window's bounds, and removes the consumed
// portions from the snapshot so later windows never see them again.
func (s *Snapshot) Overlapping(window Interval) []Interval {
	var out []Interval
	var remaining []Interval

	for _, iv := range s.intervals {
		if iv.End() <= window.Start || iv.Start >= window.End() {
			remaining = append(remaining, iv)
			continue
		}

		// Clip to the window.
		clipStart := iv.Start
		if clipStart < window.Start {
			clipStart = window.Start
		}
		clipEnd := iv.End()
		if clipEnd > window.End() {
			clipEnd = window.End()
		}
		out = append(out, Interval{Start: clipStart, Size: clipEnd - clipStart})

		// Keep any portion outside the window for later windows.
		if iv.Start < window.Start {
			remaining = append(remaining, Interval{Start: iv.Start, Size: window.Start - iv.Start})
		}
		if iv.End() > window.End() {
			remaining = append(remaining, Interval{Start: window.End(), Size: iv.End() - window.End()})
		}
	}

	s.intervals = remaining
	return out
}
