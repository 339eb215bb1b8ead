package multipart

// PlannedPart is a part the Planner has decided to upload or copy, but
// which has not yet been submitted to the Executor or recorded in the
// manifest. PartNum follows spec.md's alignment invariant: start/M + 1.
type PlannedPart struct {
	Start   int64
	Size    int64
	PartNum int
}

// Interval returns the byte range this planned part covers.
func (p PlannedPart) Interval() Interval { return Interval{Start: p.Start, Size: p.Size} }

// Plan is the output of the whole-file planner: four lists plus the
// wait-for-in-flight-cancellation flag (spec.md §4.D.2). Upload and Copy
// parts never overlap each other; Download ranges lie inside Upload parts
// (the bytes to read before re-uploading), and Cancel holds the manifest
// entries those Upload parts supersede.
type Plan struct {
	Upload             []PlannedPart
	Copy               []PlannedPart
	Download           []Interval
	Cancel             []*Filepart
	WaitUploadComplete bool
}

// Planner computes upload/copy/download/cancel lists from a dirty set, a
// manifest, and a file size (component D). It holds no mutable state of
// its own and performs no I/O and no locking — callers hold the manifest
// lock only while reading the manifest/dirty-set snapshot that feeds the
// planner, then release it before submitting the resulting plan.
type Planner struct {
	M           int64 // configured multipart size
	MinPartSize int64
	MaxPartSize int64
}

// NewPlanner returns a Planner with the canonical S3 size bounds.
func NewPlanner(m int64) *Planner {
	return &Planner{M: m, MinPartSize: MinPartSize, MaxPartSize: MaxPartSize}
}

// PlanWholeFile is ExtractUploadPartsFromAllArea (spec.md §4.D.2): it
// partitions [0, fileSize) into aligned windows of size M (the last window
// may be short) and classifies each window against the dirty-set snapshot
// and the live manifest. manifest.Parts() must already be sorted by
// PartNum (Manifest guarantees this). The dirty snapshot is consumed; the
// caller's live dirty set is left untouched.
func (p *Planner) PlanWholeFile(dirty []Interval, manifest *Manifest, fileSize int64, useCopy bool) (*Plan, error) {
	snap := NewSnapshot(dirty)
	parts := manifest.Parts()
	idx := 0
	plan := &Plan{}

	for cur := int64(0); cur < fileSize; {
		curSize := p.M
		if cur+p.M > fileSize {
			curSize = fileSize - cur
		}
		window := Interval{Start: cur, Size: curSize}
		partNum := PartNumberFor(cur, p.M)

		untreated := snap.Overlapping(window)

		var overlap *Filepart
		for idx < len(parts) {
			fp := parts[idx]
			switch {
			case cur < fp.Start+fp.Size && fp.Start < window.End():
				if overlap != nil || fp.Start != cur || fp.Size != curSize {
					return nil, ErrMisaligned
				}
				overlap = fp
				idx++
			case window.End()-1 < fp.Start:
				goto doneScan
			default:
				idx++
			}
		}
	doneScan:

		if len(untreated) == 0 {
			switch {
			case overlap != nil:
				// already uploaded and not dirty: nothing to do.
			case useCopy:
				plan.Copy = append(plan.Copy, PlannedPart{Start: cur, Size: curSize, PartNum: partNum})
			default:
				plan.Download = append(plan.Download, window)
				plan.Upload = append(plan.Upload, PlannedPart{Start: cur, Size: curSize, PartNum: partNum})
			}
		} else if overlap != nil {
			if !overlap.Uploaded {
				plan.WaitUploadComplete = true
			}
			plan.Cancel = append(plan.Cancel, overlap)
			plan.Upload = append(plan.Upload, PlannedPart{Start: cur, Size: curSize, PartNum: partNum})
		} else {
			p.planDirtyNoUploadWindow(plan, window, untreated, partNum, useCopy)
		}

		cur += curSize
	}

	return plan, nil
}

// planDirtyNoUploadWindow handles the "dirty, not already uploaded" row of
// spec.md's classification table, including the gap-absorption rule: the
// leading gap before the first dirty sub-range in the first such window may
// be merged into the previous copy part's interval instead of being
// downloaded, provided the previous copy part is exactly contiguous, the
// combined copy size stays within MaxPartSize, and the residual upload
// size (this window minus the absorbed gap) stays at least MinPartSize.
func (p *Planner) planDirtyNoUploadWindow(plan *Plan, window Interval, untreated []Interval, partNum int, useCopy bool) {
	tmpStart := window.Start
	tmpSize := window.Size
	changedStart := window.Start
	changedSize := window.Size
	firstArea := true

	for _, ut := range untreated {
		if tmpStart < ut.Start {
			absorbed := false
			if firstArea && useCopy && len(plan.Copy) > 0 {
				last := &plan.Copy[len(plan.Copy)-1]
				gapSize := ut.Start - tmpStart
				residual := (tmpStart + tmpSize) - ut.Start
				if last.Start+last.Size == tmpStart &&
					last.Size+gapSize <= p.MaxPartSize &&
					residual >= p.MinPartSize {
					last.Size += gapSize
					changedSize -= ut.Start - changedStart
					changedStart = ut.Start
					absorbed = true
				}
			}
			if !absorbed {
				plan.Download = append(plan.Download, Interval{Start: tmpStart, Size: ut.Start - tmpStart})
			}
		}
		tmpSize = (tmpStart + tmpSize) - ut.End()
		tmpStart = ut.End()
		firstArea = false
	}

	if tmpSize > 0 {
		plan.Download = append(plan.Download, Interval{Start: tmpStart, Size: tmpSize})
	}
	plan.Upload = append(plan.Upload, PlannedPart{Start: changedStart, Size: changedSize, PartNum: partNum})
}

// PlanBoundaryLastFlush is UploadBoundaryLastUntreatedArea's planning half
// (spec.md §4.D.1, steps 1-3): given the most recently written dirty
// interval and the live manifest, it returns the aligned upload parts to
// submit, any manifest entries they supersede (to cancel-and-reupload), and
// the front/back remainders of last that fall outside the aligned window.
// ok is false when there is nothing aligned to do (steps 1-2's no-ops);
// that is not an error.
func (p *Planner) PlanBoundaryLastFlush(last Interval, manifest *Manifest) (upload []PlannedPart, cancel []*Filepart, front, back Interval, ok bool) {
	rem := int64(0)
	if last.Start%p.M != 0 {
		rem = 1
	}
	alignedStart := (last.Start/p.M + rem) * p.M
	if last.End() <= alignedStart {
		return nil, nil, Interval{}, Interval{}, false
	}

	alignedSize := ((last.End() - alignedStart) / p.M) * p.M
	if alignedSize == 0 {
		return nil, nil, Interval{}, Interval{}, false
	}

	front = Interval{Start: last.Start, Size: alignedStart - last.Start}

	upload, cancel = p.extractUploadPartsFromUntreated(manifest, alignedStart, alignedSize)
	if len(upload) == 0 {
		return nil, nil, Interval{}, Interval{}, false
	}

	backStart := alignedStart + alignedSize
	back = Interval{Start: backStart, Size: last.End() - backStart}
	return upload, cancel, front, back, true
}

// extractUploadPartsFromUntreated is ExtractUploadPartsFromUntreatedArea:
// align [untreatedStart, untreatedStart+untreatedSize) down to an M
// boundary, absorb any manifest entries it overlaps (expanding the aligned
// region to cover them in full and moving them to the cancel list), then
// emit fixed-M-sized upload windows across the final aligned region.
func (p *Planner) extractUploadPartsFromUntreated(manifest *Manifest, untreatedStart, untreatedSize int64) (upload []PlannedPart, cancel []*Filepart) {
	alignedStart := (untreatedStart / p.M) * p.M
	alignedSize := untreatedSize + (untreatedStart - alignedStart)

	if alignedSize < p.M {
		return nil, nil
	}

	cancelledSet := map[*Filepart]bool{}
	changed := true
	for changed {
		changed = false
		end := alignedStart + alignedSize
		for _, fp := range manifest.Parts() {
			if cancelledSet[fp] {
				continue
			}
			if fp.Start+fp.Size-1 < alignedStart || end-1 < fp.Start {
				continue
			}
			if fp.Start+fp.Size-1 > end-1 {
				alignedSize += (fp.Start + fp.Size) - end
				changed = true
			}
			cancelledSet[fp] = true
			cancel = append(cancel, fp)
		}
	}
	if len(cancel) > 0 {
		manifest.EraseOverlapping(Interval{Start: alignedStart, Size: alignedSize})
	}

	for alignedSize >= p.M {
		upload = append(upload, PlannedPart{Start: alignedStart, Size: p.M, PartNum: PartNumberFor(alignedStart, p.M)})
		alignedStart += p.M
		alignedSize -= p.M
	}
	return upload, cancel
}
