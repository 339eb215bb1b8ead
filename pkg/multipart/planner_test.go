package multipart

import "testing"

// testPlanner uses small, human-scale bounds so the scenario fixtures below
// (taken directly from the documented classification examples) can exercise
// the gap-absorption and min/max-part-size guards without working in
// mebibyte-scale numbers.
func testPlanner() *Planner {
	return &Planner{M: 10, MinPartSize: 5, MaxPartSize: 1_000_000}
}

func copyOf(parts ...PlannedPart) []PlannedPart { return parts }

func assertPlannedParts(t *testing.T, label string, got, want []PlannedPart) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s[%d] = %v, want %v", label, i, got[i], want[i])
		}
	}
}

func assertIntervals(t *testing.T, label string, got, want []Interval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s[%d] = %v, want %v", label, i, got[i], want[i])
		}
	}
}

// S1: an entirely clean file with use_copy plans every window as a copy.
func TestPlanWholeFile_S1_AllClean(t *testing.T) {
	p := testPlanner()
	manifest := NewManifest(NewEtagRegistry())

	plan, err := p.PlanWholeFile(nil, manifest, 35, true)
	if err != nil {
		t.Fatalf("PlanWholeFile() error = %v", err)
	}

	assertPlannedParts(t, "copy", plan.Copy, copyOf(
		PlannedPart{0, 10, 1}, PlannedPart{10, 10, 2}, PlannedPart{20, 10, 3}, PlannedPart{30, 5, 4},
	))
	if len(plan.Upload) != 0 || len(plan.Download) != 0 || len(plan.Cancel) != 0 {
		t.Errorf("expected upload/download/cancel all empty, got %+v", plan)
	}
}

// S2: a dirty range straddling the window-1/window-2 boundary. The gap
// between the dirty range's start and the window boundary is absorbed into
// the preceding copy part rather than downloaded, per
// ExtractUploadPartsFromAllArea's gap-absorption rule (see DESIGN.md for
// why this differs from the literal scenario text in the distilled spec).
func TestPlanWholeFile_S2_GapAbsorption(t *testing.T) {
	p := testPlanner()
	manifest := NewManifest(NewEtagRegistry())
	dirty := NewUntreatedParts()
	dirty.Add(12, 3)

	plan, err := p.PlanWholeFile(dirty.Duplicate(), manifest, 35, true)
	if err != nil {
		t.Fatalf("PlanWholeFile() error = %v", err)
	}

	assertPlannedParts(t, "copy", plan.Copy, copyOf(
		PlannedPart{0, 12, 1}, PlannedPart{20, 10, 3}, PlannedPart{30, 5, 4},
	))
	assertPlannedParts(t, "upload", plan.Upload, copyOf(PlannedPart{12, 8, 2}))
	assertIntervals(t, "download", plan.Download, []Interval{{15, 5}})
	if len(plan.Cancel) != 0 {
		t.Errorf("cancel = %v, want empty", plan.Cancel)
	}
}

// S3: a dirty range at the very start of the file, with no preceding copy
// part to absorb into, so the whole leading gap falls through as a normal
// download.
func TestPlanWholeFile_S3_LeadingDirtyNoAbsorption(t *testing.T) {
	p := testPlanner()
	manifest := NewManifest(NewEtagRegistry())
	dirty := NewUntreatedParts()
	dirty.Add(0, 3)

	plan, err := p.PlanWholeFile(dirty.Duplicate(), manifest, 35, true)
	if err != nil {
		t.Fatalf("PlanWholeFile() error = %v", err)
	}

	assertPlannedParts(t, "upload", plan.Upload, copyOf(PlannedPart{0, 10, 1}))
	assertIntervals(t, "download", plan.Download, []Interval{{3, 7}})
	assertPlannedParts(t, "copy", plan.Copy, copyOf(
		PlannedPart{10, 10, 2}, PlannedPart{20, 10, 3}, PlannedPart{30, 5, 4},
	))
}

// S4: a window already in the manifest but not yet uploaded, hit again by a
// fresh write. The planner must cancel the stale entry, force a wait for
// in-flight completion, and re-upload the whole window.
func TestPlanWholeFile_S4_CancelAndReupload(t *testing.T) {
	p := testPlanner()
	manifest := NewManifest(NewEtagRegistry())
	existing := manifest.Insert(10, 10, 2, false, -1)
	existing.Uploaded = false

	dirty := NewUntreatedParts()
	dirty.Add(14, 2)

	plan, err := p.PlanWholeFile(dirty.Duplicate(), manifest, 20, true)
	if err != nil {
		t.Fatalf("PlanWholeFile() error = %v", err)
	}

	if !plan.WaitUploadComplete {
		t.Error("WaitUploadComplete = false, want true")
	}
	if len(plan.Cancel) != 1 || plan.Cancel[0] != existing {
		t.Errorf("Cancel = %v, want [%v]", plan.Cancel, existing)
	}
	assertPlannedParts(t, "upload", plan.Upload, copyOf(PlannedPart{10, 10, 2}))
}

// S4b: the same collision, but the stale manifest entry is already uploaded
// — cancelling it must not force a wait, since there is nothing in flight.
func TestPlanWholeFile_S4_CancelAlreadyUploadedDoesNotWait(t *testing.T) {
	p := testPlanner()
	manifest := NewManifest(NewEtagRegistry())
	existing := manifest.Insert(10, 10, 2, false, -1)
	existing.Uploaded = true

	dirty := NewUntreatedParts()
	dirty.Add(14, 2)

	plan, err := p.PlanWholeFile(dirty.Duplicate(), manifest, 20, true)
	if err != nil {
		t.Fatalf("PlanWholeFile() error = %v", err)
	}
	if plan.WaitUploadComplete {
		t.Error("WaitUploadComplete = true, want false")
	}
}

// S5: boundary-last-flush over [12,30) with M=10 aligns down to [20,30),
// submits the single aligned part, and leaves [12,20) as the front
// remainder with no back remainder.
func TestPlanBoundaryLastFlush_S5_Aligns(t *testing.T) {
	p := testPlanner()
	manifest := NewManifest(NewEtagRegistry())

	upload, cancel, front, back, ok := p.PlanBoundaryLastFlush(Interval{Start: 12, Size: 18}, manifest)
	if !ok {
		t.Fatal("PlanBoundaryLastFlush() ok = false, want true")
	}
	assertPlannedParts(t, "upload", upload, copyOf(PlannedPart{20, 10, 3}))
	if len(cancel) != 0 {
		t.Errorf("cancel = %v, want empty", cancel)
	}
	if front != (Interval{12, 8}) {
		t.Errorf("front = %v, want {12 8}", front)
	}
	if !back.Empty() {
		t.Errorf("back = %v, want empty", back)
	}
}

// S6: a sub-M-sized untreated tail produces no aligned region at all.
func TestPlanBoundaryLastFlush_S6_TooSmallIsNoop(t *testing.T) {
	p := testPlanner()
	manifest := NewManifest(NewEtagRegistry())

	_, _, _, _, ok := p.PlanBoundaryLastFlush(Interval{Start: 0, Size: 9}, manifest)
	if ok {
		t.Error("PlanBoundaryLastFlush() ok = true, want false for a sub-M tail")
	}
}

func TestPlanWholeFile_MisalignedManifestEntry(t *testing.T) {
	p := testPlanner()
	manifest := NewManifest(NewEtagRegistry())
	// two sub-window fragments both overlapping window [0,10) violate the
	// "at most one manifest entry per window" alignment invariant.
	manifest.Insert(2, 3, 1, false, -1)
	manifest.Insert(6, 2, 2, false, -1)

	if _, err := p.PlanWholeFile(nil, manifest, 10, true); err == nil {
		t.Fatal("PlanWholeFile() with two manifest entries in one window should return an error")
	}
}

func TestPlanBoundaryLastFlush_AbsorbsOverlappingManifestEntries(t *testing.T) {
	p := testPlanner()
	manifest := NewManifest(NewEtagRegistry())
	stale := manifest.Insert(25, 10, 3, false, -1)

	upload, cancel, _, _, ok := p.PlanBoundaryLastFlush(Interval{Start: 12, Size: 18}, manifest)
	if !ok {
		t.Fatal("PlanBoundaryLastFlush() ok = false, want true")
	}
	if len(cancel) != 1 || cancel[0] != stale {
		t.Errorf("cancel = %v, want [%v]", cancel, stale)
	}
	// the aligned region grew to [20,35) to cover the stale entry, but only
	// one full M-sized part fits starting at 20; the 5-byte remainder is
	// below M and is not emitted as a part by this pass.
	assertPlannedParts(t, "upload", upload, copyOf(PlannedPart{20, 10, 3}))
}

func TestPartNumberFor(t *testing.T) {
	tests := []struct {
		start, m int64
		want     int
	}{
		{0, 10, 1},
		{9, 10, 1},
		{10, 10, 2},
		{35, 10, 4},
	}
	for _, tc := range tests {
		if got := PartNumberFor(tc.start, tc.m); got != tc.want {
			t.Errorf("PartNumberFor(%d, %d) = %d, want %d", tc.start, tc.m, got, tc.want)
		}
	}
}
