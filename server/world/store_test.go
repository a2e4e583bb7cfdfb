package world

import (
	"testing"
	"time"
)

func waitLifecycle(t *testing.T, r *Region, want Lifecycle) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for r.Lifecycle() != want {
		if time.Now().After(deadline) {
			t.Fatalf("region %v never reached %v (stuck at %v)", r.Pos(), want, r.Lifecycle())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegionWithNoLoaderGeneratesImmediately(t *testing.T) {
	s := newRegionStore(Config{}, nil)
	r := s.Region(RegionPos{1, 1})
	waitLifecycle(t, r, Prepared)
}

func TestAnchorSliceMakesRegionResident(t *testing.T) {
	s := newRegionStore(Config{}, nil)
	sp := SlicePos{2, 2}
	s.AnchorSlice(sp)
	r, ok := s.RegionIfResident(sp.RegionAt())
	if !ok {
		t.Fatal("expected region to be resident after AnchorSlice")
	}
	if r.AnchoredSlices() != 1 {
		t.Fatalf("AnchoredSlices = %d, want 1", r.AnchoredSlices())
	}
	s.DeAnchorSlice(sp)
	if r.AnchoredSlices() != 0 {
		t.Fatalf("AnchoredSlices after deanchor = %d, want 0", r.AnchoredSlices())
	}
}

func TestNeighbourActivationTracksAnchors(t *testing.T) {
	s := newRegionStore(Config{}, nil)
	center := RegionPos{0, 0}
	neighbour := RegionPos{1, 0}

	// Make both regions resident first.
	s.Region(center)
	nr := s.Region(neighbour)
	waitLifecycle(t, nr, Prepared)

	s.AnchorSlice(SlicePos{center[0] * RegionSize, center[1] * RegionSize})
	if nr.ActiveNeighbours() != 1 {
		t.Fatalf("neighbour ActiveNeighbours = %d, want 1", nr.ActiveNeighbours())
	}

	s.DeAnchorSlice(SlicePos{center[0] * RegionSize, center[1] * RegionSize})
	if nr.ActiveNeighbours() != 0 {
		t.Fatalf("neighbour ActiveNeighbours after deanchor = %d, want 0", nr.ActiveNeighbours())
	}
}

func TestUnloadGraceCountsDownThenEvicts(t *testing.T) {
	cfg := Config{UnloadGrace: 3}
	s := newRegionStore(cfg, func() uint64 { return 0 })
	sp := SlicePos{0, 0}
	s.AnchorSlice(sp)
	r, _ := s.RegionIfResident(sp.RegionAt())
	waitLifecycle(t, r, Prepared)

	s.DeAnchorSlice(sp)

	for age := uint64(1); age <= 1; age++ {
		s.Tick(age)
	}
	if r.TicksToUnload() != 3 {
		t.Fatalf("TicksToUnload after first post-deanchor tick = %d, want 3 (grace just armed)", r.TicksToUnload())
	}

	for age := uint64(2); age <= 4; age++ {
		s.Tick(age)
	}
	if _, ok := s.RegionIfResident(sp.RegionAt()); ok {
		t.Fatal("expected region to be evicted once ticksToUnload reaches 0")
	}
}

func TestAnchoredRegionIsNeverEvicted(t *testing.T) {
	cfg := Config{UnloadGrace: 1}
	s := newRegionStore(cfg, func() uint64 { return 0 })
	sp := SlicePos{0, 0}
	s.AnchorSlice(sp)
	r, _ := s.RegionIfResident(sp.RegionAt())
	waitLifecycle(t, r, Prepared)

	for age := uint64(1); age <= 20; age++ {
		s.Tick(age)
	}
	if _, ok := s.RegionIfResident(sp.RegionAt()); !ok {
		t.Fatal("anchored region must never be evicted")
	}
	if r.TicksToUnload() != -1 {
		t.Fatalf("TicksToUnload for anchored region = %d, want -1", r.TicksToUnload())
	}
}
