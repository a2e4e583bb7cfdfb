package world

import (
	"sync"
	"testing"
)

func TestLoadPermitIsSingleOwner(t *testing.T) {
	r := newRegion(RegionPos{0, 0}, 0)

	const n = 32
	var wg sync.WaitGroup
	granted := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			granted[i] = r.LoadPermit()
		}(i)
	}
	wg.Wait()

	count := 0
	for _, g := range granted {
		if g {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one LoadPermit grant among %d callers, got %d", n, count)
	}
}

func TestLifecycleTransitionsInOrder(t *testing.T) {
	r := newRegion(RegionPos{0, 0}, 0)
	if r.Lifecycle() != New {
		t.Fatalf("new region lifecycle = %v, want New", r.Lifecycle())
	}
	if !r.LoadPermit() {
		t.Fatal("LoadPermit should succeed from New")
	}
	if r.Lifecycle() != Loading {
		t.Fatalf("lifecycle = %v, want Loading", r.Lifecycle())
	}
	if !r.GenerationPermit() {
		t.Fatal("GenerationPermit should succeed from Loading")
	}
	if r.Lifecycle() != Generating {
		t.Fatalf("lifecycle = %v, want Generating", r.Lifecycle())
	}
	if !r.SetGenerated() {
		t.Fatal("SetGenerated should succeed from Generating")
	}
	if r.Lifecycle() != Prepared {
		t.Fatalf("lifecycle = %v, want Prepared", r.Lifecycle())
	}
	if r.SetGenerated() {
		t.Fatal("second SetGenerated call must be rejected")
	}
}

func TestSaveCoalescingAtMostTwoSaves(t *testing.T) {
	r := newRegion(RegionPos{0, 0}, 0)

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	grants := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.GetSavePermit() {
				mu.Lock()
				grants++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if grants < 1 || grants > 2 {
		t.Fatalf("expected 1 or 2 save grants among %d concurrent requests, got %d", n, grants)
	}
}

func TestFinishSavingReportsSaveAgainWhenWaiting(t *testing.T) {
	r := newRegion(RegionPos{0, 0}, 0)
	if !r.GetSavePermit() {
		t.Fatal("expected first GetSavePermit to succeed")
	}
	if r.GetSavePermit() {
		t.Fatal("second concurrent GetSavePermit must not succeed")
	}
	if r.SaveState() != Waiting {
		t.Fatalf("SaveState = %v, want Waiting", r.SaveState())
	}
	if !r.FinishSaving() {
		t.Fatal("FinishSaving should report saveAgain=true when a save was queued")
	}
	if r.SaveState() != IdleWaiter {
		t.Fatalf("SaveState = %v, want IdleWaiter", r.SaveState())
	}
	if !r.GetSavePermit() {
		t.Fatal("GetSavePermit should succeed again from IdleWaiter")
	}
	if r.FinishSaving() {
		t.Fatal("FinishSaving should report saveAgain=false with no pending request")
	}
	if r.SaveState() != Idle {
		t.Fatalf("SaveState = %v, want Idle", r.SaveState())
	}
}

func TestWaitUntilSavedBlocksUntilIdle(t *testing.T) {
	r := newRegion(RegionPos{0, 0}, 0)
	r.GetSavePermit()

	done := make(chan struct{})
	go func() {
		r.WaitUntilSaved()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitUntilSaved returned before the save finished")
	default:
	}

	r.FinishSaving()
	<-done
}

func TestStructureQueueDrainIsExhaustive(t *testing.T) {
	r := newRegion(RegionPos{0, 0}, 0)
	for i := 0; i < 5; i++ {
		r.AddStructure(QueuedStructure{Name: "tree"})
	}
	drained := r.DrainStructures()
	if len(drained) != 5 {
		t.Fatalf("expected 5 queued structures, got %d", len(drained))
	}
	if more := r.DrainStructures(); more != nil {
		t.Fatalf("expected nil after full drain, got %v", more)
	}
}
