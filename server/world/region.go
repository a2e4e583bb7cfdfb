package world

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/segmentio/fasthash/fnv1a"
)

// Lifecycle is the state of a Region's load/generate pipeline.
type Lifecycle int32

const (
	// New is the initial state of a Region that has been constructed but
	// has not yet been claimed by the loader.
	New Lifecycle = iota
	// Loading is set once the loader owns the Region, before it is known
	// whether the region must still be generated.
	Loading
	// Generating is set once the generator owns the Region.
	Generating
	// Prepared is set once the Region is fully loaded and generated and may
	// be read and written by any component.
	Prepared
)

func (l Lifecycle) String() string {
	switch l {
	case New:
		return "new"
	case Loading:
		return "loading"
	case Generating:
		return "generating"
	case Prepared:
		return "prepared"
	default:
		return "unknown"
	}
}

// SaveState is the state of a Region's independent save pipeline. It is
// tracked separately from Lifecycle because saves may occur in any state
// except New and may overlap generation and tick reads (see spec §4.3).
type SaveState int32

const (
	// Idle means no save is in flight and none has been requested.
	Idle SaveState = iota
	// Saving means a saver worker currently holds the save permit.
	Saving
	// Waiting means a save is in flight and at least one more save was
	// requested while it ran; the saver must loop back after finishing.
	Waiting
	// IdleWaiter means a save just finished, a follow-up save was
	// requested, but nobody has yet re-acquired the permit for it. The next
	// caller of getSavePermit transitions this straight back to Saving.
	IdleWaiter
)

func (s SaveState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Saving:
		return "saving"
	case Waiting:
		return "waiting"
	case IdleWaiter:
		return "idle_waiter"
	default:
		return "unknown"
	}
}

// UnloadGraceTicks is the number of ticks a Region with zero anchors must
// remain resident before it becomes eligible for eviction. Default is
// 10 seconds at TPS = 60.
const UnloadGraceTicks = 10 * TPS

// TPS is the default number of ticks per second the host façade drives the
// world at.
const TPS = 60

// QueuedStructure is a named piece of generator output targeting a specific
// slice/tile, possibly in a neighbouring Region, applied once its target
// Region reaches Prepared.
type QueuedStructure struct {
	ID                 uuid.UUID
	Name               string
	SliceX, SliceY     int32
	TileX, TileY       uint8
	OffsetX, OffsetY   int32
}

// nameHash returns a stable 64-bit tag for the structure's Name, for
// bucketing structures by kind without string comparisons. No code in this
// module calls it; the drain path does not use it.
func (q QueuedStructure) nameHash() uint64 {
	return fnv1a.HashString64(q.Name)
}

// Region is a RegionSize x RegionSize grid of slices plus region-wide
// lifecycle, save and residency state. A Region is exclusively owned by the
// RegionStore that created it; every other component holds a non-owning
// handle valid only for the current tick or background task.
type Region struct {
	pos RegionPos

	slices [RegionSize][RegionSize]*Slice

	lifecycle atomic.Int32
	generated atomic.Bool

	saveMu    sync.Mutex
	saveCond  *sync.Cond
	saveState SaveState

	anchoredSlices   atomic.Uint32
	activeNeighbours atomic.Uint32
	ticksToUnload    atomic.Int32

	lastSaved atomic.Uint64

	structMu   sync.Mutex
	structures []QueuedStructure

	active atomic.Bool
}

// newRegion constructs a Region in the New lifecycle state with every slice
// populated (per the Slice invariant) with the background tile id passed.
func newRegion(pos RegionPos, background uint32) *Region {
	r := &Region{pos: pos}
	r.saveCond = sync.NewCond(&r.saveMu)
	r.ticksToUnload.Store(-1)
	for y := 0; y < RegionSize; y++ {
		for x := 0; x < RegionSize; x++ {
			r.slices[y][x] = newSlice(background)
		}
	}
	return r
}

// Pos returns the region's immutable coordinate.
func (r *Region) Pos() RegionPos { return r.pos }

// Lifecycle returns the current lifecycle state.
func (r *Region) Lifecycle() Lifecycle { return Lifecycle(r.lifecycle.Load()) }

// Generated reports whether the region has completed generation.
func (r *Region) Generated() bool { return r.generated.Load() }

// Slice returns the slice at the region-local slice coordinate passed. x and
// y must each be in [0, RegionSize).
func (r *Region) Slice(x, y int32) *Slice { return r.slices[y][x] }

// --- Lifecycle state machine (§4.2) ---

// LoadPermit attempts the New -> Loading transition. Only the loader may
// call this. It returns whether the transition occurred; false means some
// other component already owns this region's load/generate step and the
// caller must back off.
func (r *Region) LoadPermit() bool {
	return r.lifecycle.CompareAndSwap(int32(New), int32(Loading))
}

// GenerationPermit attempts the Loading -> Generating transition. Only the
// generator may call this.
func (r *Region) GenerationPermit() bool {
	return r.lifecycle.CompareAndSwap(int32(Loading), int32(Generating))
}

// ResetLoad reverts a failed load attempt back to New, so that a later
// caller may retry loadPermit(). Only the loader may call this, and only
// while it still holds the Loading state (i.e. before any generation
// permit has been granted); it is a no-op otherwise. Used when a region's
// on-disk document turns out to be malformed: the region must not be
// mounted on corrupt data, and must not be left stuck in Loading forever.
func (r *Region) ResetLoad() {
	r.lifecycle.CompareAndSwap(int32(Loading), int32(New))
}

// SetLoaded is called by the loader once its registered steps have all run.
// wasGenerated reports whether the on-disk document carried generated=true.
// If wasGenerated is true and no structures are queued, the region
// transitions straight to Prepared; if structures remain queued, or the
// region was never generated, it stays in Loading so the generator can
// claim it next.
func (r *Region) SetLoaded(wasGenerated bool) {
	if wasGenerated && !r.hasQueuedStructures() {
		r.generated.Store(true)
		r.lifecycle.CompareAndSwap(int32(Loading), int32(Prepared))
		return
	}
	if wasGenerated {
		r.generated.Store(true)
	}
}

// SetGenerated marks the region as generated and transitions it to Prepared.
// It may be called by the loader (as a shortcut when loading an
// already-generated region with no pending structures) or by the generator
// after it finishes producing tiles. A second call once the region is
// already Prepared is a double-generate; it is rejected by returning false
// and does not change state.
func (r *Region) SetGenerated() bool {
	if r.Lifecycle() == Prepared {
		return false
	}
	r.generated.Store(true)
	r.lifecycle.Store(int32(Prepared))
	return true
}

func (r *Region) hasQueuedStructures() bool {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	return len(r.structures) > 0
}

// --- Save state machine (§4.3) ---

// GetSavePermit returns true iff the caller now owns the save slot. If it
// returns false, a save is already in flight (or queued) and will observe
// any modification made before this call, because acquiring saveMu
// establishes happens-before with the in-progress saver.
func (r *Region) GetSavePermit() bool {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	switch r.saveState {
	case Idle:
		r.saveState = Saving
		return true
	case Saving:
		r.saveState = Waiting
		return false
	case Waiting:
		// Already coalesced; nothing more to do.
		return false
	case IdleWaiter:
		r.saveState = Saving
		return true
	default:
		return false
	}
}

// FinishSaving releases the save permit. It returns true if another save was
// requested while this one ran, in which case the caller must loop back to
// GetSavePermit and save again.
func (r *Region) FinishSaving() (saveAgain bool) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	switch r.saveState {
	case Waiting:
		r.saveState = IdleWaiter
		saveAgain = true
	default:
		r.saveState = Idle
	}
	r.saveCond.Broadcast()
	return saveAgain
}

// WaitUntilSaved blocks the caller until the save state returns to Idle.
func (r *Region) WaitUntilSaved() {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	for r.saveState != Idle {
		r.saveCond.Wait()
	}
}

// SaveState returns the current save state.
func (r *Region) SaveState() SaveState {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	return r.saveState
}

// LastSaved returns the world-age, in ticks, at which the region was last
// persisted.
func (r *Region) LastSaved() uint64 { return r.lastSaved.Load() }

// SetLastSaved records the world-age at which the region was persisted.
func (r *Region) SetLastSaved(age uint64) { r.lastSaved.Store(age) }

// --- Residency fields (mutated only by the tick thread; see store.go) ---

// AnchoredSlices returns the number of slices in this region currently
// considered in-use by a client.
func (r *Region) AnchoredSlices() uint32 { return r.anchoredSlices.Load() }

// ActiveNeighbours returns how many of the eight neighbouring regions
// currently hold at least one anchored slice. The neighbours' lifecycle
// state is not considered: an anchored neighbour counts whether or not it is
// Prepared.
func (r *Region) ActiveNeighbours() uint32 { return r.activeNeighbours.Load() }

// TicksToUnload returns the current unload countdown; -1 means the region is
// still anchored and not counting down.
func (r *Region) TicksToUnload() int32 { return r.ticksToUnload.Load() }

// Active reports whether the region contributes to the residency frontier.
func (r *Region) Active() bool { return r.active.Load() }

// --- Structure queue (MPSC append, single-consumer drain) ---

// AddStructure enqueues a structure produced by the generator. Safe for
// concurrent callers; writes performed before AddStructure happen-before
// reads performed during DrainStructures, because both hold structMu.
func (r *Region) AddStructure(s QueuedStructure) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.structMu.Lock()
	r.structures = append(r.structures, s)
	r.structMu.Unlock()
}

// DrainStructures removes and returns every currently queued structure.
// Intended for the single consumer (the tick thread, or the generator while
// it still owns the region).
func (r *Region) DrainStructures() []QueuedStructure {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	if len(r.structures) == 0 {
		return nil
	}
	out := r.structures
	r.structures = nil
	return out
}

// Structures returns a snapshot copy of every currently queued structure,
// without removing them. Intended for the saver path: a region being saved
// or evicted may still have structures queued against a neighbour that
// hasn't reached Prepared yet, and those must survive the save untouched.
func (r *Region) Structures() []QueuedStructure {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	if len(r.structures) == 0 {
		return nil
	}
	out := make([]QueuedStructure, len(r.structures))
	copy(out, r.structures)
	return out
}
