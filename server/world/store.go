package world

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/brentp/intintmap"
)

// RegionStore owns every Region currently resident in memory, keyed by
// coordinate. It is the sole authority on residency: anchor propagation to
// neighbours, the per-tick eviction scan, and handoff to the RegionLoader
// for regions that are not yet cached all live here (spec §4.4).
type RegionStore struct {
	mu sync.RWMutex
	// index maps RegionPos.Hash() to a 1-based slot index into regions (0
	// means absent). A fast open-addressed int64->int64 map is used because
	// this lookup happens on every tile accessor call.
	index   *intintmap.Map
	regions []*Region
	free    []int32

	cfg Config
	log *slog.Logger

	worldAge  func() uint64
	evictions atomic.Uint64
}

func newRegionStore(cfg Config, worldAge func() uint64) *RegionStore {
	return &RegionStore{
		index:    intintmap.New(1024, 0.75),
		cfg:      cfg,
		log:      cfg.log(),
		worldAge: worldAge,
	}
}

// slotFor returns the region at pos if resident, without triggering a load.
func (s *RegionStore) slotFor(pos RegionPos) (*Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index.Get(pos.Hash())
	if !ok {
		return nil, false
	}
	return s.regions[idx-1], true
}

// insert registers a newly constructed region in the store's index.
func (s *RegionStore) insert(r *Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var slot int32
	if n := len(s.free); n > 0 {
		slot = s.free[n-1]
		s.free = s.free[:n-1]
		s.regions[slot] = r
	} else {
		slot = int32(len(s.regions))
		s.regions = append(s.regions, r)
	}
	s.index.Put(r.pos.Hash(), int64(slot+1))
}

// remove evicts pos from the store's index. The caller must already hold
// the guarantee that the region is safe to forget (see evictionEligible).
// intintmap.Map is an open-addressed map optimised for insert/lookup and
// does not expose a removal primitive, so the index is rebuilt from the
// surviving slots; eviction is not a hot path, so the O(n) rebuild is cheap
// relative to the I/O it follows.
func (s *RegionStore) remove(pos RegionPos) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index.Get(pos.Hash())
	if !ok {
		return
	}
	s.regions[idx-1] = nil
	s.free = append(s.free, int32(idx-1))

	rebuilt := intintmap.New(max(len(s.regions), 16), 0.75)
	for i, r := range s.regions {
		if r != nil {
			rebuilt.Put(r.pos.Hash(), int64(i+1))
		}
	}
	s.index = rebuilt
}

// Region returns the Region at pos, loading (and, if needed, generating) it
// first if it is not yet resident. The returned Region may not yet be
// Prepared; callers that need fully-populated slices must check
// r.Lifecycle() == Prepared themselves (see host.go's dummySlice fallback).
func (s *RegionStore) Region(pos RegionPos) *Region {
	if r, ok := s.slotFor(pos); ok {
		return r
	}
	r := newRegion(pos, s.cfg.Background)
	for _, n := range pos.Neighbours() {
		if nr, ok := s.slotFor(n); ok && nr.AnchoredSlices() > 0 {
			r.activeNeighbours.Add(1)
		}
	}
	s.insert(r)
	s.beginLoad(pos, r)
	return r
}

// RegionIfResident returns the Region at pos only if it is already cached,
// without starting a load.
func (s *RegionStore) RegionIfResident(pos RegionPos) (*Region, bool) {
	return s.slotFor(pos)
}

func (s *RegionStore) beginLoad(pos RegionPos, r *Region) {
	if s.cfg.Loader == nil {
		// No persistence configured: generate in place synchronously.
		if !r.LoadPermit() {
			return
		}
		r.SetLoaded(false)
		if r.GenerationPermit() {
			if s.cfg.Generator != nil {
				s.cfg.Generator.Generate(pos, r, s.cfg.Seed)
			}
			r.SetGenerated()
		}
		return
	}
	s.cfg.Loader.LoadRegion(pos, r, true, func(loaded *Region, success bool) {
		if !success {
			s.log.Error("load region failed", "rx", pos[0], "ry", pos[1])
		}
	})
}

// AnchorSlice increments the anchor count of the region containing the
// slice position passed, main-thread only. Crossing 0 -> 1 notifies the
// eight neighbouring regions so they can recompute ActiveNeighbours.
func (s *RegionStore) AnchorSlice(slicePos SlicePos) {
	pos := slicePos.RegionAt()
	r := s.Region(pos)
	if r.anchoredSlices.Add(1) == 1 {
		r.ticksToUnload.Store(-1)
		s.notifyNeighbours(pos, 1)
	}
}

// DeAnchorSlice decrements the anchor count of the region containing the
// slice position passed, main-thread only.
func (s *RegionStore) DeAnchorSlice(slicePos SlicePos) {
	pos := slicePos.RegionAt()
	r, ok := s.slotFor(pos)
	if !ok {
		return
	}
	for {
		cur := r.anchoredSlices.Load()
		if cur == 0 {
			return
		}
		if r.anchoredSlices.CompareAndSwap(cur, cur-1) {
			if cur-1 == 0 {
				s.notifyNeighbours(pos, -1)
			}
			return
		}
	}
}

// notifyNeighbours updates ActiveNeighbours on every neighbour of pos by
// delta, without triggering loads for neighbours that aren't resident (a
// neighbour that becomes resident later counts its anchored neighbours when
// Region creates it).
func (s *RegionStore) notifyNeighbours(pos RegionPos, delta int32) {
	for _, n := range pos.Neighbours() {
		r, ok := s.slotFor(n)
		if !ok {
			continue
		}
		if delta > 0 {
			r.activeNeighbours.Add(1)
		} else {
			for {
				cur := r.activeNeighbours.Load()
				if cur == 0 {
					break
				}
				if r.activeNeighbours.CompareAndSwap(cur, cur-1) {
					break
				}
			}
		}
	}
}

// Stats is a point-in-time snapshot of store occupancy, useful for
// operators; it carries no gameplay meaning.
type Stats struct {
	Loaded     int
	Generating int
	Prepared   int
	Evictions  uint64
}

// Snapshot returns a Stats snapshot of the store's current contents.
func (s *RegionStore) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, r := range s.regions {
		if r == nil {
			continue
		}
		st.Loaded++
		switch r.Lifecycle() {
		case Generating:
			st.Generating++
		case Prepared:
			st.Prepared++
		}
	}
	st.Evictions = s.evictions.Load()
	return st
}

// All returns a snapshot slice of every resident region, safe to iterate
// without holding the store's lock (per spec's "map's structure is never
// mutated during iteration").
func (s *RegionStore) All() []*Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Region, 0, len(s.regions)-len(s.free))
	for _, r := range s.regions {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Tick runs the per-region residency policy (§4.4) for every resident
// Prepared region, then evicts every region that became eligible this tick.
// Tick is main-thread only.
func (s *RegionStore) Tick(age uint64) {
	for _, r := range s.All() {
		if r.Lifecycle() != Prepared {
			continue
		}
		s.tickRegion(r, age)
	}
	for _, r := range s.All() {
		if s.evictionEligible(r) {
			s.evict(r)
		}
	}
}

func (s *RegionStore) tickRegion(r *Region, age uint64) {
	if r.AnchoredSlices() > 0 {
		r.ticksToUnload.Store(-1)
		if s.cfg.TileTicker != nil {
			s.cfg.TileTicker(r.pos, r)
		}
		stagger := s.cfg.stagger() * TPS
		phase := (int64(r.pos[1]&7)*8 + int64(r.pos[0]&7)) * TPS
		if stagger > 0 && int64(age)%stagger == phase {
			s.requestSave(r, false)
		}
		s.applyQueuedStructures(r)
		return
	}
	switch t := r.ticksToUnload.Load(); {
	case t > 0:
		r.ticksToUnload.Add(-1)
	case t == -1:
		r.ticksToUnload.Store(s.cfg.unloadGrace())
	default:
		// t == 0: eligible for removal, handled by evictionEligible below.
	}
}

// applyQueuedStructures drains structures queued for r and applies any that
// target this region or a resident, Prepared neighbour; structures targeting
// a region that is not resident or not yet Prepared are queued on r again
// and retried on a later tick (spec S5).
func (s *RegionStore) applyQueuedStructures(r *Region) {
	for _, st := range r.DrainStructures() {
		target := SlicePos{st.SliceX, st.SliceY}.RegionAt()
		if target == r.pos {
			s.implant(r, st)
			continue
		}
		if tr, ok := s.slotFor(target); ok && tr.Lifecycle() == Prepared {
			s.implant(tr, st)
			continue
		}
		r.AddStructure(st)
	}
}

// implant is the hook structures are applied through once their target
// region is Prepared. Concrete structure placement is a generator/tile
// concern external to this engine; the default implementation is a no-op
// that merely proves the structure reached its destination.
func (s *RegionStore) implant(*Region, QueuedStructure) {}

func (s *RegionStore) requestSave(r *Region, sync bool) {
	if s.cfg.Loader == nil {
		return
	}
	s.cfg.Loader.SaveRegion(r.pos, r, sync, func(success bool) {
		if success {
			r.SetLastSaved(s.currentAge())
		}
	})
}

func (s *RegionStore) currentAge() uint64 {
	if s.worldAge != nil {
		return s.worldAge()
	}
	return 0
}

// evictionEligible implements invariant 5: a region is only evicted when
// anchoredSlices == 0, activeNeighbours == 0, ticksToUnload == 0, lifecycle
// == Prepared and saveState == Idle.
func (s *RegionStore) evictionEligible(r *Region) bool {
	return r.Lifecycle() == Prepared &&
		r.AnchoredSlices() == 0 &&
		r.ActiveNeighbours() == 0 &&
		r.ticksToUnload.Load() == 0 &&
		r.SaveState() == Idle
}

func (s *RegionStore) evict(r *Region) {
	s.requestSave(r, true)
	if r.SaveState() != Idle {
		// A save just got coalesced underneath us; defer removal to a
		// future tick once it settles.
		return
	}
	s.remove(r.pos)
	s.evictions.Add(1)
}

// Close synchronously saves every Prepared region and removes every resident
// region, for use during world shutdown.
func (s *RegionStore) Close() {
	for _, r := range s.All() {
		if r.Lifecycle() == Prepared {
			s.requestSave(r, true)
		}
		s.remove(r.pos)
	}
}
