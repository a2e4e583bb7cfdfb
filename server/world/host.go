package world

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

// Position addresses a single tile: the slice it falls within, its local
// tile coordinate inside that slice, and sub-tile fractions for callers that
// need continuous placement (entity positions, spawn points). Position is
// tile-aligned when FracX == FracY == 0.
type Position struct {
	SliceX, SliceY   int32
	LocalX, LocalY   uint8
	FracX, FracY     float64
}

// PositionFromVec2 converts a continuous world-space vector (in tile units)
// into a Position, flooring toward negative infinity per spec §4.1.
func PositionFromVec2(v mgl64.Vec2) Position {
	tx, ty := tileFloor(v.X()), tileFloor(v.Y())
	sx, sy := sliceFromTile(tx), sliceFromTile(ty)
	return Position{
		SliceX: sx, SliceY: sy,
		LocalX: uint8(localTileInSlice(tx)), LocalY: uint8(localTileInSlice(ty)),
		FracX: v.X() - float64(tx), FracY: v.Y() - float64(ty),
	}
}

// Aligned reports whether the Position has no fractional component, i.e. it
// addresses exactly one tile.
func (p Position) Aligned() bool { return p.FracX == 0 && p.FracY == 0 }

// SlicePos returns the slice coordinate this Position falls within.
func (p Position) SlicePos() SlicePos { return SlicePos{p.SliceX, p.SliceY} }

// TilePos returns the absolute tile coordinate this Position addresses.
func (p Position) TilePos() TilePos {
	return TilePos{p.SliceX<<sliceShift + int32(p.LocalX), p.SliceY<<sliceShift + int32(p.LocalY)}
}

// EntityHandle is an opaque reference to an entity bound to the World,
// buffered through AddEntity/RemoveEntity. The engine does not interpret
// entity behaviour; it only tracks which handles are bound to the World for
// deferred-mutation purposes (§4.7). The slice recorded for each handle is
// the zero SlicePos; nothing updates it.
type EntityHandle any

// World is the host façade (C7): it exposes tile/slice/wall/light/
// tile-entity accessors to game code, routes mutation through the region
// store, and drives the tick sequence. A nil *World is not safe to use,
// unlike the teacher's World which tolerates nil receivers for read paths;
// this engine has no such legacy compatibility obligation.
type World struct {
	store  *RegionStore
	ticker *ticker

	age atomic.Uint64

	pendingMu     sync.Mutex
	pendingAdd    []EntityHandle
	pendingRemove []EntityHandle
	entities      map[EntityHandle]SlicePos
}

func newWorld(cfg Config) *World {
	w := &World{entities: make(map[EntityHandle]SlicePos)}
	w.store = newRegionStore(cfg, w.Age)
	w.ticker = newTicker(cfg.log())
	return w
}

// Start begins driving the world's tick loop on a new goroutine. Callers
// must eventually call Close (which stops the ticker and saves every
// Prepared region).
func (w *World) Start() { go w.ticker.Run(w) }

// Store returns the RegionStore backing this World.
func (w *World) Store() *RegionStore { return w.store }

// Age returns the current world-age in ticks.
func (w *World) Age() uint64 { return w.age.Load() }

// regionAndSlice resolves a SlicePos to its owning region and slice,
// loading the region (but not blocking for generation) if needed.
func (w *World) regionAndSlice(sp SlicePos) (*Region, *Slice) {
	r := w.store.Region(sp.RegionAt())
	if r.Lifecycle() != Prepared {
		return r, nil
	}
	lx, ly := sp.Local()
	return r, r.Slice(lx, ly)
}

// sliceReader is the minimal read surface shared by Slice and dummySlice, so
// GetSliceAt can return a single concrete type regardless of residency.
type sliceReader interface {
	Tile(x, y uint8) uint32
	Wall(x, y uint8) uint32
	Light(x, y uint8) uint8
}

// GetSliceAt returns the slice at the given slice coordinate, or the
// dummySlice sentinel (reading as barrier tiles) if the owning region is not
// yet Prepared.
func (w *World) GetSliceAt(sp SlicePos) sliceReader {
	_, s := w.regionAndSlice(sp)
	if s == nil {
		return dummySlice{}
	}
	return s
}

// GetTileAt returns the tile id at pos. pos must be tile-aligned; calling
// GetTileAt with a non-aligned Position is a programming error and panics,
// per spec §4.7 ("the call is undefined and should fail loudly").
func (w *World) GetTileAt(pos Position) uint32 {
	if !pos.Aligned() {
		panic(fmt.Sprintf("world: GetTileAt requires a tile-aligned position, got %+v", pos))
	}
	return w.GetSliceAt(pos.SlicePos()).Tile(pos.LocalX, pos.LocalY)
}

// SetTileAt writes a tile id at pos. It must be called from the tick
// thread. Writing to a region that is not yet Prepared returns
// ErrNotPrepared instead of silently discarding the write; dummySlice has no
// write methods, so nothing is written anywhere.
func (w *World) SetTileAt(pos Position, id uint32) error {
	if !pos.Aligned() {
		panic(fmt.Sprintf("world: SetTileAt requires a tile-aligned position, got %+v", pos))
	}
	r, s := w.regionAndSlice(pos.SlicePos())
	if s == nil {
		return ErrNotPrepared
	}
	s.SetTile(pos.LocalX, pos.LocalY, id)
	r.active.Store(true)
	return nil
}

// SetTileEntityAt writes (or clears) the tile-entity at pos.
func (w *World) SetTileEntityAt(pos Position, e TileEntity) error {
	if !pos.Aligned() {
		panic(fmt.Sprintf("world: SetTileEntityAt requires a tile-aligned position, got %+v", pos))
	}
	r, s := w.regionAndSlice(pos.SlicePos())
	if s == nil {
		return ErrNotPrepared
	}
	s.SetTileEntity(pos.LocalX, pos.LocalY, e)
	r.active.Store(true)
	return nil
}

// AddEntity buffers an entity addition to be flushed at the start of the
// next tick, preventing structural modification of the entity set while it
// is being iterated (spec §4.7).
func (w *World) AddEntity(e EntityHandle) {
	w.pendingMu.Lock()
	w.pendingAdd = append(w.pendingAdd, e)
	w.pendingMu.Unlock()
}

// RemoveEntity buffers an entity removal to be flushed at the start of the
// next tick.
func (w *World) RemoveEntity(e EntityHandle) {
	w.pendingMu.Lock()
	w.pendingRemove = append(w.pendingRemove, e)
	w.pendingMu.Unlock()
}

// AnchorSlice marks a slice as in-use by a client (e.g. a player entering
// it), incrementing its region's anchor count.
func (w *World) AnchorSlice(sp SlicePos) { w.store.AnchorSlice(sp) }

// DeAnchorSlice releases a previously anchored slice.
func (w *World) DeAnchorSlice(sp SlicePos) { w.store.DeAnchorSlice(sp) }

// Close stops the tick loop (if Start was called), saves every Prepared
// region and releases the World.
func (w *World) Close() error {
	w.ticker.Stop()
	w.store.Close()
	if w.store.cfg.Loader != nil {
		w.store.cfg.Loader.Shutdown()
	}
	return nil
}
