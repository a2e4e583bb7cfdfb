package world

// defaultWall and defaultLight are the background values assumed for any
// local tile position that has never had an explicit wall or light value
// written to it.
const (
	defaultWall  = 0
	defaultLight = 0
)

// TileEntity is an opaque, provider-defined piece of state bound to a single
// tile. The engine does not interpret the payload: it only stores it at a
// local (x, y) position. The loader's base region document does not include
// tile-entities; a registered saver/loader step can persist them.
type TileEntity any

// Slice is a fixed SliceSize x SliceSize grid of tile ids, wall ids and
// light levels, plus a sparse map of tile-entities. A Slice has no
// independent lifecycle: it is created with its owning Region and destroyed
// with it.
type Slice struct {
	tiles [SliceSize * SliceSize]uint32
	walls [SliceSize * SliceSize]uint32
	light [SliceSize * SliceSize]uint8

	entities map[uint16]TileEntity
}

// newSlice returns a Slice with every tile id defaulted to the background id
// passed; walls and light default to the zero background value per the
// Slice invariant that only tile ids must be densely populated.
func newSlice(background uint32) *Slice {
	s := &Slice{}
	if background != 0 {
		for i := range s.tiles {
			s.tiles[i] = background
		}
	}
	return s
}

func sliceIndex(x, y uint8) int {
	return int(y)*SliceSize + int(x)
}

func tileEntityKey(x, y uint8) uint16 {
	return uint16(y)<<8 | uint16(x)
}

// Tile returns the tile id at the local position passed. x and y must each
// be in [0, SliceSize).
func (s *Slice) Tile(x, y uint8) uint32 {
	return s.tiles[sliceIndex(x, y)]
}

// SetTile writes the tile id at the local position passed.
func (s *Slice) SetTile(x, y uint8, id uint32) {
	s.tiles[sliceIndex(x, y)] = id
}

// Wall returns the wall id at the local position passed, or defaultWall if
// none was ever set.
func (s *Slice) Wall(x, y uint8) uint32 {
	return s.walls[sliceIndex(x, y)]
}

// SetWall writes the wall id at the local position passed.
func (s *Slice) SetWall(x, y uint8, id uint32) {
	s.walls[sliceIndex(x, y)] = id
}

// Light returns the light level at the local position passed, or
// defaultLight if none was ever set.
func (s *Slice) Light(x, y uint8) uint8 {
	return s.light[sliceIndex(x, y)]
}

// SetLight writes the light level at the local position passed.
func (s *Slice) SetLight(x, y uint8, level uint8) {
	s.light[sliceIndex(x, y)] = level
}

// TileEntity returns the tile-entity at the local position passed, if any.
func (s *Slice) TileEntity(x, y uint8) (TileEntity, bool) {
	if s.entities == nil {
		return nil, false
	}
	e, ok := s.entities[tileEntityKey(x, y)]
	return e, ok
}

// SetTileEntity writes (or clears, if e is nil) the tile-entity at the local
// position passed.
func (s *Slice) SetTileEntity(x, y uint8, e TileEntity) {
	if e == nil {
		if s.entities != nil {
			delete(s.entities, tileEntityKey(x, y))
		}
		return
	}
	if s.entities == nil {
		s.entities = make(map[uint16]TileEntity)
	}
	s.entities[tileEntityKey(x, y)] = e
}

// TileEntities returns an iterator-friendly snapshot of every populated
// tile-entity position in the Slice, for serialisation by a saver step.
func (s *Slice) TileEntities(yield func(x, y uint8, e TileEntity) bool) {
	for k, e := range s.entities {
		if !yield(uint8(k&0xFF), uint8(k>>8), e) {
			return
		}
	}
}

// dummySlice is the explicit "absent" sentinel returned by the host façade
// when a region backing a requested position is not yet PREPARED. Unlike the
// teacher's dummy-object pattern (which silently accepted writes), reads
// return barrier values and writes are rejected outright via ErrNotPrepared
// rather than silently discarded.
type dummySlice struct{}

func (dummySlice) Tile(uint8, uint8) uint32 { return barrierTileID }
func (dummySlice) Wall(uint8, uint8) uint32 { return defaultWall }
func (dummySlice) Light(uint8, uint8) uint8 { return defaultLight }

// barrierTileID is the sentinel "non-traversable" tile id reported for
// positions backed by a region that is not resident or not yet generated.
const barrierTileID = ^uint32(0)
