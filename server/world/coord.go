package world

import (
	"math"

	"golang.org/x/exp/constraints"
)

// SliceSize is the edge length, in tiles, of a Slice. S = 16.
const SliceSize = 16

// RegionSize is the edge length, in slices, of a Region. R = 16, so a Region
// spans RegionSize*RegionSize = 256 slices and RegionSize*SliceSize = 256
// tiles along each edge.
const RegionSize = 16

const (
	sliceShift  = 4 // log2(SliceSize)
	regionShift = 8 // log2(RegionSize*SliceSize)
	localShift  = 4 // log2(RegionSize)

	sliceMask = SliceSize - 1
	localMask = RegionSize - 1
)

// TilePos is a tile coordinate pair in tile units.
type TilePos [2]int32

// SlicePos is a slice coordinate pair in slice units.
type SlicePos [2]int32

// RegionPos is a region coordinate pair in region units. It is immutable
// once a Region has been constructed from it.
type RegionPos [2]int32

// sliceFromTile converts a tile coordinate to the slice coordinate
// containing it.
func sliceFromTile[T constraints.Signed](t T) T {
	return t >> sliceShift
}

// regionFromTile converts a tile coordinate to the region coordinate
// containing it.
func regionFromTile[T constraints.Signed](t T) T {
	return t >> regionShift
}

// regionFromSlice converts a slice coordinate to the region coordinate
// containing it.
func regionFromSlice[T constraints.Signed](s T) T {
	return s >> localShift
}

// localTileInSlice returns the local (0..SliceSize) tile coordinate within
// its slice.
func localTileInSlice[T constraints.Signed](t T) T {
	return t & sliceMask
}

// localSliceInRegion returns the local (0..RegionSize) slice coordinate
// within its region.
func localSliceInRegion[T constraints.Signed](s T) T {
	return s & localMask
}

// SliceAt returns the slice coordinate containing the tile position passed.
func (p TilePos) SliceAt() SlicePos {
	return SlicePos{sliceFromTile(p[0]), sliceFromTile(p[1])}
}

// RegionAt returns the region coordinate containing the tile position
// passed.
func (p TilePos) RegionAt() RegionPos {
	return RegionPos{regionFromTile(p[0]), regionFromTile(p[1])}
}

// RegionAt returns the region coordinate containing the slice position
// passed.
func (p SlicePos) RegionAt() RegionPos {
	return RegionPos{regionFromSlice(p[0]), regionFromSlice(p[1])}
}

// Local returns the slice-local coordinate of p within its region, each
// component in [0, RegionSize).
func (p SlicePos) Local() (x, y int32) {
	return localSliceInRegion(p[0]), localSliceInRegion(p[1])
}

// Local returns the local tile coordinate of p within its slice, each
// component in [0, SliceSize).
func (p TilePos) Local() (x, y int32) {
	return localTileInSlice(p[0]), localTileInSlice(p[1])
}

// tileFloor rounds f toward negative infinity, as opposed to the truncation
// performed by a plain conversion to int, so that fractional coordinates
// below zero floor correctly to the tile they fall within.
func tileFloor(f float64) int32 {
	return int32(math.Floor(f))
}

// Hash folds a RegionPos into a single int64 key such that the low bits
// disperse well; this is the hot-path key used by the region store's
// coordinate map (see store.go). The low 18 bits of rx are shifted clear of
// ry and the two are combined with XOR, matching the dispersion scheme
// described for the region residency map.
func (p RegionPos) Hash() int64 {
	return int64(p[0])<<18 ^ int64(p[1])
}

// Key32 packs a RegionPos into a single uint32 composite key, useful where a
// 32-bit key is preferable to the 64-bit Hash (e.g. compact test fixtures).
func (p RegionPos) Key32() uint32 {
	return uint32(p[0])<<16 | uint32(p[1])&0xFFFF
}

// Neighbours returns the eight region positions adjacent to p (not including
// p itself), in a fixed, deterministic order.
func (p RegionPos) Neighbours() [8]RegionPos {
	return [8]RegionPos{
		{p[0] - 1, p[1] - 1}, {p[0], p[1] - 1}, {p[0] + 1, p[1] - 1},
		{p[0] - 1, p[1]}, {p[0] + 1, p[1]},
		{p[0] - 1, p[1] + 1}, {p[0], p[1] + 1}, {p[0] + 1, p[1] + 1},
	}
}
