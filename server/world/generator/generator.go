package generator

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/weenafk/stabilise/server/world"
)

// Terrain is a deterministic, seed-driven world.Generator. It has no
// external noise dependency: the surface height of each tile column is
// derived from a one-dimensional value-noise field along x, built on top of
// xxhash digests of the world seed and lattice points spaced gridStep tiles
// apart, smoothed by cosine interpolation between neighbouring lattice
// points.
//
// Tile ids above the computed height are Air; at the surface, Grass; below,
// Stone. Every 32nd region (by region coordinate hash) queues a single Tree
// structure at its centre slice, exercising the structure-queue path for
// worlds with no persistence configured.
type Terrain struct {
	Seed int64

	Air, Grass, Stone, TreeTrunk uint32
}

const gridStep = 8

// Generate implements world.Generator.
func (g Terrain) Generate(pos world.RegionPos, r *world.Region, seed int64) {
	originX := pos[0] * world.RegionSize * world.SliceSize
	originY := pos[1] * world.RegionSize * world.SliceSize

	for sy := int32(0); sy < world.RegionSize; sy++ {
		for sx := int32(0); sx < world.RegionSize; sx++ {
			s := r.Slice(sx, sy)
			for ly := uint8(0); ly < world.SliceSize; ly++ {
				tileY := originY + sy*world.SliceSize + int32(ly)
				for lx := uint8(0); lx < world.SliceSize; lx++ {
					tileX := originX + sx*world.SliceSize + int32(lx)
					h := g.heightAt(seed, tileX)
					s.SetTile(lx, ly, g.tileAt(tileY, h))
				}
			}
		}
	}

	if pos.Hash()&31 == 0 {
		r.AddStructure(world.QueuedStructure{
			ID:     uuid.New(),
			Name:   "tree",
			SliceX: pos[0]*world.RegionSize + world.RegionSize/2,
			SliceY: pos[1]*world.RegionSize + world.RegionSize/2,
			TileX:  world.SliceSize / 2,
			TileY:  world.SliceSize / 2,
		})
	}
}

func (g Terrain) tileAt(tileY, height int32) uint32 {
	switch {
	case tileY > height:
		return g.Air
	case tileY == height:
		return g.Grass
	default:
		return g.Stone
	}
}

// heightAt returns the surface height at tileX via value noise: lattice
// points every gridStep tiles are hashed to a pseudo-random height, and
// intermediate tiles interpolate cosine-smoothed between their two
// surrounding lattice points.
func (g Terrain) heightAt(seed int64, tileX int32) int32 {
	left := floorDiv(tileX, gridStep)
	right := left + 1
	frac := float64(tileX-left*gridStep) / float64(gridStep)
	t := (1 - math.Cos(frac*math.Pi)) / 2

	h0 := float64(latticeHeight(seed, left))
	h1 := float64(latticeHeight(seed, right))
	return int32(math.Round(h0*(1-t) + h1*t))
}

func latticeHeight(seed int64, lattice int32) int32 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(lattice)))
	h := xxhash.Sum64(buf[:])
	// Map the hash onto a modest height band so terrain stays readable
	// instead of spanning the full int32 range.
	return 32 + int32(h%48)
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
