package world

import "testing"

func TestSliceAndRegionFromTile(t *testing.T) {
	cases := []struct {
		tile       int32
		wantSlice  int32
		wantRegion int32
		wantLocal  int32
	}{
		{0, 0, 0, 0},
		{15, 0, 0, 15},
		{16, 1, 0, 0},
		{-1, -1, -1, 15},
		{-16, -1, -1, 0},
		{-17, -2, -1, 15},
		{256, 16, 1, 0},
		{255, 15, 0, 15},
	}
	for _, c := range cases {
		p := TilePos{c.tile, 0}
		if got := p.SliceAt()[0]; got != c.wantSlice {
			t.Errorf("tile %d: SliceAt = %d, want %d", c.tile, got, c.wantSlice)
		}
		if got := p.RegionAt()[0]; got != c.wantRegion {
			t.Errorf("tile %d: RegionAt = %d, want %d", c.tile, got, c.wantRegion)
		}
		if lx, _ := p.Local(); lx != c.wantLocal {
			t.Errorf("tile %d: Local = %d, want %d", c.tile, lx, c.wantLocal)
		}
	}
}

func TestSliceRegionAtMatchesTileRegionAt(t *testing.T) {
	for tile := int32(-200); tile <= 200; tile++ {
		tp := TilePos{tile, tile}
		sp := tp.SliceAt()
		if tp.RegionAt() != sp.RegionAt() {
			t.Fatalf("tile %d: TilePos.RegionAt %v != SlicePos.RegionAt %v", tile, tp.RegionAt(), sp.RegionAt())
		}
	}
}

func TestNeighboursExcludesSelfAndIsEightWide(t *testing.T) {
	p := RegionPos{3, -4}
	n := p.Neighbours()
	if len(n) != 8 {
		t.Fatalf("expected 8 neighbours, got %d", len(n))
	}
	for _, np := range n {
		if np == p {
			t.Fatalf("neighbours must not include self, got %v", np)
		}
		dx, dy := np[0]-p[0], np[1]-p[1]
		if dx < -1 || dx > 1 || dy < -1 || dy > 1 {
			t.Fatalf("neighbour %v is not adjacent to %v", np, p)
		}
	}
}

func TestHashDistinguishesNearbyRegions(t *testing.T) {
	seen := make(map[int64]RegionPos)
	for rx := int32(-64); rx <= 64; rx++ {
		for ry := int32(-64); ry <= 64; ry++ {
			p := RegionPos{rx, ry}
			h := p.Hash()
			if other, ok := seen[h]; ok {
				t.Fatalf("hash collision between %v and %v", p, other)
			}
			seen[h] = p
		}
	}
}

func TestTileFloorRoundsTowardNegativeInfinity(t *testing.T) {
	cases := map[float64]int32{
		0.5:  0,
		-0.5: -1,
		1.9:  1,
		-1.9: -2,
		2.0:  2,
	}
	for in, want := range cases {
		if got := tileFloor(in); got != want {
			t.Errorf("tileFloor(%v) = %d, want %d", in, got, want)
		}
	}
}
