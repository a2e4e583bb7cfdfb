package world

import "testing"

func TestNewSliceFillsBackgroundTile(t *testing.T) {
	s := newSlice(7)
	for y := uint8(0); y < SliceSize; y++ {
		for x := uint8(0); x < SliceSize; x++ {
			if got := s.Tile(x, y); got != 7 {
				t.Fatalf("Tile(%d,%d) = %d, want background 7", x, y, got)
			}
		}
	}
}

func TestSetTileEntityRoundTrip(t *testing.T) {
	s := newSlice(0)
	if _, ok := s.TileEntity(2, 3); ok {
		t.Fatal("expected no tile-entity on fresh slice")
	}
	s.SetTileEntity(2, 3, "chest")
	e, ok := s.TileEntity(2, 3)
	if !ok || e != "chest" {
		t.Fatalf("TileEntity(2,3) = %v, %v; want chest, true", e, ok)
	}
	s.SetTileEntity(2, 3, nil)
	if _, ok := s.TileEntity(2, 3); ok {
		t.Fatal("expected tile-entity to be cleared")
	}
}

func TestTileEntitiesIterateAllPopulated(t *testing.T) {
	s := newSlice(0)
	s.SetTileEntity(0, 0, "a")
	s.SetTileEntity(1, 1, "b")
	s.SetTileEntity(15, 15, "c")

	seen := map[string]bool{}
	s.TileEntities(func(x, y uint8, e TileEntity) bool {
		seen[e.(string)] = true
		return true
	})
	for _, want := range []string{"a", "b", "c"} {
		if !seen[want] {
			t.Errorf("TileEntities missed %q", want)
		}
	}
}

func TestDummySliceReturnsBarrierAndDefaults(t *testing.T) {
	var d dummySlice
	if d.Tile(0, 0) != barrierTileID {
		t.Fatalf("dummySlice.Tile = %d, want barrierTileID", d.Tile(0, 0))
	}
	if d.Wall(0, 0) != defaultWall {
		t.Fatalf("dummySlice.Wall = %d, want defaultWall", d.Wall(0, 0))
	}
	if d.Light(0, 0) != defaultLight {
		t.Fatalf("dummySlice.Light = %d, want defaultLight", d.Light(0, 0))
	}
}
