package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/weenafk/stabilise/server/world"
	"github.com/weenafk/stabilise/server/world/generator"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	gen := generator.Terrain{Seed: 7, Air: 0, Grass: 1, Stone: 2}

	l := New(Config{Dir: dir, Generator: gen, Seed: 7})
	t.Cleanup(l.Shutdown)

	cfg := world.Config{Loader: l, Generator: gen, Seed: 7, Background: 0}
	w := cfg.New()
	t.Cleanup(func() { w.Close() })

	pos := world.RegionPos{5, -1}
	r := w.Store().Region(pos)
	waitFor(t, func() bool { return r.Lifecycle() == world.Prepared })

	want := r.Slice(0, 0).Tile(0, 0)

	done := make(chan bool, 1)
	l.SaveRegion(pos, r, false, func(ok bool) { done <- ok })
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("save failed")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("save never completed")
	}

	l2 := New(Config{Dir: dir, Generator: gen, Seed: 7})
	t.Cleanup(l2.Shutdown)
	cfg2 := world.Config{Loader: l2, Generator: gen, Seed: 7}
	w2 := cfg2.New()
	t.Cleanup(func() { w2.Close() })

	r2 := w2.Store().Region(pos)
	waitFor(t, func() bool { return r2.Lifecycle() == world.Prepared })

	if got := r2.Slice(0, 0).Tile(0, 0); got != want {
		t.Fatalf("round-tripped tile = %d, want %d", got, want)
	}
}

func TestConcurrentSaveRequestsCoalesce(t *testing.T) {
	dir := t.TempDir()
	gen := generator.Nop{}
	l := New(Config{Dir: dir, Generator: gen})
	t.Cleanup(l.Shutdown)

	cfg := world.Config{Loader: l, Generator: gen}
	w := cfg.New()
	t.Cleanup(func() { w.Close() })

	pos := world.RegionPos{0, 0}
	r := w.Store().Region(pos)
	waitFor(t, func() bool { return r.Lifecycle() == world.Prepared })

	const n = 20
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		l.SaveRegion(pos, r, false, func(ok bool) { results <- ok })
	}

	deadline := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case ok := <-results:
			if !ok {
				t.Fatal("a coalesced save reported failure")
			}
		case <-deadline:
			t.Fatal("not all save callbacks fired")
		}
	}
	waitFor(t, func() bool { return r.SaveState() == world.Idle })
}

// TestLoadRegionFailsOnCorruptDocument covers spec §7's deserialisation-
// mismatch row: a region file that fails to gzip/NBT-decode must not be
// silently treated as "never saved" and regenerated. The loader must report
// failure through the callback and leave the region in New, unmounted.
func TestLoadRegionFailsOnCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	pos := world.RegionPos{9, -4}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	garbage := []byte("this is not a gzip stream")
	if err := os.WriteFile(filepath.Join(dir, regionFileName(pos)), garbage, 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{Dir: dir, Generator: generator.Nop{}})
	t.Cleanup(l.Shutdown)

	// Use a no-op loader to obtain a Region still sitting in New, rather than
	// racing the real Loader's background goroutine.
	cfg := world.Config{Loader: noopLoader{}}
	w := cfg.New()
	t.Cleanup(func() { w.Close() })

	r := w.Store().Region(pos)
	if r.Lifecycle() != world.New {
		t.Fatalf("precondition: region lifecycle = %v, want New", r.Lifecycle())
	}

	done := make(chan bool, 1)
	l.LoadRegion(pos, r, true, func(_ *world.Region, success bool) { done <- success })

	select {
	case success := <-done:
		if success {
			t.Fatal("LoadRegion reported success for a corrupt document")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("LoadRegion callback never fired")
	}

	if r.Lifecycle() != world.New {
		t.Fatalf("region lifecycle after corrupt load = %v, want New (not mounted)", r.Lifecycle())
	}
	if r.Generated() {
		t.Fatal("corrupt region must not be marked generated")
	}
}

// noopLoader implements world.RegionLoader without ever touching the
// Region's lifecycle, so tests can construct a Store-backed Region that
// stays in New and drive a real loader against it directly.
type noopLoader struct{}

func (noopLoader) LoadRegion(world.RegionPos, *world.Region, bool, func(r *world.Region, success bool)) {
}
func (noopLoader) SaveRegion(world.RegionPos, *world.Region, bool, func(success bool)) {}
func (noopLoader) Shutdown()                                                           {}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never became true")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
