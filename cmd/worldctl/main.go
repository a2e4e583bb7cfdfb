// Command worldctl boots a region-lifecycle world against an on-disk
// directory, anchors a single slice, waits for its region to become
// Prepared, and prints a summary of its tiles. It exists to exercise the
// engine end to end outside of a test binary.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/weenafk/stabilise/server/world"
	"github.com/weenafk/stabilise/server/world/generator"
	"github.com/weenafk/stabilise/server/world/loader"
)

func main() {
	dir := flag.String("dir", "./world-data", "region file directory")
	seed := flag.Int64("seed", 1, "world seed")
	sx := flag.Int("sx", 0, "slice x to anchor")
	sy := flag.Int("sy", 0, "slice y to anchor")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	gen := generator.Terrain{Seed: *seed, Air: 0, Grass: 1, Stone: 2}
	l := loader.New(loader.Config{Dir: *dir, Generator: gen, Seed: *seed, Log: log})

	cfg := world.Config{
		Log:       log,
		Background: 0,
		Seed:      *seed,
		Loader:    l,
		Generator: gen,
	}
	w := cfg.New()
	w.Start()
	defer w.Close()

	sp := world.SlicePos{int32(*sx), int32(*sy)}
	w.AnchorSlice(sp)
	defer w.DeAnchorSlice(sp)

	r := w.Store().Region(sp.RegionAt())
	deadline := time.Now().Add(10 * time.Second)
	for r.Lifecycle() != world.Prepared {
		if time.Now().After(deadline) {
			fmt.Fprintf(os.Stderr, "region %v did not reach Prepared in time (state=%v)\n", sp.RegionAt(), r.Lifecycle())
			os.Exit(1)
		}
		time.Sleep(10 * time.Millisecond)
	}

	s := w.GetSliceAt(sp)
	fmt.Printf("slice %v ready, region %v lifecycle=%v\n", sp, sp.RegionAt(), r.Lifecycle())
	for y := uint8(0); y < world.SliceSize; y++ {
		for x := uint8(0); x < world.SliceSize; x++ {
			fmt.Printf("%3d", s.Tile(x, y))
		}
		fmt.Println()
	}

	fmt.Printf("store stats: %+v\n", w.Store().Snapshot())
}
