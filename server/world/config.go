package world

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml"
)

// Generator is implemented by types that can produce a Region's tile data
// and any structures it should queue, given the Region's coordinate and the
// world seed. See spec §4.6: a generator instance is a pure function of
// (region, world seed) -> (slice tiles, queued structures), engaged only
// while the Region holds the Generating lifecycle state.
type Generator interface {
	// Generate populates r's slice grid and may enqueue structures on r or
	// any of its neighbours via r.AddStructure / a neighbour handle obtained
	// from the RegionStore. It must not be called concurrently for the same
	// Region, and the engine guarantees no other component reads r's slices
	// while this runs.
	Generate(pos RegionPos, r *Region, seed int64)
}

// RegionLoader is implemented by the background I/O subsystem (C5) that
// orchestrates region persistence. The RegionStore (C4) is the only caller.
type RegionLoader interface {
	// LoadRegion asynchronously loads pos, creating r fresh if no document
	// exists, running registered loader steps, and handing the region to the
	// generator (via shouldGenerate) if it still needs generating. callback
	// is invoked exactly once with the outcome.
	LoadRegion(pos RegionPos, r *Region, shouldGenerate bool, callback func(r *Region, success bool))
	// SaveRegion requests r be persisted. If useCurrentThread is true the
	// save runs synchronously on the calling goroutine (used during
	// synchronous shutdown); callback, if non-nil, is invoked once the save
	// completes or is coalesced away.
	SaveRegion(pos RegionPos, r *Region, useCurrentThread bool, callback func(success bool))
	// Shutdown stops new loads from starting: loads requested or still
	// queued afterwards report failure without running, loads already
	// running complete, and in-flight saves are allowed to drain.
	Shutdown()
}

// Config holds construction parameters for a World. The zero Config is
// usable: it produces an in-memory-only world with a no-op generator.
type Config struct {
	// Log receives diagnostic output from the world's background systems.
	// If nil, slog.Default() is used.
	Log *slog.Logger
	// Background is the tile id newly constructed (ungenerated) slices are
	// filled with before the generator runs.
	Background uint32
	// Seed is the world seed handed to the Generator.
	Seed int64
	// Loader is the background I/O subsystem. If nil, the World has no
	// persistence: every region is generated fresh and never saved.
	Loader RegionLoader
	// Generator produces tile data for ungenerated regions. If nil, regions
	// are marked generated immediately with only the background tile id.
	Generator Generator
	// StaggerSeconds is the period, in seconds, across which region saves
	// are phase-spread (§4.4). Default 64.
	StaggerSeconds int64
	// UnloadGrace is the number of ticks a region with zero anchors remains
	// resident before eviction. Default UnloadGraceTicks.
	UnloadGrace int32
	// TileTicker, if set, is invoked once per Prepared-and-anchored region
	// every tick to perform a random tile update. Concrete tile behaviour is
	// an external collaborator's responsibility; this engine only provides
	// the hook and the once-per-tick cadence guarantee.
	TileTicker func(pos RegionPos, r *Region)
}

func (c Config) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

func (c Config) stagger() int64 {
	if c.StaggerSeconds > 0 {
		return c.StaggerSeconds
	}
	return 64
}

func (c Config) unloadGrace() int32 {
	if c.UnloadGrace > 0 {
		return c.UnloadGrace
	}
	return UnloadGraceTicks
}

// New creates a new World from the Config. The World may be used
// immediately; if Loader is nil regions are generated on demand but never
// persisted.
func (c Config) New() *World {
	return newWorld(c)
}

// fileConfig mirrors the subset of Config that can be expressed on disk as
// TOML, following the ecosystem convention (pelletier/go-toml) the wider
// corpus uses for structured, human-editable configuration.
type fileConfig struct {
	Background     uint32 `toml:"background"`
	Seed           int64  `toml:"seed"`
	StaggerSeconds int64  `toml:"stagger_seconds"`
	UnloadGraceSec int64  `toml:"unload_grace_seconds"`
}

// LoadConfigFile reads a world.toml-style configuration file and overlays it
// onto a base Config (Log, Loader and Generator are preserved from base,
// since those are runtime collaborators that cannot be expressed in a
// config file).
func LoadConfigFile(path string, base Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("load world config: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(b, &fc); err != nil {
		return base, fmt.Errorf("load world config: %w", err)
	}
	out := base
	if fc.Background != 0 {
		out.Background = fc.Background
	}
	if fc.Seed != 0 {
		out.Seed = fc.Seed
	}
	if fc.StaggerSeconds != 0 {
		out.StaggerSeconds = fc.StaggerSeconds
	}
	if fc.UnloadGraceSec != 0 {
		out.UnloadGrace = int32(fc.UnloadGraceSec * TPS)
	}
	return out, nil
}

// tickDuration is the wall-clock interval between ticks at TPS.
const tickDuration = time.Second / TPS
