// Package loader implements world.RegionLoader: the background I/O
// subsystem (spec component C5) that owns a Region's load and save
// pipeline once persistence is configured, backed by a gzip-compressed NBT
// document per region on disk.
package loader

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/weenafk/stabilise/server/world"
	"github.com/weenafk/stabilise/server/world/scheduler"
)

// Config holds construction parameters for a Loader.
type Config struct {
	// Dir is the directory region files are read from and written to.
	Dir string
	// Generator produces tile data for regions whose document has no
	// generated=true flag set. May be nil, in which case regions are marked
	// generated with only their background tile id.
	Generator world.Generator
	// Seed is passed through to Generator.Generate.
	Seed int64
	// Pool runs load and save tasks in the background. If nil, a Loader owns
	// a private pool sized to the host.
	Pool *scheduler.Pool
	// Log receives diagnostic output. If nil, slog.Default() is used.
	Log *slog.Logger
}

// Loader is the default world.RegionLoader: one region per file, named
// r_<rx>_<ry>.region, under Config.Dir.
type Loader struct {
	dir       string
	generator world.Generator
	seed      int64
	pool      *scheduler.Pool
	ownsPool  bool
	log       *slog.Logger

	sf       singleflight.Group
	shutdown atomic.Bool
}

// New constructs a Loader from cfg.
func New(cfg Config) *Loader {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	pool := cfg.Pool
	ownsPool := false
	if pool == nil {
		pool = scheduler.New(log, 0)
		ownsPool = true
	}
	return &Loader{
		dir:       cfg.Dir,
		generator: cfg.Generator,
		seed:      cfg.Seed,
		pool:      pool,
		ownsPool:  ownsPool,
		log:       log,
	}
}

// LoadRegion implements world.RegionLoader.
func (l *Loader) LoadRegion(pos world.RegionPos, r *world.Region, shouldGenerate bool, callback func(r *world.Region, success bool)) {
	if l.shutdown.Load() {
		if callback != nil {
			callback(r, false)
		}
		return
	}
	l.pool.Submit(func() {
		l.load(pos, r, shouldGenerate, callback)
	})
}

func (l *Loader) load(pos world.RegionPos, r *world.Region, shouldGenerate bool, callback func(r *world.Region, success bool)) {
	if l.shutdown.Load() {
		if callback != nil {
			callback(r, false)
		}
		return
	}
	if !r.LoadPermit() {
		// Some other component already owns this region's load step.
		if callback != nil {
			callback(r, false)
		}
		return
	}

	data, exists, err := readFile(l.dir, pos)
	if err != nil {
		l.log.Error("read region file", "rx", pos[0], "ry", pos[1], "err", err)
		if callback != nil {
			callback(r, false)
		}
		return
	}

	wasGenerated := false
	if exists {
		doc, err := readDocument(bytes.NewReader(data))
		if err != nil {
			l.log.Error("decode region document, leaving unmounted", "rx", pos[0], "ry", pos[1], "err", err)
			r.ResetLoad()
			if callback != nil {
				callback(r, false)
			}
			return
		}
		applyDocument(doc, r)
		runLoaderSteps(pos, r, doc)
		wasGenerated = doc.Generated
	}

	r.SetLoaded(wasGenerated)
	if r.Lifecycle() == world.Prepared || !shouldGenerate {
		if callback != nil {
			callback(r, true)
		}
		return
	}
	if !r.GenerationPermit() {
		if callback != nil {
			callback(r, true)
		}
		return
	}
	if l.generator != nil && !wasGenerated {
		l.generator.Generate(pos, r, l.seed)
	}
	r.SetGenerated()
	if callback != nil {
		callback(r, true)
	}
}

// SaveRegion implements world.RegionLoader. If useCurrentThread is true the
// save runs synchronously on the caller's goroutine (used for shutdown);
// otherwise it is submitted to the background pool.
func (l *Loader) SaveRegion(pos world.RegionPos, r *world.Region, useCurrentThread bool, callback func(success bool)) {
	run := func() { l.save(pos, r, callback) }
	if useCurrentThread {
		run()
		return
	}
	l.pool.Submit(run)
}

func (l *Loader) save(pos world.RegionPos, r *world.Region, callback func(success bool)) {
	if !r.GetSavePermit() {
		// A save is already in flight or queued; it will observe this
		// request's prior writes (spec §4.3 save coalescing).
		if callback != nil {
			callback(true)
		}
		return
	}
	for {
		ok := l.writeOnce(pos, r)
		if !r.FinishSaving() {
			if callback != nil {
				callback(ok)
			}
			return
		}
		if !r.GetSavePermit() {
			if callback != nil {
				callback(ok)
			}
			return
		}
	}
}

// writeOnce performs the actual encode-and-write for pos, deduplicated via
// singleflight so that concurrent callers racing past the permit check at
// (effectively) the same instant perform the I/O exactly once and share its
// result, rather than each re-encoding the same region state.
func (l *Loader) writeOnce(pos world.RegionPos, r *world.Region) bool {
	key := fmt.Sprintf("%d:%d", pos[0], pos[1])
	_, err, _ := l.sf.Do(key, func() (any, error) {
		doc := encodeDocument(r)
		runSaverSteps(pos, r, doc)
		var buf bytes.Buffer
		if err := writeDocument(&buf, doc); err != nil {
			return nil, err
		}
		return nil, writeFileAtomic(l.dir, pos, buf.Bytes())
	})
	if err != nil {
		l.log.Error("save region", "rx", pos[0], "ry", pos[1], "err", err)
		return false
	}
	return true
}

// Shutdown implements world.RegionLoader: it stops accepting new loads and,
// if this Loader owns its pool, drains in-flight work.
func (l *Loader) Shutdown() {
	l.shutdown.Store(true)
	if l.ownsPool {
		l.pool.Shutdown()
	}
}
