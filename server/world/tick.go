package world

import (
	"log/slog"
	"sync"
	"time"
)

// ticker drives a World's tick loop on its own goroutine, sampling actual
// TPS the same way the teacher's tick loop does: a running average compared
// against the target, with a warning logged when the world falls behind.
type ticker struct {
	log      *slog.Logger
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

func newTicker(log *slog.Logger) *ticker {
	return &ticker{
		log:      log,
		interval: tickDuration,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run drives w's tick sequence until Stop is called. It is intended to run
// on its own goroutine.
func (t *ticker) Run(w *World) {
	defer close(t.done)
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()
	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	const sampleWindow = TPS
	var samples int
	var sum time.Duration
	last := time.Now()

	for {
		select {
		case <-t.stop:
			return
		case now := <-tk.C:
			w.tick()
			elapsed := now.Sub(last)
			last = now
			sum += elapsed
			samples++
			if samples >= sampleWindow {
				avg := sum / time.Duration(samples)
				if avg > t.interval*110/100 {
					t.log.Warn("world running behind target tick rate",
						"target", t.interval, "actual", avg)
				}
				samples, sum = 0, 0
			}
		}
	}
}

// Stop halts the ticker and, if Run has started, blocks until its goroutine
// has exited. Stop returns at once if Run was never called.
func (t *ticker) Stop() {
	t.mu.Lock()
	t.stopped = true
	started := t.started
	t.mu.Unlock()
	close(t.stop)
	if started {
		<-t.done
	}
}

// tick runs one full tick sequence (spec §4.7):
//  1. flush buffered entity additions/removals so the entity set seen by
//     this tick's iteration is stable;
//  2. advance world age;
//  3. run the region store's residency/save/structure-drain pass.
func (w *World) tick() {
	w.flushPendingEntities()
	w.age.Add(1)
	w.store.Tick(w.age.Load())
}

// flushPendingEntities applies every AddEntity/RemoveEntity call buffered
// since the previous tick. Each added entity is recorded with the zero
// SlicePos, which nothing updates afterwards; the host façade does not
// interpret entity behaviour beyond this bookkeeping.
func (w *World) flushPendingEntities() {
	w.pendingMu.Lock()
	add, remove := w.pendingAdd, w.pendingRemove
	w.pendingAdd, w.pendingRemove = nil, nil
	w.pendingMu.Unlock()

	if len(add) == 0 && len(remove) == 0 {
		return
	}
	for _, e := range remove {
		delete(w.entities, e)
	}
	for _, e := range add {
		if _, ok := w.entities[e]; !ok {
			w.entities[e] = SlicePos{}
		}
	}
}
