// Package scheduler provides a bounded background worker pool used by the
// world engine's loader and generator subsystems (spec component C8): a
// small core of always-running goroutines, an expansion pool that grows
// under load and idles back out, and a FIFO task queue with no backpressure
// on submission.
package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	coreThreads    = 2
	keepAlive      = 30 * time.Second
	shutdownWindow = 10 * time.Second
)

// Task is a unit of background work submitted to a Pool. Panics inside a
// Task are recovered and logged; they do not take down the worker.
type Task func()

// Pool is a bounded worker pool: up to maxThreads goroutines pull tasks off
// an unbounded FIFO queue, with the first coreThreads kept alive
// indefinitely and the rest idling out after keepAlive of inactivity.
type Pool struct {
	log *slog.Logger

	sem *semaphore.Weighted

	mu     sync.Mutex
	queue  []Task
	notify chan struct{}

	active   int
	running  sync.WaitGroup
	shutdown chan struct{}
	closed   bool
}

// New creates a Pool. maxThreads is clamped to at least coreThreads; if
// zero or negative it defaults to max(coreThreads, runtime.NumCPU()).
func New(log *slog.Logger, maxThreads int) *Pool {
	if log == nil {
		log = slog.Default()
	}
	if maxThreads <= 0 {
		maxThreads = max(coreThreads, runtime.NumCPU())
	}
	maxThreads = max(maxThreads, coreThreads)
	p := &Pool{
		log:      log,
		sem:      semaphore.NewWeighted(int64(maxThreads)),
		notify:   make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}
	for i := 0; i < coreThreads; i++ {
		p.spawn(true)
	}
	return p
}

// Submit enqueues fn for execution on the pool. It never blocks: if every
// worker is busy and the pool is at maxThreads, fn waits in the FIFO queue.
func (p *Pool) Submit(fn Task) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, fn)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	p.maybeSpawn()
}

func (p *Pool) maybeSpawn() {
	if !p.sem.TryAcquire(1) {
		return
	}
	p.sem.Release(1)
	p.spawn(false)
}

func (p *Pool) spawn(core bool) {
	if !p.sem.TryAcquire(1) {
		return
	}
	p.running.Add(1)
	go p.worker(core)
}

func (p *Pool) worker(core bool) {
	defer p.running.Done()
	defer p.sem.Release(1)
	idle := time.NewTimer(keepAlive)
	defer idle.Stop()
	for {
		fn, ok := p.dequeue()
		if ok {
			p.runTask(fn)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(keepAlive)
			continue
		}
		if core {
			select {
			case <-p.notify:
			case <-p.shutdown:
				return
			}
			continue
		}
		select {
		case <-p.notify:
		case <-idle.C:
			return
		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) dequeue() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	fn := p.queue[0]
	p.queue = p.queue[1:]
	return fn, true
}

func (p *Pool) runTask(fn Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker task panicked", "panic", r)
		}
	}()
	fn()
}

// Shutdown stops accepting new tasks and waits up to shutdownWindow for
// queued and in-flight tasks to drain, logging a warning if the window
// elapses first.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.shutdown)

	done := make(chan struct{})
	go func() {
		p.running.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownWindow):
		p.log.Warn("scheduler shutdown window elapsed with workers still running")
	}
}

// ShutdownContext is like Shutdown but returns early if ctx is cancelled,
// without waiting for the full shutdownWindow.
func (p *Pool) ShutdownContext(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.shutdown)

	done := make(chan struct{})
	go func() {
		p.running.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(shutdownWindow):
		p.log.Warn("scheduler shutdown window elapsed with workers still running")
	}
}
