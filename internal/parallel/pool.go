// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel provides the compile worker pool.
package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/btree"
)

// Pool errors.
var (
	// ErrPoolClosed is returned by Queue after Terminate.
	ErrPoolClosed = errors.New("parallel: pool is closed")

	// ErrInvalidPriority is returned by Queue for a priority outside [0, levels).
	ErrInvalidPriority = errors.New("parallel: invalid priority")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("parallel: pool already started")
)

// btreeDegree is the fan-out of the queue tree. Queues stay small, so a low
// degree keeps nodes compact.
const btreeDegree = 8

// Job is a unit of work executed against a worker's context.
type Job[C any] func(ctx C)

// ContextFactory creates the context a worker executes jobs against.
// It runs on the worker goroutine after the goroutine has locked its OS
// thread. The returned release function runs on the same goroutine when
// the worker exits.
type ContextFactory[C any] func(worker int) (ctx C, release func(), err error)

// entry is one queued job. Entries order by (priority, seq), which gives
// strict priority precedence and FIFO order within a level.
type entry[K comparable, C any] struct {
	priority int
	seq      uint64
	key      K
	job      Job[C]
}

func lessEntry[K comparable, C any](a, b *entry[K, C]) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

// Pool is a fixed set of worker goroutines, each bound to its own OS thread
// and its own context, draining a priority-ordered job queue.
//
// Lower priority values run first. A job that has started always runs to
// completion; only jobs still in the queue can be removed.
//
// Thread safety: Pool is safe for concurrent use.
type Pool[K comparable, C any] struct {
	levels int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *btree.BTreeG[*entry[K, C]]
	index   map[K]*entry[K, C]
	seq     uint64
	exit    bool
	started bool

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	workers atomic.Int32
	active  atomic.Int32
	panics  atomic.Int64

	// OnPanic, if set, is called on the worker goroutine with the key of a
	// job that panicked. Set it before Start.
	OnPanic func(key K, recovered any)
}

// NewPool creates a pool with the given number of priority levels.
// If levels is 0 or negative, one level is used.
// Workers are not started until Start is called.
func NewPool[K comparable, C any](levels int) *Pool[K, C] {
	if levels <= 0 {
		levels = 1
	}
	p := &Pool[K, C]{
		levels: levels,
		queue:  btree.NewG[*entry[K, C]](btreeDegree, lessEntry[K, C]),
		index:  make(map[K]*entry[K, C]),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start spawns workers goroutines. Each worker locks its OS thread, creates
// its context with newContext and then starts draining the queue.
//
// Start blocks until every worker has created its context. If any worker
// fails, the pool is terminated and the joined errors are returned.
func (p *Pool[K, C]) Start(workers int, newContext ContextFactory[C]) error {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	if p.exit {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.started = true
	p.mu.Unlock()

	ready := make(chan error, workers)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i, newContext, ready)
	}

	var errs []error
	for range workers {
		if err := <-ready; err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		p.Terminate()
		return errors.Join(errs...)
	}
	return nil
}

// worker is the main loop for each worker goroutine.
func (p *Pool[K, C]) worker(id int, newContext ContextFactory[C], ready chan<- error) {
	defer p.wg.Done()

	// Native contexts are bound to OS threads.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx, release, err := newContext(id)
	if err != nil {
		ready <- fmt.Errorf("parallel: worker %d: %w", id, err)
		return
	}
	if release != nil {
		defer release()
	}
	p.workers.Add(1)
	defer p.workers.Add(-1)
	ready <- nil

	for {
		e, ok := p.next()
		if !ok {
			return
		}
		p.run(ctx, e)
	}
}

// run executes one job. A panicking job does not take the worker down.
func (p *Pool[K, C]) run(ctx C, e *entry[K, C]) {
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			if p.OnPanic != nil {
				p.OnPanic(e.key, r)
			}
		}
	}()
	e.job(ctx)
}

// next blocks until a job is available or exit is requested.
// Returns false when the worker should exit.
func (p *Pool[K, C]) next() (*entry[K, C], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for !p.exit && p.queue.Len() == 0 {
		p.cond.Wait()
	}
	if p.exit {
		return nil, false
	}

	e, _ := p.queue.DeleteMin()
	delete(p.index, e.key)
	p.active.Add(1)
	return e, true
}

// Queue appends a job at the given priority and wakes one idle worker.
// A key is expected to be queued at most once at a time; Dequeue only finds
// the most recent job queued for a key.
func (p *Pool[K, C]) Queue(priority int, key K, job Job[C]) error {
	if priority < 0 || priority >= p.levels {
		return fmt.Errorf("%w: %d (levels %d)", ErrInvalidPriority, priority, p.levels)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exit {
		return ErrPoolClosed
	}

	p.seq++
	e := &entry[K, C]{priority: priority, seq: p.seq, key: key, job: job}
	p.queue.ReplaceOrInsert(e)
	p.index[key] = e
	p.cond.Signal()
	return nil
}

// Dequeue removes the not-yet-started job queued for key.
// Returns false if no such job exists (never queued, already started,
// or already removed).
func (p *Pool[K, C]) Dequeue(key K) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.index[key]
	if !ok {
		return false
	}
	p.queue.Delete(e)
	delete(p.index, key)
	return true
}

// Terminate stops the pool. Queued jobs are dropped and their keys are
// returned in the order they would have run. Running jobs complete before
// Terminate returns.
//
// Terminate is safe to call multiple times; later calls return nil.
func (p *Pool[K, C]) Terminate() []K {
	p.mu.Lock()
	if p.exit {
		p.mu.Unlock()
		return nil
	}
	p.exit = true

	dropped := make([]K, 0, p.queue.Len())
	p.queue.Ascend(func(e *entry[K, C]) bool {
		dropped = append(dropped, e.key)
		return true
	})
	p.queue.Clear(false)
	clear(p.index)

	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	return dropped
}

// Levels returns the number of priority levels.
func (p *Pool[K, C]) Levels() int {
	return p.levels
}

// Workers returns the number of workers with a live context.
func (p *Pool[K, C]) Workers() int {
	return int(p.workers.Load())
}

// Queued returns the number of jobs waiting to start.
func (p *Pool[K, C]) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Active returns the number of jobs currently executing.
func (p *Pool[K, C]) Active() int {
	return int(p.active.Load())
}

// Panics returns the number of jobs that panicked.
func (p *Pool[K, C]) Panics() int64 {
	return p.panics.Load()
}

// IsRunning returns true if the pool accepts work.
func (p *Pool[K, C]) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.exit
}
