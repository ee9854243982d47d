// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package progc

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/progc/driver"
	"github.com/gogpu/progc/internal/parallel"
)

// Service compiles programs, on a pool of worker goroutines when the platform
// supports shared contexts and on the calling goroutine otherwise.
//
// Thread safety: every method except the ones on Token must be called from
// the goroutine that owns the platform's primary context. Workers only
// communicate with that goroutine through tokens and Tick.
type Service struct {
	platform driver.Platform
	primary  driver.Context
	pre      driver.Preprocessor
	levels   int

	// pool is nil in synchronous mode.
	pool *parallel.Pool[*Token, driver.SharedContext]

	ticks         tickQueue
	registrations []*readyRegistration
	outstanding   outstandingSet
	closed        bool

	created        atomic.Int64
	ready          atomic.Int64
	failed         atomic.Int64
	cancelled      atomic.Int64
	discarded      atomic.Int64
	ticksRun       atomic.Int64
	callbacksFired atomic.Int64
}

// New creates a Service over platform.
//
// Compilation is asynchronous when the platform reports both parallel shader
// compilation and shared contexts, the thread count is positive and
// WithSynchronous is not given. In that case one shared context is created
// per worker; failure to create any of them is returned as ErrPoolInit.
func New(platform driver.Platform, opts ...Option) (*Service, error) {
	if platform == nil {
		return nil, ErrNilPlatform
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		platform:    platform,
		primary:     platform.PrimaryContext(),
		pre:         o.preprocessor,
		levels:      o.levels,
		outstanding: newOutstandingSet(),
	}
	if s.pre == nil {
		if p, ok := platform.(driver.Preprocessor); ok {
			s.pre = p
		}
	}
	propagateLogger(platform)

	caps := platform.Capabilities()
	if o.synchronous || o.threads <= 0 || !caps.ParallelShaderCompile || !caps.SharedContexts {
		if !o.synchronous && o.threads > 0 {
			Logger().Warn("progc: platform lacks shared parallel contexts, compiling synchronously",
				"parallel_compile", caps.ParallelShaderCompile,
				"shared_contexts", caps.SharedContexts)
		}
		Logger().Info("progc: service started", "mode", "sync")
		return s, nil
	}

	pool := parallel.NewPool[*Token, driver.SharedContext](o.levels)
	pool.OnPanic = s.jobPanicked
	if err := pool.Start(o.threads, s.newWorkerContext); err != nil {
		forgetLogger(platform)
		return nil, fmt.Errorf("%w: %w", ErrPoolInit, err)
	}
	s.pool = pool

	Logger().Info("progc: service started", "mode", "async",
		"workers", o.threads, "levels", o.levels)
	return s, nil
}

// newWorkerContext creates and binds the shared context of one worker.
// It runs on the worker goroutine.
func (s *Service) newWorkerContext(worker int) (driver.SharedContext, func(), error) {
	ctx, err := s.platform.CreateSharedContext()
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.MakeCurrent(); err != nil {
		ctx.Release()
		return nil, nil, err
	}
	Logger().Debug("progc: worker context ready", "worker", worker)
	return ctx, ctx.Release, nil
}

// Async reports whether programs are compiled by workers.
func (s *Service) Async() bool {
	return s.pool != nil
}

// Levels returns the number of priority levels.
func (s *Service) Levels() int {
	return s.levels
}

// CreateProgram starts building the program described by desc.
//
// In asynchronous mode the returned token is Pending and the job is queued at
// desc.Priority. In synchronous mode the program is compiled before
// CreateProgram returns and the token is already terminal and ready.
//
// Compile and link failures are not returned here: they are reported by the
// token and by GetProgram.
func (s *Service) CreateProgram(name string, desc *ProgramDescription) (*Token, error) {
	if s.closed {
		return nil, ErrServiceClosed
	}
	if desc == nil {
		return nil, ErrNilProgram
	}
	if int(desc.Priority) >= s.levels {
		return nil, fmt.Errorf("%w: %s (levels %d)", ErrInvalidPriority, desc.Priority, s.levels)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	d := desc.Clone()
	t := newToken(name, d.Priority)
	s.created.Add(1)

	if s.pool == nil {
		t.markRunning()
		prog, err := compileRecover(s.primary, name, d, s.pre)
		s.complete(t, prog, err)
		t.finalized = true
		return t, nil
	}

	s.outstanding.add(t)
	err := s.pool.Queue(int(d.Priority), t, func(ctx driver.SharedContext) {
		s.runJob(ctx, t, d)
	})
	if err != nil {
		s.outstanding.remove(t)
		return nil, fmt.Errorf("progc: queue %q: %w", name, err)
	}
	Logger().Debug("progc: program queued", "name", name, "priority", d.Priority)
	return t, nil
}

// runJob builds one program on a worker. A token cancelled before the job
// starts is skipped; a result produced for a token cancelled meanwhile is
// destroyed on the worker's context.
func (s *Service) runJob(ctx driver.Context, t *Token, d *ProgramDescription) {
	if !t.markRunning() {
		return
	}
	Logger().Debug("progc: compiling", "name", t.name)

	prog, err := compileRecover(ctx, t.name, d, s.pre)
	if !s.complete(t, prog, err) {
		if prog != nil {
			ctx.DestroyProgram(prog)
		}
		s.discarded.Add(1)
		Logger().Debug("progc: result discarded", "name", t.name)
		return
	}
	s.ticks.runAtNextTick(t.priority, t, func() { s.finalize(t) })
}

// complete publishes a compile result on the token and reports whether the
// token accepted it.
func (s *Service) complete(t *Token, prog driver.Program, err error) bool {
	if err != nil {
		if !t.markError(err) {
			return false
		}
		s.failed.Add(1)
		Logger().Warn("progc: program failed", "name", t.name, "err", err)
		return true
	}
	if !t.markReady(prog) {
		return false
	}
	s.ready.Add(1)
	return true
}

// jobPanicked handles a panic that escaped a job. The token is failed so
// that no caller waits on it forever.
func (s *Service) jobPanicked(t *Token, recovered any) {
	Logger().Warn("progc: compile job panicked", "name", t.name, "panic", recovered)
	if t.markError(fmt.Errorf("%w: %q: panic: %v", ErrCompileFailed, t.name, recovered)) {
		s.failed.Add(1)
		s.ticks.runAtNextTick(t.priority, t, func() { s.finalize(t) })
	}
}

// finalize completes a terminal token on the owner goroutine: its program is
// adopted into the primary context and it stops counting as outstanding.
func (s *Service) finalize(t *Token) {
	if t.finalized {
		return
	}
	t.finalized = true
	s.outstanding.remove(t)
	if p := t.liveProgram(); p != nil {
		s.primary.Adopt(p)
	}
	Logger().Debug("progc: program finalized", "name", t.name, "state", t.State())
}

// IsProgramReady reports whether GetProgram would return without blocking,
// with either a program or an error. It never blocks.
//
// In asynchronous mode a token becomes ready on the first Tick after its
// worker finished. Released tokens are never ready.
func (s *Service) IsProgramReady(t *Token) bool {
	if t == nil || !t.finalized {
		return false
	}
	return !t.isReleased()
}

// GetProgram returns the token's program, blocking until the program has
// been built. The token is released: later calls return ErrTokenReleased.
//
// A failed build returns its *StageError or *LinkError. A token cancelled by
// Close returns ErrServiceClosed.
func (s *Service) GetProgram(t *Token) (driver.Program, error) {
	if t == nil {
		return nil, ErrNilToken
	}
	if t.isReleased() {
		return nil, ErrTokenReleased
	}

	t.wait()
	s.ticks.cancel(t)
	s.finalize(t)

	r, ok := t.release()
	if !ok {
		return nil, ErrTokenReleased
	}
	if r.state == StateReady {
		return r.program, nil
	}
	return nil, r.err
}

// Terminate cancels the request and disposes of the token. A queued job is
// removed; a running job finishes and its result is destroyed. A program that
// was already built is destroyed.
//
// Terminate never blocks and is a no-op on a released token.
func (s *Service) Terminate(t *Token) {
	if t == nil || t.isReleased() {
		return
	}
	if s.pool != nil && s.pool.Dequeue(t) {
		Logger().Debug("progc: queued job removed", "name", t.name)
	}
	s.ticks.cancel(t)
	s.outstanding.remove(t)
	if t.cancel(ErrCancelled) {
		s.cancelled.Add(1)
	}
	t.finalized = true

	if r, ok := t.release(); ok && r.program != nil {
		s.primary.DestroyProgram(r.program)
	}
}

// NotifyWhenAllProgramsAreReady calls callback through handler on the first
// Tick at which no outstanding request has a priority at or above priority
// (a value less than or equal). With nothing outstanding it fires on the next
// Tick. A nil handler runs the callback inline during Tick.
func (s *Service) NotifyWhenAllProgramsAreReady(priority Priority, handler CallbackHandler, callback Callback, user any) error {
	if s.closed {
		return ErrServiceClosed
	}
	if callback == nil {
		return ErrNilCallback
	}
	if int(priority) >= s.levels {
		return fmt.Errorf("%w: %s (levels %d)", ErrInvalidPriority, priority, s.levels)
	}
	s.registrations = append(s.registrations, &readyRegistration{
		threshold: priority,
		handler:   handler,
		callback:  callback,
		user:      user,
	})
	return nil
}

// Close stops the workers. Queued jobs are dropped and their tokens are
// cancelled with ErrServiceClosed; running jobs finish first. Completed
// programs are still finalized by Tick and retrievable with GetProgram.
//
// Close is safe to call multiple times.
func (s *Service) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if s.pool != nil {
		dropped := s.pool.Terminate()
		for _, t := range dropped {
			if t.cancel(ErrServiceClosed) {
				s.cancelled.Add(1)
			}
			s.outstanding.remove(t)
			t.finalized = true
		}
		Logger().Info("progc: compiler pool stopped", "dropped", len(dropped))
	}
	forgetLogger(s.platform)
}
