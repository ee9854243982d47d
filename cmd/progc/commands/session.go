package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/progc"
	"github.com/gogpu/progc/backend/wgpu"
	"github.com/gogpu/progc/blobcache"
	"github.com/gogpu/progc/cmd/progc/internal/manifest"
	"github.com/gogpu/progc/driver"
)

// sessionOptions are the flags shared by compile and watch.
type sessionOptions struct {
	backend     string
	threads     int
	sync        bool
	cacheDir    string
	cacheSize   int
	tick        time.Duration
	shaderDebug bool
}

func addSessionFlags(cmd *cobra.Command, o *sessionOptions) {
	f := cmd.Flags()
	f.StringVar(&o.backend, "backend", wgpu.BackendNoop, "device backend: auto, "+strings.Join(wgpu.Available(), " or "))
	f.IntVar(&o.threads, "threads", 0, "compile workers (0 = half the CPUs)")
	f.BoolVar(&o.sync, "sync", false, "compile synchronously on the primary context")
	f.StringVar(&o.cacheDir, "cache-dir", "", "persistent SPIR-V cache directory")
	f.IntVar(&o.cacheSize, "cache-size", blobcache.DefaultCapacity, "in-memory SPIR-V cache entries per shard")
	f.DurationVar(&o.tick, "tick", 2*time.Millisecond, "interval between service ticks")
	f.BoolVar(&o.shaderDebug, "shader-debug", false, "emit SPIR-V debug information")
}

// session owns a platform, its SPIR-V cache and a compile service.
type session struct {
	opts     sessionOptions
	platform *wgpu.Platform
	svc      *progc.Service
	memory   *blobcache.Memory
	disk     *blobcache.Badger

	programs map[string]driver.Program
}

// result is the outcome of one program.
type result struct {
	name        string
	priority    progc.Priority
	state       progc.TokenState
	err         error
	sourceBytes int
}

func openSession(o sessionOptions, levels int) (*session, error) {
	s := &session{opts: o, programs: make(map[string]driver.Program)}
	s.memory = blobcache.NewMemory(o.cacheSize)
	var cache blobcache.Store = s.memory
	if o.cacheDir != "" {
		disk, err := blobcache.OpenBadger(blobcache.BadgerOptions{Dir: o.cacheDir, Logger: progc.Logger()})
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		s.disk = disk
		cache = blobcache.NewTiered(s.memory, disk)
	}

	platform, err := newPlatform(o.backend, wgpu.WithBlobCache(cache), wgpu.WithShaderDebug(o.shaderDebug))
	if err != nil {
		s.close()
		return nil, err
	}
	s.platform = platform

	var opts []progc.Option
	if o.threads > 0 {
		opts = append(opts, progc.WithThreadCount(o.threads))
	}
	if o.sync {
		opts = append(opts, progc.WithSynchronous())
	}
	if levels > 0 {
		opts = append(opts, progc.WithPriorityLevels(levels))
	}
	svc, err := progc.New(platform, opts...)
	if err != nil {
		s.close()
		return nil, err
	}
	s.svc = svc
	progc.Logger().Debug("progc: session opened",
		"backend", o.backend, "async", svc.Async(), "levels", svc.Levels(), "adapter", platform.Info().Name)
	return s, nil
}

func newPlatform(backend string, opts ...wgpu.Option) (*wgpu.Platform, error) {
	if backend == "auto" {
		return wgpu.OpenDefault(opts...)
	}
	return wgpu.Open(backend, opts...)
}

// build compiles entries and waits until every one is finished. Programs
// that link replace the session's program of the same name.
func (s *session) build(ctx context.Context, entries []manifest.Entry) ([]result, time.Duration, error) {
	start := time.Now()
	tokens := make([]*progc.Token, 0, len(entries))
	for _, e := range entries {
		t, err := s.svc.CreateProgram(e.Name, e.Desc)
		if err != nil {
			s.terminate(tokens)
			return nil, 0, fmt.Errorf("program %q: %w", e.Name, err)
		}
		tokens = append(tokens, t)
	}
	if err := s.waitReady(ctx); err != nil {
		s.terminate(tokens)
		return nil, 0, err
	}

	results := make([]result, len(tokens))
	for i, t := range tokens {
		prog, err := s.svc.GetProgram(t)
		results[i] = result{
			name:        entries[i].Name,
			priority:    t.Priority(),
			state:       t.State(),
			err:         err,
			sourceBytes: sourceBytes(entries[i].Desc),
		}
		if err == nil {
			s.replace(entries[i].Name, prog)
		}
	}
	return results, time.Since(start), nil
}

// waitReady ticks the service until every outstanding program is finished.
func (s *session) waitReady(ctx context.Context) error {
	done := make(chan struct{})
	lowest := progc.Priority(s.svc.Levels() - 1)
	if err := s.svc.NotifyWhenAllProgramsAreReady(lowest, nil, func(any) { close(done) }, nil); err != nil {
		return err
	}
	ticker := time.NewTicker(s.opts.tick)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.svc.Tick()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *session) terminate(tokens []*progc.Token) {
	for _, t := range tokens {
		s.svc.Terminate(t)
	}
}

func (s *session) replace(name string, prog driver.Program) {
	if old, ok := s.programs[name]; ok {
		s.platform.PrimaryContext().DestroyProgram(old)
	}
	s.programs[name] = prog
}

func (s *session) remove(name string) {
	if old, ok := s.programs[name]; ok {
		s.platform.PrimaryContext().DestroyProgram(old)
		delete(s.programs, name)
	}
}

func (s *session) close() {
	if s.platform != nil {
		for name := range s.programs {
			s.remove(name)
		}
	}
	if s.svc != nil {
		s.svc.Close()
	}
	if s.platform != nil {
		s.platform.Close()
	}
	if s.disk != nil {
		if err := s.disk.Close(); err != nil {
			progc.Logger().Warn("progc: closing cache", "error", err)
		}
	}
}

func sourceBytes(d *progc.ProgramDescription) int {
	n := 0
	for _, src := range d.Sources {
		n += len(src)
	}
	return n
}
