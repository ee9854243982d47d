package progc

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/progc/driver"
)

// fakePlatform is an in-memory driver.Platform. Compilation of a program can
// be held at its first stage with gate, which makes scheduling observable.
type fakePlatform struct {
	caps      driver.Capabilities
	primary   *fakeContext
	sharedErr error

	mu       sync.Mutex
	gates    map[string]chan struct{}
	linked   []string
	sources  []string
	logger   *slog.Logger
	contexts int

	started chan string

	released          atomic.Int32
	shadersDestroyed  atomic.Int32
	programsDestroyed atomic.Int32
	flushes           atomic.Int32
}

func newFakePlatform(shared bool) *fakePlatform {
	p := &fakePlatform{
		caps: driver.Capabilities{
			ParallelShaderCompile: shared,
			SharedContexts:        shared,
		},
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 64),
	}
	p.primary = &fakeContext{platform: p, id: 0}
	return p
}

func (p *fakePlatform) Capabilities() driver.Capabilities { return p.caps }
func (p *fakePlatform) PrimaryContext() driver.Context    { return p.primary }

func (p *fakePlatform) CreateSharedContext() (driver.SharedContext, error) {
	if p.sharedErr != nil {
		return nil, p.sharedErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contexts++
	return &fakeContext{platform: p, id: p.contexts}, nil
}

func (p *fakePlatform) SetLogger(l *slog.Logger) {
	p.mu.Lock()
	p.logger = l
	p.mu.Unlock()
}

func (p *fakePlatform) loggerSet() *slog.Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logger
}

// gate holds compilation of the named program until the returned function
// is called.
func (p *fakePlatform) gate(name string) (open func()) {
	ch := make(chan struct{})
	p.mu.Lock()
	p.gates[name] = ch
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// awaitStarted waits until compilation of the named gated program begins.
func (p *fakePlatform) awaitStarted(t *testing.T, name string) {
	t.Helper()
	select {
	case got := <-p.started:
		if got != name {
			t.Fatalf("started %q, want %q", got, name)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("compilation of %q did not start", name)
	}
}

func (p *fakePlatform) linkOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.linked...)
}

func (p *fakePlatform) lastSources() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sources...)
}

type fakeShader struct {
	stage driver.ShaderStage
}

func (s *fakeShader) Stage() driver.ShaderStage { return s.stage }

type fakeProgram struct {
	label     string
	context   int
	adopted   atomic.Bool
	destroyed atomic.Bool
}

func (p *fakeProgram) Label() string { return p.label }

type fakeContext struct {
	platform *fakePlatform
	id       int
}

func (c *fakeContext) CompileStage(src driver.StageSource) (driver.Shader, error) {
	p := c.platform
	name, _, _ := strings.Cut(src.Label, "/")

	if src.Stage == driver.StageVertex || src.Stage == driver.StageCompute {
		p.mu.Lock()
		g := p.gates[name]
		p.mu.Unlock()
		if g != nil {
			p.started <- name
			<-g
		}
	}

	p.mu.Lock()
	p.sources = append(p.sources, src.Source)
	p.mu.Unlock()

	switch {
	case strings.Contains(src.Source, "panic"):
		panic("driver crashed")
	case strings.Contains(src.Source, "error"):
		return nil, errors.New("syntax error near 'error'")
	}
	return &fakeShader{stage: src.Stage}, nil
}

func (c *fakeContext) Link(desc driver.LinkDescriptor) (driver.Program, error) {
	p := c.platform
	if strings.HasPrefix(desc.Label, "linkfail") {
		return nil, errors.New("varying mismatch")
	}
	p.mu.Lock()
	p.linked = append(p.linked, desc.Label)
	p.mu.Unlock()
	return &fakeProgram{label: desc.Label, context: c.id}, nil
}

func (c *fakeContext) DestroyShader(driver.Shader) { c.platform.shadersDestroyed.Add(1) }

func (c *fakeContext) DestroyProgram(prog driver.Program) {
	c.platform.programsDestroyed.Add(1)
	prog.(*fakeProgram).destroyed.Store(true)
}

func (c *fakeContext) Flush() { c.platform.flushes.Add(1) }

func (c *fakeContext) Adopt(prog driver.Program) {
	prog.(*fakeProgram).adopted.Store(true)
}

func (c *fakeContext) MakeCurrent() error { return nil }
func (c *fakeContext) Release()           { c.platform.released.Add(1) }

// =============================================================================
// Helpers
// =============================================================================

const (
	testVS = "@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }"
	testFS = "@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }"
)

func graphicsDesc() *ProgramDescription {
	return NewProgramDescription().
		Stage(driver.StageVertex, testVS).
		Stage(driver.StageFragment, testFS)
}

func newAsyncService(t *testing.T, threads int, opts ...Option) (*Service, *fakePlatform) {
	t.Helper()
	p := newFakePlatform(true)
	s, err := New(p, append([]Option{WithThreadCount(threads)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !s.Async() {
		t.Fatal("service should be asynchronous")
	}
	t.Cleanup(s.Close)
	return s, p
}

func mustCreate(t *testing.T, s *Service, name string, desc *ProgramDescription) *Token {
	t.Helper()
	tok, err := s.CreateProgram(name, desc)
	if err != nil {
		t.Fatalf("CreateProgram(%q): %v", name, err)
	}
	return tok
}

// waitFor polls cond until it holds or a deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
