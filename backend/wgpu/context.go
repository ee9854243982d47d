package wgpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/progc/driver"
)

// Default entry points used when a stage source does not name one.
const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
	DefaultComputeEntry  = "cs_main"
)

// Context is a compilation context of a Platform. The primary context
// implements driver.Context; shared contexts also implement
// driver.SharedContext.
type Context struct {
	platform *Platform
	id       int32
	primary  bool

	bound    atomic.Bool
	released atomic.Bool

	// mu guards unpublished.
	mu          sync.Mutex
	unpublished []*Program
}

// Shader is a compiled shader module.
type Shader struct {
	platform *Platform
	stage    driver.ShaderStage
	label    string
	entry    string
	module   hal.ShaderModule
	words    int

	destroyed atomic.Bool
}

// Stage implements driver.Shader.
func (s *Shader) Stage() driver.ShaderStage { return s.stage }

// Module returns the HAL shader module.
func (s *Shader) Module() hal.ShaderModule { return s.module }

// EntryPoint returns the entry function name.
func (s *Shader) EntryPoint() string { return s.entry }

// SPIRVWords returns the size of the compiled module in 32-bit words.
func (s *Shader) SPIRVWords() int { return s.words }

// ID returns the context identifier, unique within its platform.
func (c *Context) ID() int32 { return c.id }

// MakeCurrent implements driver.SharedContext.
func (c *Context) MakeCurrent() error {
	if c.released.Load() {
		return ErrContextReleased
	}
	if !c.bound.CompareAndSwap(false, true) {
		return ErrContextBusy
	}
	return nil
}

// Release implements driver.SharedContext. Objects created on the context
// stay alive in the share group.
func (c *Context) Release() {
	if c.primary || !c.released.CompareAndSwap(false, true) {
		return
	}
	c.Flush()
	c.bound.Store(false)
	c.platform.releaseShared()
	slogger().Debug("wgpu: shared context released", "context", c.id)
}

func (c *Context) usable() error {
	if c.released.Load() {
		return ErrContextReleased
	}
	if c.platform.isClosed() {
		return ErrClosed
	}
	return nil
}

// CompileStage implements driver.Context. Source is WGSL; the returned
// error carries the naga diagnostic.
func (c *Context) CompileStage(src driver.StageSource) (driver.Shader, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	p := c.platform
	words, err := p.compileSPIRV(src.Source)
	if err != nil {
		p.compileFails.Add(1)
		return nil, err
	}

	p.deviceMu.Lock()
	module, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  src.Label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	p.deviceMu.Unlock()
	if err != nil {
		p.compileFails.Add(1)
		return nil, fmt.Errorf("create shader module: %w", err)
	}
	p.compiled.Add(1)
	p.group.addShader()

	entry := src.EntryPoint
	if entry == "" {
		entry = defaultEntryPoint(src.Stage)
	}
	return &Shader{
		platform: p,
		stage:    src.Stage,
		label:    src.Label,
		entry:    entry,
		module:   module,
		words:    len(words),
	}, nil
}

func defaultEntryPoint(stage driver.ShaderStage) string {
	switch stage {
	case driver.StageFragment:
		return DefaultFragmentEntry
	case driver.StageCompute:
		return DefaultComputeEntry
	default:
		return DefaultVertexEntry
	}
}

// DestroyShader implements driver.Context.
func (c *Context) DestroyShader(s driver.Shader) {
	sh, ok := s.(*Shader)
	if !ok || sh.platform != c.platform || !sh.destroyed.CompareAndSwap(false, true) {
		return
	}
	p := c.platform
	p.deviceMu.Lock()
	if p.device != nil {
		p.device.DestroyShaderModule(sh.module)
	}
	p.deviceMu.Unlock()
	p.group.removeShader()
}

// DestroyProgram implements driver.Context.
func (c *Context) DestroyProgram(prog driver.Program) {
	pr, ok := prog.(*Program)
	if !ok || pr.platform != c.platform || !c.platform.group.removeProgram(pr) {
		return
	}
	p := c.platform
	p.deviceMu.Lock()
	if p.device != nil {
		pr.destroy(p.device)
	}
	p.deviceMu.Unlock()
}

// Flush implements driver.Context by publishing programs linked on this
// context to the share group.
func (c *Context) Flush() {
	c.mu.Lock()
	pending := c.unpublished
	c.unpublished = nil
	c.mu.Unlock()
	for _, pr := range pending {
		pr.published.Store(true)
	}
}

// Adopt implements driver.Context.
func (c *Context) Adopt(prog driver.Program) {
	pr, ok := prog.(*Program)
	if !ok || pr.platform != c.platform {
		slogger().Warn("wgpu: adopting foreign program", "context", c.id)
		return
	}
	if pr.owner != c.id && !pr.published.Load() {
		slogger().Warn("wgpu: adopting unpublished program", "program", pr.label, "owner", pr.owner, "context", c.id)
	}
	pr.adoptedBy.Store(c.id)
}

func (c *Context) track(pr *Program) {
	c.platform.group.addProgram(pr)
	c.mu.Lock()
	c.unpublished = append(c.unpublished, pr)
	c.mu.Unlock()
}
