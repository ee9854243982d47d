package wgpu

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/progc/driver"
)

// Platform is a driver.Platform over a gogpu/wgpu HAL device.
//
// Stage sources are WGSL. Each stage is compiled to SPIR-V with naga, which
// runs concurrently on every context. Calls into the HAL device are
// serialized by the platform.
type Platform struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	info     AdapterInfo

	// external devices belong to the caller and are never destroyed here.
	external bool

	opts platformOptions

	// deviceMu serializes HAL device calls.
	deviceMu sync.Mutex

	group   shareGroup
	primary *Context

	mu     sync.Mutex
	nextID int32
	shared int
	closed bool

	compiled     atomic.Int64
	compileFails atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	linked       atomic.Int64
	linkFails    atomic.Int64
}

// AdapterInfo describes the adapter a platform's device was opened on.
type AdapterInfo struct {
	Name       string
	Vendor     string
	Driver     string
	DeviceType string
	Backend    string
}

// Stats is a snapshot of platform counters.
type Stats struct {
	Compiled       int64
	CompileFails   int64
	CacheHits      int64
	CacheMisses    int64
	Linked         int64
	LinkFails      int64
	LiveShaders    int
	LivePrograms   int
	SharedContexts int
}

// NewPlatform wraps an existing HAL device. The device stays owned by the
// caller: Close does not destroy it.
func NewPlatform(device hal.Device, queue hal.Queue, opts ...Option) (*Platform, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	p := newPlatform(device, queue, opts)
	p.external = true
	return p, nil
}

func newPlatform(device hal.Device, queue hal.Queue, opts []Option) *Platform {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	p := &Platform{
		device: device,
		queue:  queue,
		opts:   o,
		group:  newShareGroup(),
	}
	p.primary = p.newContext(true)
	return p
}

func (p *Platform) newContext(primary bool) *Context {
	p.nextID++
	return &Context{platform: p, id: p.nextID, primary: primary}
}

// Device returns the HAL device programs are created on.
func (p *Platform) Device() hal.Device { return p.device }

// Queue returns the HAL queue paired with the device. It may be nil for
// platforms created with NewPlatform and a nil queue.
func (p *Platform) Queue() hal.Queue { return p.queue }

// Info returns the adapter description. It is empty for external devices.
func (p *Platform) Info() AdapterInfo { return p.info }

// Capabilities implements driver.Platform.
func (p *Platform) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		ParallelShaderCompile: true,
		SharedContexts:        p.opts.sharedContexts && p.opts.maxShared > 0,
	}
}

// PrimaryContext implements driver.Platform.
func (p *Platform) PrimaryContext() driver.Context { return p.primary }

// CreateSharedContext implements driver.Platform.
func (p *Platform) CreateSharedContext() (driver.SharedContext, error) {
	if !p.opts.sharedContexts {
		return nil, ErrSharedContextsDisabled
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if p.shared >= p.opts.maxShared {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyContexts, p.opts.maxShared)
	}
	p.shared++
	c := p.newContext(false)
	slogger().Debug("wgpu: shared context created", "context", c.id, "shared", p.shared)
	return c, nil
}

func (p *Platform) releaseShared() {
	p.mu.Lock()
	p.shared--
	p.mu.Unlock()
}

// Preprocess implements driver.Preprocessor by substituting specialization
// constants into WGSL override declarations.
func (p *Platform) Preprocess(_ driver.ShaderStage, source string, constants []driver.SpecializationConstant) (string, error) {
	return Specialize(source, constants)
}

// SetLogger implements the logger propagation hook used by progc.SetLogger.
func (p *Platform) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Stats returns a snapshot of platform counters.
func (p *Platform) Stats() Stats {
	shaders, programs := p.group.live()
	p.mu.Lock()
	shared := p.shared
	p.mu.Unlock()
	return Stats{
		Compiled:       p.compiled.Load(),
		CompileFails:   p.compileFails.Load(),
		CacheHits:      p.cacheHits.Load(),
		CacheMisses:    p.cacheMisses.Load(),
		Linked:         p.linked.Load(),
		LinkFails:      p.linkFails.Load(),
		LiveShaders:    shaders,
		LivePrograms:   programs,
		SharedContexts: shared,
	}
}

// Close destroys programs still alive in the share group and, unless the
// device is external, the device and its instance. Close is idempotent.
func (p *Platform) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	leaked := p.group.drain()
	if len(leaked) > 0 {
		slogger().Warn("wgpu: destroying programs still alive at close", "count", len(leaked))
	}
	p.deviceMu.Lock()
	defer p.deviceMu.Unlock()
	for _, prog := range leaked {
		prog.destroy(p.device)
	}
	if p.external {
		return
	}
	if p.device != nil {
		p.device.Destroy()
	}
	if p.instance != nil {
		p.instance.Destroy()
	}
	p.device, p.queue, p.instance = nil, nil, nil
}

func (p *Platform) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
