package wgpu

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/progc/driver"
)

// Program is a linked pipeline: a render pipeline for vertex (and fragment)
// stages or a compute pipeline for a compute stage.
type Program struct {
	platform *Platform
	label    string
	owner    int32

	layout  hal.PipelineLayout
	render  hal.RenderPipeline
	compute hal.ComputePipeline

	published atomic.Bool
	adoptedBy atomic.Int32
}

// Label implements driver.Program.
func (p *Program) Label() string { return p.label }

// IsCompute reports whether the program is a compute pipeline.
func (p *Program) IsCompute() bool { return p.compute != nil }

// Layout returns the pipeline layout.
func (p *Program) Layout() hal.PipelineLayout { return p.layout }

// RenderPipeline returns the render pipeline, or nil for compute programs.
func (p *Program) RenderPipeline() hal.RenderPipeline { return p.render }

// ComputePipeline returns the compute pipeline, or nil for render programs.
func (p *Program) ComputePipeline() hal.ComputePipeline { return p.compute }

// Published reports whether the creating context has flushed the program.
func (p *Program) Published() bool { return p.published.Load() }

func (p *Program) destroy(device hal.Device) {
	if p.render != nil {
		device.DestroyRenderPipeline(p.render)
	}
	if p.compute != nil {
		device.DestroyComputePipeline(p.compute)
	}
	if p.layout != nil {
		device.DestroyPipelineLayout(p.layout)
	}
}

// Link implements driver.Context.
func (c *Context) Link(desc driver.LinkDescriptor) (driver.Program, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	var vs, fs, cs *Shader
	for _, s := range desc.Shaders {
		sh, ok := s.(*Shader)
		if !ok || sh.platform != c.platform {
			return nil, ErrForeignObject
		}
		switch sh.stage {
		case driver.StageVertex:
			vs = sh
		case driver.StageFragment:
			fs = sh
		case driver.StageCompute:
			cs = sh
		}
	}

	var (
		prog *Program
		err  error
	)
	switch {
	case cs != nil && (vs != nil || fs != nil):
		err = errors.New("compute stage linked with graphics stages")
	case cs != nil:
		prog, err = c.linkCompute(desc.Label, cs)
	case vs != nil:
		prog, err = c.linkRender(desc, vs, fs)
	default:
		err = errors.New("no vertex or compute stage")
	}
	if err != nil {
		c.platform.linkFails.Add(1)
		return nil, err
	}
	c.platform.linked.Add(1)
	c.track(prog)
	return prog, nil
}

func (c *Context) linkCompute(label string, cs *Shader) (*Program, error) {
	p := c.platform
	p.deviceMu.Lock()
	defer p.deviceMu.Unlock()

	layout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: label + "_layout",
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	pipeline, err := p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     cs.module,
			EntryPoint: cs.entry,
		},
	})
	if err != nil {
		p.device.DestroyPipelineLayout(layout)
		return nil, fmt.Errorf("create compute pipeline: %w", err)
	}
	return &Program{platform: p, label: label, owner: c.id, layout: layout, compute: pipeline}, nil
}

func (c *Context) linkRender(desc driver.LinkDescriptor, vs, fs *Shader) (*Program, error) {
	p := c.platform
	buffers, err := vertexBuffers(desc.Attributes, p.opts.attributeFormat)
	if err != nil {
		return nil, err
	}

	p.deviceMu.Lock()
	defer p.deviceMu.Unlock()

	layout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: desc.Label + "_layout",
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	pd := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs.module,
			EntryPoint: vs.entry,
			Buffers:    buffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: p.opts.sampleCount,
			Mask:  0xFFFFFFFF,
		},
	}
	if fs != nil {
		pd.Fragment = &hal.FragmentState{
			Module:     fs.module,
			EntryPoint: fs.entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    p.opts.surfaceFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		}
	}
	pipeline, err := p.device.CreateRenderPipeline(pd)
	if err != nil {
		p.device.DestroyPipelineLayout(layout)
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}
	return &Program{platform: p, label: desc.Label, owner: c.id, layout: layout, render: pipeline}, nil
}

// vertexBuffers feeds each attribute from its own buffer, ordered by
// location.
func vertexBuffers(attrs []driver.AttributeBinding, format gputypes.VertexFormat) ([]gputypes.VertexBufferLayout, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	size := format.Size()
	if size == 0 {
		return nil, fmt.Errorf("unsupported attribute format %v", format)
	}
	sorted := slices.SortedFunc(slices.Values(attrs), func(a, b driver.AttributeBinding) int {
		return cmp.Compare(a.Location, b.Location)
	})
	layouts := make([]gputypes.VertexBufferLayout, 0, len(sorted))
	for _, a := range sorted {
		layouts = append(layouts, gputypes.VertexBufferLayout{
			ArrayStride: size,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{{
				Format:         format,
				Offset:         0,
				ShaderLocation: a.Location,
			}},
		})
	}
	return layouts, nil
}
