// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package driver defines the native boundary of the program compiler.
//
// A Platform owns a primary Context and can create SharedContexts that share
// its object namespace (a "share group"). Objects created on any context of
// the group can be used by every other context once the creating context has
// called Flush and the consuming context has called Adopt.
//
// The progc service only talks to these interfaces. backend/wgpu provides an
// implementation over gogpu/wgpu hal devices.
package driver

import "fmt"

// ShaderStage identifies one programmable stage of a program.
type ShaderStage uint8

// Shader stages, in compile order.
const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute

	// StageCount is the number of shader stages.
	StageCount = 3
)

// String returns the lowercase stage name.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// Capabilities reports what a Platform supports.
type Capabilities struct {
	// ParallelShaderCompile reports that compile and link calls may be issued
	// off the primary context.
	ParallelShaderCompile bool

	// SharedContexts reports that CreateSharedContext is supported.
	SharedContexts bool
}

// SpecializationConstant is a constant value baked into every stage of a
// program at compile time.
//
// Name selects the constant by name. When Name is empty, ID selects it by its
// numeric identifier.
type SpecializationConstant struct {
	Name  string
	ID    uint32
	Value any // bool, int32, uint32 or float32
}

// AttributeBinding binds a vertex attribute name to a location.
type AttributeBinding struct {
	Name     string
	Location uint32
}

// StageSource is the input of Context.CompileStage.
type StageSource struct {
	// Label is a debug label for the stage object.
	Label string

	Stage  ShaderStage
	Source string

	// EntryPoint is the entry function name. Empty selects the backend default.
	EntryPoint string

	// Constants are the program's specialization constants. Backends that
	// specialize natively apply them here; otherwise Source already has them
	// substituted by a Preprocessor.
	Constants []SpecializationConstant
}

// LinkDescriptor is the input of Context.Link.
type LinkDescriptor struct {
	Label      string
	Shaders    []Shader
	Attributes []AttributeBinding
}

// Shader is a compiled stage object.
type Shader interface {
	Stage() ShaderStage
}

// Program is a linked program object.
type Program interface {
	Label() string
}

// Context is one native execution context.
//
// A Context is bound to a single goroutine at a time. The primary context is
// used by the goroutine that owns the render loop.
type Context interface {
	// CompileStage compiles one stage. The returned error text is the
	// compiler's diagnostic log.
	CompileStage(src StageSource) (Shader, error)

	// Link combines compiled stages into a program and applies attribute
	// bindings. The returned error text is the linker's diagnostic log.
	Link(desc LinkDescriptor) (Program, error)

	DestroyShader(s Shader)
	DestroyProgram(p Program)

	// Flush publishes objects created on this context to the share group.
	Flush()

	// Adopt makes a program published by another context of the share group
	// usable from this context.
	Adopt(p Program)
}

// SharedContext is a secondary context sharing the primary context's
// object namespace.
type SharedContext interface {
	Context

	// MakeCurrent binds the context to the calling thread.
	MakeCurrent() error

	// Release unbinds and destroys the context.
	Release()
}

// Platform creates and owns native contexts.
type Platform interface {
	Capabilities() Capabilities
	PrimaryContext() Context
	CreateSharedContext() (SharedContext, error)
}

// Preprocessor rewrites stage source text before compilation, for example to
// substitute specialization constants. It is optional; platforms that
// implement it are used by default.
type Preprocessor interface {
	Preprocess(stage ShaderStage, source string, constants []SpecializationConstant) (string, error)
}

// PreprocessorFunc adapts a function to the Preprocessor interface.
type PreprocessorFunc func(stage ShaderStage, source string, constants []SpecializationConstant) (string, error)

// Preprocess calls f.
func (f PreprocessorFunc) Preprocess(stage ShaderStage, source string, constants []SpecializationConstant) (string, error) {
	return f(stage, source, constants)
}
