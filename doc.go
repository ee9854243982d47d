// Package progc compiles GPU programs without stalling the render loop.
//
// # Overview
//
// A program is described declaratively by a ProgramDescription: per-stage
// source texts, specialization constants and vertex attribute bindings.
// A Service turns descriptions into linked programs. When the platform can
// create shared contexts, the expensive compile and link calls run on a pool
// of worker goroutines, each locked to an OS thread and owning one context of
// the primary context's share group. Otherwise every program is compiled on
// the calling goroutine.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/progc"
//	    "github.com/gogpu/progc/backend/wgpu"
//	)
//
//	platform, err := wgpu.NewNoopPlatform()
//	svc, err := progc.New(platform)
//	defer svc.Close()
//
//	token, err := svc.CreateProgram("sprite", progc.NewProgramDescription().
//	    Stage(driver.StageVertex, vs).
//	    Stage(driver.StageFragment, fs))
//
//	// Once per frame:
//	svc.Tick()
//	if svc.IsProgramReady(token) {
//	    prog, err := svc.GetProgram(token)
//	}
//
// # Threading
//
// All Service methods belong to the goroutine that owns the primary context
// (the render loop). Workers never call back into user code: results reach
// the owner through Tick, which adopts finished programs into the primary
// context and fires NotifyWhenAllProgramsAreReady callbacks.
//
// GetProgram is the only method that blocks.
//
// # Priorities
//
// Jobs are ordered by Priority, smaller values first, FIFO within a level.
// A running job is never preempted. The number of levels is configurable
// with WithPriorityLevels.
//
// # Architecture
//
// The module is organized into:
//   - driver: the native boundary (Platform, Context, SharedContext)
//   - internal/parallel: the worker pool and its priority queue
//   - backend/wgpu: a Platform over gogpu/wgpu hal devices
//   - blobcache: caches for compiled stage binaries
//   - cmd/progc: a command line compiler for program manifests
package progc

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
