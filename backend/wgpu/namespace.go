// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import "sync"

// shareGroup tracks the objects alive in a platform's namespace.
type shareGroup struct {
	mu       sync.Mutex
	shaders  int
	programs map[*Program]struct{}
}

func newShareGroup() shareGroup {
	return shareGroup{programs: make(map[*Program]struct{})}
}

func (g *shareGroup) addShader() {
	g.mu.Lock()
	g.shaders++
	g.mu.Unlock()
}

func (g *shareGroup) removeShader() {
	g.mu.Lock()
	g.shaders--
	g.mu.Unlock()
}

func (g *shareGroup) addProgram(p *Program) {
	g.mu.Lock()
	g.programs[p] = struct{}{}
	g.mu.Unlock()
}

// removeProgram reports whether p was alive.
func (g *shareGroup) removeProgram(p *Program) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.programs[p]; !ok {
		return false
	}
	delete(g.programs, p)
	return true
}

// drain removes and returns every live program.
func (g *shareGroup) drain() []*Program {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Program, 0, len(g.programs))
	for p := range g.programs {
		out = append(out, p)
	}
	clear(g.programs)
	return out
}

func (g *shareGroup) live() (shaders, programs int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shaders, len(g.programs)
}
