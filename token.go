// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package progc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/progc/driver"
)

// TokenState is the lifecycle state of a compilation request.
type TokenState uint8

// Token states. Transitions only move forward:
// Pending → Running → Ready|Error, and Pending|Running → Cancelled.
const (
	StatePending TokenState = iota
	StateRunning
	StateReady
	StateError
	StateCancelled
)

// String returns the lowercase state name.
func (s TokenState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// IsTerminal reports whether no further transition can happen.
func (s TokenState) IsTerminal() bool {
	return s >= StateReady
}

// Token is the handle of one compilation request.
//
// The result fields are written exactly once, by the goroutine that moves the
// token into a terminal state, under the token's mutex. Waiters block on the
// token's condition until that happens.
type Token struct {
	id       uuid.UUID
	name     string
	priority Priority

	mu       sync.Mutex
	cond     *sync.Cond
	state    TokenState
	program  driver.Program
	err      error
	released bool
	userData any

	// Owner goroutine only.
	finalized bool
	tracked   bool
}

func newToken(name string, priority Priority) *Token {
	t := &Token{
		id:       uuid.New(),
		name:     name,
		priority: priority,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// ID returns the token's unique identifier.
func (t *Token) ID() uuid.UUID { return t.id }

// Name returns the program name given to CreateProgram.
func (t *Token) Name() string { return t.name }

// Priority returns the scheduling priority of the request.
func (t *Token) Priority() Priority { return t.priority }

// State returns the current state without blocking on compilation.
func (t *Token) State() TokenState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the failure of an Error or Cancelled token, or nil.
func (t *Token) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Log returns the diagnostic log of an Error token, or "".
func (t *Token) Log() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateError || t.err == nil {
		return ""
	}
	return t.err.Error()
}

// SetUserData stores an arbitrary value on the token.
func (t *Token) SetUserData(v any) {
	t.mu.Lock()
	t.userData = v
	t.mu.Unlock()
}

// UserData returns the value stored with SetUserData.
func (t *Token) UserData() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userData
}

// String returns "name(state)".
func (t *Token) String() string {
	return fmt.Sprintf("%s(%s)", t.name, t.State())
}

// markRunning moves a pending token to Running. Returns false if the token
// left Pending, which means it was cancelled and the job must not run.
func (t *Token) markRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePending {
		return false
	}
	t.state = StateRunning
	return true
}

// markReady publishes the program. Returns false if the token was cancelled
// meanwhile; the caller then owns the program and must destroy it.
func (t *Token) markReady(p driver.Program) bool {
	return t.complete(StateReady, p, nil)
}

// markError publishes a compile or link failure.
func (t *Token) markError(err error) bool {
	return t.complete(StateError, nil, err)
}

// cancel moves a non-terminal token to Cancelled with the given cause.
func (t *Token) cancel(cause error) bool {
	return t.complete(StateCancelled, nil, cause)
}

func (t *Token) complete(state TokenState, p driver.Program, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return false
	}
	t.state = state
	t.program = p
	t.err = err
	t.cond.Broadcast()
	return true
}

// wait blocks until the token is terminal and returns the final state.
func (t *Token) wait() TokenState {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.state.IsTerminal() {
		t.cond.Wait()
	}
	return t.state
}

// result is a terminal token's outcome handed out by release.
type result struct {
	state   TokenState
	program driver.Program
	err     error
}

// release marks the token consumed and hands out its result. The result is
// returned only to the first caller; later calls return ok=false.
func (t *Token) release() (r result, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return result{}, false
	}
	t.released = true
	r = result{state: t.state, program: t.program, err: t.err}
	t.program = nil
	return r, true
}

// liveProgram returns the program of a Ready token that was not released.
func (t *Token) liveProgram() driver.Program {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateReady || t.released {
		return nil
	}
	return t.program
}

func (t *Token) isReleased() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}
