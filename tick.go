// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package progc

import (
	"slices"
	"sync"
)

// tickOp is work that must run on the owner goroutine during the next Tick.
type tickOp struct {
	priority Priority
	token    *Token
	run      func()
}

// tickQueue collects tick ops. Workers append; the owner takes the whole
// list once per Tick.
type tickQueue struct {
	mu  sync.Mutex
	ops []tickOp
}

// runAtNextTick appends an op. Safe to call from any goroutine.
func (q *tickQueue) runAtNextTick(priority Priority, t *Token, run func()) {
	q.mu.Lock()
	q.ops = append(q.ops, tickOp{priority: priority, token: t, run: run})
	q.mu.Unlock()
}

// take returns the pending ops in insertion order and clears the list.
// Ops added while the returned batch executes belong to the next Tick.
func (q *tickQueue) take() []tickOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops := q.ops
	q.ops = nil
	return ops
}

// cancel removes every pending op of the token and reports whether any
// was found.
func (q *tickQueue) cancel(t *Token) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.ops)
	q.ops = slices.DeleteFunc(q.ops, func(op tickOp) bool { return op.token == t })
	return len(q.ops) != n
}

// len returns the number of pending ops.
func (q *tickQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// readyRegistration is one NotifyWhenAllProgramsAreReady request.
type readyRegistration struct {
	threshold Priority
	handler   CallbackHandler
	callback  Callback
	user      any
}

// outstandingSet tracks asynchronous tokens that are neither finalized,
// consumed nor terminated. Owner goroutine only.
type outstandingSet struct {
	tokens map[*Token]struct{}
	counts [MaxPriorityLevels]int
}

func newOutstandingSet() outstandingSet {
	return outstandingSet{tokens: make(map[*Token]struct{})}
}

func (o *outstandingSet) add(t *Token) {
	if t.tracked {
		return
	}
	t.tracked = true
	o.tokens[t] = struct{}{}
	o.counts[t.priority]++
}

func (o *outstandingSet) remove(t *Token) {
	if !t.tracked {
		return
	}
	t.tracked = false
	delete(o.tokens, t)
	o.counts[t.priority]--
}

// settled reports whether no outstanding token has a priority value at or
// below threshold.
func (o *outstandingSet) settled(threshold Priority) bool {
	for p := 0; p <= int(threshold) && p < MaxPriorityLevels; p++ {
		if o.counts[p] > 0 {
			return false
		}
	}
	return true
}

func (o *outstandingSet) len() int { return len(o.tokens) }

// Tick finalizes programs completed by workers and fires satisfied
// NotifyWhenAllProgramsAreReady registrations. Call it once per frame from
// the goroutine that owns the platform's primary context.
//
// Tick works on snapshots: ops and registrations added while it runs,
// including from callbacks, are processed by the next Tick.
func (s *Service) Tick() {
	for _, op := range s.ticks.take() {
		op.run()
	}
	s.fireRegistrations()
	s.ticksRun.Add(1)
}

// fireRegistrations posts every registration whose threshold is settled and
// keeps the rest in registration order.
func (s *Service) fireRegistrations() {
	if len(s.registrations) == 0 {
		return
	}
	batch := s.registrations
	s.registrations = nil

	var keep []*readyRegistration
	for _, r := range batch {
		if !s.outstanding.settled(r.threshold) {
			keep = append(keep, r)
			continue
		}
		s.callbacksFired.Add(1)
		if r.handler == nil {
			r.callback(r.user)
		} else {
			r.handler.Post(r.user, r.callback)
		}
	}
	// Registrations added by callbacks during this Tick go after the kept ones.
	s.registrations = append(keep, s.registrations...)
}
