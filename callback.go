// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package progc

import "sync"

// Callback is invoked once a NotifyWhenAllProgramsAreReady registration is
// satisfied. user is the value given at registration.
type Callback func(user any)

// CallbackHandler delivers callbacks. Its own thread and queue discipline
// decides when the callback body runs relative to Tick.
type CallbackHandler interface {
	Post(user any, cb Callback)
}

// InlineHandler runs callbacks immediately on the goroutine calling Tick.
type InlineHandler struct{}

// Post calls cb(user).
func (InlineHandler) Post(user any, cb Callback) { cb(user) }

// QueueHandler buffers callbacks until Dispatch is called. It lets callbacks
// run on a goroutine other than the one driving Tick, for example an
// application's main loop.
//
// QueueHandler is safe for concurrent use.
type QueueHandler struct {
	mu      sync.Mutex
	pending []queuedCallback
}

type queuedCallback struct {
	user any
	cb   Callback
}

// Post appends the callback to the queue.
func (h *QueueHandler) Post(user any, cb Callback) {
	h.mu.Lock()
	h.pending = append(h.pending, queuedCallback{user: user, cb: cb})
	h.mu.Unlock()
}

// Dispatch runs all queued callbacks in posting order and returns how many
// ran. Callbacks posted while dispatching run on the next call.
func (h *QueueHandler) Dispatch() int {
	h.mu.Lock()
	batch := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, q := range batch {
		q.cb(q.user)
	}
	return len(batch)
}

// Pending returns the number of queued callbacks.
func (h *QueueHandler) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}
