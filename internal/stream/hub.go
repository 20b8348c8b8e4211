// Package stream implements the live delivery endpoint: a long-held SSE
// response that pushes pending notifications to a connected guardian or
// driver.
package stream

import (
	"sync"
)

// Hub tracks open stream connections and lets the dispatcher wake them
// the moment a live bucket append lands, instead of waiting for the next
// poll tick. A user may hold several connections (phone plus browser).
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[chan struct{}]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[int64]map[chan struct{}]struct{}),
	}
}

// Register adds a wake channel for the user and returns it along with an
// unregister function the connection must call on close.
func (h *Hub) Register(userID int64) (<-chan struct{}, func()) {
	// Buffer of one: a wake during a drain coalesces into a single
	// follow-up drain rather than queueing.
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.conns[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	unregister := func() {
		h.mu.Lock()
		if set, ok := h.conns[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.conns, userID)
			}
		}
		h.mu.Unlock()
	}

	return ch, unregister
}

// Wake nudges every open connection for the user. Non-blocking: a
// connection mid-drain already has a wake pending.
func (h *Hub) Wake(userID int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.conns[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ActiveConnections returns the number of open stream connections,
// sampled by the alert collector.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}
