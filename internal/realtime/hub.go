// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package realtime

import (
	"log/slog"
	"sync"
)

// hub fans events out to per-channel subscriber queues.
type hub struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	size   int
	logger *slog.Logger
	closed bool
}

func newHub(size int, logger *slog.Logger) *hub {
	return &hub{
		subs:   make(map[string][]chan Event),
		size:   size,
		logger: logger,
	}
}

// subscribe returns a queue receiving events for channel, or nil when the
// hub is closed.
func (h *hub) subscribe(channel string) chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	ch := make(chan Event, h.size)
	h.subs[channel] = append(h.subs[channel], ch)
	return ch
}

// unsubscribe removes and closes a queue returned by subscribe.
func (h *hub) unsubscribe(channel string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[channel]
	for i, sub := range subs {
		if sub == ch {
			h.subs[channel] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// broadcast delivers e to every subscriber of its channel without
// blocking. A full queue loses the event.
func (h *hub) broadcast(e Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, ch := range h.subs[e.Channel] {
		select {
		case ch <- e:
			delivered++
		default:
			h.logger.Warn("event dropped: subscriber buffer full",
				"channel", e.Channel,
				"event_id", e.ID.String(),
				"event", e.Name,
			)
		}
	}
	return delivered
}

// close closes every subscriber queue. Later broadcasts are no-ops.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for channel, subs := range h.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subs, channel)
	}
}
