package sse

import (
	"encoding/json"
	"fmt"
	"sync"
)

const EventConversion = "conversion"

// Event is delivered to every subscriber of its owner.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Frame renders the event in text/event-stream framing.
func (e Event) Frame() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, data)), nil
}

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

func (h *Hub) Subscribe(owner string) (<-chan Event, func()) {
	ch := make(chan Event, 8)
	h.mu.Lock()
	if _, ok := h.subs[owner]; !ok {
		h.subs[owner] = make(map[chan Event]struct{})
	}
	h.subs[owner][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if subscribers, ok := h.subs[owner]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(h.subs, owner)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish hands the event to the owner's subscribers. Slow subscribers miss it.
func (h *Hub) Publish(owner string, event Event) {
	if owner == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[owner] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribers(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[owner])
}
