package stream

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event types pushed to dashboard clients
const (
	EventAccountUpdate = "account_update"
	EventAccountRemove = "account_remove"
	EventAlert         = "alert"
)

// Event is the envelope written to every subscriber.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: data, At: time.Now().UTC()}
}

// Hub fans encoded events out to in-process subscribers. A subscriber whose
// buffer is full misses the message rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan []byte
	next    uint64
	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan []byte)}
}

// Subscribe registers a subscriber. The returned func unsubscribes and closes
// the channel; it is safe to call more than once.
func (h *Hub) Subscribe(buf int) (<-chan []byte, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan []byte, buf)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

// Publish encodes ev and delivers it to local subscribers.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.Deliver(payload)
	return nil
}

// Deliver hands an already encoded message to every subscriber.
func (h *Hub) Deliver(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many messages slow subscribers missed.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
