package socket

import (
	"sync"

	"github.com/corey/cpbench/internal/ports"
)

// subscriberBuffer is how many events a slow subscriber may fall behind
// before further events are dropped for it.
const subscriberBuffer = 64

// Hub fans events out to subscribed connections. It implements ports.Publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan ports.Event]struct{}
}

var _ ports.Publisher = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan ports.Event]struct{})}
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev ports.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func
// unregisters it and closes the channel.
func (h *Hub) Subscribe() (<-chan ports.Event, func()) {
	ch := make(chan ports.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
