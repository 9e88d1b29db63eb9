package game

import "sync"

// Hub fans snapshots out to subscribers. Publishing never blocks: a
// subscriber whose queue is full loses its oldest queued snapshot.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Snapshot
	next int
	last *Snapshot
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Snapshot)}
}

// Subscribe registers a subscriber with a queue of buffer snapshots. The
// latest published snapshot, if any, is queued immediately. Calling cancel
// closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	if h.last != nil {
		ch <- *h.last
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish queues s for every subscriber.
func (h *Hub) Publish(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = &s
	for _, ch := range h.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// Full: drop the oldest. Only Publish sends, so there is room after.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
