package subscription

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub hands out per-board subscribers on demand. A board's pub/sub
// connection is opened when its first handler subscribes and torn down when
// the last one leaves.
type Hub struct {
	rc  *redis.Client
	ctx context.Context

	mu      sync.Mutex
	entries map[string]*hubEntry
}

type hubEntry struct {
	sub    *Subscriber
	cancel context.CancelFunc
	refs   int
}

// NewHub creates a hub. Subscriber goroutines stop when ctx is cancelled.
func NewHub(ctx context.Context, rc *redis.Client) *Hub {
	return &Hub{rc: rc, ctx: ctx, entries: make(map[string]*hubEntry)}
}

// Subscribe registers a handler for a board's updates and returns a function
// that removes it.
func (h *Hub) Subscribe(eventID string, fn Handler) func() {
	h.mu.Lock()
	entry, ok := h.entries[eventID]
	if !ok {
		ctx, cancel := context.WithCancel(h.ctx)
		entry = &hubEntry{sub: New(h.rc, eventID), cancel: cancel}
		h.entries[eventID] = entry
		go entry.sub.Run(ctx)
	}
	entry.refs++
	h.mu.Unlock()

	unsub := entry.sub.Subscribe(fn)
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			h.mu.Lock()
			defer h.mu.Unlock()
			entry.refs--
			if entry.refs == 0 {
				entry.cancel()
				delete(h.entries, eventID)
			}
		})
	}
}

// Connected reports whether the given board currently has a live pub/sub
// channel.
func (h *Hub) Connected(eventID string) bool {
	h.mu.Lock()
	entry, ok := h.entries[eventID]
	h.mu.Unlock()
	return ok && entry.sub.Connected()
}
