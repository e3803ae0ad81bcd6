package store

import (
	"context"
	"sync"

	"github.com/leonardcser/imoney-mcp/internal/logger"
)

// watcherBuffer is the per-watcher queue length before changes are dropped.
const watcherBuffer = 64

// Hub fans changes out to in-process watchers. A watcher that falls
// behind loses changes instead of blocking the writer.
type Hub struct {
	mu       sync.Mutex
	watchers map[chan Change]struct{}
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[chan Change]struct{})}
}

// Subscribe registers a watcher that is removed and closed when ctx is done.
func (h *Hub) Subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, watcherBuffer)
	h.mu.Lock()
	h.watchers[ch] = struct{}{}
	h.mu.Unlock()
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.watchers, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

// Publish delivers c to every watcher.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers {
		select {
		case ch <- c:
		default:
			logger.Warnf("store: dropping change for key %q, watcher is full", c.Key)
		}
	}
}

// Len returns the number of active watchers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}
