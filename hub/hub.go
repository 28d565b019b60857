// Package hub decouples frame producers from consumers. FrameHub holds the
// single most recent annotated frame; EventBus pushes recognition events to
// listeners. Neither lets a slow consumer block a producer.
package hub

import (
	"sync"
	"sync/atomic"
)

// FrameHub is a single-slot, overwrite-on-publish holder for the latest
// encoded frame. Consumers poll it at their own cadence and silently miss
// intermediate frames; stale video is worse than a backlog.
type FrameHub struct {
	mu        sync.RWMutex
	latest    []byte
	published uint64
}

func NewFrameHub() *FrameHub {
	return &FrameHub{}
}

// Publish replaces the held frame. Consumers are not woken.
func (h *FrameHub) Publish(frame []byte) {
	h.mu.Lock()
	h.latest = frame
	h.mu.Unlock()
	atomic.AddUint64(&h.published, 1)
}

// Latest returns the current frame, or nil if nothing has been published
// yet. Never blocks; the returned slice must not be modified.
func (h *FrameHub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Published returns how many frames have passed through the hub.
func (h *FrameHub) Published() uint64 {
	return atomic.LoadUint64(&h.published)
}
