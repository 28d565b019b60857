package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Event says an identity was observed on the stream.
type Event struct {
	PersonID string `json:"identityId"`
	OwnerID  string `json:"-"`
}

// Handler receives one event. A non-nil error unsubscribes the listener.
type Handler func(Event) error

type subscriber struct {
	mu   sync.Mutex
	fn   Handler
	gone bool
}

// deliver runs the handler unless the subscriber is already unsubscribed.
// Holding the subscriber mutex keeps deliveries to one listener in publish
// order and makes Unsubscribe final: once it returns, no handler runs.
func (s *subscriber) deliver(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return nil
	}
	return s.fn(ev)
}

func (s *subscriber) drop() {
	s.mu.Lock()
	s.gone = true
	s.mu.Unlock()
}

// EventBus fans recognition events out to a dynamic set of listeners.
// Events are not persisted or replayed; a late subscriber starts with the
// next publish.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers a listener and returns its handle.
func (b *EventBus) Subscribe(fn Handler) string {
	handle := uuid.NewString()
	b.mu.Lock()
	b.subscribers[handle] = &subscriber{fn: fn}
	b.mu.Unlock()
	return handle
}

// Unsubscribe removes a listener. Safe to call mid-broadcast; unknown
// handles are ignored. A handler removes itself by returning an error
// instead of calling Unsubscribe with its own handle.
func (b *EventBus) Unsubscribe(handle string) {
	b.mu.Lock()
	sub, ok := b.subscribers[handle]
	if ok {
		delete(b.subscribers, handle)
	}
	b.mu.Unlock()

	if ok {
		sub.drop()
	}
}

// Publish delivers the event to every current listener. One listener
// failing does not stop the others; a failed listener is unsubscribed.
func (b *EventBus) Publish(ev Event) {
	b.mu.Lock()
	handles := make([]string, 0, len(b.subscribers))
	subs := make([]*subscriber, 0, len(b.subscribers))
	for handle, sub := range b.subscribers {
		handles = append(handles, handle)
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for i, sub := range subs {
		if err := sub.deliver(ev); err != nil {
			b.Unsubscribe(handles[i])
		}
	}
}

// Listeners returns the current subscriber count.
func (b *EventBus) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
