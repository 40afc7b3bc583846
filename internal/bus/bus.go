package bus

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultSubscriberBuffer is the per-subscriber buffer size used when the
// caller does not specify one.
const DefaultSubscriberBuffer = 64

// Bus broadcasts the events of one session to any number of subscribers in
// publish order. Publish never blocks: when a subscriber's buffer is full
// its oldest undelivered event is dropped to make room (drop-oldest policy).
type Bus struct {
	sessionID string
	logger    *slog.Logger

	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	closed  bool
	dropped uint64

	hooks Hooks
}

// Hooks are optional callbacks for metrics instrumentation.
type Hooks struct {
	OnPublish     func()
	OnDrop        func()
	OnSubscribe   func()
	OnUnsubscribe func()
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	ch     chan Event
	cancel func()
	once   sync.Once
}

// Events returns the channel delivering this subscriber's events. The
// channel is closed when the subscription is cancelled or the bus closes.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel detaches the subscriber and closes its channel. Safe to call more
// than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// New creates an event bus for the given session.
func New(sessionID string, logger *slog.Logger) *Bus {
	return &Bus{
		sessionID: sessionID,
		logger:    logger,
		subs:      make(map[uint64]*Subscription),
	}
}

// SetHooks registers instrumentation callbacks. Call before publishing.
func (b *Bus) SetHooks(hooks Hooks) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = hooks
}

// Subscribe attaches a new subscriber with the given buffer size. Events
// published before Subscribe returns are not replayed; late joiners read a
// snapshot first and use the bus for deltas only.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{ch: make(chan Event, buffer)}
	if b.closed {
		close(sub.ch)
		sub.cancel = func() {}
		return sub
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	sub.cancel = func() { b.unsubscribe(id) }
	if b.hooks.OnSubscribe != nil {
		b.hooks.OnSubscribe()
	}
	return sub
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
	if b.hooks.OnUnsubscribe != nil {
		b.hooks.OnUnsubscribe()
	}
}

// Publish broadcasts an event to all current subscribers. The timestamp is
// stamped here so ordering and timestamps agree.
func (b *Bus) Publish(eventType EventType, payload interface{}) {
	b.publish(Event{Type: eventType, Payload: payload})
}

// PublishError broadcasts an error-carrying event.
func (b *Bus) PublishError(eventType EventType, errText string) {
	b.publish(Event{Type: eventType, Error: errText})
}

func (b *Bus) publish(ev Event) {
	ev.SessionID = b.sessionID
	ev.Timestamp = time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if b.hooks.OnPublish != nil {
		b.hooks.OnPublish()
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
			continue
		default:
		}

		// Buffer full: drop the oldest buffered event to make room.
		select {
		case <-sub.ch:
		default:
		}

		select {
		case sub.ch <- ev:
		default:
			// A concurrent receiver refilled the buffer; the new event
			// is the one dropped in this rare case.
		}

		b.dropped++
		if b.hooks.OnDrop != nil {
			b.hooks.OnDrop()
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns the total number of events dropped due to overflow.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close detaches all subscribers and closes their channels. Publishing
// after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
		if b.hooks.OnUnsubscribe != nil {
			b.hooks.OnUnsubscribe()
		}
	}

	if b.dropped > 0 && b.logger != nil {
		b.logger.Debug("Event bus closed with dropped events",
			slog.String("session_id", b.sessionID),
			slog.Uint64("dropped", b.dropped),
		)
	}
}
