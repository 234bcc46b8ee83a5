// ABOUTME: In-memory fan-out event bus standing in for host page events
// ABOUTME: Delivers reconfiguration, visibility and exit-intent events to subscribers

package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names published by hosts.
const (
	ConfigUpdated    = "widget:config-updated"
	VisibilityChange = "visibilitychange"
	ExitIntent       = "widget:exit-intent"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Event is one host page event. Visible is only meaningful for
// VisibilityChange.
type Event struct {
	Name    string
	Visible bool
	At      time.Time
}

// Bus provides in-memory pub/sub keyed by event name.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // name -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// New creates a bus. Pass nil logger for default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string]map[string]chan Event),
		logger:      logger.With("component", "eventbus"),
	}
}

// Subscribe registers for events with the given name. The subscription is
// removed and its channel closed when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, name string) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[name]; !ok {
		b.subscribers[name] = make(map[string]chan Event)
	}
	b.subscribers[name][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "event", name, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(name, subID)
	}()

	return ch, subID
}

// Publish delivers ev to every subscriber of ev.Name. It never blocks;
// subscribers with full buffers miss the event.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers[ev.Name] {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropped event for slow subscriber", "event", ev.Name, "sub_id", id)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(name, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[name]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, name)
	}

	b.logger.Debug("subscriber removed", "event", name, "sub_id", subID)
}

// SubscriberCount returns the number of subscribers for name.
func (b *Bus) SubscriberCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[name])
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, name)
	}
	b.closed = true

	b.logger.Debug("bus closed")
}
