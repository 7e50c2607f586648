package events

import (
	"sync"
)

// GlobalID is the special execution ID for subscribing to all events.
const GlobalID = "*"

// Bus is the interface for event publishing and subscription.
type Bus interface {
	// Publish sends an event to all subscribers of the event's execution.
	Publish(event Event)
	// Subscribe returns a channel that receives events for the execution.
	// Use GlobalID ("*") to receive events for all executions.
	Subscribe(executionID string) <-chan Event
	// Unsubscribe removes a subscription channel.
	Unsubscribe(executionID string, ch <-chan Event)
	// HasSubscribers reports whether anyone is listening on the execution.
	HasSubscribers(executionID string) bool
	// Close shuts down the bus and all subscriptions.
	Close()
}

// MemoryBus is an in-memory implementation of Bus. Delivery is best-effort
// and non-blocking: subscribers with full buffers miss events.
type MemoryBus struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
	bufferSize  int
	closed      bool
}

// BusOption configures a MemoryBus.
type BusOption func(*MemoryBus)

// WithBufferSize sets the channel buffer size for subscribers.
func WithBufferSize(size int) BusOption {
	return func(b *MemoryBus) {
		b.bufferSize = size
	}
}

// NewMemoryBus creates a new in-memory bus.
func NewMemoryBus(opts ...BusOption) *MemoryBus {
	b := &MemoryBus{
		subscribers: make(map[string][]chan Event),
		bufferSize:  100,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends an event to subscribers of the execution, plus global
// subscribers. Per-execution ordering follows the publish order because
// each subscriber has a single channel.
func (b *MemoryBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers[event.ExecutionID] {
		select {
		case ch <- event:
		default:
			// Full buffer: the subscriber drops behind.
		}
	}

	if event.ExecutionID != GlobalID {
		for _, ch := range b.subscribers[GlobalID] {
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Subscribe returns a channel that receives events for the execution.
func (b *MemoryBus) Subscribe(executionID string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, b.bufferSize)
	b.subscribers[executionID] = append(b.subscribers[executionID], ch)
	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (b *MemoryBus) Unsubscribe(executionID string, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[executionID]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[executionID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}

	if len(b.subscribers[executionID]) == 0 {
		delete(b.subscribers, executionID)
	}
}

// HasSubscribers reports whether the execution has any direct subscribers.
func (b *MemoryBus) HasSubscribers(executionID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[executionID]) > 0
}

// SubscriberCount returns the number of subscribers for an execution.
func (b *MemoryBus) SubscriberCount(executionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[executionID])
}

// Close shuts down the bus and closes all subscription channels.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, id)
	}
}

// NopBus is a no-op bus for tests or when events are disabled.
type NopBus struct{}

func (NopBus) Publish(Event) {}

func (NopBus) Subscribe(string) <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

func (NopBus) Unsubscribe(string, <-chan Event) {}

func (NopBus) HasSubscribers(string) bool { return false }

func (NopBus) Close() {}
