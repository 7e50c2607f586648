package events

import (
	"encoding/json"
	"log/slog"
)

// Recorder persists events for replay; implemented by the db store.
type Recorder interface {
	AppendEvent(executionID string, eventType string, payload []byte) error
}

// PersistentBus wraps a MemoryBus and appends events to the event log so
// late subscribers and the CLI watch command can replay recent history.
// Streaming output chunks are broadcast but not persisted; they are
// reconstructible from the phase's artifact.
type PersistentBus struct {
	inner    *MemoryBus
	recorder Recorder
	logger   *slog.Logger
}

// NewPersistentBus creates a bus that records events via recorder.
func NewPersistentBus(recorder Recorder, logger *slog.Logger, opts ...BusOption) *PersistentBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistentBus{
		inner:    NewMemoryBus(opts...),
		recorder: recorder,
		logger:   logger,
	}
}

// Publish broadcasts the event and appends it to the event log.
func (p *PersistentBus) Publish(event Event) {
	p.inner.Publish(event)

	if p.recorder == nil || event.Type == EventPhaseOutput || event.Type == EventInit {
		return
	}

	payload, err := json.Marshal(event.Data)
	if err != nil {
		p.logger.Warn("marshal event payload", "type", event.Type, "error", err)
		return
	}
	if err := p.recorder.AppendEvent(event.ExecutionID, string(event.Type), payload); err != nil {
		p.logger.Warn("append event to log",
			"execution", event.ExecutionID,
			"type", event.Type,
			"error", err,
		)
	}
}

// Subscribe delegates to the in-memory bus.
func (p *PersistentBus) Subscribe(executionID string) <-chan Event {
	return p.inner.Subscribe(executionID)
}

// Unsubscribe delegates to the in-memory bus.
func (p *PersistentBus) Unsubscribe(executionID string, ch <-chan Event) {
	p.inner.Unsubscribe(executionID, ch)
}

// HasSubscribers delegates to the in-memory bus.
func (p *PersistentBus) HasSubscribers(executionID string) bool {
	return p.inner.HasSubscribers(executionID)
}

// Close delegates to the in-memory bus.
func (p *PersistentBus) Close() {
	p.inner.Close()
}
