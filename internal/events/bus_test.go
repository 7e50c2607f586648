package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ch := bus.Subscribe("exec1")
	bus.Publish(New(EventPhaseStart, "exec1", PhaseStart{PhaseID: "analyze", Name: "Analyze", Iteration: 1}))

	select {
	case ev := <-ch:
		assert.Equal(t, EventPhaseStart, ev.Type)
		assert.Equal(t, "exec1", ev.ExecutionID)
		payload, ok := ev.Data.(PhaseStart)
		require.True(t, ok)
		assert.Equal(t, "analyze", payload.PhaseID)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestMemoryBus_IsolationBetweenExecutions(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ch1 := bus.Subscribe("exec1")
	ch2 := bus.Subscribe("exec2")

	bus.Publish(New(EventStatusUpdate, "exec1", StatusUpdate{Status: "running"}))

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("exec1 subscriber missed its event")
	}

	select {
	case ev := <-ch2:
		t.Fatalf("exec2 subscriber received foreign event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_GlobalSubscriber(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	global := bus.Subscribe(GlobalID)
	bus.Publish(New(EventStatusUpdate, "exec1", StatusUpdate{Status: "running"}))
	bus.Publish(New(EventStatusUpdate, "exec2", StatusUpdate{Status: "completed"}))

	for i := 0; i < 2; i++ {
		select {
		case <-global:
		case <-time.After(time.Second):
			t.Fatalf("global subscriber missed event %d", i)
		}
	}
}

func TestMemoryBus_FIFOPerExecution(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ch := bus.Subscribe("exec1")
	for i := 0; i < 10; i++ {
		bus.Publish(New(EventPhaseOutput, "exec1", PhaseOutput{PhaseID: "p", Chunk: string(rune('a' + i))}))
	}

	for i := 0; i < 10; i++ {
		select {
		case ev := <-ch:
			assert.Equal(t, string(rune('a'+i)), ev.Data.(PhaseOutput).Chunk)
		case <-time.After(time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestMemoryBus_SlowSubscriberDropsBehind(t *testing.T) {
	bus := NewMemoryBus(WithBufferSize(2))
	defer bus.Close()

	ch := bus.Subscribe("exec1")
	for i := 0; i < 5; i++ {
		bus.Publish(New(EventPhaseOutput, "exec1", PhaseOutput{Chunk: "x"}))
	}

	// Only the buffered two events are delivered; publish never blocked.
	assert.Len(t, ch, 2)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ch := bus.Subscribe("exec1")
	assert.True(t, bus.HasSubscribers("exec1"))

	bus.Unsubscribe("exec1", ch)
	assert.False(t, bus.HasSubscribers("exec1"))

	// Channel is closed after unsubscribe.
	_, open := <-ch
	assert.False(t, open)
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus()
	ch := bus.Subscribe("exec1")
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close is a no-op.
	bus.Publish(New(EventStatusUpdate, "exec1", nil))

	// Subscribing after close returns a closed channel.
	ch2 := bus.Subscribe("exec1")
	_, open = <-ch2
	assert.False(t, open)
}

type recordedEvent struct {
	executionID string
	eventType   string
}

type fakeRecorder struct {
	events []recordedEvent
}

func (f *fakeRecorder) AppendEvent(executionID, eventType string, payload []byte) error {
	f.events = append(f.events, recordedEvent{executionID, eventType})
	return nil
}

func TestPersistentBus_RecordsEvents(t *testing.T) {
	rec := &fakeRecorder{}
	bus := NewPersistentBus(rec, nil)
	defer bus.Close()

	bus.Publish(New(EventStatusUpdate, "exec1", StatusUpdate{Status: "running"}))
	bus.Publish(New(EventPhaseOutput, "exec1", PhaseOutput{Chunk: "not persisted"}))
	bus.Publish(New(EventPhaseComplete, "exec1", PhaseComplete{PhaseID: "p", Status: "completed"}))

	require.Len(t, rec.events, 2)
	assert.Equal(t, "status_update", rec.events[0].eventType)
	assert.Equal(t, "phase_complete", rec.events[1].eventType)
}
