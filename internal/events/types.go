// Package events provides event types and the per-execution event bus for
// ultraclaude. The orchestrator is the only producer; transport adapters
// (websocket, NDJSON stream, CLI watch) subscribe per execution.
package events

import (
	"time"
)

// EventType defines the type of event.
type EventType string

const (
	// EventStatusUpdate indicates an execution status change.
	EventStatusUpdate EventType = "status_update"
	// EventPhaseStart indicates a phase began running.
	EventPhaseStart EventType = "phase_start"
	// EventPhaseOutput carries one chunk of streamed provider output.
	EventPhaseOutput EventType = "phase_output"
	// EventPhaseComplete indicates a phase reached a terminal state.
	EventPhaseComplete EventType = "phase_complete"
	// EventApprovalNeeded indicates the execution is gated on a human decision.
	EventApprovalNeeded EventType = "approval_needed"
	// EventApprovalResolved indicates a pending approval was decided.
	EventApprovalResolved EventType = "approval_resolved"
	// EventTodoUpdate forwards todo lists reported by SDK-style providers.
	EventTodoUpdate EventType = "todo_update"
	// EventInit is the snapshot sent to a subscriber when it attaches.
	EventInit EventType = "init"
)

// Event is a published event scoped to one execution.
type Event struct {
	Type        EventType `json:"type"`
	ExecutionID string    `json:"execution_id"`
	Data        any       `json:"data,omitempty"`
	Time        time.Time `json:"time"`
}

// New creates an event with the current timestamp.
func New(eventType EventType, executionID string, data any) Event {
	return Event{
		Type:        eventType,
		ExecutionID: executionID,
		Data:        data,
		Time:        time.Now(),
	}
}

// StatusUpdate is the payload for EventStatusUpdate.
type StatusUpdate struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// PhaseStart is the payload for EventPhaseStart.
type PhaseStart struct {
	PhaseID   string `json:"phase_id"`
	Name      string `json:"name"`
	Iteration int    `json:"iteration"`
}

// PhaseOutput is the payload for EventPhaseOutput.
type PhaseOutput struct {
	PhaseID string `json:"phase_id"`
	Chunk   string `json:"content_chunk"`
}

// PhaseComplete is the payload for EventPhaseComplete.
type PhaseComplete struct {
	PhaseID    string  `json:"phase_id"`
	Status     string  `json:"status"`
	ArtifactID string  `json:"artifact_id,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ApprovalNeeded is the payload for EventApprovalNeeded.
type ApprovalNeeded struct {
	Message        string `json:"message"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ApprovalResolved is the payload for EventApprovalResolved.
type ApprovalResolved struct {
	Approved bool   `json:"approved"`
	Source   string `json:"source"`
}

// TodoItem is a single entry in a provider-reported todo list.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// TodoUpdate is the payload for EventTodoUpdate.
type TodoUpdate struct {
	PhaseID string     `json:"phase_id"`
	Todos   []TodoItem `json:"todos"`
}

// Init is the snapshot payload for EventInit. Execution is the serialized
// execution record; PendingApproval and Todos are nil when absent.
type Init struct {
	Execution       any `json:"execution"`
	PendingApproval any `json:"pending_approval,omitempty"`
	Todos           any `json:"todos,omitempty"`
}
