package api

import (
	"encoding/json"
	"net/http"

	"github.com/spfcraze/ultraclaude/internal/events"
)

// handleEventStream streams execution events as newline-delimited JSON.
// The first line is an init snapshot of the current execution state; the
// connection then follows the bus until the client goes away.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		JSONError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the snapshot so no event falls in the gap.
	ch := s.bus.Subscribe(id)
	defer s.bus.Unsubscribe(id, ch)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	if err := enc.Encode(s.initSnapshot(id)); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// initSnapshot builds the init event sent to a new subscriber.
func (s *Server) initSnapshot(executionID string) events.Event {
	init := events.Init{}
	if exec, err := s.store.GetExecution(executionID); err == nil {
		init.Execution = exec
	}
	if info := s.approvals.Pending(executionID); info != nil {
		init.PendingApproval = info
	}
	if rec, err := s.store.LatestEventByType(executionID, string(events.EventTodoUpdate)); err == nil && rec != nil {
		var tu events.TodoUpdate
		if json.Unmarshal([]byte(rec.Data), &tu) == nil {
			init.Todos = tu.Todos
		}
	}
	return events.New(events.EventInit, executionID, init)
}
