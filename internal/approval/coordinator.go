// Package approval coordinates human decision gates. Each execution has at
// most one outstanding request; decisions arrive from the web UI, the CLI,
// or a timeout, and every human decision is appended to the audit log.
package approval

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spfcraze/ultraclaude/internal/db"
	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/events"
)

// SourceCancel marks resolutions triggered by execution cancellation.
// Cancellations are not human decisions and are not logged.
const SourceCancel = "callback-cancel"

// Decision is the outcome of a pending request.
type Decision struct {
	Approved bool
	Source   string
}

// PendingInfo describes an outstanding request.
type PendingInfo struct {
	ExecutionID      string    `json:"execution_id"`
	PhaseID          string    `json:"phase_id,omitempty"`
	Message          string    `json:"message"`
	TimeoutSeconds   int       `json:"timeout_seconds"`
	DefaultOnTimeout bool      `json:"default_on_timeout,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type pendingRequest struct {
	info  PendingInfo
	done  chan Decision
	once  sync.Once
	timer *time.Timer
}

// resolve delivers the decision exactly once.
func (p *pendingRequest) resolve(d Decision) bool {
	delivered := false
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.done <- d
		delivered = true
	})
	return delivered
}

// Coordinator tracks pending approval requests.
type Coordinator struct {
	store          *db.Store
	bus            events.Bus
	logger         *slog.Logger
	defaultTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithDefaultTimeout sets the timeout applied when a request passes zero.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.defaultTimeout = d }
}

// NewCoordinator creates an approval coordinator.
func NewCoordinator(store *db.Store, bus events.Bus, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		bus:            bus,
		logger:         slog.Default(),
		defaultTimeout: time.Hour,
		pending:        make(map[string]*pendingRequest),
	}
	if bus == nil {
		c.bus = events.NopBus{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request blocks until the execution's approval is resolved or the timeout
// fires. A timeout rejects. An already-pending request for the execution is
// superseded: the old waiter is rejected first. Context cancellation
// behaves like Cancel: rejected, no audit row.
func (c *Coordinator) Request(ctx context.Context, executionID, phaseID, message string, timeout time.Duration) (bool, error) {
	return c.RequestDefault(ctx, executionID, phaseID, message, timeout, false)
}

// RequestDefault is Request with an explicit timeout outcome: when the timer
// fires the decision resolves to defaultOnTimeout. The audit row is recorded
// as a timeout either way.
func (c *Coordinator) RequestDefault(ctx context.Context, executionID, phaseID, message string, timeout time.Duration, defaultOnTimeout bool) (bool, error) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	req := &pendingRequest{
		info: PendingInfo{
			ExecutionID:      executionID,
			PhaseID:          phaseID,
			Message:          message,
			TimeoutSeconds:   int(timeout / time.Second),
			DefaultOnTimeout: defaultOnTimeout,
			CreatedAt:        time.Now(),
		},
		done: make(chan Decision, 1),
	}

	c.mu.Lock()
	if prior, ok := c.pending[executionID]; ok {
		prior.resolve(Decision{Approved: false, Source: SourceCancel})
	}
	c.pending[executionID] = req
	req.timer = time.AfterFunc(timeout, func() {
		c.finish(executionID, req, Decision{Approved: defaultOnTimeout, Source: db.SourceTimeout}, true)
	})
	c.mu.Unlock()

	c.bus.Publish(events.New(events.EventApprovalNeeded, executionID, events.ApprovalNeeded{
		Message:        message,
		TimeoutSeconds: req.info.TimeoutSeconds,
	}))

	select {
	case d := <-req.done:
		return d.Approved, nil
	case <-ctx.Done():
		c.finish(executionID, req, Decision{Approved: false, Source: SourceCancel}, false)
		// Drain so a concurrent resolve cannot leak the decision.
		select {
		case d := <-req.done:
			return d.Approved, nil
		default:
			return false, nil
		}
	}
}

// Resolve delivers a human decision. Exactly one resolution wins; later
// calls return INVALID_STATE. Human decisions are appended to the log.
func (c *Coordinator) Resolve(executionID string, approved bool, source string) error {
	c.mu.Lock()
	req, ok := c.pending[executionID]
	c.mu.Unlock()
	if !ok {
		return ucerrors.Newf(ucerrors.CodeInvalidState, "no pending approval for execution %s", executionID)
	}

	if !c.finish(executionID, req, Decision{Approved: approved, Source: source}, true) {
		return ucerrors.Newf(ucerrors.CodeInvalidState, "approval for execution %s already resolved", executionID)
	}
	return nil
}

// Cancel rejects a pending request without an audit row. It is a no-op
// when nothing is pending.
func (c *Coordinator) Cancel(executionID string) {
	c.mu.Lock()
	req, ok := c.pending[executionID]
	c.mu.Unlock()
	if !ok {
		return
	}
	c.finish(executionID, req, Decision{Approved: false, Source: SourceCancel}, false)
}

// HasPending reports whether the execution has an outstanding request.
func (c *Coordinator) HasPending(executionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[executionID]
	return ok
}

// Pending returns a copy of the outstanding request info, or nil.
func (c *Coordinator) Pending(executionID string) *PendingInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[executionID]
	if !ok {
		return nil
	}
	info := req.info
	return &info
}

// finish resolves the request, removes it from the pending map, persists
// the audit row when record is set, and publishes the resolution event.
// Returns false when the request was already resolved.
func (c *Coordinator) finish(executionID string, req *pendingRequest, d Decision, record bool) bool {
	if !req.resolve(d) {
		return false
	}

	c.mu.Lock()
	if c.pending[executionID] == req {
		delete(c.pending, executionID)
	}
	c.mu.Unlock()

	if record {
		action := db.ApprovalRejected
		if d.Approved {
			action = db.ApprovalApproved
		}
		if d.Source == db.SourceTimeout {
			action = db.ApprovalTimeout
		}
		rec := &db.ApprovalRecord{
			ID:          uuid.NewString(),
			ExecutionID: executionID,
			PhaseID:     req.info.PhaseID,
			Action:      action,
			Source:      d.Source,
			Message:     req.info.Message,
		}
		if err := c.store.AppendApproval(rec); err != nil {
			c.logger.Warn("append approval record", "execution", executionID, "error", err)
		}
	}

	c.bus.Publish(events.New(events.EventApprovalResolved, executionID, events.ApprovalResolved{
		Approved: d.Approved,
		Source:   d.Source,
	}))
	return true
}

// History returns the audit log for an execution.
func (c *Coordinator) History(executionID string) ([]db.ApprovalRecord, error) {
	return c.store.ListApprovals(executionID)
}
