// Package api exposes the engine over HTTP and WebSocket: execution CRUD
// and control, approval resolution, template and budget management, and
// the event stream (NDJSON and WebSocket) fed by the event bus.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spfcraze/ultraclaude/internal/approval"
	"github.com/spfcraze/ultraclaude/internal/artifact"
	"github.com/spfcraze/ultraclaude/internal/budget"
	"github.com/spfcraze/ultraclaude/internal/db"
	"github.com/spfcraze/ultraclaude/internal/events"
	"github.com/spfcraze/ultraclaude/internal/orchestrator"
	"github.com/spfcraze/ultraclaude/internal/provider"
)

// Server is the engine API server.
type Server struct {
	addr   string
	mux    *http.ServeMux
	logger *slog.Logger

	engine    *orchestrator.Engine
	store     *db.Store
	approvals *approval.Coordinator
	artifacts *artifact.Store
	tracker   *budget.Tracker
	registry  *provider.Registry
	bus       events.Bus

	wsHandler *WSHandler
	httpSrv   *http.Server
}

// Deps are the collaborators the server exposes.
type Deps struct {
	Engine    *orchestrator.Engine
	Store     *db.Store
	Approvals *approval.Coordinator
	Artifacts *artifact.Store
	Tracker   *budget.Tracker
	Registry  *provider.Registry
	Bus       events.Bus
	Logger    *slog.Logger
}

// New creates an API server listening on addr.
func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:      addr,
		mux:       http.NewServeMux(),
		logger:    logger,
		engine:    deps.Engine,
		store:     deps.Store,
		approvals: deps.Approvals,
		artifacts: deps.Artifacts,
		tracker:   deps.Tracker,
		registry:  deps.Registry,
		bus:       deps.Bus,
	}
	s.wsHandler = NewWSHandler(s, logger)
	s.registerRoutes()
	return s
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	cors := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			h(w, r)
		}
	}

	s.mux.HandleFunc("GET /api/health", cors(s.handleHealth))

	// Executions
	s.mux.HandleFunc("GET /api/executions", cors(s.handleListExecutions))
	s.mux.HandleFunc("POST /api/executions", cors(s.handleCreateExecution))
	s.mux.HandleFunc("GET /api/executions/{id}", cors(s.handleGetExecution))
	s.mux.HandleFunc("DELETE /api/executions/{id}", cors(s.handleDeleteExecution))

	// Execution control
	s.mux.HandleFunc("POST /api/executions/{id}/run", cors(s.handleRunExecution))
	s.mux.HandleFunc("POST /api/executions/{id}/cancel", cors(s.handleCancelExecution))
	s.mux.HandleFunc("POST /api/executions/{id}/resume", cors(s.handleResumeExecution))
	s.mux.HandleFunc("POST /api/executions/{id}/skip/{phase}", cors(s.handleSkipPhase))

	// Artifacts
	s.mux.HandleFunc("GET /api/executions/{id}/artifacts", cors(s.handleListArtifacts))
	s.mux.HandleFunc("GET /api/artifacts/{id}", cors(s.handleGetArtifact))
	s.mux.HandleFunc("PUT /api/artifacts/{id}", cors(s.handleUpdateArtifact))

	// Approvals
	s.mux.HandleFunc("GET /api/executions/{id}/approval", cors(s.handleGetPendingApproval))
	s.mux.HandleFunc("POST /api/approvals/{id}", cors(s.handleResolveApproval))
	s.mux.HandleFunc("GET /api/executions/{id}/approvals", cors(s.handleApprovalHistory))

	// Templates
	s.mux.HandleFunc("GET /api/templates", cors(s.handleListTemplates))
	s.mux.HandleFunc("POST /api/templates", cors(s.handleSaveTemplate))
	s.mux.HandleFunc("GET /api/templates/{id}", cors(s.handleGetTemplate))
	s.mux.HandleFunc("DELETE /api/templates/{id}", cors(s.handleDeleteTemplate))

	// Budgets
	s.mux.HandleFunc("GET /api/budgets/{scope}", cors(s.handleListBudgets))
	s.mux.HandleFunc("PUT /api/budgets/{scope}/{id}", cors(s.handleSetBudgetLimit))

	// Providers
	s.mux.HandleFunc("GET /api/providers", cors(s.handleListProviders))

	// Event streams
	s.mux.HandleFunc("GET /api/events/{id}", cors(s.handleEventStream))
	s.mux.HandleFunc("/ws", s.wsHandler.ServeHTTP)
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]string{"status": "ok"})
}
