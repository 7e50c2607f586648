package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/spfcraze/ultraclaude/internal/db"
	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/orchestrator"
	"github.com/spfcraze/ultraclaude/internal/provider"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// CreateExecutionRequest is the POST /api/executions body.
type CreateExecutionRequest struct {
	TemplateID      string   `json:"template_id,omitempty"`
	ProjectID       string   `json:"project_id,omitempty"`
	ProjectPath     string   `json:"project_path,omitempty"`
	TaskDescription string   `json:"task_description"`
	BudgetLimit     *float64 `json:"budget_limit,omitempty"`
	Interactive     bool     `json:"interactive_mode,omitempty"`
	Run             bool     `json:"run,omitempty"`
}

func (s *Server) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var req CreateExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TaskDescription == "" {
		JSONError(w, "task_description is required", http.StatusBadRequest)
		return
	}

	exec, err := s.engine.CreateExecution(r.Context(), orchestrator.CreateRequest{
		TemplateID:      req.TemplateID,
		Trigger:         "api",
		ProjectID:       req.ProjectID,
		ProjectPath:     req.ProjectPath,
		TaskDescription: req.TaskDescription,
		BudgetLimit:     req.BudgetLimit,
		Interactive:     req.Interactive,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	if req.Run {
		// Detach from the request context so the execution outlives it.
		if _, err := s.engine.Start(contextWithoutCancel(r), exec.ID); err != nil {
			HandleError(w, err)
			return
		}
	}
	JSONResponseStatus(w, exec, http.StatusCreated)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	opts := db.ListExecutionsOpts{
		ProjectID: r.URL.Query().Get("project_id"),
		Status:    workflow.ExecutionStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	execs, err := s.engine.List(opts)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]any{"executions": execs, "count": len(execs)})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.engine.Get(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, exec)
}

func (s *Server) handleDeleteExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	exec, err := s.engine.Get(id)
	if err != nil {
		HandleError(w, err)
		return
	}
	if !exec.Status.IsTerminal() {
		HandleError(w, ucerrors.Newf(ucerrors.CodeInvalidState, "execution %s is still %s", id, exec.Status))
		return
	}
	if err := s.artifacts.CleanupExecution(id); err != nil {
		s.logger.Warn("cleanup artifacts", "execution", id, "error", err)
	}
	if err := s.store.DeleteExecution(id); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}

func (s *Server) handleRunExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.engine.Start(contextWithoutCancel(r), r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, exec)
}

func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok := s.engine.Cancel(id)
	JSONResponse(w, map[string]any{"cancelled": ok})
}

func (s *Server) handleResumeExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.engine.Resume(contextWithoutCancel(r), r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, exec)
}

func (s *Server) handleSkipPhase(w http.ResponseWriter, r *http.Request) {
	ok := s.engine.SkipPhase(r.PathValue("id"), r.PathValue("phase"))
	JSONResponse(w, map[string]any{"skipped": ok})
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	arts, err := s.artifacts.GetByExecution(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]any{"artifacts": arts, "count": len(arts)})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := s.artifacts.Get(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, a)
}

func (s *Server) handleUpdateArtifact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	a, err := s.artifacts.UpdateContent(r.PathValue("id"), req.Content)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, a)
}

func (s *Server) handleGetPendingApproval(w http.ResponseWriter, r *http.Request) {
	info := s.approvals.Pending(r.PathValue("id"))
	if info == nil {
		JSONError(w, "no pending approval", http.StatusNotFound)
		return
	}
	JSONResponse(w, info)
}

// ResolveApprovalRequest is the POST /api/approvals/{id} body.
type ResolveApprovalRequest struct {
	Approved bool   `json:"approved"`
	Source   string `json:"source,omitempty"`
}

func (s *Server) handleResolveApproval(w http.ResponseWriter, r *http.Request) {
	var req ResolveApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	source := req.Source
	if source == "" {
		source = db.SourceWeb
	}
	if err := s.approvals.Resolve(r.PathValue("id"), req.Approved, source); err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]any{"resolved": true, "approved": req.Approved})
}

func (s *Server) handleApprovalHistory(w http.ResponseWriter, r *http.Request) {
	log, err := s.approvals.History(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]any{"approvals": log, "count": len(log)})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.store.ListTemplates(r.URL.Query().Get("project_id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]any{"templates": tpls, "count": len(tpls)})
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl workflow.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tpl.Normalize()
	if err := tpl.Validate(); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.SaveTemplate(&tpl); err != nil {
		HandleError(w, err)
		return
	}
	JSONResponseStatus(w, tpl, http.StatusCreated)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.store.GetTemplate(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTemplate(r.PathValue("id")); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	rows, err := s.tracker.List(r.PathValue("scope"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]any{"budgets": rows, "count": len(rows)})
}

func (s *Server) handleSetBudgetLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LimitUSD float64 `json:"limit_usd"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	scope := r.PathValue("scope")
	switch scope {
	case db.ScopeExecution, db.ScopeProject, db.ScopeGlobal:
	default:
		JSONError(w, "unknown budget scope", http.StatusBadRequest)
		return
	}
	if err := s.tracker.SetLimit(scope, r.PathValue("id"), req.LimitUSD); err != nil {
		HandleError(w, err)
		return
	}
	row, err := s.tracker.Summary(scope, r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, row)
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	detections := provider.DetectLocalProviders(r.Context())
	JSONResponse(w, map[string]any{"local": detections})
}

// contextWithoutCancel detaches a long-running operation from the request
// lifetime while keeping its values.
func contextWithoutCancel(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
