package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spfcraze/ultraclaude/internal/approval"
	"github.com/spfcraze/ultraclaude/internal/artifact"
	"github.com/spfcraze/ultraclaude/internal/budget"
	"github.com/spfcraze/ultraclaude/internal/db"
	"github.com/spfcraze/ultraclaude/internal/events"
	"github.com/spfcraze/ultraclaude/internal/orchestrator"
	"github.com/spfcraze/ultraclaude/internal/provider"
	"github.com/spfcraze/ultraclaude/internal/runner"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

type staticSource struct{}

func (staticSource) Get(cfg workflow.ProviderConfig) (provider.Provider, error) {
	return provider.NewStatic(), nil
}

func newTestServer(t *testing.T) (*Server, *db.Store) {
	t.Helper()
	store := db.NewTestStore(t)
	bus := events.NewMemoryBus()
	t.Cleanup(bus.Close)

	tracker := budget.NewTracker(store, budget.Limits{}, nil)
	arts := artifact.NewStore(store)
	coord := approval.NewCoordinator(store, bus)
	run := runner.New(store, arts, tracker, staticSource{}, bus)
	engine := orchestrator.New(store, run, tracker, coord, bus)

	srv := New(":0", Deps{
		Engine:    engine,
		Store:     store,
		Approvals: coord,
		Artifacts: arts,
		Tracker:   tracker,
		Bus:       bus,
	})
	return srv, store
}

func seedTemplate(t *testing.T, store *db.Store) *workflow.Template {
	t.Helper()
	tpl := &workflow.Template{
		ID:   "tpl1",
		Name: "pipeline",
		Phases: []workflow.Phase{{
			ID:             "analyze",
			Name:           "analyze",
			Provider:       workflow.ProviderConfig{Kind: workflow.ProviderNone},
			PromptTemplate: "{task_description}",
			OutputType:     workflow.ArtifactAnalysis,
		}},
		IsGlobal:  true,
		IsDefault: true,
	}
	tpl.Normalize()
	require.NoError(t, store.SaveTemplate(tpl))
	return tpl
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetExecution(t *testing.T) {
	t.Parallel()
	srv, store := newTestServer(t)
	seedTemplate(t, store)

	rec := doJSON(t, srv, http.MethodPost, "/api/executions", CreateExecutionRequest{
		TaskDescription: "ship it",
		ProjectID:       "proj1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var exec workflow.Execution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exec))
	assert.Equal(t, "tpl1", exec.TemplateID)
	assert.Equal(t, workflow.StatusPending, exec.Status)

	got := doJSON(t, srv, http.MethodGet, "/api/executions/"+exec.ID, nil)
	assert.Equal(t, http.StatusOK, got.Code)

	list := doJSON(t, srv, http.MethodGet, "/api/executions?project_id=proj1", nil)
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), exec.ID)
}

func TestCreateExecution_Validation(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	// Missing task description.
	rec := doJSON(t, srv, http.MethodPost, "/api/executions", CreateExecutionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No template configured anywhere: CONFIG_ERROR maps to 400.
	rec = doJSON(t, srv, http.MethodPost, "/api/executions", CreateExecutionRequest{TaskDescription: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFIG_ERROR")
}

func TestGetExecution_NotFound(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/executions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "EXECUTION_NOT_FOUND")
}

func TestResolveApproval_NonePending(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/approvals/ex1", ResolveApprovalRequest{Approved: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_STATE")
}

func TestTemplateCRUD(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	tpl := workflow.Template{
		ID:   "t-api",
		Name: "api-made",
		Phases: []workflow.Phase{{
			ID:             "a",
			Name:           "a",
			Provider:       workflow.ProviderConfig{Kind: workflow.ProviderNone},
			PromptTemplate: "{task_description}",
			OutputType:     workflow.ArtifactPlan,
		}},
		IsGlobal: true,
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/templates", tpl)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := doJSON(t, srv, http.MethodGet, "/api/templates/t-api", nil)
	assert.Equal(t, http.StatusOK, got.Code)

	del := doJSON(t, srv, http.MethodDelete, "/api/templates/t-api", nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	gone := doJSON(t, srv, http.MethodGet, "/api/templates/t-api", nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestSaveTemplate_RejectsInvalid(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/templates", workflow.Template{Name: "empty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetAndListBudgets(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/budgets/project/proj1", map[string]float64{"limit_usd": 25})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var row db.BudgetRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, 25.0, row.LimitUSD)

	list := doJSON(t, srv, http.MethodGet, "/api/budgets/project", nil)
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "proj1")

	bad := doJSON(t, srv, http.MethodPut, "/api/budgets/galaxy/x", map[string]float64{"limit_usd": 1})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestEventStreamSendsInitSnapshot(t *testing.T) {
	t.Parallel()
	srv, store := newTestServer(t)
	seedTemplate(t, store)

	rec := doJSON(t, srv, http.MethodPost, "/api/executions", CreateExecutionRequest{TaskDescription: "x"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var exec workflow.Execution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exec))

	req := httptest.NewRequest(http.MethodGet, "/api/events/"+exec.ID, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req = req.WithContext(ctx)

	stream := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		srv.Handler().ServeHTTP(stream, req)
		close(done)
	}()

	cancel()
	<-done

	scanner := bufio.NewScanner(stream.Body)
	require.True(t, scanner.Scan(), "expected an init line")

	var ev events.Event
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
	assert.Equal(t, events.EventInit, ev.Type)
	assert.Equal(t, exec.ID, ev.ExecutionID)
}

func TestInitSnapshotCarriesLatestTodos(t *testing.T) {
	t.Parallel()
	srv, store := newTestServer(t)
	seedTemplate(t, store)

	rec := doJSON(t, srv, http.MethodPost, "/api/executions", CreateExecutionRequest{TaskDescription: "x"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var exec workflow.Execution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exec))

	// Two logged updates; the snapshot carries only the newest.
	stale, err := json.Marshal(events.TodoUpdate{PhaseID: "analyze", Todos: []events.TodoItem{
		{Content: "outline", Status: "pending"},
	}})
	require.NoError(t, err)
	latest, err := json.Marshal(events.TodoUpdate{PhaseID: "analyze", Todos: []events.TodoItem{
		{Content: "outline", Status: "completed"},
		{Content: "draft", Status: "in_progress"},
	}})
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent(exec.ID, string(events.EventTodoUpdate), stale))
	require.NoError(t, store.AppendEvent(exec.ID, string(events.EventTodoUpdate), latest))

	ev := srv.initSnapshot(exec.ID)
	init, ok := ev.Data.(events.Init)
	require.True(t, ok)
	todos, ok := init.Todos.([]events.TodoItem)
	require.True(t, ok)
	require.Len(t, todos, 2)
	assert.Equal(t, events.TodoItem{Content: "outline", Status: "completed"}, todos[0])
	assert.Equal(t, events.TodoItem{Content: "draft", Status: "in_progress"}, todos[1])
}
