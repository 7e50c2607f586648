package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spfcraze/ultraclaude/internal/approval"
	"github.com/spfcraze/ultraclaude/internal/artifact"
	"github.com/spfcraze/ultraclaude/internal/budget"
	"github.com/spfcraze/ultraclaude/internal/db"
	ucerrors "github.com/spfcraze/ultraclaude/internal/errors"
	"github.com/spfcraze/ultraclaude/internal/events"
	"github.com/spfcraze/ultraclaude/internal/provider"
	"github.com/spfcraze/ultraclaude/internal/runner"
	"github.com/spfcraze/ultraclaude/internal/workflow"
)

// scriptedProvider returns canned responses in call order, repeating the
// last one, and records every prompt it saw. 1000 tokens each way per
// call, so an unknown model costs 0.003 USD per call.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []string
	calls     int
	prompts   []string
	block     bool
}

func (p *scriptedProvider) Kind() workflow.ProviderKind { return workflow.ProviderNone }

func (p *scriptedProvider) Generate(ctx context.Context, req provider.Request) (*provider.Result, error) {
	if p.block {
		<-ctx.Done()
		return nil, ucerrors.New(ucerrors.CodeCancelled, "provider call cancelled").WithCause(ctx.Err())
	}
	p.mu.Lock()
	i := p.calls
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.calls++
	p.prompts = append(p.prompts, req.Prompt)
	content := p.responses[i]
	p.mu.Unlock()

	return &provider.Result{
		Content:      content,
		TokensInput:  1000,
		TokensOutput: 1000,
		FinishReason: "stop",
	}, nil
}

func (p *scriptedProvider) CheckHealth(ctx context.Context) error { return nil }
func (p *scriptedProvider) Close() error                          { return nil }

func (p *scriptedProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{ID: "scripted"}}, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *scriptedProvider) seenPrompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

// modelSource routes phases to scripted providers by model name.
type modelSource struct {
	provs map[string]provider.Provider
}

func (s modelSource) Get(cfg workflow.ProviderConfig) (provider.Provider, error) {
	p, ok := s.provs[cfg.Model]
	if !ok {
		return nil, ucerrors.Newf(ucerrors.CodeConfigError, "no provider scripted for model %q", cfg.Model)
	}
	return p, nil
}

type fixture struct {
	store     *db.Store
	engine    *Engine
	bus       *events.MemoryBus
	approvals *approval.Coordinator
}

func newFixture(t *testing.T, source runner.ProviderSource, coordOpts ...approval.Option) *fixture {
	t.Helper()
	store := db.NewTestStore(t)
	bus := events.NewMemoryBus()
	t.Cleanup(bus.Close)

	tracker := budget.NewTracker(store, budget.Limits{}, nil)
	arts := artifact.NewStore(store, artifact.WithBaseDir(t.TempDir()))
	coord := approval.NewCoordinator(store, bus, coordOpts...)
	run := runner.New(store, arts, tracker, source, bus)

	return &fixture{
		store:     store,
		engine:    New(store, run, tracker, coord, bus),
		bus:       bus,
		approvals: coord,
	}
}

func phaseFor(id, model string) workflow.Phase {
	return workflow.Phase{
		ID:             id,
		Name:           id,
		Role:           workflow.RoleAnalyzer,
		Provider:       workflow.ProviderConfig{Kind: workflow.ProviderNone, Model: model},
		PromptTemplate: "Task: {task_description}",
		OutputType:     workflow.ArtifactTaskList,
		SuccessPattern: "/done",
		MaxRetries:     1,
		TimeoutSeconds: 30,
	}
}

func saveTemplate(t *testing.T, store *db.Store, tpl *workflow.Template) {
	t.Helper()
	tpl.Normalize()
	require.NoError(t, tpl.Validate(), "test template must validate")
	require.NoError(t, store.SaveTemplate(tpl))
}

func create(t *testing.T, fx *fixture, tplID string, mutate func(*CreateRequest)) *workflow.Execution {
	t.Helper()
	req := CreateRequest{
		TemplateID:      tplID,
		Trigger:         "test",
		ProjectID:       "proj1",
		ProjectPath:     t.TempDir(),
		TaskDescription: "build the thing",
	}
	if mutate != nil {
		mutate(&req)
	}
	exec, err := fx.engine.CreateExecution(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, exec.Status)
	return exec
}

func waitStatus(t *testing.T, fx *fixture, id string, status workflow.ExecutionStatus) *workflow.Execution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		exec, err := fx.store.GetExecution(id)
		require.NoError(t, err)
		if exec.Status == status {
			return exec
		}
		if time.Now().After(deadline) {
			t.Fatalf("execution %s never reached %s (stuck at %s)", id, status, exec.Status)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitPendingApproval(t *testing.T, fx *fixture, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !fx.approvals.HasPending(id) {
		if time.Now().After(deadline) {
			t.Fatal("no approval request appeared")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSinglePhaseCompletes(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{responses: []string{"ok /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": prov}})

	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{phaseFor("a", "m1")}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, got.Status)

	// One artifact of the declared type, containing the raw output.
	arts, err := fx.store.ListArtifactsByExecution(exec.ID)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, workflow.ArtifactTaskList, arts[0].Type)
	assert.Equal(t, "ok /done", arts[0].Content)

	// Totals match the single phase execution.
	saved, err := fx.store.GetExecution(exec.ID)
	require.NoError(t, err)
	require.Len(t, saved.PhaseExecutions, 1)
	assert.InDelta(t, saved.PhaseExecutions[0].CostUSD, saved.TotalCostUSD, 1e-9)
	assert.Equal(t, []string{saved.PhaseExecutions[0].OutputArtifactID}, saved.ArtifactIDs)
	assert.NotNil(t, saved.CompletedAt)
}

func TestPatternMissFailsExecution(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{responses: []string{"ok"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": prov}})

	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{phaseFor("a", "m1")}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusFailed, got.Status)

	pes, err := fx.store.GetPhaseExecutions(exec.ID)
	require.NoError(t, err)
	require.Len(t, pes, 1)
	assert.Equal(t, workflow.PhaseFailed, pes[0].Status)
	assert.Equal(t, "Success pattern not found in output", pes[0].Error)
}

func TestArtifactThreadsIntoNextPhase(t *testing.T) {
	t.Parallel()
	provA := &scriptedProvider{responses: []string{"42 /done"}}
	provB := &scriptedProvider{responses: []string{"fine /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"ma": provA, "mb": provB}})

	a := phaseFor("A", "ma")
	a.Order = 1
	b := phaseFor("B", "mb")
	b.Order = 2
	b.PromptTemplate = "x={artifact:a}"
	tpl := &workflow.Template{ID: "t2", Name: "t2", Phases: []workflow.Phase{a, b}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t2", nil)

	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, got.Status)

	prompts := provB.seenPrompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "x=42 /done", prompts[0])
}

func TestBudgetExceededAfterDebit(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{responses: []string{"ok /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": prov}})

	// One call costs 0.003 against a 0.001 limit: the phase itself
	// completes, the post-debit check trips.
	limit := 0.001
	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{phaseFor("a", "m1")}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", func(r *CreateRequest) { r.BudgetLimit = &limit })

	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusBudgetExceeded, got.Status)

	// The produced artifact is still persisted.
	arts, err := fx.store.ListArtifactsByExecution(exec.ID)
	require.NoError(t, err)
	require.Len(t, arts, 1)

	pes, err := fx.store.GetPhaseExecutions(exec.ID)
	require.NoError(t, err)
	require.Len(t, pes, 1)
	assert.Equal(t, workflow.PhaseCompleted, pes[0].Status)
}

func TestApprovalTimeoutPausesThenResolveResumes(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{responses: []string{"ok /done"}}
	fx := newFixture(t,
		modelSource{provs: map[string]provider.Provider{"m1": prov}},
		approval.WithDefaultTimeout(500*time.Millisecond))

	p := phaseFor("impl", "m1")
	p.Role = workflow.RoleImplementer
	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{p}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", func(r *CreateRequest) { r.Interactive = true })

	_, err := fx.engine.Start(context.Background(), exec.ID)
	require.NoError(t, err)

	// First request times out, parking the execution in paused with a
	// resume request pending.
	waitStatus(t, fx, exec.ID, workflow.StatusPaused)
	waitPendingApproval(t, fx, exec.ID)

	require.NoError(t, fx.approvals.Resolve(exec.ID, true, db.SourceWeb))
	got := waitStatus(t, fx, exec.ID, workflow.StatusCompleted)
	assert.Equal(t, 1, prov.callCount())
	assert.NotNil(t, got.CompletedAt)

	// Audit log: one timeout row and one approved row.
	log, err := fx.store.ListApprovals(exec.ID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, db.ApprovalTimeout, log[0].Action)
	assert.Equal(t, db.ApprovalApproved, log[1].Action)
}

func TestParallelGroupWorstOutcome(t *testing.T) {
	t.Parallel()
	p1prov := &scriptedProvider{responses: []string{"fast /done"}}
	p2prov := &scriptedProvider{responses: []string{"no pattern here"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": p1prov, "m2": p2prov}})

	p1 := phaseFor("p1", "m1")
	p1.Order = 1
	p2 := phaseFor("p2", "m2")
	p2.Order = 2
	p2.ParallelWith = "p1"
	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{p1, p2}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	ch := fx.bus.Subscribe(exec.ID)

	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusFailed, got.Status, "group outcome is the worst member outcome")

	// Both members emit phase_complete.
	completes := map[string]string{}
	deadline := time.After(2 * time.Second)
	for len(completes) < 2 {
		select {
		case ev := <-ch:
			if ev.Type == events.EventPhaseComplete {
				pc := ev.Data.(events.PhaseComplete)
				completes[pc.PhaseID] = pc.Status
			}
		case <-deadline:
			t.Fatalf("missing phase_complete events, got %v", completes)
		}
	}
	assert.Equal(t, string(workflow.PhaseCompleted), completes["p1"])
	assert.Equal(t, string(workflow.PhaseFailed), completes["p2"])
}

func TestRunIdempotentOnTerminal(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{responses: []string{"ok /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": prov}})

	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{phaseFor("a", "m1")}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	first, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, first.Status)

	again, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, again.Status)
	assert.Equal(t, 1, prov.callCount(), "no phase re-ran")
}

func TestIterationLoop_AutoIterate(t *testing.T) {
	t.Parallel()
	implProv := &scriptedProvider{responses: []string{"code /done"}}
	// Review misses its pattern on iteration 1, passes on iteration 2.
	reviewProv := &scriptedProvider{responses: []string{"needs work", "looks good /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"mi": implProv, "mr": reviewProv}})

	impl := phaseFor("implement", "mi")
	impl.Order = 1
	review := phaseFor("review", "mr")
	review.Order = 2
	review.CanIterate = true
	tpl := &workflow.Template{
		ID: "t1", Name: "t1",
		Phases:            []workflow.Phase{impl, review},
		MaxIterations:     3,
		IterationBehavior: workflow.AutoIterate,
	}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.Iteration)
	assert.Equal(t, 2, implProv.callCount(), "iteration re-runs every phase")
	assert.Equal(t, 2, reviewProv.callCount())
}

func TestIterationLoop_MaxIterationsOne(t *testing.T) {
	t.Parallel()
	reviewProv := &scriptedProvider{responses: []string{"needs work"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"mr": reviewProv}})

	review := phaseFor("review", "mr")
	review.CanIterate = true
	tpl := &workflow.Template{
		ID: "t1", Name: "t1",
		Phases:            []workflow.Phase{review},
		MaxIterations:     1,
		IterationBehavior: workflow.AutoIterate,
	}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusFailed, got.Status)
	assert.Equal(t, 1, got.Iteration, "iteration loop never re-runs")
	assert.Equal(t, 1, reviewProv.callCount())
}

func TestFallbackProviderRerun(t *testing.T) {
	t.Parallel()
	primary := &scriptedProvider{responses: []string{"nope"}}
	fallback := &scriptedProvider{responses: []string{"rescued /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"mp": primary, "mf": fallback}})

	p := phaseFor("a", "mp")
	p.Provider.Fallback = &workflow.ProviderConfig{Kind: workflow.ProviderNone, Model: "mf"}
	tpl := &workflow.Template{
		ID: "t1", Name: "t1",
		Phases:          []workflow.Phase{p},
		FailureBehavior: workflow.FallbackProvider,
	}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, got.Status)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, fallback.callCount())

	// The fallback re-run is a new row with the same phase and iteration.
	pes, err := fx.store.GetPhaseExecutions(exec.ID)
	require.NoError(t, err)
	require.Len(t, pes, 2)
	assert.Equal(t, "a", pes[0].PhaseID)
	assert.Equal(t, "a", pes[1].PhaseID)
	assert.Equal(t, pes[0].Iteration, pes[1].Iteration)
	assert.NotEqual(t, pes[0].ID, pes[1].ID)
}

func TestSkipPhaseFailureBehavior(t *testing.T) {
	t.Parallel()
	flaky := &scriptedProvider{responses: []string{"nope"}}
	solid := &scriptedProvider{responses: []string{"ok /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"mf": flaky, "ms": solid}})

	a := phaseFor("a", "mf")
	a.Order = 1
	a.CanSkip = true
	b := phaseFor("b", "ms")
	b.Order = 2
	tpl := &workflow.Template{
		ID: "t1", Name: "t1",
		Phases:          []workflow.Phase{a, b},
		FailureBehavior: workflow.SkipPhase,
	}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, got.Status)

	pes, err := fx.store.GetPhaseExecutions(exec.ID)
	require.NoError(t, err)
	require.Len(t, pes, 2)
	assert.Equal(t, workflow.PhaseSkipped, pes[0].Status)
	assert.Equal(t, workflow.PhaseCompleted, pes[1].Status)
}

func TestCancelDuringPhase(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{block: true}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": prov}})

	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{phaseFor("a", "m1")}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	_, err := fx.engine.Start(context.Background(), exec.ID)
	require.NoError(t, err)
	waitStatus(t, fx, exec.ID, workflow.StatusRunning)

	assert.True(t, fx.engine.Cancel(exec.ID))
	got := waitStatus(t, fx, exec.ID, workflow.StatusCancelled)
	assert.NotNil(t, got.CompletedAt)

	// Cancel on a terminal execution is a no-op.
	assert.False(t, fx.engine.Cancel(exec.ID))
}

func TestCancelFinalizesParkedExecution(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{responses: []string{"ok /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": prov}})

	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{phaseFor("a", "m1")}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", nil)

	// Simulate a run goroutine that parked the execution paused and
	// finished without observing the cancellation signal.
	exec.Status = workflow.StatusPaused
	require.NoError(t, fx.store.SaveExecution(exec))
	h := &handle{cancel: func() {}, done: make(chan struct{})}
	close(h.done)
	fx.engine.mu.Lock()
	fx.engine.running[exec.ID] = h
	fx.engine.mu.Unlock()

	assert.True(t, fx.engine.Cancel(exec.ID))

	got, err := fx.store.GetExecution(exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled, got.Status)
	assert.NotNil(t, got.CompletedAt)

	fx.engine.mu.Lock()
	delete(fx.engine.running, exec.ID)
	fx.engine.mu.Unlock()
}

func TestResumeAfterPause(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{responses: []string{"nope", "ok /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": prov}})

	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{phaseFor("a", "m1")}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", func(r *CreateRequest) { r.Interactive = true })

	_, err := fx.engine.Start(context.Background(), exec.ID)
	require.NoError(t, err)

	// The failed phase pauses and asks whether to resume; reject it.
	waitStatus(t, fx, exec.ID, workflow.StatusPaused)
	waitPendingApproval(t, fx, exec.ID)
	require.NoError(t, fx.approvals.Resolve(exec.ID, false, db.SourceCLI))

	// Resume re-enters at the failed phase, which now succeeds.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := fx.engine.Resume(context.Background(), exec.ID); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("resume never accepted")
		}
		time.Sleep(2 * time.Millisecond)
	}
	got := waitStatus(t, fx, exec.ID, workflow.StatusCompleted)
	assert.Equal(t, 2, prov.callCount())
	assert.Equal(t, workflow.StatusCompleted, got.Status)
}

func TestSkipPhaseOperation(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{responses: []string{"nope"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": prov}})

	p := phaseFor("a", "m1")
	p.CanSkip = true
	tpl := &workflow.Template{ID: "t1", Name: "t1", Phases: []workflow.Phase{p}}
	saveTemplate(t, fx.store, tpl)
	exec := create(t, fx, "t1", func(r *CreateRequest) { r.Interactive = true })

	_, err := fx.engine.Start(context.Background(), exec.ID)
	require.NoError(t, err)
	waitStatus(t, fx, exec.ID, workflow.StatusPaused)
	waitPendingApproval(t, fx, exec.ID)

	// Rejected while an approval is pending.
	assert.False(t, fx.engine.SkipPhase(exec.ID, "a"))

	require.NoError(t, fx.approvals.Resolve(exec.ID, false, db.SourceCLI))
	deadline := time.Now().Add(5 * time.Second)
	for fx.approvals.HasPending(exec.ID) {
		if time.Now().After(deadline) {
			t.Fatal("approval never cleared")
		}
		time.Sleep(2 * time.Millisecond)
	}

	assert.True(t, fx.engine.SkipPhase(exec.ID, "a"))
	got := waitStatus(t, fx, exec.ID, workflow.StatusCompleted)
	assert.Equal(t, workflow.StatusCompleted, got.Status)

	pes, err := fx.store.GetPhaseExecutions(exec.ID)
	require.NoError(t, err)
	var skipped int
	for _, pe := range pes {
		if pe.Status == workflow.PhaseSkipped {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)
}

func TestCreateExecution_DefaultTemplateResolution(t *testing.T) {
	t.Parallel()
	prov := &scriptedProvider{responses: []string{"ok /done"}}
	fx := newFixture(t, modelSource{provs: map[string]provider.Provider{"m1": prov}})

	// No template anywhere: CONFIG_ERROR.
	_, err := fx.engine.CreateExecution(context.Background(), CreateRequest{
		ProjectID:       "proj1",
		TaskDescription: "task",
	})
	require.Error(t, err)
	assert.True(t, ucerrors.HasCode(err, ucerrors.CodeConfigError))

	// A global default is picked up when no project default exists.
	tpl := &workflow.Template{
		ID: "g1", Name: "global-default",
		Phases:    []workflow.Phase{phaseFor("a", "m1")},
		IsGlobal:  true,
		IsDefault: true,
	}
	saveTemplate(t, fx.store, tpl)

	exec, err := fx.engine.CreateExecution(context.Background(), CreateRequest{
		ProjectID:       "proj1",
		TaskDescription: "task",
	})
	require.NoError(t, err)
	assert.Equal(t, "g1", exec.TemplateID)
	assert.Equal(t, "global-default", exec.TemplateName)
	require.NotNil(t, exec.Template, "template is snapshotted")

	// Deleting the template does not affect the execution.
	require.NoError(t, fx.store.DeleteTemplate("g1"))
	got, err := fx.engine.Run(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, got.Status)
	assert.Equal(t, "global-default", got.TemplateName)
}
