// Package workflow provides the template and execution data model for
// ultraclaude. Templates are reusable multi-phase pipeline definitions;
// executions track a single end-to-end run of a template against a task.
package workflow

import (
	"time"
)

// ProviderKind identifies how a phase's LLM provider is reached.
// The set is closed; the provider registry maps each kind to an implementation.
type ProviderKind string

const (
	ProviderCLITool          ProviderKind = "cli_tool"
	ProviderSDKAgent         ProviderKind = "sdk_agent"
	ProviderGenericOpenAI    ProviderKind = "generic_openai_http"
	ProviderOpenRouter       ProviderKind = "openrouter"
	ProviderOpenAI           ProviderKind = "openai"
	ProviderGeminiDirect     ProviderKind = "gemini_direct"
	ProviderGeminiOAuth      ProviderKind = "gemini_oauth"
	ProviderGeminiOpenRouter ProviderKind = "gemini_via_openrouter"
	ProviderCloudCodeAssist  ProviderKind = "cloud_code_assist"
	ProviderOllama           ProviderKind = "local_ollama"
	ProviderLMStudio         ProviderKind = "local_lm_studio"
	ProviderNone             ProviderKind = "none"
)

// ValidProviderKind reports whether k is one of the known provider kinds.
func ValidProviderKind(k ProviderKind) bool {
	switch k {
	case ProviderCLITool, ProviderSDKAgent, ProviderGenericOpenAI,
		ProviderOpenRouter, ProviderOpenAI, ProviderGeminiDirect,
		ProviderGeminiOAuth, ProviderGeminiOpenRouter, ProviderCloudCodeAssist,
		ProviderOllama, ProviderLMStudio, ProviderNone:
		return true
	}
	return false
}

// ProviderConfig is an immutable value describing one provider binding.
type ProviderConfig struct {
	Kind ProviderKind `json:"kind" yaml:"kind"`

	// Model is the model name; empty means "provider default".
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// APIURL overrides the provider's default endpoint.
	APIURL string `json:"api_url,omitempty" yaml:"api_url,omitempty"`

	// Temperature defaults to 0.1 when zero.
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// ContextLength is a hint for prompt sizing; 0 means unknown.
	ContextLength int `json:"context_length,omitempty" yaml:"context_length,omitempty"`

	// Fallback is consulted by the orchestrator (never the runner) when the
	// template's failure behavior is fallback_provider. The chain has no cycles.
	Fallback *ProviderConfig `json:"fallback_provider,omitempty" yaml:"fallback_provider,omitempty"`
}

// DefaultTemperature is applied when a ProviderConfig leaves Temperature unset.
const DefaultTemperature = 0.1

// EffectiveTemperature returns the configured temperature or the default.
func (pc ProviderConfig) EffectiveTemperature() float64 {
	if pc.Temperature > 0 {
		return pc.Temperature
	}
	return DefaultTemperature
}

// ArtifactType classifies the output of a phase.
type ArtifactType string

const (
	ArtifactAnalysis     ArtifactType = "analysis"
	ArtifactPlan         ArtifactType = "plan"
	ArtifactTaskList     ArtifactType = "task_list"
	ArtifactCode         ArtifactType = "code"
	ArtifactReview       ArtifactType = "review"
	ArtifactVerification ArtifactType = "verification"
	ArtifactDocument     ArtifactType = "document"
)

// Phase role tags. Purely informational except where the orchestrator
// treats reviewer/implementer roles as sensitive in interactive mode.
const (
	RoleAnalyzer    = "analyzer"
	RolePlanner     = "planner"
	RoleImplementer = "implementer"
	RoleVerifier    = "verifier"
)

// Phase defaults.
const (
	DefaultMaxRetries     = 2
	DefaultTimeoutSeconds = 3600
	DefaultMaxIterations  = 3
)

// Phase is an immutable phase definition within a template.
type Phase struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// Role is an informational tag (analyzer, planner, implementer,
	// reviewer_*, verifier, ...).
	Role string `json:"role,omitempty" yaml:"role,omitempty"`

	Provider ProviderConfig `json:"provider_config" yaml:"provider_config"`

	// PromptTemplate supports {task_description}, {project_path} and
	// {artifact:NAME} placeholders, resolved by the phase runner.
	PromptTemplate string `json:"prompt_template" yaml:"prompt_template"`

	OutputType ArtifactType `json:"output_artifact_type" yaml:"output_artifact_type"`

	// SuccessPattern classifies phase output. A leading '/' means literal
	// case-insensitive substring; otherwise it is a case-insensitive regular
	// expression. Empty always succeeds.
	SuccessPattern string `json:"success_pattern,omitempty" yaml:"success_pattern,omitempty"`

	CanSkip    bool `json:"can_skip,omitempty" yaml:"can_skip,omitempty"`
	CanIterate bool `json:"can_iterate,omitempty" yaml:"can_iterate,omitempty"`

	MaxRetries     int `json:"max_retries" yaml:"max_retries"`
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`

	// ParallelWith names a sibling phase this phase may run concurrently with.
	ParallelWith string `json:"parallel_with,omitempty" yaml:"parallel_with,omitempty"`

	// Order is the primary sort key for sequencing.
	Order int `json:"order" yaml:"order"`
}

// Timeout returns the phase deadline as a duration.
func (p Phase) Timeout() time.Duration {
	secs := p.TimeoutSeconds
	if secs <= 0 {
		secs = DefaultTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// IterationBehavior controls what happens when a can_iterate phase
// requests another pass.
type IterationBehavior string

const (
	AutoIterate      IterationBehavior = "auto_iterate"
	PauseForApproval IterationBehavior = "pause_for_approval"
)

// FailureBehavior controls what the orchestrator does with a failed phase.
type FailureBehavior string

const (
	PauseNotify      FailureBehavior = "pause_notify"
	FallbackProvider FailureBehavior = "fallback_provider"
	SkipPhase        FailureBehavior = "skip_phase"
)

// Template is an ordered set of phases plus global policies.
type Template struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Phases []Phase `json:"phases" yaml:"phases"`

	MaxIterations     int               `json:"max_iterations" yaml:"max_iterations"`
	IterationBehavior IterationBehavior `json:"iteration_behavior" yaml:"iteration_behavior"`
	FailureBehavior   FailureBehavior   `json:"failure_behavior" yaml:"failure_behavior"`

	// BudgetLimit caps spending per execution of this template; nil = unbounded.
	BudgetLimit *float64 `json:"budget_limit,omitempty" yaml:"budget_limit,omitempty"`

	// IsGlobal templates are visible to every project; otherwise the template
	// belongs to ProjectID.
	IsGlobal  bool   `json:"is_global" yaml:"is_global"`
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty"`

	// IsDefault marks the template selected when create_execution is called
	// without an explicit template id.
	IsDefault bool `json:"is_default,omitempty" yaml:"is_default,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// PhaseByID returns the phase with the given id, or nil.
func (t *Template) PhaseByID(id string) *Phase {
	for i := range t.Phases {
		if t.Phases[i].ID == id {
			return &t.Phases[i]
		}
	}
	return nil
}

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	StatusPending          ExecutionStatus = "pending"
	StatusRunning          ExecutionStatus = "running"
	StatusPaused           ExecutionStatus = "paused"
	StatusAwaitingApproval ExecutionStatus = "awaiting_approval"
	StatusCompleted        ExecutionStatus = "completed"
	StatusFailed           ExecutionStatus = "failed"
	StatusCancelled        ExecutionStatus = "cancelled"
	StatusBudgetExceeded   ExecutionStatus = "budget_exceeded"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusBudgetExceeded:
		return true
	}
	return false
}

// PhaseStatus is the state of a single phase execution.
type PhaseStatus string

const (
	PhasePending   PhaseStatus = "pending"
	PhaseRunning   PhaseStatus = "running"
	PhasePaused    PhaseStatus = "paused"
	PhaseCompleted PhaseStatus = "completed"
	PhaseFailed    PhaseStatus = "failed"
	PhaseSkipped   PhaseStatus = "skipped"
)

// IsTerminal reports whether the phase reached a final state.
func (s PhaseStatus) IsTerminal() bool {
	switch s {
	case PhaseCompleted, PhaseFailed, PhaseSkipped:
		return true
	}
	return false
}

// PhaseExecution records one (phase x iteration) run within an execution.
type PhaseExecution struct {
	ID          string `json:"id"`
	ExecutionID string `json:"execution_id"`
	PhaseID     string `json:"phase_id"`

	Status    PhaseStatus `json:"status"`
	Iteration int         `json:"iteration"` // 1-based

	InputArtifactIDs []string `json:"input_artifact_ids,omitempty"`
	OutputArtifactID string   `json:"output_artifact_id,omitempty"`

	TokensInput  int     `json:"tokens_input"`
	TokensOutput int     `json:"tokens_output"`
	CostUSD      float64 `json:"cost_usd"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error string `json:"error_message,omitempty"`
}

// Execution is the top-level unit of work: one run of a template.
type Execution struct {
	ID string `json:"id"`

	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`

	// Template is the snapshot taken at creation; template edits or deletion
	// never change running or historical executions.
	Template *Template `json:"template_snapshot,omitempty"`

	// Trigger is informational (cli, api, schedule, ...).
	Trigger string `json:"trigger,omitempty"`

	ProjectID       string `json:"project_id,omitempty"`
	ProjectPath     string `json:"project_path,omitempty"`
	TaskDescription string `json:"task_description"`

	Status         ExecutionStatus `json:"status"`
	CurrentPhaseID string          `json:"current_phase_id,omitempty"`
	Iteration      int             `json:"iteration"`

	PhaseExecutions []PhaseExecution `json:"phase_executions,omitempty"`
	ArtifactIDs     []string         `json:"artifact_ids,omitempty"`

	TotalCostUSD      float64 `json:"total_cost_usd"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`

	// BudgetLimit is the per-execution cap; nil = unbounded.
	BudgetLimit *float64 `json:"budget_limit,omitempty"`

	// Interactive gates sensitive phases on human approval.
	Interactive bool `json:"interactive_mode"`

	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Artifact is an immutable text output of one phase execution.
// Content changes only through an explicit update, which sets IsEdited.
type Artifact struct {
	ID               string `json:"id"`
	ExecutionID      string `json:"workflow_execution_id"`
	PhaseExecutionID string `json:"phase_execution_id"`

	Type    ArtifactType `json:"type"`
	Name    string       `json:"name"`
	Content string       `json:"content"`

	// FilePath is the optional durable mirror on disk.
	FilePath string            `json:"file_path,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	IsEdited bool              `json:"is_edited"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
