package workflow

// DefaultSuccessPattern is the sentinel most builtin phases look for.
const DefaultSuccessPattern = "/complete"

// BuiltinTemplate returns the built-in analyze/plan/implement/review/verify
// pipeline. It is seeded as the global default when the catalog is empty.
func BuiltinTemplate() *Template {
	t := &Template{
		ID:          "builtin-standard",
		Name:        "standard",
		Description: "Analyze, plan, implement, review, and verify a task",
		Phases: []Phase{
			{
				ID:   "analyze",
				Name: "Analyze",
				Role: RoleAnalyzer,
				Provider: ProviderConfig{
					Kind: ProviderSDKAgent,
				},
				PromptTemplate: "Analyze the following task in the project at {project_path}.\n\n" +
					"Task: {task_description}\n\n" +
					"Describe affected components, risks, and open questions. " +
					"End with " + DefaultSuccessPattern + " when the analysis is finished.",
				OutputType:     ArtifactAnalysis,
				SuccessPattern: DefaultSuccessPattern,
				Order:          1,
			},
			{
				ID:   "plan",
				Name: "Plan",
				Role: RolePlanner,
				Provider: ProviderConfig{
					Kind: ProviderSDKAgent,
				},
				PromptTemplate: "Using this analysis:\n\n{artifact:analyze}\n\n" +
					"Produce an ordered task list for: {task_description}\n" +
					"End with " + DefaultSuccessPattern + ".",
				OutputType:     ArtifactTaskList,
				SuccessPattern: DefaultSuccessPattern,
				Order:          2,
			},
			{
				ID:   "implement",
				Name: "Implement",
				Role: RoleImplementer,
				Provider: ProviderConfig{
					Kind: ProviderCLITool,
				},
				PromptTemplate: "Implement the plan below in {project_path}.\n\n" +
					"{artifact:plan}\n\n" +
					"End with " + DefaultSuccessPattern + " once every item is done.",
				OutputType:     ArtifactCode,
				SuccessPattern: DefaultSuccessPattern,
				CanIterate:     true,
				Order:          3,
			},
			{
				ID:   "review",
				Name: "Review",
				Role: "reviewer_code",
				Provider: ProviderConfig{
					Kind: ProviderSDKAgent,
				},
				PromptTemplate: "Review the implementation output:\n\n{artifact:implement}\n\n" +
					"List defects with severity. End with " + DefaultSuccessPattern +
					" if the work is acceptable.",
				OutputType:     ArtifactReview,
				SuccessPattern: DefaultSuccessPattern,
				CanIterate:     true,
				CanSkip:        true,
				Order:          4,
			},
			{
				ID:   "verify",
				Name: "Verify",
				Role: RoleVerifier,
				Provider: ProviderConfig{
					Kind: ProviderSDKAgent,
				},
				PromptTemplate: "Verify that the task \"{task_description}\" is satisfied by:\n\n" +
					"{artifact:implement}\n\nEnd with " + DefaultSuccessPattern + ".",
				OutputType:     ArtifactVerification,
				SuccessPattern: DefaultSuccessPattern,
				CanSkip:        true,
				Order:          5,
			},
		},
		IterationBehavior: AutoIterate,
		FailureBehavior:   PauseNotify,
		IsGlobal:          true,
		IsDefault:         true,
	}
	t.Normalize()
	return t
}
