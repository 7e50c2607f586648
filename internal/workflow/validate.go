package workflow

import (
	"fmt"
)

// maxFallbackDepth bounds provider fallback chains; the config is declared
// acyclic but a depth cap keeps a malformed chain from looping forever.
const maxFallbackDepth = 8

// Normalize applies defaults to a template in place: max_iterations,
// per-phase retries/timeouts, iteration and failure behaviors.
func (t *Template) Normalize() {
	if t.MaxIterations <= 0 {
		t.MaxIterations = DefaultMaxIterations
	}
	if t.IterationBehavior == "" {
		t.IterationBehavior = AutoIterate
	}
	if t.FailureBehavior == "" {
		t.FailureBehavior = PauseNotify
	}
	for i := range t.Phases {
		p := &t.Phases[i]
		if p.MaxRetries <= 0 {
			p.MaxRetries = DefaultMaxRetries
		}
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = DefaultTimeoutSeconds
		}
	}
}

// Validate checks structural invariants of a template.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if len(t.Phases) == 0 {
		return fmt.Errorf("template %q has no phases", t.Name)
	}

	ids := make(map[string]bool, len(t.Phases))
	for _, p := range t.Phases {
		if p.ID == "" {
			return fmt.Errorf("phase %q has no id", p.Name)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate phase id %q", p.ID)
		}
		ids[p.ID] = true

		if !ValidProviderKind(p.Provider.Kind) {
			return fmt.Errorf("phase %q: unknown provider kind %q", p.ID, p.Provider.Kind)
		}
		if err := validateFallbackChain(p.Provider); err != nil {
			return fmt.Errorf("phase %q: %w", p.ID, err)
		}
	}

	for _, p := range t.Phases {
		if p.ParallelWith != "" && !ids[p.ParallelWith] {
			return fmt.Errorf("phase %q: parallel_with references unknown phase %q", p.ID, p.ParallelWith)
		}
		if p.ParallelWith == p.ID {
			return fmt.Errorf("phase %q: parallel_with references itself", p.ID)
		}
	}

	switch t.IterationBehavior {
	case "", AutoIterate, PauseForApproval:
	default:
		return fmt.Errorf("unknown iteration behavior %q", t.IterationBehavior)
	}
	switch t.FailureBehavior {
	case "", PauseNotify, FallbackProvider, SkipPhase:
	default:
		return fmt.Errorf("unknown failure behavior %q", t.FailureBehavior)
	}

	return nil
}

func validateFallbackChain(pc ProviderConfig) error {
	depth := 0
	for fb := pc.Fallback; fb != nil; fb = fb.Fallback {
		depth++
		if depth > maxFallbackDepth {
			return fmt.Errorf("fallback chain exceeds %d providers", maxFallbackDepth)
		}
		if !ValidProviderKind(fb.Kind) {
			return fmt.Errorf("fallback provider has unknown kind %q", fb.Kind)
		}
	}
	return nil
}
