package workflow

import "sort"

// Group is a unit of sequencing: either a single serial phase or a set of
// phases that run concurrently. Phases that name each other (or a shared
// anchor) via parallel_with collapse into one group anchored at the phase
// with the lowest order.
type Group struct {
	Phases []Phase
}

// Parallel reports whether the group contains more than one phase.
func (g Group) Parallel() bool {
	return len(g.Phases) > 1
}

// OrderPhases computes the sequencing plan for a template: a stable sort by
// Order, then adjacent phases linked through parallel_with merged into
// concurrent groups. All other phases run serially in their own group.
func OrderPhases(phases []Phase) []Group {
	sorted := make([]Phase, len(phases))
	copy(sorted, phases)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	// anchor id -> group index. A phase anchors its own group; a phase with
	// parallel_with joins the group of the named sibling when it exists.
	groupOf := make(map[string]int)
	var groups []Group

	for _, p := range sorted {
		if p.ParallelWith != "" {
			if idx, ok := groupOf[p.ParallelWith]; ok {
				groups[idx].Phases = append(groups[idx].Phases, p)
				groupOf[p.ID] = idx
				continue
			}
		}
		groups = append(groups, Group{Phases: []Phase{p}})
		groupOf[p.ID] = len(groups) - 1
	}

	return groups
}
