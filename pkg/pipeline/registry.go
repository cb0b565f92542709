package pipeline

import (
	"sort"
)

// Registry holds the ordered stage list. Stages are sorted by descending
// priority; ties keep registration order. Populated at construction time and
// passed by reference to the orchestrator; no process-wide globals.
type Registry struct {
	stages []Stage
}

func NewRegistry(stages ...Stage) *Registry {
	r := &Registry{}
	for _, s := range stages {
		r.Register(s)
	}
	return r
}

func (r *Registry) Register(s Stage) {
	r.stages = append(r.stages, s)
	sort.SliceStable(r.stages, func(i, j int) bool {
		return r.stages[i].Priority() > r.stages[j].Priority()
	})
}

// Stages returns the dispatch order (descending priority).
func (r *Registry) Stages() []Stage {
	return r.stages
}

func (r *Registry) Len() int {
	return len(r.stages)
}
