package workflows

import (
	"fmt"
	"sort"
	"strings"
)

// StepKind distinguishes where a step runs.
type StepKind string

const (
	// StepActivity runs as a Temporal activity.
	StepActivity StepKind = "activity"
	// StepLocal runs inline in workflow code (pure computation).
	StepLocal StepKind = "local"
	// StepGate suspends the workflow until an external signal.
	StepGate StepKind = "gate"
)

// StepSpec declares one node of the case processing graph.
type StepSpec struct {
	ID        string
	Kind      StepKind
	Branch    string
	DependsOn []string
}

// StepGraph is the declared case processing graph before compilation.
type StepGraph struct {
	Name  string
	Steps []StepSpec
}

// CompiledGraph is the validated, deterministically ordered form of a
// step graph. Order is a stable topological sort.
type CompiledGraph struct {
	Name  string
	Steps map[string]StepSpec
	Order []string
}

// Describe renders the execution order with branch annotations, one line
// for the case event stream.
func (g *CompiledGraph) Describe() string {
	parts := make([]string, 0, len(g.Order))
	for _, id := range g.Order {
		if branch := g.Steps[id].Branch; branch != "" {
			parts = append(parts, id+"("+branch+")")
			continue
		}
		parts = append(parts, id)
	}
	return strings.Join(parts, " -> ")
}

// Compile validates the graph (unique ids, known dependencies, no
// cycles) and computes the stable execution order. Ties break on step id
// so the order never depends on map iteration.
func Compile(g StepGraph) (*CompiledGraph, error) {
	if len(g.Steps) == 0 {
		return nil, fmt.Errorf("graph %q has no steps", g.Name)
	}

	out := &CompiledGraph{
		Name:  g.Name,
		Steps: make(map[string]StepSpec, len(g.Steps)),
	}

	for _, step := range g.Steps {
		if step.ID == "" {
			return nil, fmt.Errorf("graph %q has a step with an empty id", g.Name)
		}
		if _, dup := out.Steps[step.ID]; dup {
			return nil, fmt.Errorf("graph %q has duplicate step %q", g.Name, step.ID)
		}
		out.Steps[step.ID] = step
	}

	adjacency := make(map[string][]string, len(out.Steps))
	indegree := make(map[string]int, len(out.Steps))
	for id := range out.Steps {
		indegree[id] = 0
	}

	for _, step := range g.Steps {
		for _, dep := range step.DependsOn {
			if _, known := out.Steps[dep]; !known {
				return nil, fmt.Errorf("step %q depends on unknown step %q", step.ID, dep)
			}
			if dep == step.ID {
				return nil, fmt.Errorf("step %q depends on itself", step.ID)
			}
			adjacency[dep] = append(adjacency[dep], step.ID)
			indegree[step.ID]++
		}
	}
	for id := range adjacency {
		sort.Strings(adjacency[id])
	}

	order, err := stableTopoOrder(adjacency, indegree)
	if err != nil {
		return nil, fmt.Errorf("graph %q: %w", g.Name, err)
	}
	out.Order = order
	return out, nil
}

func stableTopoOrder(adjacency map[string][]string, indegree map[string]int) ([]string, error) {
	ready := make([]string, 0, len(indegree))
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(indegree))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, next := range adjacency[current] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(indegree) {
		return nil, fmt.Errorf("cycle detected")
	}
	return order, nil
}
