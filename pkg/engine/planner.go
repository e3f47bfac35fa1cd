package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuildPlan diffs every resource in the graph against its observation
// and assembles the actions in dependency order. Every resource appears
// exactly once, including resources that are already satisfied; the
// plan is the complete record of what was evaluated.
//
// The graph must be finalized. Levels on the returned plan group action
// indices by dependency depth so the executor can run each level in
// parallel.
func BuildPlan(g *ResourceGraph, observations map[string]Observation) (*Plan, error) {
	if !g.Finalized() {
		return nil, NewLoadError("cannot plan over an unfinalized graph", nil)
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Actions:   make([]Action, 0, g.Len()),
	}

	for _, level := range g.Levels() {
		indices := make([]int, 0, len(level))
		for _, id := range level {
			r, ok := g.Resource(id)
			if !ok {
				return nil, NewLoadError(fmt.Sprintf("graph level references unknown resource %q", id), nil)
			}
			obs, ok := observations[id]
			if !ok {
				return nil, NewProbeError(r.Kind, fmt.Errorf("no observation for resource")).WithResource(id)
			}
			indices = append(indices, len(plan.Actions))
			plan.Actions = append(plan.Actions, Diff(r, obs))
		}
		plan.Levels = append(plan.Levels, indices)
	}

	return plan, nil
}

// ToDOT renders the plan's dependency structure in Graphviz DOT format.
// Mutating actions are drawn solid, satisfied resources dashed.
func (p *Plan) ToDOT(g *ResourceGraph) string {
	var b strings.Builder
	b.WriteString("digraph plan {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, fontname=\"monospace\"];\n\n")

	for _, act := range p.Actions {
		style := "dashed"
		if act.Op.Mutates() {
			style = "solid"
		}
		fmt.Fprintf(&b, "  %q [label=\"%s\\n%s\", style=%s];\n",
			act.ResourceID, act.ResourceID, act.Op, style)
	}

	b.WriteString("\n")
	for _, act := range p.Actions {
		if act.Resource == nil {
			continue
		}
		for _, dep := range act.Resource.Requires {
			fmt.Fprintf(&b, "  %q -> %q;\n", dep, act.ResourceID)
		}
	}

	b.WriteString("}\n")
	return b.String()
}
