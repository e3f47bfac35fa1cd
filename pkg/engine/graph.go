package engine

import (
	"sort"
	"strings"
)

// ResourceGraph is the set of desired resources keyed by identity plus
// their dependency edges. A graph is built once per run: resources are
// added in any order (forward references are allowed), then Finalize
// validates the edges, rejects cycles and computes topological levels.
type ResourceGraph struct {
	// resources maps identity to resource.
	resources map[string]*Resource

	// order records insertion order for deterministic iteration.
	order []string

	// index maps identity to insertion index.
	index map[string]int

	// dependents maps identity to the identities that require it.
	dependents map[string][]string

	// levels groups identities by topological level. Resources at the
	// same level have no dependency relationship.
	levels [][]string

	finalized bool
}

// NewResourceGraph creates an empty resource graph.
func NewResourceGraph() *ResourceGraph {
	return &ResourceGraph{
		resources:  make(map[string]*Resource),
		index:      make(map[string]int),
		dependents: make(map[string][]string),
	}
}

// Add inserts a resource into the graph. Identity collisions fail
// immediately with a DuplicateResourceError; dependency references are
// checked later at Finalize so that forward references work.
func (g *ResourceGraph) Add(r *Resource) error {
	if err := r.Validate(); err != nil {
		return NewLoadError("invalid resource", err)
	}
	if _, exists := g.resources[r.ID]; exists {
		return NewDuplicateResourceError(r.ID)
	}
	g.resources[r.ID] = r
	g.index[r.ID] = len(g.order)
	g.order = append(g.order, r.ID)
	g.finalized = false
	return nil
}

// Finalize validates all dependency edges, detects cycles and computes
// the topological levels. It must be called before Levels or TopoOrder.
func (g *ResourceGraph) Finalize() error {
	g.dependents = make(map[string][]string, len(g.resources))
	inDegree := make(map[string]int, len(g.resources))

	for _, id := range g.order {
		inDegree[id] = 0
	}
	for _, id := range g.order {
		r := g.resources[id]
		for _, dep := range r.Requires {
			if _, exists := g.resources[dep]; !exists {
				return NewDanglingDependencyError(id, dep)
			}
			g.dependents[dep] = append(g.dependents[dep], id)
			inDegree[id]++
		}
	}

	if err := g.detectCycles(); err != nil {
		return err
	}

	// Kahn's algorithm with level tracking; insertion order breaks
	// ties so plans are deterministic.
	g.levels = nil
	current := make([]string, 0)
	for _, id := range g.order {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}

	processed := 0
	for len(current) > 0 {
		g.levels = append(g.levels, current)
		processed += len(current)

		next := make([]string, 0)
		for _, id := range current {
			for _, dep := range g.dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool {
			return g.index[next[i]] < g.index[next[j]]
		})
		current = next
	}

	if processed != len(g.resources) {
		// Unreachable if cycle detection is correct.
		return NewCycleError("not all resources could be ordered")
	}

	g.finalized = true
	return nil
}

// detectCycles runs a depth-first search over the dependency edges and
// reports the first cycle found.
func (g *ResourceGraph) detectCycles() error {
	visited := make(map[string]bool, len(g.resources))
	inStack := make(map[string]bool, len(g.resources))

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		visited[id] = true
		inStack[id] = true
		path = append(path, id)

		for _, dep := range g.resources[id].Requires {
			if !visited[dep] {
				if err := visit(dep, path); err != nil {
					return err
				}
			} else if inStack[dep] {
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), dep)
				return NewCycleError(strings.Join(cycle, " -> "))
			}
		}

		inStack[id] = false
		return nil
	}

	for _, id := range g.order {
		if !visited[id] {
			if err := visit(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resource returns the resource with the given identity.
func (g *ResourceGraph) Resource(id string) (*Resource, bool) {
	r, ok := g.resources[id]
	return r, ok
}

// Len returns the number of resources in the graph.
func (g *ResourceGraph) Len() int {
	return len(g.resources)
}

// Resources returns all resources in insertion order.
func (g *ResourceGraph) Resources() []*Resource {
	out := make([]*Resource, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.resources[id])
	}
	return out
}

// Finalized reports whether Finalize has validated the current graph.
func (g *ResourceGraph) Finalized() bool {
	return g.finalized
}

// Levels returns the topological levels computed by Finalize.
func (g *ResourceGraph) Levels() [][]string {
	return g.levels
}

// TopoOrder returns all identities in dependency order: for every edge
// (A requires B), B precedes A.
func (g *ResourceGraph) TopoOrder() []string {
	out := make([]string, 0, len(g.resources))
	for _, level := range g.levels {
		out = append(out, level...)
	}
	return out
}
