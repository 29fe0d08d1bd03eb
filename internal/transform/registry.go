package transform

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Registry maps transformation names to their implementations.
type Registry struct {
	nodes map[string]Transformation
	order []string // registration order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]Transformation)}
}

// Register adds a transformation to the registry. Re-registering a name
// replaces the previous implementation.
func (r *Registry) Register(t Transformation) {
	name := t.Name()
	if _, ok := r.nodes[name]; !ok {
		r.order = append(r.order, name)
	}
	r.nodes[name] = t
}

// Get returns a transformation by name.
func (r *Registry) Get(name string) (Transformation, error) {
	t, ok := r.nodes[name]
	if !ok {
		return nil, eris.Errorf("transform: unknown transformation %q", name)
	}
	return t, nil
}

// All returns all transformations in registration order.
func (r *Registry) All() []Transformation {
	result := make([]Transformation, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.nodes[name])
	}
	return result
}

// Resolve returns a valid execution order for the named transformations and
// their transitive upstreams. With no names it resolves the full catalog.
// Every upstream of a returned node precedes it; independent nodes keep
// registration order. Fails with *UnknownDependencyError or *CycleError
// before anything executes.
func (r *Registry) Resolve(names []string) ([]Transformation, error) {
	selected, err := r.closure(names)
	if err != nil {
		return nil, err
	}

	// Kahn's algorithm over the selected closure. The ready set is drained in
	// registration order, which keeps runs reproducible without mandating a
	// particular tie-break semantically.
	indegree := make(map[string]int, len(selected))
	downstream := make(map[string][]string, len(selected))
	for name := range selected {
		node := r.nodes[name]
		for _, up := range node.Upstreams() {
			if _, ok := r.nodes[up]; !ok {
				return nil, &UnknownDependencyError{Node: name, Upstream: up}
			}
			indegree[name]++
			downstream[up] = append(downstream[up], name)
		}
	}

	var ordered []Transformation
	for {
		var ready []string
		for _, name := range r.order {
			if _, ok := selected[name]; ok && indegree[name] == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			break
		}
		for _, name := range ready {
			ordered = append(ordered, r.nodes[name])
			delete(selected, name)
			indegree[name] = -1
			for _, down := range downstream[name] {
				indegree[down]--
			}
		}
	}

	if len(selected) > 0 {
		remaining := make([]string, 0, len(selected))
		for name := range selected {
			remaining = append(remaining, name)
		}
		sort.Strings(remaining)
		return nil, &CycleError{Nodes: remaining}
	}

	return ordered, nil
}

// closure expands the named nodes to include all transitive upstreams.
func (r *Registry) closure(names []string) (map[string]bool, error) {
	selected := make(map[string]bool)

	if len(names) == 0 {
		for name := range r.nodes {
			selected[name] = true
		}
		return selected, nil
	}

	var queue []string
	for _, name := range names {
		if _, ok := r.nodes[name]; !ok {
			return nil, eris.Errorf("transform: unknown transformation %q", name)
		}
		queue = append(queue, name)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if selected[name] {
			continue
		}
		selected[name] = true
		node, ok := r.nodes[name]
		if !ok {
			continue // reported as UnknownDependencyError during the sort
		}
		for _, up := range node.Upstreams() {
			if _, registered := r.nodes[up]; registered {
				queue = append(queue, up)
			} else {
				return nil, &UnknownDependencyError{Node: name, Upstream: up}
			}
		}
	}
	return selected, nil
}
