package registry

import (
	"sort"

	"github.com/heimdalr/dag"

	"context-engine/internal/common/errors"
	"context-engine/internal/common/logging"
)

// ResolveDependencies returns the given providers plus their transitive
// dependencies in topological order: every provider appears after all of its
// dependencies. A dependency cycle fails with a DependencyCycleError naming
// the providers on the offending edge. Dependencies on unregistered
// providers are skipped with a warning.
func (r *Registry) ResolveDependencies(names []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Transitive closure over declared dependencies.
	closure := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if closure[name] {
			return
		}
		reg, exists := r.entries[name]
		if !exists {
			r.logger.Warn("Skipping dependency on unregistered provider",
				logging.String("provider", name),
			)
			return
		}
		closure[name] = true
		for _, dep := range reg.Metadata.Dependencies {
			visit(dep)
		}
	}
	for _, name := range names {
		visit(name)
	}

	graph := dag.NewDAG()
	vertexIDs := make(map[string]string, len(closure))
	providerNames := make(map[string]string, len(closure))

	for name := range closure {
		vertexID, err := graph.AddVertex(name)
		if err != nil {
			return nil, errors.InternalError("failed to add provider to dependency graph", err).
				WithContext("provider", name)
		}
		vertexIDs[name] = vertexID
		providerNames[vertexID] = name
	}

	edgeSeen := make(map[[2]string]bool)
	for name := range closure {
		for _, dep := range r.entries[name].Metadata.Dependencies {
			if !closure[dep] {
				continue
			}
			// A dependency declared twice is redundant, not a cycle.
			edge := [2]string{dep, name}
			if edgeSeen[edge] {
				continue
			}
			edgeSeen[edge] = true
			// Edge direction dep -> provider: dependencies complete first.
			// The graph rejects any edge that would close a cycle.
			if err := graph.AddEdge(vertexIDs[dep], vertexIDs[name]); err != nil {
				return nil, errors.DependencyCycleError(dep, name).WithContext("cause", err.Error())
			}
		}
	}

	// Peel off providers whose dependencies are all resolved, batch by
	// batch, sorting each batch for a deterministic order.
	var order []string
	resolved := make(map[string]bool, len(closure))
	remaining := make(map[string]bool, len(closure))
	for name := range closure {
		remaining[name] = true
	}

	for len(remaining) > 0 {
		var batch []string
		for name := range remaining {
			ready := true
			ancestors, err := graph.GetAncestors(vertexIDs[name])
			if err != nil {
				return nil, errors.InternalError("failed to resolve provider dependencies", err).
					WithContext("provider", name)
			}
			for ancestorID := range ancestors {
				if !resolved[providerNames[ancestorID]] {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, name)
			}
		}

		if len(batch) == 0 {
			// Unreachable once edge insertion has rejected cycles.
			return nil, errors.DependencyCycleError(sortedKeys(remaining)...)
		}

		sort.Strings(batch)
		for _, name := range batch {
			resolved[name] = true
			delete(remaining, name)
		}
		order = append(order, batch...)
	}

	return order, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
