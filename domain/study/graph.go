package study

import (
	"fmt"
	"sort"
	"strings"

	"nof1sim/domain/core"
)

const edgeSeparator = " -> "

// EdgeKey builds the "parent -> child" label under which a causal weight is
// stored in the parameter document.
func EdgeKey(parent, child string) string {
	return parent + edgeSeparator + child
}

// SplitEdgeKey decomposes a "parent -> child" edge label.
func SplitEdgeKey(edge string) (parent, child string, err error) {
	parts := strings.Split(edge, edgeSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", core.NewValidationError("dependencies", fmt.Sprintf("malformed edge label %q", edge))
	}
	return parts[0], parts[1], nil
}

// DependencyMap maps each node to its direct causal parents.
type DependencyMap map[string][]string

// BuildDependencyMap derives the parent map of every declared node from the
// edge labels. Parents are kept in sorted order so downstream iteration is
// deterministic.
func BuildDependencyMap(p Parameters) (DependencyMap, error) {
	deps := DependencyMap{}
	for _, node := range p.Nodes() {
		deps[node] = nil
	}
	for edge := range p.Dependencies {
		parent, child, err := SplitEdgeKey(edge)
		if err != nil {
			return nil, err
		}
		if _, ok := deps[parent]; !ok {
			return nil, fmt.Errorf("%w: %s (edge %q)", core.ErrUndeclaredNode, parent, edge)
		}
		if _, ok := deps[child]; !ok {
			return nil, fmt.Errorf("%w: %s (edge %q)", core.ErrUndeclaredNode, child, edge)
		}
		deps[child] = append(deps[child], parent)
	}
	for node := range deps {
		sort.Strings(deps[node])
	}
	return deps, nil
}

// TopologicalOrder sequences the nodes so that every node appears after all
// of its parents. Ties among simultaneously eligible nodes break on the
// lexicographically smallest name, keeping the order stable across runs and
// platforms. A cycle is refused; no fallback order is guessed.
func TopologicalOrder(deps DependencyMap) ([]string, error) {
	remaining := make(map[string]map[string]bool, len(deps))
	for node, parents := range deps {
		set := make(map[string]bool, len(parents))
		for _, parent := range parents {
			set[parent] = true
		}
		remaining[node] = set
	}

	order := make([]string, 0, len(remaining))
	for len(remaining) > 0 {
		next := ""
		for node, parents := range remaining {
			if len(parents) != 0 {
				continue
			}
			if next == "" || node < next {
				next = node
			}
		}
		if next == "" {
			left := make([]string, 0, len(remaining))
			for node := range remaining {
				left = append(left, node)
			}
			sort.Strings(left)
			return nil, core.NewCyclicGraphError(left)
		}

		order = append(order, next)
		delete(remaining, next)
		for _, parents := range remaining {
			delete(parents, next)
		}
	}
	return order, nil
}
