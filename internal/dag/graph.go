// Package dag computes the transitive dependency closure of a task selection
// and its deterministic topological order, detecting cycles via a
// colored-vertex walk (spec §4.7).
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Node is anything the graph builder can traverse: a task path identity plus
// the set of dependency paths (explicit ∪ implicit, already merged by the
// caller per spec §4.2's "Derived task dependencies").
type Node interface {
	ID() string
	DependencyIDs() []string
}

// CycleError reports a dependency cycle, naming every task path on the cycle
// in encounter order (spec §8 S3: "fail with a configuration error naming
// both tasks").
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// color tracks DFS vertex state: white = unvisited, grey = on the current
// recursion stack, black = fully processed. Grounded on the teacher pack's
// cycle-detection idiom (alexisbeaulieu97-Streamy's
// internal/plugin/dependency_graph.go DetectCycles), adapted from a
// single-cycle-return helper into a full topological build that also
// verifies every referenced dependency exists.
type color int

const (
	white color = iota
	grey
	black
)

// Build computes the execution set: the transitive closure of roots over
// nodes, together with a topological order. Roots and each node's
// dependencies are visited in lexicographic ID order, so the order is
// deterministic for a given graph (spec §8 invariant 5). It is a
// depth-first post-order, so two nodes with no path between them are not
// necessarily in lexicographic order relative to each other.
func Build(roots []string, nodes map[string]Node) (order []string, err error) {
	colors := make(map[string]color, len(nodes))
	var path []string
	var result []string

	var visit func(id string) error
	visit = func(id string) error {
		switch colors[id] {
		case black:
			return nil
		case grey:
			cyclePath := append(append([]string(nil), path...), id)
			return &CycleError{Path: cyclePath}
		}

		node, ok := nodes[id]
		if !ok {
			return fmt.Errorf("dag: unknown task %q referenced as a dependency", id)
		}

		colors[id] = grey
		path = append(path, id)

		deps := append([]string(nil), node.DependencyIDs()...)
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		colors[id] = black
		result = append(result, id)
		return nil
	}

	sortedRoots := append([]string(nil), roots...)
	sort.Strings(sortedRoots)
	for _, r := range sortedRoots {
		if err := visit(r); err != nil {
			return nil, err
		}
	}

	return result, nil
}
