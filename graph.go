package grove

import "github.com/grovebuild/grove/internal/dag"

// ExecutionSet is the transitive closure of a task selection together with
// its deterministic topological order (spec §4.7, Glossary "Execution Set").
type ExecutionSet struct {
	Tasks []*Task
}

// BuildExecutionSet computes the execution set for roots. all must contain
// every task reachable from roots (typically Project.AllTasks() on the
// Context's root project) and every task must already be Configured, so its
// dependency edges (explicit ∪ implicit) are populated.
func BuildExecutionSet(roots []*Task, all []*Task) (*ExecutionSet, error) {
	nodes := make(map[string]dag.Node, len(all))
	byPath := make(map[string]*Task, len(all))
	for _, t := range all {
		nodes[t.Path()] = t
		byPath[t.Path()] = t
	}

	rootIDs := make([]string, 0, len(roots))
	for _, r := range roots {
		rootIDs = append(rootIDs, r.Path())
	}

	order, err := dag.Build(rootIDs, nodes)
	if err != nil {
		return nil, wrapGraphError(err)
	}

	tasks := make([]*Task, 0, len(order))
	for _, id := range order {
		tasks = append(tasks, byPath[id])
	}
	return &ExecutionSet{Tasks: tasks}, nil
}

// wrapGraphError converts a dag.CycleError into the ConfigurationError the
// rest of the engine surfaces for every configuration-time failure (spec
// §7, §8 S3: "fail with a configuration error naming both tasks").
func wrapGraphError(err error) error {
	if cycle, ok := err.(*dag.CycleError); ok {
		return &ConfigurationError{Message: cycle.Error()}
	}
	return &ConfigurationError{Message: err.Error()}
}
