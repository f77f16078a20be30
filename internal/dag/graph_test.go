package dag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	id   string
	deps []string
}

func (n fakeNode) ID() string             { return n.id }
func (n fakeNode) DependencyIDs() []string { return n.deps }

func nodeMap(nodes ...fakeNode) map[string]Node {
	m := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		m[n.id] = n
	}
	return m
}

func TestBuild_TopologicalOrder(t *testing.T) {
	nodes := nodeMap(
		fakeNode{id: "a", deps: []string{"b", "c"}},
		fakeNode{id: "b", deps: []string{"c"}},
		fakeNode{id: "c"},
	)

	order, err := Build([]string{"a"}, nodes)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, order)
}

func TestBuild_LexicographicTieBreak(t *testing.T) {
	nodes := nodeMap(
		fakeNode{id: "root", deps: []string{"z", "y", "x"}},
		fakeNode{id: "x"},
		fakeNode{id: "y"},
		fakeNode{id: "z"},
	)

	order, err := Build([]string{"root"}, nodes)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y", "z", "root"}, order)
}

func TestBuild_CycleNamesBothTasks(t *testing.T) {
	nodes := nodeMap(
		fakeNode{id: "a", deps: []string{"b"}},
		fakeNode{id: "b", deps: []string{"a"}},
	)

	_, err := Build([]string{"a"}, nodes)
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.Contains(t, cycleErr.Path, "a")
	require.Contains(t, cycleErr.Path, "b")
}

func TestBuild_UnknownDependencyIsError(t *testing.T) {
	nodes := nodeMap(fakeNode{id: "a", deps: []string{"ghost"}})

	_, err := Build([]string{"a"}, nodes)
	require.Error(t, err)
}

func TestBuild_DiamondVisitsSharedDependencyOnce(t *testing.T) {
	nodes := nodeMap(
		fakeNode{id: "top", deps: []string{"left", "right"}},
		fakeNode{id: "left", deps: []string{"bottom"}},
		fakeNode{id: "right", deps: []string{"bottom"}},
		fakeNode{id: "bottom"},
	)

	order, err := Build([]string{"top"}, nodes)
	require.NoError(t, err)
	require.Equal(t, []string{"bottom", "left", "right", "top"}, order)
}
