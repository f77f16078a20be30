package grove

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProject_RootPathsAndDisplay(t *testing.T) {
	root := newRootForTest(t)
	require.Equal(t, "", root.Path())
	require.Equal(t, ":", root.DisplayPath())

	child, err := root.SubProject("lib", "")
	require.NoError(t, err)
	require.Equal(t, ":lib", child.Path())
}

func TestProject_SubProjectNameMustBeUnique(t *testing.T) {
	root := newRootForTest(t)
	_, err := root.SubProject("lib", "")
	require.NoError(t, err)

	_, err = root.SubProject("lib", "")
	require.Error(t, err)
}

func TestProject_TaskNameMustBeUnique(t *testing.T) {
	root := newRootForTest(t)
	_, err := root.Task("build", "noop")
	require.NoError(t, err)

	_, err = root.Task("build", "noop")
	require.Error(t, err)
}

func TestProject_ResolveLocalTask(t *testing.T) {
	root := newRootForTest(t)
	task, err := root.Task("build", "noop")
	require.NoError(t, err)

	got, err := root.Resolve("build")
	require.NoError(t, err)
	require.Same(t, task, got)
}

func TestProject_ResolveWalksUpToEnclosingScope(t *testing.T) {
	root := newRootForTest(t)
	task, err := root.Task("shared", "noop")
	require.NoError(t, err)

	child, err := root.SubProject("lib", "")
	require.NoError(t, err)

	got, err := child.Resolve("shared")
	require.NoError(t, err)
	require.Same(t, task, got)
}

func TestProject_ResolveAbsolutePath(t *testing.T) {
	root := newRootForTest(t)
	child, err := root.SubProject("lib", "")
	require.NoError(t, err)
	task, err := child.Task("compile", "noop")
	require.NoError(t, err)

	got, err := root.Resolve(":lib:compile")
	require.NoError(t, err)
	require.Same(t, task, got)
}

func TestProject_ResolveUnknownTaskIsError(t *testing.T) {
	root := newRootForTest(t)
	_, err := root.Resolve("ghost")
	require.Error(t, err)

	_, err = root.Resolve(":also:ghost")
	require.Error(t, err)
}

func TestProject_ApplyIsIdempotentPerProject(t *testing.T) {
	root := newRootForTest(t)

	runs := 0
	plugin := Plugin(func(p *Project) error {
		runs++
		return nil
	})

	require.NoError(t, root.Apply("thing", plugin))
	require.NoError(t, root.Apply("thing", plugin))
	require.Equal(t, 1, runs)
}

func TestProject_DefaultTasksCollectsAcrossSubtree(t *testing.T) {
	root := newRootForTest(t)
	a, err := root.Task("a", "noop")
	require.NoError(t, err)
	a.SetDefault(true)

	child, err := root.SubProject("lib", "")
	require.NoError(t, err)
	b, err := child.Task("b", "noop")
	require.NoError(t, err)
	b.SetDefault(true)

	_, err = child.Task("c", "noop")
	require.NoError(t, err)

	defaults := root.DefaultTasks()
	require.Len(t, defaults, 2)
}

func TestProject_AllTasksCollectsAcrossSubtree(t *testing.T) {
	root := newRootForTest(t)
	_, err := root.Task("a", "noop")
	require.NoError(t, err)

	child, err := root.SubProject("lib", "")
	require.NoError(t, err)
	_, err = child.Task("b", "noop")
	require.NoError(t, err)

	require.Len(t, root.AllTasks(), 2)
}

func TestProject_ExtensionRoundTrips(t *testing.T) {
	root := newRootForTest(t)
	_, ok := root.Extension("config")
	require.False(t, ok)

	root.SetExtension("config", 42)
	v, ok := root.Extension("config")
	require.True(t, ok)
	require.Equal(t, 42, v)
}
