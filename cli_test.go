package grove

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = old

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func buildTwoTaskProject(t *testing.T) func(ctx *Context) error {
	return func(ctx *Context) error {
		outPath, err := NewPath(filepath.Join(ctx.Root().Directory().String(), "out.txt"))
		if err != nil {
			return err
		}
		write, err := ctx.Root().Task("write", "write-file")
		if err != nil {
			return err
		}
		if err := write.OutputsProperty().Set(Paths{outPath}); err != nil {
			return err
		}
		write.DoLast(WriteFile{WritePath: outPath, Content: "x"})
		write.SetDefault(true)

		run, err := ctx.Root().Task("run", "callable")
		if err != nil {
			return err
		}
		run.DependsOn(write)
		run.DoLast(Callable{Label: "run", Fn: func(c context.Context, rec CallableRecord) error {
			return nil
		}})
		run.SetDefault(true)
		return nil
	}
}

func TestCLI_GraphCommandPrintsJSON(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)

	build := buildTwoTaskProject(t)
	cmd := newGraphCommand(build)
	cmd.SetArgs([]string{"--json"})

	output := captureStdout(t, func() {
		require.NoError(t, cmd.Execute())
	})

	var nodes []graphNodeJSON
	require.NoError(t, json.Unmarshal([]byte(output), &nodes))
	require.Len(t, nodes, 2)

	byTask := map[string]graphNodeJSON{}
	for _, n := range nodes {
		byTask[n.Task] = n
	}
	require.Contains(t, byTask, ":run")
	require.Equal(t, []string{":write"}, byTask[":run"].Dependencies)
}

func TestCLI_PlanCommandListsTasks(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)

	build := buildTwoTaskProject(t)
	cmd := newPlanCommand(build)
	cmd.SetArgs([]string{})

	output := captureStdout(t, func() {
		require.NoError(t, cmd.Execute())
	})

	require.Contains(t, output, ":write")
	require.Contains(t, output, ":run")
}

func TestExitCodeForErr(t *testing.T) {
	require.Equal(t, 2, exitCodeForErr(&InternalError{Task: ":t", State: "running", Message: "x"}))
	require.Equal(t, 1, exitCodeForErr(&ConfigurationError{Message: "bad"}))
}
