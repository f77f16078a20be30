package grove

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestContext_WriteThenRunThenIncrementalSkip reproduces the generator-then-
// consumer build (spec §8 S1: write a file, then a dependent task consumes
// it) followed by an unchanged re-run skipping both tasks (S2).
func TestContext_WriteThenRunThenIncrementalSkip(t *testing.T) {
	dir := t.TempDir()
	buildDir := filepath.Join(dir, ".grove")

	ctx, err := NewContext(dir, &Config{BuildDir: buildDir, Parallel: 2})
	require.NoError(t, err)
	ctx.SetOutput(&Output{Stdout: new(discard), Stderr: new(discard)})

	genPath, err := NewPath(filepath.Join(dir, "generated.txt"))
	require.NoError(t, err)

	write, err := ctx.Root().Task("write", "write-file")
	require.NoError(t, err)
	require.NoError(t, write.OutputsProperty().Set(Paths{genPath}))
	write.DoLast(WriteFile{WritePath: genPath, Content: "42\n"})
	write.SetDefault(true)

	var consumedRuns int
	consume, err := ctx.Root().Task("consume", "callable")
	require.NoError(t, err)
	consume.DependsOn(write)
	require.NoError(t, consume.InputsProperty().Set(Paths{genPath}))
	consume.DoLast(Callable{Label: "consume", Fn: func(c context.Context, rec CallableRecord) error {
		consumedRuns++
		content, err := os.ReadFile(genPath.String())
		if err != nil {
			return err
		}
		if string(content) != "42\n" {
			t.Fatalf("unexpected content: %q", content)
		}
		return nil
	}})
	consume.SetDefault(true)

	summary1, err := ctx.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, summary1.ExitCode)
	require.Equal(t, 1, consumedRuns)
	for _, r := range summary1.Results {
		require.Equal(t, StateSucceeded, r.State)
	}

	// Second Context over the same directories models a fresh invocation
	// that must still see the first run's fingerprint records.
	ctx2, err := NewContext(dir, &Config{BuildDir: buildDir, Parallel: 2})
	require.NoError(t, err)
	ctx2.SetOutput(&Output{Stdout: new(discard), Stderr: new(discard)})

	write2, err := ctx2.Root().Task("write", "write-file")
	require.NoError(t, err)
	require.NoError(t, write2.OutputsProperty().Set(Paths{genPath}))
	write2.DoLast(WriteFile{WritePath: genPath, Content: "42\n"})
	write2.SetDefault(true)

	consume2, err := ctx2.Root().Task("consume", "callable")
	require.NoError(t, err)
	consume2.DependsOn(write2)
	require.NoError(t, consume2.InputsProperty().Set(Paths{genPath}))
	consume2.DoLast(Callable{Label: "consume", Fn: func(c context.Context, rec CallableRecord) error {
		consumedRuns++
		return nil
	}})
	consume2.SetDefault(true)

	summary2, err := ctx2.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, summary2.ExitCode)
	require.Equal(t, 1, consumedRuns, "second run must skip both up-to-date tasks")
	for _, r := range summary2.Results {
		require.Equal(t, StateSkipped, r.State)
	}
}

func TestContext_ResolveUnknownSelectorIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	ctx, err := NewContext(dir, &Config{BuildDir: filepath.Join(dir, ".grove"), Parallel: 1})
	require.NoError(t, err)

	_, err = ctx.PrepareExecution([]string{":ghost"})
	require.Error(t, err)
	require.IsType(t, &ConfigurationError{}, err)
}

// discard is a tiny io.Writer sink, avoiding an import of io/ioutil or
// polluting test output with task stdout.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
