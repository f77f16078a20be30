package grove

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
)

// outputKey is the context key carrying the current task's console writers.
// Adapted from the teacher's pk/output.go outputKey pattern.
type outputKey struct{}

// Output holds the stdout/stderr writers an Action writes to.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// StdOutput returns an Output backed by the process's real stdout/stderr.
func StdOutput() *Output {
	return &Output{Stdout: os.Stdout, Stderr: os.Stderr}
}

// WithOutput attaches out to ctx, overriding whatever Output a parent scope
// set.
func WithOutput(ctx context.Context, out *Output) context.Context {
	return context.WithValue(ctx, outputKey{}, out)
}

// OutputFromContext returns the Output on ctx, or StdOutput() if none is set.
func OutputFromContext(ctx context.Context) *Output {
	if out, ok := ctx.Value(outputKey{}).(*Output); ok {
		return out
	}
	return StdOutput()
}

// Printf writes to the current context's stdout.
func Printf(ctx context.Context, format string, args ...any) {
	fmt.Fprintf(OutputFromContext(ctx).Stdout, format, args...)
}

// Errorf writes to the current context's stderr.
func Errorf(ctx context.Context, format string, args ...any) {
	fmt.Fprintf(OutputFromContext(ctx).Stderr, format, args...)
}

// bufferedOutput captures one task's output in memory so the Executor's
// parallel workers can run without interleaving each other's lines, flushing
// to the parent Output the moment the task finishes. Grounded directly on
// the teacher's pk/composition.go bufferedOutput, generalized from
// per-Runnable buffering to per-task buffering driven by the Executor
// (spec §5's "ordering guarantees" require a task's own action sequence to
// read back coherently, which per-task buffers provide for free).
type bufferedOutput struct {
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	parent *Output
}

func newBufferedOutput(parent *Output) *bufferedOutput {
	return &bufferedOutput{stdout: new(bytes.Buffer), stderr: new(bytes.Buffer), parent: parent}
}

func (b *bufferedOutput) output() *Output {
	return &Output{Stdout: b.stdout, Stderr: b.stderr}
}

func (b *bufferedOutput) flush() {
	if b.stdout.Len() > 0 {
		_, _ = b.parent.Stdout.Write(b.stdout.Bytes())
	}
	if b.stderr.Len() > 0 {
		_, _ = b.parent.Stderr.Write(b.stderr.Bytes())
	}
}
