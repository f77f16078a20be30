package grove

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/grovebuild/grove/internal/fsutil"
	"github.com/grovebuild/grove/internal/procutil"
)

// waitDelay is the grace period between SIGINT and SIGKILL for an Execute
// action's child process, grounded on the teacher's pk/exec.go waitDelay.
const waitDelay = 5 * time.Second

// Action is a primitive work unit inside a task (spec §4.3). The three
// built-in variants below satisfy it; Callable is the extension point for
// plugin-contributed work that isn't a file write or a subprocess.
type Action interface {
	// DeclaredInputs and DeclaredOutputs report the files this action reads
	// and writes, beyond whatever WriteFile/Execute already imply.
	DeclaredInputs() Paths
	DeclaredOutputs() Paths
	// run executes the action against ctx, writing to the Output attached to
	// ctx. A non-nil error aborts the remaining actions in the task.
	run(ctx context.Context) error
	// fingerprintKey returns a deterministic string describing the action,
	// folded into the owning task's task_hash (spec §3).
	fingerprintKey() string
}

// WriteFile atomically writes text to path (temp file then rename), per spec
// §4.3's Action table.
type WriteFile struct {
	WritePath Path
	Content   string
}

func (a WriteFile) DeclaredInputs() Paths  { return nil }
func (a WriteFile) DeclaredOutputs() Paths { return Paths{a.WritePath} }

func (a WriteFile) fingerprintKey() string {
	return "writefile:" + a.WritePath.String() + ":" + string(contentDigest(a.Content))
}

func (a WriteFile) run(ctx context.Context) error {
	dir := dirOf(a.WritePath.String())
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write-file: creating parent directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write-file: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(a.Content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write-file: writing %s: %w", a.WritePath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write-file: closing %s: %w", a.WritePath, err)
	}
	if err := os.Rename(tmpPath, a.WritePath.String()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write-file: committing %s: %w", a.WritePath, err)
	}
	return nil
}

func dirOf(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return ""
	}
	return p[:i]
}

// Execute spawns a child process and surfaces its exit code (spec §4.3).
// Inputs and outputs are declared separately by the owning task, since a
// command's file footprint isn't derivable from argv alone.
type Execute struct {
	Argv    []string
	Cwd     Path
	Env     []string
	Stdin   string
	Inputs  Paths
	Outputs Paths
	// Capture, when true, buffers stdout/stderr and only surfaces them on
	// failure, matching the teacher's non-verbose Exec behaviour.
	Capture bool
}

func (a Execute) DeclaredInputs() Paths  { return a.Inputs }
func (a Execute) DeclaredOutputs() Paths { return a.Outputs }

func (a Execute) fingerprintKey() string {
	return "execute:" + strings.Join(a.Argv, "\x1f") + ":" + a.Cwd.String() + ":" +
		strings.Join(a.Env, "\x1f") + ":" + string(contentDigest(a.Stdin))
}

func (a Execute) run(ctx context.Context) error {
	if len(a.Argv) == 0 {
		return fmt.Errorf("execute: empty argv")
	}

	cmd := exec.CommandContext(ctx, a.Argv[0], a.Argv[1:]...)
	if !a.Cwd.IsZero() {
		cmd.Dir = a.Cwd.String()
	}
	if len(a.Env) > 0 {
		cmd.Env = append(os.Environ(), a.Env...)
	}
	if a.Stdin != "" {
		cmd.Stdin = strings.NewReader(a.Stdin)
	} else {
		cmd.Stdin = nil
	}
	cmd.WaitDelay = waitDelay
	procutil.SetGracefulShutdown(cmd)

	out := OutputFromContext(ctx)

	if !a.Capture {
		cmd.Stdout = out.Stdout
		cmd.Stderr = out.Stderr
		return cmd.Run()
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w\n%s", strings.Join(a.Argv, " "), err, buf.String())
	}
	return nil
}

// CallableRecord is the structured argument passed to a Callable action's
// function: the owning task's path and the action's Args. It exposes no
// other task's state (spec §5's "cross-task communication happens only
// through declared output files").
type CallableRecord struct {
	TaskPath string
	Args     map[string]any
}

// Callable invokes an in-process function. fn receives a CallableRecord built
// from Args; a returned error aborts the task's remaining actions. Label
// identifies the callable for task-hash purposes, since function values
// carry no stable identity across runs.
type Callable struct {
	Fn      func(ctx context.Context, rec CallableRecord) error
	Label   string
	Args    map[string]any
	Inputs  Paths
	Outputs Paths
}

func (a Callable) DeclaredInputs() Paths  { return a.Inputs }
func (a Callable) DeclaredOutputs() Paths { return a.Outputs }

func (a Callable) fingerprintKey() string {
	return "callable:" + a.Label
}

func (a Callable) run(ctx context.Context) error {
	if a.Fn == nil {
		return fmt.Errorf("callable: no function set")
	}
	task := taskFromContext(ctx)
	rec := CallableRecord{Args: a.Args}
	if task != nil {
		rec.TaskPath = task.Path()
	}
	return a.Fn(ctx, rec)
}

// contentDigest hashes short in-memory content (file bodies, stdin) for
// fingerprintKey, using the same digest the fsutil package uses for files.
func contentDigest(content string) fsutil.Digest {
	return fsutil.HashBytes([]byte(content))
}
