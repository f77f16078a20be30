package grove

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/grovebuild/grove/internal/fingerprint"
	"github.com/grovebuild/grove/internal/fsutil"
)

// TaskState is a node in the one-way state machine from spec §3: each
// transition below only ever moves forward, never back.
type TaskState int

const (
	StateUnconfigured TaskState = iota
	StateConfigured
	StateQueued
	StateRunning
	StateSucceeded
	StateFailed
	StateSkipped
	StateCancelled
)

func (s TaskState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one of the four terminal states a task
// cannot leave.
func (s TaskState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped, StateCancelled:
		return true
	default:
		return false
	}
}

// FailurePolicy decides whether a task's dependents are cancelled when it
// fails (spec §4.9).
type FailurePolicy int

const (
	FailurePolicyFatal FailurePolicy = iota
	FailurePolicyContinue
)

// Task is a named, property-bearing node in the build DAG (spec §3 Entity:
// Task). Construct one via Project.Task, never directly.
type Task struct {
	project *Project
	name    string
	typeTag string

	mu         sync.Mutex
	properties map[string]*property
	propOrder  []string

	inputsProp  Property[Paths]
	outputsProp Property[Paths]

	explicitDeps    map[string]*Task
	actions         []Action
	toolVersionTags []string

	isDefault      bool
	alwaysOutdated bool
	failurePolicy  FailurePolicy
	deadline       time.Duration

	state   TaskState
	inputs  Paths
	outputs Paths
	deps    []*Task
}

func newTask(project *Project, name, typeTag string) *Task {
	t := &Task{
		project:    project,
		name:       name,
		typeTag:    typeTag,
		properties: map[string]*property{},
	}
	t.inputsProp, _ = getOrDeclareProperty[Paths](t, "inputs", TypePathList)
	t.outputsProp, _ = getOrDeclareProperty[Paths](t, "outputs", TypePathList)
	return t
}

// getOrDeclareProperty implements spec §4.2's "declare or obtain a
// property": the first call for a given name fixes its type; later calls
// with a different type are a configuration error.
func getOrDeclareProperty[T any](t *Task, name string, typ PropertyType) (Property[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.properties[name]; ok {
		if existing.typ != typ {
			return Property[T]{}, &ConfigurationError{
				Task:    t.Path(),
				Field:   name,
				Message: "declared as " + existing.typ.String() + ", cannot redeclare as " + typ.String(),
			}
		}
		return Property[T]{p: existing}, nil
	}

	p := &property{task: t, name: name, typ: typ, state: stateUnset}
	t.properties[name] = p
	t.propOrder = append(t.propOrder, name)
	return Property[T]{p: p}, nil
}

// TaskProperty declares or obtains a typed property on t. This is a
// package-level function, not a method, because Go method sets cannot carry
// their own type parameters.
func TaskProperty[T any](t *Task, name string, typ PropertyType) (Property[T], error) {
	return getOrDeclareProperty[T](t, name, typ)
}

// Path returns the task's fully-qualified address, e.g. ":lib:compile".
func (t *Task) Path() string { return t.project.childPath(t.name) }

// Name returns the task's local (unqualified) name.
func (t *Task) Name() string { return t.name }

// TypeTag returns the task's declared type tag (e.g. "compile", "run").
func (t *Task) TypeTag() string { return t.typeTag }

// Project returns the task's owning project.
func (t *Task) Project() *Project { return t.project }

// InputsProperty and OutputsProperty expose the two well-known properties
// every task carries, used to compute the derived input/output sets.
func (t *Task) InputsProperty() Property[Paths]  { return t.inputsProp }
func (t *Task) OutputsProperty() Property[Paths] { return t.outputsProp }

// DependsOn adds an explicit dependency edge. Self- and cycle-creating
// edges are not rejected here; they are caught at graph-build time (spec
// §4.4).
func (t *Task) DependsOn(other *Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.explicitDeps == nil {
		t.explicitDeps = map[string]*Task{}
	}
	t.explicitDeps[other.Path()] = other
}

// DoFirst prepends action to the task's action sequence.
func (t *Task) DoFirst(a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append([]Action{a}, t.actions...)
}

// DoLast appends action to the task's action sequence.
func (t *Task) DoLast(a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append(t.actions, a)
}

// SetFailurePolicy overrides the default fatal failure policy.
func (t *Task) SetFailurePolicy(p FailurePolicy) { t.failurePolicy = p }
func (t *Task) FailurePolicy() FailurePolicy     { return t.failurePolicy }

// SetAlwaysOutdated marks the task as always needing execution, skipping
// the up-to-date check entirely.
func (t *Task) SetAlwaysOutdated(v bool) { t.alwaysOutdated = v }
func (t *Task) AlwaysOutdated() bool     { return t.alwaysOutdated }

func (t *Task) SetDefault(v bool) { t.isDefault = v }
func (t *Task) IsDefault() bool   { return t.isDefault }

// SetDeadline bounds how long the task's actions may run before the
// context passed to them is cancelled, escalating to SIGKILL the same way
// an Execute action's own waitDelay does (spec §5's optional best-effort
// per-task deadline). Zero, the default, means no deadline.
func (t *Task) SetDeadline(d time.Duration) { t.deadline = d }
func (t *Task) Deadline() time.Duration     { return t.deadline }

// SetToolVersionTags attaches version strings to the task's hash, so a
// toolchain upgrade invalidates every task's fingerprint without touching
// its inputs or outputs.
func (t *Task) SetToolVersionTags(tags ...string) { t.toolVersionTags = tags }

func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) setState(s TaskState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Inputs and Outputs return the derived file sets computed by Configure
// (spec §3's "Derived attributes").
func (t *Task) Inputs() Paths {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputs
}

func (t *Task) Outputs() Paths {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outputs
}

// Dependencies returns the union of explicit and lineage-derived edges,
// populated by Configure.
func (t *Task) Dependencies() []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deps
}

// ID and DependencyIDs let *Task serve directly as a dag.Node: the graph
// builder (internal/dag) never needs its own task-address bookkeeping.
func (t *Task) ID() string { return t.Path() }

func (t *Task) DependencyIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.deps))
	for _, d := range t.deps {
		ids = append(ids, d.Path())
	}
	return ids
}

// Configure resolves the task's property graph: it evaluates every set
// property (populating lineage), derives implicit dependencies from that
// lineage (spec §4.2), and assembles the final inputs/outputs/dependency
// sets (spec §3). Idempotent: a task past StateUnconfigured is left alone,
// so tasks reachable from more than one root configure exactly once.
func (t *Task) Configure(stack *evalStack) error {
	t.mu.Lock()
	alreadyConfigured := t.state != StateUnconfigured
	t.mu.Unlock()
	if alreadyConfigured {
		return nil
	}

	outputs, err := evalPathList(t.outputsProp, stack)
	if err != nil {
		return err
	}

	declaredInputs, err := evalPathList(t.inputsProp, stack)
	if err != nil {
		return err
	}

	t.mu.Lock()
	propOrder := append([]string(nil), t.propOrder...)
	props := make(map[string]*property, len(t.properties))
	for k, v := range t.properties {
		props[k] = v
	}
	explicit := make(map[string]*Task, len(t.explicitDeps))
	for k, v := range t.explicitDeps {
		explicit[k] = v
	}
	t.mu.Unlock()

	lineageOwners := map[*Task]bool{}
	for _, name := range propOrder {
		p := props[name]
		if p.state == stateUnset {
			continue
		}
		if _, err := p.evaluate(stack); err != nil {
			return err
		}
		for _, lp := range p.lineage {
			if lp.task != nil && lp.task != t {
				lineageOwners[lp.task] = true
			}
		}
	}

	deps := make(map[string]*Task, len(explicit)+len(lineageOwners))
	for path, dep := range explicit {
		deps[path] = dep
	}
	for dep := range lineageOwners {
		deps[dep.Path()] = dep
	}

	inputs := append(Paths(nil), declaredInputs...)
	for _, dep := range deps {
		depOutputs, err := evalPathList(dep.outputsProp, stack)
		if err != nil {
			return err
		}
		inputs = append(inputs, depOutputs...)
	}

	depList := make([]*Task, 0, len(deps))
	for _, dep := range deps {
		depList = append(depList, dep)
	}
	sort.Slice(depList, func(i, j int) bool { return depList[i].Path() < depList[j].Path() })

	t.mu.Lock()
	t.inputs = dedupeSortPaths(inputs)
	t.outputs = dedupeSortPaths(outputs)
	t.deps = depList
	t.state = StateConfigured
	t.mu.Unlock()
	return nil
}

func evalPathList(pr Property[Paths], stack *evalStack) (Paths, error) {
	if !pr.IsSet() {
		return nil, nil
	}
	return pr.Get(stack)
}

func dedupeSortPaths(paths Paths) Paths {
	seen := make(map[string]bool, len(paths))
	out := make(Paths, 0, len(paths))
	for _, p := range paths {
		if seen[p.String()] {
			continue
		}
		seen[p.String()] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// taskHash hashes the action sequence, sorted input paths, sorted output
// paths, and tool-version tags (spec §3's Fingerprint Record task_hash).
func (t *Task) taskHash() (fsutil.Digest, error) {
	var parts [][]byte
	for _, a := range t.actions {
		parts = append(parts, []byte(a.fingerprintKey()))
	}
	for _, p := range t.inputs {
		parts = append(parts, []byte(p.String()))
	}
	for _, p := range t.outputs {
		parts = append(parts, []byte(p.String()))
	}
	for _, v := range t.toolVersionTags {
		parts = append(parts, []byte(v))
	}
	return fsutil.HashBytes(parts...), nil
}

// IsUpToDate implements spec §4.4's ordered up-to-date check: always-
// outdated short-circuits false; otherwise task-hash, then every input
// digest, then every output's existence and digest must match the stored
// record.
func (t *Task) IsUpToDate(store *fingerprint.Store) (bool, error) {
	if t.alwaysOutdated {
		return false, nil
	}

	rec, err := store.Get(t.Path())
	if err != nil {
		return false, &StoreError{Task: t.Path(), Message: "reading fingerprint record", Err: err}
	}
	if rec == nil {
		return false, nil
	}

	hash, err := t.taskHash()
	if err != nil {
		return false, err
	}
	if rec.TaskHash != string(hash) {
		return false, nil
	}

	storedInputs := make(map[string]string, len(rec.Inputs))
	for _, e := range rec.Inputs {
		storedInputs[e.Path] = e.Digest
	}
	for _, in := range t.inputs {
		digest, err := fsutil.HashFile(in.String())
		if err != nil {
			if errors.Is(err, fsutil.ErrAbsent) {
				return false, nil
			}
			return false, err
		}
		want, ok := storedInputs[in.String()]
		if !ok || want != string(digest) {
			return false, nil
		}
	}

	storedOutputs := make(map[string]string, len(rec.Outputs))
	for _, e := range rec.Outputs {
		storedOutputs[e.Path] = e.Digest
	}
	for _, out := range t.outputs {
		digest, err := fsutil.HashFile(out.String())
		if err != nil {
			return false, nil
		}
		want, ok := storedOutputs[out.String()]
		if !ok || want != string(digest) {
			return false, nil
		}
	}

	return true, nil
}

// Execute runs the task's actions in declaration order, aborting on the
// first failure, and persists a Fingerprint Record on success (spec §4.4).
// A nil store skips persistence (used by tests that don't care about
// incrementality). onWarning, if non-nil, receives non-fatal diagnostics —
// undeclared-output notices (spec §5) and a fingerprint record that could
// not be built or saved, which does not fail the task — and may be nil.
func (t *Task) Execute(ctx context.Context, store *fingerprint.Store, onWarning func(string)) error {
	t.setState(StateRunning)
	ctx = withTask(ctx, t)
	start := time.Now()

	if t.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.deadline)
		defer cancel()
	}

	before := snapshotOutputDirs(t.outputs)

	for _, a := range t.actions {
		if err := a.run(ctx); err != nil {
			t.setState(StateFailed)
			return &TaskFailure{Task: t.Path(), Kind: "execution", Message: err.Error(), Err: err}
		}
	}

	if onWarning != nil {
		for _, extra := range undeclaredOutputs(before, t.outputs) {
			onWarning("task " + t.Path() + " wrote undeclared output " + extra)
		}
	}

	duration := time.Since(start)

	if store != nil {
		rec, err := t.buildRecord(duration)
		if err == nil {
			err = store.Put(t.Path(), rec)
		}
		if err != nil && onWarning != nil {
			// Demoted to a warning per spec §7: the task still succeeded.
			storeErr := &StoreError{Task: t.Path(), Message: "saving fingerprint record", Err: err}
			onWarning(storeErr.Error() + ": " + err.Error())
		}
	}

	t.setState(StateSucceeded)
	return nil
}

func (t *Task) buildRecord(duration time.Duration) (*fingerprint.Record, error) {
	hash, err := t.taskHash()
	if err != nil {
		return nil, err
	}

	inputs, err := digestEntries(t.inputs)
	if err != nil {
		return nil, err
	}
	outputs, err := digestEntries(t.outputs)
	if err != nil {
		return nil, err
	}

	return &fingerprint.Record{
		TaskHash:    string(hash),
		Inputs:      inputs,
		Outputs:     outputs,
		DurationMS:  uint64(duration.Milliseconds()),
		CompletedAt: time.Now(),
	}, nil
}

func digestEntries(paths Paths) ([]fingerprint.FileDigest, error) {
	entries := make([]fingerprint.FileDigest, 0, len(paths))
	for _, p := range paths {
		digest, err := fsutil.HashFile(p.String())
		if err != nil {
			if errors.Is(err, fsutil.ErrAbsent) {
				continue
			}
			return nil, err
		}
		entries = append(entries, fingerprint.FileDigest{Path: p.String(), Digest: string(digest)})
	}
	fingerprint.SortEntries(entries)
	return entries, nil
}

// snapshotOutputDirs lists the regular files present, before a task runs, in
// every directory containing a declared output. Only those directories are
// scanned — not the whole project tree — so a task whose outputs share a
// directory with unrelated, pre-existing files isn't flagged for files it
// never touched.
func snapshotOutputDirs(outputs Paths) map[string]bool {
	seen := map[string]bool{}
	for _, dir := range outputDirs(outputs) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				seen[filepath.Join(dir, e.Name())] = true
			}
		}
	}
	return seen
}

// undeclaredOutputs diffs a post-run directory listing against before and
// the task's declared outputs, returning paths that appeared without being
// declared. Grounded on the teacher's pk/exec.go containsNotice/markWarning
// pattern, generalized from stdout text scanning to a file-set rescan (spec
// §5: "a task that writes files outside its declared outputs produces a
// non-failing warning").
func undeclaredOutputs(before map[string]bool, outputs Paths) []string {
	declared := map[string]bool{}
	for _, p := range outputs {
		declared[p.String()] = true
	}

	var extra []string
	for _, dir := range outputDirs(outputs) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if before[path] || declared[path] {
				continue
			}
			extra = append(extra, path)
		}
	}
	sort.Strings(extra)
	return extra
}

func outputDirs(outputs Paths) []string {
	seen := map[string]bool{}
	var dirs []string
	for _, p := range outputs {
		dir := filepath.Dir(p.String())
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}

// taskKey is the context key carrying the currently-executing task, read by
// Callable actions that need their own task path (spec §5: tasks may only
// communicate via declared outputs, never by inspecting siblings, so this
// exposes identity only, never other tasks' state).
type taskKey struct{}

func withTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskKey{}, t)
}

func taskFromContext(ctx context.Context) *Task {
	t, _ := ctx.Value(taskKey{}).(*Task)
	return t
}
