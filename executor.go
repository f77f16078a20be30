package grove

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grovebuild/grove/internal/fingerprint"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Executor is the bounded-parallelism task scheduler (spec §4.9). Workers
// pull runnable tasks from a scheduler that tracks dependency completion;
// a task is runnable once every dependency is in a terminal state.
type Executor struct {
	store           *fingerprint.Store
	out             *Output
	logger          zerolog.Logger
	parallel        int
	forceRerun      bool
	continueOnError bool
}

// ExecutorOption configures an Executor, following the teacher's functional-
// options idiom (pk's PathOption/ExecutorOption-style constructors).
type ExecutorOption func(*Executor)

// WithParallelism overrides the worker count (default: GOMAXPROCS), matching
// the CLI's --parallel flag and the GROVE_PARALLEL environment variable.
func WithParallelism(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.parallel = n
		}
	}
}

// WithForceRerun skips every task's up-to-date check, matching --force-rerun.
func WithForceRerun(v bool) ExecutorOption {
	return func(e *Executor) { e.forceRerun = v }
}

// WithContinueOnError overrides every task's failure policy to "continue",
// matching --continue-on-error.
func WithContinueOnError(v bool) ExecutorOption {
	return func(e *Executor) { e.continueOnError = v }
}

// WithLogger overrides the Executor's diagnostic logger (default:
// NewLogger(os.Stderr, false)). Engine diagnostics — task start/finish,
// fatal-cascade cancellations, demoted Store errors — go through this
// logger, never through a task's own Output (spec §5's separation of engine
// diagnostics from task console output).
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor constructs an Executor writing task output to out and
// consulting store for up-to-date checks. A nil store disables
// incremental skipping entirely (every task always runs).
func NewExecutor(store *fingerprint.Store, out *Output, opts ...ExecutorOption) *Executor {
	e := &Executor{store: store, out: out, parallel: runtime.GOMAXPROCS(0), logger: NewLogger(os.Stderr, false)}
	for _, opt := range opts {
		opt(e)
	}
	if e.parallel < 1 {
		e.parallel = 1
	}
	return e
}

func (e *Executor) effectivePolicy(t *Task) FailurePolicy {
	if e.continueOnError {
		return FailurePolicyContinue
	}
	return t.FailurePolicy()
}

// TaskResult is one task's final outcome, as printed in the run summary
// (spec §7: "per-task status and elapsed time").
type TaskResult struct {
	Task    string
	State   TaskState
	Elapsed time.Duration
	Err     error
}

// Summary is the Executor's final report for one Run call.
type Summary struct {
	RunID    string
	Results  []TaskResult
	ExitCode int
}

// FirstFailure returns the first result (in execution-set order) whose
// state is StateFailed, or nil if none failed.
func (s *Summary) FirstFailure() *TaskResult {
	for i := range s.Results {
		if s.Results[i].State == StateFailed {
			return &s.Results[i]
		}
	}
	return nil
}

// Run dispatches set's tasks across the worker pool until every task
// reaches a terminal state or ctx is cancelled, then returns a Summary.
func (e *Executor) Run(ctx context.Context, set *ExecutionSet) (*Summary, error) {
	if len(set.Tasks) == 0 {
		// Spec §8 invariant 9: an empty execution set succeeds immediately,
		// with no fingerprint writes.
		return &Summary{ExitCode: 0}, nil
	}

	runID := uuid.New().String()
	logger := e.logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("tasks", len(set.Tasks)).Int("parallel", e.parallel).Msg("run starting")

	sched := newScheduler(set.Tasks)

	// errgroup.WithContext supplies the worker pool's shared cancellation,
	// the same pattern the teacher uses for concurrent Runnable groups
	// (pk/composition.go, group.go's errgroup.WithContext(ctx)). Worker
	// functions here always return nil: a task failure is reported via its
	// TaskResult and the scheduler's own cascade-cancel, not by tearing down
	// every other worker's context.
	g, runCtx := errgroup.WithContext(ctx)

	drainDone := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			sched.drain()
		case <-drainDone:
		}
	}()

	var (
		resultsMu sync.Mutex
		resultsBy = make(map[string]TaskResult, len(set.Tasks))
	)

	for i := 0; i < e.parallel; i++ {
		g.Go(func() error {
			for {
				t, ok := sched.next()
				if !ok {
					return nil
				}

				res := e.runOne(runCtx, t, &logger)
				cascade := res.State == StateFailed && e.effectivePolicy(t) == FailurePolicyFatal
				if cascade {
					logger.Warn().Str("task", t.Path()).Msg("fatal failure, cancelling dependents")
				}
				sched.complete(t, cascade)

				resultsMu.Lock()
				resultsBy[t.Path()] = res
				resultsMu.Unlock()
			}
		})
	}
	_ = g.Wait()
	close(drainDone)

	results := make([]TaskResult, 0, len(set.Tasks))
	for _, t := range set.Tasks {
		if r, ok := resultsBy[t.Path()]; ok {
			results = append(results, r)
			continue
		}
		// Never dispatched: cancelled either by the fatal-failure cascade or
		// by run-level drain (spec §4.9's "on drain, all non-terminal tasks
		// transition to cancelled").
		if !t.State().Terminal() {
			t.setState(StateCancelled)
		}
		results = append(results, TaskResult{Task: t.Path(), State: t.State()})
	}

	userCancelled := ctx.Err() != nil
	exitCode := exitCodeFor(results, userCancelled)
	logger.Info().Int("exit_code", exitCode).Msg("run finished")
	return &Summary{RunID: runID, Results: results, ExitCode: exitCode}, nil
}

// runOne executes a single task: up-to-date check, then (if needed) its
// actions, with output buffered per task so concurrent workers don't
// interleave their lines (spec §5's ordering guarantees).
func (e *Executor) runOne(ctx context.Context, t *Task, logger *zerolog.Logger) TaskResult {
	start := time.Now()
	t.setState(StateQueued)

	if ctx.Err() != nil {
		t.setState(StateCancelled)
		return TaskResult{Task: t.Path(), State: StateCancelled, Elapsed: time.Since(start)}
	}

	if !e.forceRerun && e.store != nil {
		upToDate, err := t.IsUpToDate(e.store)
		if err != nil {
			logger.Warn().Str("task", t.Path()).Err(err).Msg("fingerprint store error, treating as outdated")
		}
		if err == nil && upToDate {
			t.setState(StateSkipped)
			return TaskResult{Task: t.Path(), State: StateSkipped, Elapsed: time.Since(start)}
		}
		// A StoreError here is demoted to "no prior record" (spec §7); fall
		// through to execution.
	}

	logger.Debug().Str("task", t.Path()).Msg("task starting")
	buffered := newBufferedOutput(e.out)
	taskCtx := WithOutput(ctx, buffered.output())

	err := t.Execute(taskCtx, e.store, func(msg string) {
		logger.Warn().Str("task", t.Path()).Msg(msg)
	})
	buffered.flush()

	elapsed := time.Since(start)
	if err != nil {
		logger.Error().Str("task", t.Path()).Dur("elapsed", elapsed).Err(err).Msg("task failed")
		return TaskResult{Task: t.Path(), State: StateFailed, Elapsed: elapsed, Err: err}
	}
	logger.Debug().Str("task", t.Path()).Dur("elapsed", elapsed).Msg("task succeeded")
	return TaskResult{Task: t.Path(), State: StateSucceeded, Elapsed: elapsed}
}

func exitCodeFor(results []TaskResult, userCancelled bool) int {
	if userCancelled {
		return 3
	}
	for _, r := range results {
		if r.State == StateFailed {
			return 2
		}
	}
	return 0
}
