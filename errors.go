package grove

import "fmt"

// ConfigurationError covers spec §7's configuration-error taxonomy: property
// type mismatches, unknown task selectors, cyclic property or task
// references, missing required properties. Reported before execution begins.
//
// Grounded on alexisbeaulieu97-Streamy's pkg/errors.ValidationError shape.
type ConfigurationError struct {
	Task    string
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Task != "" && e.Field != "":
		return fmt.Sprintf("configuration error: task %s: %s: %s", e.Task, e.Field, e.Message)
	case e.Task != "":
		return fmt.Sprintf("configuration error: task %s: %s", e.Task, e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InputError covers missing declared input files, unreadable inputs, and
// strict globs matching nothing (spec §7). It is attributed to the owning
// task and propagates per the task's failure policy.
type InputError struct {
	Task    string
	Path    string
	Message string
	Err     error
}

func (e *InputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("input error: task %s: %s: %s", e.Task, e.Path, e.Message)
	}
	return fmt.Sprintf("input error: task %s: %s", e.Task, e.Message)
}

func (e *InputError) Unwrap() error { return e.Err }

// TaskFailure is what a non-zero process exit, a raised Callable error, or an
// action write failure becomes at the task boundary (spec §7 "Propagation
// policy"). The Executor decides downstream cancellation from Kind and the
// task's failure policy.
type TaskFailure struct {
	Task     string
	Kind     string // "execution", "input", "internal"
	Message  string
	Upstream string // non-empty if this failure is inherited from a dependency
	Err      error
}

func (e *TaskFailure) Error() string {
	if e.Upstream != "" {
		return fmt.Sprintf("task %s failed: upstream %s failed", e.Task, e.Upstream)
	}
	return fmt.Sprintf("task %s failed: %s", e.Task, e.Message)
}

func (e *TaskFailure) Unwrap() error { return e.Err }

// StoreError marks a Fingerprint Store failure (corrupt record, unwritable
// directory). Per spec §7 these are demoted to warnings by callers: the
// build proceeds, treating the task as having no prior record.
type StoreError struct {
	Task    string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("fingerprint store error for task %s: %s", e.Task, e.Message)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InternalError marks an invariant violation: fatal, exit code 2, carrying
// the offending task path and state for the dump spec §7 requires.
type InternalError struct {
	Task    string
	State   string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: task %s (state=%s): %s", e.Task, e.State, e.Message)
}
