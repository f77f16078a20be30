package grove

import (
	gocontext "context"
	"fmt"

	"github.com/grovebuild/grove/internal/fingerprint"
)

// Context is the top-level owner of all projects and the executor for one
// build invocation (spec §3 Entity: Context). A Context is self-contained
// and must be explicitly created; there is no hidden singleton (spec §9's
// "Global/module-level state" design note), so tests may construct as many
// as they like.
type Context struct {
	root   *Project
	config *Config
	store  *fingerprint.Store
	out    *Output
}

// NewContext creates a Context rooted at directory. cfg may be nil, in
// which case LoadConfig() supplies it (grove.toml + GROVE_* environment
// variables layered over defaults).
func NewContext(directory string, cfg *Config) (*Context, error) {
	if cfg == nil {
		cfg = LoadConfig()
	}

	dir, err := NewPath(directory)
	if err != nil {
		return nil, fmt.Errorf("grove: resolving project directory: %w", err)
	}
	buildDir, err := NewPath(cfg.BuildDir)
	if err != nil {
		return nil, fmt.Errorf("grove: resolving build directory: %w", err)
	}

	store, err := fingerprint.Open(buildDir.String())
	if err != nil {
		return nil, fmt.Errorf("grove: opening fingerprint store: %w", err)
	}

	return &Context{
		root:   NewRootProject(dir, buildDir),
		config: cfg,
		store:  store,
		out:    StdOutput(),
	}, nil
}

// Root returns the Context's root project, the entry point for a build
// script to populate with tasks and sub-projects.
func (c *Context) Root() *Project { return c.root }

// Config returns the Context's resolved configuration.
func (c *Context) Config() *Config { return c.config }

// SetOutput overrides where task and engine output is written; the default
// is the real process stdout/stderr.
func (c *Context) SetOutput(out *Output) { c.out = out }

// Resolve resolves selector against the root project (spec §4.6's
// `resolve(selector) -> Task`).
func (c *Context) Resolve(selector string) (*Task, error) {
	return c.root.Resolve(selector)
}

// PrepareExecution configures every task reachable from the root project,
// resolves selectors into root tasks (falling back to the root's default
// tasks when selectors is empty, per spec §4.6), and returns the resulting
// ExecutionSet. This is where a Project's tasks are frozen (spec §3's
// Project lifecycle: "finalized at Context.prepare_execution()").
func (c *Context) PrepareExecution(selectors []string) (*ExecutionSet, error) {
	stack := newEvalStack()
	all := c.root.AllTasks()
	for _, t := range all {
		if err := t.Configure(stack); err != nil {
			return nil, err
		}
	}

	var roots []*Task
	if len(selectors) == 0 {
		roots = c.root.DefaultTasks()
	} else {
		for _, sel := range selectors {
			t, err := c.Resolve(sel)
			if err != nil {
				return nil, &ConfigurationError{Message: err.Error()}
			}
			roots = append(roots, t)
		}
	}

	return BuildExecutionSet(roots, all)
}

// Execute prepares selectors and runs the resulting execution set to
// completion (spec §6's `ctx.execute(selectors?)`).
func (c *Context) Execute(ctx gocontext.Context, selectors []string, opts ...ExecutorOption) (*Summary, error) {
	set, err := c.PrepareExecution(selectors)
	if err != nil {
		return nil, err
	}

	// The configured worker count comes first so an explicit
	// WithParallelism in opts (the CLI's --parallel) overrides it.
	opts = append([]ExecutorOption{WithParallelism(c.config.Parallel)}, opts...)
	exec := NewExecutor(c.store, c.out, opts...)
	return exec.Run(ctx, set)
}

// Store exposes the Context's Fingerprint Store handle for callers that
// need direct access (e.g. the `grove plan` command checking stored
// fingerprints without running a build).
func (c *Context) Store() *fingerprint.Store { return c.store }
