package grove

import (
	"fmt"
	"strings"
	"sync"
)

// Plugin adds tasks and extensions to a project. Plugin application is
// idempotent per project (spec §4.5): applying the same name twice runs the
// function only once.
type Plugin func(p *Project) error

// Project is a hierarchical namespace owning tasks and sub-projects (spec
// §3 Entity: Project). The root project has no parent and an empty name;
// its path is ":" when displayed, and "" when used as a prefix for
// children's paths.
type Project struct {
	parent    *Project
	name      string
	directory Path
	buildDir  Path

	mu             sync.Mutex
	children       map[string]*Project
	tasks          map[string]*Task
	extensions     map[string]any
	appliedPlugins map[string]bool
}

// NewRootProject creates an unparented project rooted at directory, with
// fingerprint and log state persisted under buildDir.
func NewRootProject(directory, buildDir Path) *Project {
	return &Project{directory: directory, buildDir: buildDir}
}

// Path returns the project's fully-qualified address: "" for root (root is
// displayed as ":" but contributes no segment to child paths), ":a", ":a:b"
// for descendants.
func (p *Project) Path() string {
	if p.parent == nil {
		return ""
	}
	return p.parent.Path() + ":" + p.name
}

// DisplayPath is Path with the root case rendered as ":" instead of "".
func (p *Project) DisplayPath() string {
	if path := p.Path(); path != "" {
		return path
	}
	return ":"
}

// childPath builds the fully-qualified path of a task named name directly
// owned by p.
func (p *Project) childPath(name string) string {
	return p.Path() + ":" + name
}

func (p *Project) Name() string     { return p.name }
func (p *Project) Directory() Path  { return p.directory }
func (p *Project) BuildDir() Path   { return p.buildDir }
func (p *Project) Parent() *Project { return p.parent }

// SubProject creates a child project named name. directory, if empty,
// defaults to name joined onto p's own directory. Project names must be
// unique within their parent (spec §3's Project invariant).
func (p *Project) SubProject(name, directory string) (*Project, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.children == nil {
		p.children = map[string]*Project{}
	}
	if _, exists := p.children[name]; exists {
		return nil, &ConfigurationError{Field: name, Message: "sub-project " + name + " already exists under " + p.DisplayPath()}
	}

	var (
		dir Path
		err error
	)
	if directory == "" {
		dir, err = p.directory.Join(name)
	} else {
		dir, err = NewPath(directory)
	}
	if err != nil {
		return nil, err
	}

	child := &Project{parent: p, name: name, directory: dir, buildDir: p.buildDir}
	p.children[name] = child
	return child, nil
}

// Task declares a new task named name with the given type tag. Task names
// must be unique within a project (spec §3's Task invariant).
func (p *Project) Task(name, typeTag string) (*Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tasks == nil {
		p.tasks = map[string]*Task{}
	}
	if _, exists := p.tasks[name]; exists {
		return nil, &ConfigurationError{Field: name, Message: "task " + name + " already exists in project " + p.DisplayPath()}
	}

	t := newTask(p, name, typeTag)
	p.tasks[name] = t
	return t, nil
}

// Extension returns a plugin-registered opaque record by name.
func (p *Project) Extension(name string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.extensions[name]
	return v, ok
}

// SetExtension registers or replaces an opaque record under name. Plugins
// use this to attach domain-specific configuration to a project.
func (p *Project) SetExtension(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.extensions == nil {
		p.extensions = map[string]any{}
	}
	p.extensions[name] = value
}

// Apply runs plugin against p unless it was already applied under name
// (spec §4.5: "each plugin application is idempotent within a project").
func (p *Project) Apply(name string, plugin Plugin) error {
	p.mu.Lock()
	if p.appliedPlugins == nil {
		p.appliedPlugins = map[string]bool{}
	}
	if p.appliedPlugins[name] {
		p.mu.Unlock()
		return nil
	}
	p.appliedPlugins[name] = true
	p.mu.Unlock()

	return plugin(p)
}

func (p *Project) taskLocked(name string) (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[name]
	return t, ok
}

func (p *Project) childLocked(name string) (*Project, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.children[name]
	return c, ok
}

func (p *Project) root() *Project {
	r := p
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Resolve finds a task reachable from p by name, applying spec §4.5's
// resolution rules: a name with no colon is local to p, walking up through
// enclosing projects if not found there; a name starting with ':' is
// absolute from the root.
func (p *Project) Resolve(name string) (*Task, error) {
	if name == "" {
		return nil, fmt.Errorf("grove: empty task selector")
	}
	if strings.HasPrefix(name, ":") {
		return p.root().resolveAbsolute(name)
	}

	for scope := p; scope != nil; scope = scope.parent {
		if t, ok := scope.taskLocked(name); ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("grove: unknown task selector %q", name)
}

// resolveAbsolute walks segments of a ':'-prefixed path from root, e.g.
// ":lib:compile" → project "lib", task "compile".
func (root *Project) resolveAbsolute(path string) (*Task, error) {
	trimmed := strings.TrimPrefix(path, ":")
	segments := strings.Split(trimmed, ":")
	if len(segments) == 0 || segments[len(segments)-1] == "" {
		return nil, fmt.Errorf("grove: malformed selector %q", path)
	}

	cur := root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := cur.childLocked(seg)
		if !ok {
			return nil, fmt.Errorf("grove: unknown project %q in selector %q", seg, path)
		}
		cur = child
	}

	name := segments[len(segments)-1]
	t, ok := cur.taskLocked(name)
	if !ok {
		return nil, fmt.Errorf("grove: unknown task %q in selector %q", name, path)
	}
	return t, nil
}

// DefaultTasks returns every task in p's subtree with its default flag set
// (spec §4.6: "an empty selector means all default tasks at the root").
func (p *Project) DefaultTasks() []*Task {
	var out []*Task
	p.mu.Lock()
	for _, t := range p.tasks {
		if t.IsDefault() {
			out = append(out, t)
		}
	}
	children := make([]*Project, 0, len(p.children))
	for _, c := range p.children {
		children = append(children, c)
	}
	p.mu.Unlock()

	for _, c := range children {
		out = append(out, c.DefaultTasks()...)
	}
	return out
}

// AllTasks returns every task in p's subtree, used to build the full node
// map the Graph Builder traverses (spec §4.7).
func (p *Project) AllTasks() []*Task {
	var out []*Task
	p.mu.Lock()
	for _, t := range p.tasks {
		out = append(out, t)
	}
	children := make([]*Project, 0, len(p.children))
	for _, c := range p.children {
		children = append(children, c)
	}
	p.mu.Unlock()

	for _, c := range children {
		out = append(out, c.AllTasks()...)
	}
	return out
}
