// Package shell is a minimal, non-domain-specific plugin: it registers
// write-file and run tasks from plain specs, the way a build script author
// would wire up a handful of ad hoc tasks without writing a dedicated
// compiler plugin. It exists to exercise Project.Apply's extension point
// (spec §4.5) with the two built-in action kinds, not to model any real
// toolchain.
package shell

import (
	"fmt"

	"github.com/grovebuild/grove"
)

// WriteFileSpec describes one write-file task.
type WriteFileSpec struct {
	Name    string
	Path    string
	Content string
	Default bool
}

// ExecSpec describes one run task.
type ExecSpec struct {
	Name           string
	Argv           []string
	Inputs         []string
	Outputs        []string
	DependsOn      []string
	AlwaysOutdated bool
	Default        bool
}

// Plugin returns a grove.Plugin registering one task per spec. Passed to
// Project.Apply, so applying it twice on the same project is a no-op the
// second time (spec §4.5).
func Plugin(writes []WriteFileSpec, execs []ExecSpec) grove.Plugin {
	return func(p *grove.Project) error {
		for _, w := range writes {
			if err := addWriteFileTask(p, w); err != nil {
				return err
			}
		}
		for _, e := range execs {
			if err := addExecTask(p, e); err != nil {
				return err
			}
		}
		return nil
	}
}

func addWriteFileTask(p *grove.Project, spec WriteFileSpec) error {
	t, err := p.Task(spec.Name, "write-file")
	if err != nil {
		return err
	}

	path, err := grove.NewPath(spec.Path)
	if err != nil {
		return fmt.Errorf("shell: task %s: %w", spec.Name, err)
	}

	if err := t.OutputsProperty().Set(grove.Paths{path}); err != nil {
		return err
	}
	t.DoLast(grove.WriteFile{WritePath: path, Content: spec.Content})
	t.SetDefault(spec.Default)
	return nil
}

func addExecTask(p *grove.Project, spec ExecSpec) error {
	t, err := p.Task(spec.Name, "run")
	if err != nil {
		return err
	}

	inputs, err := toPaths(spec.Inputs)
	if err != nil {
		return fmt.Errorf("shell: task %s: %w", spec.Name, err)
	}
	outputs, err := toPaths(spec.Outputs)
	if err != nil {
		return fmt.Errorf("shell: task %s: %w", spec.Name, err)
	}

	if err := t.InputsProperty().Set(inputs); err != nil {
		return err
	}
	if err := t.OutputsProperty().Set(outputs); err != nil {
		return err
	}

	t.DoLast(grove.Execute{Argv: spec.Argv, Inputs: inputs, Outputs: outputs})
	t.SetAlwaysOutdated(spec.AlwaysOutdated)
	t.SetDefault(spec.Default)

	for _, depName := range spec.DependsOn {
		dep, err := p.Resolve(depName)
		if err != nil {
			return fmt.Errorf("shell: task %s depends_on %s: %w", spec.Name, depName, err)
		}
		t.DependsOn(dep)
	}
	return nil
}

func toPaths(raw []string) (grove.Paths, error) {
	out := make(grove.Paths, 0, len(raw))
	for _, r := range raw {
		p, err := grove.NewPath(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
