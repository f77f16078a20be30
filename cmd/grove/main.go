// Command grove is a sample build script: a Go program that wires up a
// Context's root project and hands control to grove.RunMain. Real build
// scripts import grove and contrib plugins directly like this one does;
// this binary exists so `go run ./cmd/grove` has something runnable out of
// the box.
package main

import (
	"github.com/grovebuild/grove"
	"github.com/grovebuild/grove/contrib/shell"
)

func main() {
	grove.RunMain(build)
}

func build(ctx *grove.Context) error {
	p, err := ctx.Root().SubProject("p", "")
	if err != nil {
		return err
	}

	return p.Apply("shell-example", shell.Plugin(
		[]shell.WriteFileSpec{
			{Name: "write", Path: "out.py", Content: "print(42)\n"},
		},
		[]shell.ExecSpec{
			{
				Name:           "run",
				Argv:           []string{"python3", "out.py"},
				Inputs:         []string{"out.py"},
				AlwaysOutdated: true,
				DependsOn:      []string{":p:write"},
				Default:        true,
			},
		},
	))
}
