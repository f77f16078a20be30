package grove

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// RunMain is the CLI entry point a build script's main package calls after
// it is ready to populate a Context's root project. This mirrors the
// teacher's pk.RunMain(cfg): the build script is a small Go program that
// imports this package, wires up its own tasks, and hands control here
// (spec §1's "surface build-script language... treated as a producer of
// projects/tasks" — here, the producer is just Go).
func RunMain(build func(ctx *Context) error) {
	if err := runMain(build); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(exitCodeForErr(err))
	}
}

func runMain(build func(ctx *Context) error) error {
	var (
		parallel        int
		forceRerun      bool
		continueOnError bool
	)

	root := &cobra.Command{
		Use:           "grove [selectors...]",
		Short:         "Run the default tasks, or the named selectors",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelectors(cmd.Context(), build, args, parallel, forceRerun, continueOnError)
		},
	}
	root.PersistentFlags().IntVar(&parallel, "parallel", 0, "worker count (default: GROVE_PARALLEL or hardware parallelism)")
	root.PersistentFlags().BoolVar(&forceRerun, "force-rerun", false, "skip up-to-date checks and run every selected task")
	root.PersistentFlags().BoolVar(&continueOnError, "continue-on-error", false, "override every task's failure policy to continue")

	root.AddCommand(newPlanCommand(build))
	root.AddCommand(newGraphCommand(build))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	return root.ExecuteContext(ctx)
}

func runSelectors(ctx context.Context, build func(*Context) error, selectors []string, parallel int, forceRerun, continueOnError bool) error {
	c, err := NewContext(".", nil)
	if err != nil {
		return err
	}
	if err := build(c); err != nil {
		return err
	}
	color.NoColor = c.Config().NoColor

	var opts []ExecutorOption
	if parallel > 0 {
		opts = append(opts, WithParallelism(parallel))
	}
	if forceRerun {
		opts = append(opts, WithForceRerun(true))
	}
	if continueOnError {
		opts = append(opts, WithContinueOnError(true))
	}

	summary, err := c.Execute(ctx, selectors, opts...)
	if err != nil {
		return err
	}

	printSummary(summary)
	if summary.ExitCode != 0 {
		os.Exit(summary.ExitCode)
	}
	return nil
}

func printSummary(s *Summary) {
	for _, r := range s.Results {
		fmt.Printf("%s %s (%s)\n", statusLabel(r.State), r.Task, r.Elapsed.Round(time.Millisecond))
	}
	if f := s.FirstFailure(); f != nil && f.Err != nil {
		fmt.Fprintf(os.Stderr, "\n%s: %v\n", f.Task, f.Err)
	}
}

func statusLabel(s TaskState) string {
	switch s {
	case StateSucceeded:
		return color.GreenString("OK")
	case StateFailed:
		return color.RedString("FAIL")
	case StateSkipped:
		return color.CyanString("SKIP")
	case StateCancelled:
		return color.YellowString("CANCEL")
	default:
		return s.String()
	}
}

func exitCodeForErr(err error) int {
	switch err.(type) {
	case *InternalError:
		return 2
	default:
		return 1
	}
}

// newPlanCommand implements the supplemented `grove plan` subcommand: print
// the execution set and each task's up-to-date status without running
// anything.
func newPlanCommand(build func(ctx *Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [selectors...]",
		Short: "Print the tasks that would run, without executing them",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewContext(".", nil)
			if err != nil {
				return err
			}
			if err := build(c); err != nil {
				return err
			}

			set, err := c.PrepareExecution(args)
			if err != nil {
				return err
			}

			for _, t := range set.Tasks {
				upToDate, _ := t.IsUpToDate(c.Store())
				status := "run"
				if upToDate {
					status = "skip (up to date)"
				}
				fmt.Printf("%-18s %s\n", status, t.Path())
			}
			return nil
		},
	}
}

// graphNodeJSON is the JSON shape `grove graph --json` emits for one node.
type graphNodeJSON struct {
	Task         string   `json:"task"`
	Dependencies []string `json:"dependencies"`
}

// newGraphCommand implements the supplemented `grove graph` subcommand,
// printing the resolved dependency graph in text or JSON form.
func newGraphCommand(build func(ctx *Context) error) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "graph [selectors...]",
		Short: "Print the dependency graph for the given selectors",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewContext(".", nil)
			if err != nil {
				return err
			}
			if err := build(c); err != nil {
				return err
			}

			set, err := c.PrepareExecution(args)
			if err != nil {
				return err
			}

			if asJSON {
				nodes := make([]graphNodeJSON, 0, len(set.Tasks))
				for _, t := range set.Tasks {
					nodes = append(nodes, graphNodeJSON{Task: t.Path(), Dependencies: t.DependencyIDs()})
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(nodes)
			}

			for _, t := range set.Tasks {
				fmt.Printf("%s -> %v\n", t.Path(), t.DependencyIDs())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the graph as JSON")
	return cmd
}
