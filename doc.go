// Package grove implements a task graph engine: lazy, provenance-tracking
// properties, a task dependency DAG with fingerprint-based up-to-date
// checks, and a bounded-parallelism, failure-aware execution scheduler.
//
// A build script is an ordinary Go program. It creates a Context, populates
// its root Project with tasks (each carrying typed Properties, an action
// sequence, and explicit or property-derived dependencies), and calls
// RunMain or Context.Execute to run a selection of them.
package grove
