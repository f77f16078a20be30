package grove

import (
	"sort"
	"sync"
)

// scheduler tracks which tasks in an ExecutionSet are runnable: every
// dependency in a terminal state. It is the in-memory half of spec §4.9's
// "bounded worker pool" model; Executor.Run owns the goroutines, scheduler
// owns the dependency bookkeeping and the fatal-failure cancellation
// cascade. Workers block on a condition variable rather than a channel so
// that a single completion can wake every idle worker at once, not just
// one (spec §4.9's "waiting for a free worker slot" suspension point).
type scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	remaining  map[string]int
	dependents map[string][]*Task
	ready      []*Task
	cancelled  map[string]bool

	inFlight int
	finished int
	total    int
	drained  bool
}

func newScheduler(tasks []*Task) *scheduler {
	s := &scheduler{
		remaining:  make(map[string]int, len(tasks)),
		dependents: make(map[string][]*Task, len(tasks)),
		cancelled:  make(map[string]bool),
		total:      len(tasks),
	}
	s.cond = sync.NewCond(&s.mu)

	for _, t := range tasks {
		s.remaining[t.Path()] = len(t.Dependencies())
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies() {
			s.dependents[dep.Path()] = append(s.dependents[dep.Path()], t)
		}
	}
	for _, t := range tasks {
		if s.remaining[t.Path()] == 0 {
			s.ready = append(s.ready, t)
		}
	}
	sortTasksByPath(s.ready)
	return s
}

// next blocks until a task is runnable, returning (nil, false) once the run
// is complete or has been drained by a cancellation signal.
func (s *scheduler) next() (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.drained {
			return nil, false
		}
		if len(s.ready) > 0 {
			t := s.ready[0]
			s.ready = s.ready[1:]
			s.inFlight++
			return t, true
		}
		if s.drained || s.finished+s.inFlight >= s.total {
			return nil, false
		}
		s.cond.Wait()
	}
}

// complete records t's terminal outcome. cascadeCancel is set when t failed
// under the fatal policy (the default): every transitive dependent of t is
// marked cancelled without ever being dispatched (spec §4.9).
func (s *scheduler) complete(t *Task, cascadeCancel bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	s.finished++

	if cascadeCancel {
		s.cancelSubtree(t)
		filtered := s.ready[:0]
		for _, r := range s.ready {
			if !s.cancelled[r.Path()] {
				filtered = append(filtered, r)
			}
		}
		s.ready = filtered
	}

	for _, dep := range s.dependents[t.Path()] {
		if s.cancelled[dep.Path()] {
			continue
		}
		s.remaining[dep.Path()]--
		if s.remaining[dep.Path()] <= 0 {
			s.ready = append(s.ready, dep)
		}
	}
	sortTasksByPath(s.ready)
	s.cond.Broadcast()
}

// cancelSubtree marks every not-yet-terminal transitive dependent of t as
// cancelled. A dependent that already reached a terminal state through some
// other path (e.g. it ran under a continue policy before t failed) is left
// alone.
func (s *scheduler) cancelSubtree(t *Task) {
	for _, dep := range s.dependents[t.Path()] {
		if s.cancelled[dep.Path()] {
			continue
		}
		if dep.State().Terminal() {
			s.cancelled[dep.Path()] = true
			continue
		}
		s.cancelled[dep.Path()] = true
		dep.setState(StateCancelled)
		s.finished++
		s.cancelSubtree(dep)
	}
}

// drain stops new dispatch: in-flight tasks finish or are signalled via
// context cancellation, but no further ready task is handed to a worker
// (spec §4.9's cancellation semantics).
func (s *scheduler) drain() {
	s.mu.Lock()
	s.drained = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func sortTasksByPath(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Path() < tasks[j].Path() })
}
