package grove

import "fmt"

// PropertyType is one of the declared property types from spec §3: string,
// integer, boolean, path, list-of-path, list-of-string, opaque-record.
type PropertyType int

const (
	TypeString PropertyType = iota
	TypeInt
	TypeBool
	TypePath
	TypePathList
	TypeStringList
	TypeRecord
)

func (t PropertyType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	case TypePath:
		return "path"
	case TypePathList:
		return "list-of-path"
	case TypeStringList:
		return "list-of-string"
	case TypeRecord:
		return "opaque-record"
	default:
		return "unknown"
	}
}

func checkType(typ PropertyType, value any) error {
	ok := false
	switch typ {
	case TypeString:
		_, ok = value.(string)
	case TypeInt:
		_, ok = value.(int)
	case TypeBool:
		_, ok = value.(bool)
	case TypePath:
		_, ok = value.(Path)
	case TypePathList:
		_, ok = value.(Paths)
	case TypeStringList:
		_, ok = value.([]string)
	case TypeRecord:
		ok = true // opaque: any shape is accepted
	}
	if !ok {
		return fmt.Errorf("value of type %T does not match declared type %s", value, typ)
	}
	return nil
}

// valueState is one of the four value shapes a property holds (spec §3
// Entity: Property<T>): unset, a literal, a deferred zero-arg producer, or a
// reference to another property.
type valueState int

const (
	stateUnset valueState = iota
	stateLiteral
	stateProducer
	stateReference
)

// property is the untyped core shared by every Property[T]. Lineage edges
// cross property-type boundaries (a string property can read a path
// property's lineage), so the evaluation machinery operates on this
// unexported, non-generic type; Property[T] is a typed view over it.
type property struct {
	task *Task
	name string
	typ  PropertyType

	state    valueState
	literal  any
	producer func() (any, error)
	ref      *property

	memoizedOK bool
	memoized   any
	lineage    []*property
}

func (p *property) invalidate() {
	p.memoizedOK = false
	p.memoized = nil
	p.lineage = nil
}

// evalFrame accumulates the properties read while evaluating one property,
// becoming that property's lineage once evaluation completes.
type evalFrame struct {
	prop    *property
	lineage map[*property]bool
}

// evalStack is the lineage-capturing evaluation stack described in spec
// §4.2: "every get() pushes the current Property onto a thread-local stack;
// nested reads add the currently-topmost Property to the dependency set of
// the nested one's readers." Configuration is single-threaded (spec §5), so
// one evalStack per Context needs no locking.
type evalStack struct {
	frames []*evalFrame
}

func newEvalStack() *evalStack {
	return &evalStack{}
}

func (s *evalStack) top() *evalFrame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *evalStack) onStack(p *property) bool {
	for _, f := range s.frames {
		if f.prop == p {
			return true
		}
	}
	return false
}

// evaluate resolves p's current value, recording p (and everything p
// transitively read) into the lineage of whichever property is currently
// being evaluated higher up the stack. A property re-entering its own
// evaluation is rejected as a cycle (spec §8 invariant 1: lineage(E) never
// contains P for any evaluation E of P).
func (p *property) evaluate(stack *evalStack) (any, error) {
	if stack.onStack(p) {
		return nil, &ConfigurationError{
			Task:    taskPathOf(p.task),
			Field:   p.name,
			Message: "cyclic property reference",
		}
	}

	if caller := stack.top(); caller != nil {
		caller.lineage[p] = true
	}

	if p.memoizedOK {
		if caller := stack.top(); caller != nil {
			for lp := range uniqueSet(p.lineage) {
				caller.lineage[lp] = true
			}
		}
		return p.memoized, nil
	}

	frame := &evalFrame{prop: p, lineage: map[*property]bool{}}
	stack.frames = append(stack.frames, frame)

	var (
		val any
		err error
	)
	switch p.state {
	case stateUnset:
		err = &ConfigurationError{Task: taskPathOf(p.task), Field: p.name, Message: "property is not set"}
	case stateLiteral:
		val = p.literal
	case stateProducer:
		val, err = p.producer()
	case stateReference:
		val, err = p.ref.evaluate(stack)
	}

	stack.frames = stack.frames[:len(stack.frames)-1]
	if err != nil {
		return nil, err
	}

	if err := checkType(p.typ, val); err != nil {
		return nil, &ConfigurationError{Task: taskPathOf(p.task), Field: p.name, Message: err.Error()}
	}

	p.memoized = val
	p.memoizedOK = true
	p.lineage = make([]*property, 0, len(frame.lineage))
	for lp := range frame.lineage {
		p.lineage = append(p.lineage, lp)
	}

	if caller := stack.top(); caller != nil {
		for lp := range frame.lineage {
			caller.lineage[lp] = true
		}
	}

	return val, nil
}

func uniqueSet(props []*property) map[*property]bool {
	m := make(map[*property]bool, len(props))
	for _, p := range props {
		m[p] = true
	}
	return m
}

// taskPathOf is nil-safe so properties created before their owning task is
// fully wired (rare, but cheaper to guard than forbid) still error cleanly.
func taskPathOf(t *Task) string {
	if t == nil {
		return ""
	}
	return t.Path()
}

// Property is a lazily-evaluated, typed, named value owned by a task (spec
// §3 Entity: Property<T>). The zero value is not usable; obtain one via
// TaskProperty.
type Property[T any] struct {
	p *property
}

func newProperty[T any](task *Task, name string, typ PropertyType) Property[T] {
	return Property[T]{p: &property{task: task, name: name, typ: typ, state: stateUnset}}
}

// IsSet reports whether the property has been given a literal, producer, or
// reference value.
func (pr Property[T]) IsSet() bool {
	return pr.p != nil && pr.p.state != stateUnset
}

// Name returns the property's declared name.
func (pr Property[T]) Name() string { return pr.p.name }

// Set assigns a literal value. The type is checked immediately.
func (pr Property[T]) Set(value T) error {
	if err := checkType(pr.p.typ, any(value)); err != nil {
		return &ConfigurationError{Task: taskPathOf(pr.p.task), Field: pr.p.name, Message: err.Error()}
	}
	pr.p.state = stateLiteral
	pr.p.literal = value
	pr.p.invalidate()
	return nil
}

// SetProducer assigns a deferred zero-arg producer. fn is invoked at most
// once, the first time the property is evaluated, and its result is
// memoized for the remainder of the configuration phase.
func (pr Property[T]) SetProducer(fn func() (T, error)) {
	pr.p.state = stateProducer
	pr.p.producer = func() (any, error) { return fn() }
	pr.p.invalidate()
}

// SetFrom assigns a reference to another property of the same declared
// type. Evaluating pr evaluates other and inherits its lineage.
func (pr Property[T]) SetFrom(other Property[T]) {
	pr.p.state = stateReference
	pr.p.ref = other.p
	pr.p.invalidate()
}

// Get evaluates the property against stack, recording lineage. Most callers
// reach this through Task.Configure's shared stack rather than constructing
// an evalStack by hand.
func (pr Property[T]) Get(stack *evalStack) (T, error) {
	var zero T
	val, err := pr.p.evaluate(stack)
	if err != nil {
		return zero, err
	}
	t, ok := val.(T)
	if !ok {
		return zero, &ConfigurationError{
			Task:    taskPathOf(pr.p.task),
			Field:   pr.p.name,
			Message: fmt.Sprintf("evaluated to %T, expected %T", val, zero),
		}
	}
	return t, nil
}

// Lineage returns the owning tasks of every property transitively read the
// last time pr was evaluated, excluding pr's own owner. Returns nil if pr
// has not yet been evaluated.
func (pr Property[T]) Lineage() []*Task {
	if pr.p == nil {
		return nil
	}
	seen := map[*Task]bool{}
	var owners []*Task
	for _, lp := range pr.p.lineage {
		if lp.task == nil || lp.task == pr.p.task || seen[lp.task] {
			continue
		}
		seen[lp.task] = true
		owners = append(owners, lp.task)
	}
	return owners
}
