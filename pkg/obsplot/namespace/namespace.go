package namespace

import (
	"fmt"
	"sort"
)

// Func is a namespace method. It is invoked with no receiver and the realized
// arguments in order.
type Func func(args ...any) (any, error)

// Namespace is a table of named methods. It is populated once with Register
// and only read afterwards.
type Namespace struct {
	name    string
	methods map[string]Func
}

func New(name string) *Namespace {
	return &Namespace{
		name:    name,
		methods: make(map[string]Func),
	}
}

func (n *Namespace) Name() string { return n.name }

// Register adds a method. Registering the same name twice is a programming
// error and panics.
func (n *Namespace) Register(method string, fn Func) {
	if _, exists := n.methods[method]; exists {
		panic(fmt.Sprintf("namespace %s: method %s registered twice", n.name, method))
	}
	n.methods[method] = fn
}

// Lookup resolves method by exact name.
func (n *Namespace) Lookup(method string) (Func, bool) {
	fn, ok := n.methods[method]
	return fn, ok
}

// Methods lists the registered method names, sorted.
func (n *Namespace) Methods() []string {
	names := make([]string, 0, len(n.methods))
	for name := range n.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ArgError reports a bad argument passed to a namespace method.
type ArgError struct {
	Method string
	Index  int
	Reason string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s: argument %d: %s", e.Method, e.Index, e.Reason)
}

// Arity checks that len(args) lies in [min, max]. A negative max means no
// upper bound.
func Arity(method string, args []any, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		if min == max {
			return fmt.Errorf("wrong number of arguments for %s: got=%d, want=%d", method, len(args), min)
		}
		return fmt.Errorf("wrong number of arguments for %s: got=%d", method, len(args))
	}
	return nil
}
