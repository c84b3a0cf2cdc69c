package obsplot

import (
	"fmt"

	"github.com/chosenoffset/obsplot/pkg/obsplot/namespace"
	"github.com/chosenoffset/obsplot/pkg/obsplot/spec"
	"github.com/chosenoffset/obsplot/pkg/obsplot/table"
	"github.com/chosenoffset/obsplot/pkg/obsplot/value"
)

// TableDecoder turns an Arrow IPC payload into a table.
type TableDecoder func(payload []byte) (*table.Table, error)

// Interpreter evaluates spec trees against the "Plot" and "d3" namespaces.
// It holds no mutable state and is safe for concurrent use.
type Interpreter struct {
	plot   *namespace.Namespace
	d3     *namespace.Namespace
	decode TableDecoder
}

type InterpreterOption func(*Interpreter)

// WithDecoder replaces the columnar decoder, table.Decode by default.
func WithDecoder(d TableDecoder) InterpreterOption {
	return func(i *Interpreter) {
		i.decode = d
	}
}

func NewInterpreter(plot, d3 *namespace.Namespace, opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		plot:   plot,
		d3:     d3,
		decode: table.Decode,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Interpreter) Interpret(node spec.Node) (any, error) {
	switch node := node.(type) {
	case nil, *spec.Null:
		return nil, nil

	case *spec.Sequence:
		return i.interpretAll(node.Elements)

	case *spec.DataFrame:
		return i.decode(node.Payload)

	case *spec.Literal:
		return node.Value, nil

	case *spec.Mapping:
		if len(node.Entries) == 0 {
			return value.NewObject(), nil
		}
		return i.interpretMapping(node)

	case *spec.Call:
		return i.interpretCall(node)

	default:
		return nil, fmt.Errorf("unknown node type: %T", node)
	}
}

func (i *Interpreter) interpretAll(nodes []spec.Node) ([]any, error) {
	out := make([]any, len(nodes))
	for idx, n := range nodes {
		v, err := i.Interpret(n)
		if err != nil {
			return nil, err
		}
		out[idx] = v
	}
	return out, nil
}

func (i *Interpreter) interpretMapping(m *spec.Mapping) (*value.Object, error) {
	obj := value.NewObject()
	for _, entry := range m.Entries {
		v, err := i.Interpret(entry.Value)
		if err != nil {
			return nil, err
		}
		obj.Set(entry.Key, v)
	}
	return obj, nil
}

func (i *Interpreter) interpretCall(c *spec.Call) (any, error) {
	fn, err := i.resolve(c.Module, c.Method)
	if err != nil {
		return nil, err
	}
	args, err := i.interpretAll(c.Args)
	if err != nil {
		return nil, err
	}
	return fn(args...)
}

func (i *Interpreter) resolve(module, method string) (namespace.Func, error) {
	var ns *namespace.Namespace
	switch module {
	case spec.ModulePlot:
		ns = i.plot
	case spec.ModuleD3:
		ns = i.d3
	default:
		return nil, &InvalidNamespaceError{Namespace: module}
	}
	fn, ok := ns.Lookup(method)
	if !ok {
		return nil, &UndefinedMethodError{Namespace: module, Method: method}
	}
	return fn, nil
}
