package spec

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v7/arrow"

	"github.com/chosenoffset/obsplot/pkg/obsplot/table"
)

// Namespace identifiers understood by the interpreter.
const (
	ModulePlot = "Plot"
	ModuleD3   = "d3"
)

// Plot builds a call into the plotting namespace. Arguments are converted with
// From; an unsupported argument type panics.
func Plot(method string, args ...any) *Call {
	return &Call{Module: ModulePlot, Method: method, Args: mustFromAll(args)}
}

// D3 builds a call into the data namespace. See Plot.
func D3(method string, args ...any) *Call {
	return &Call{Module: ModuleD3, Method: method, Args: mustFromAll(args)}
}

// Object builds a mapping from alternating keys and values, in order.
func Object(kv ...any) *Mapping {
	if len(kv)%2 != 0 {
		panic("spec.Object: odd number of arguments")
	}
	m := &Mapping{}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("spec.Object: key %v is not a string", kv[i]))
		}
		m.Entries = append(m.Entries, Entry{Key: key, Value: mustFrom(kv[i+1])})
	}
	return m
}

// Lit converts a single Go value with From, panicking on unsupported types.
func Lit(v any) Node {
	return mustFrom(v)
}

func Array(elems ...any) *Sequence {
	return &Sequence{Elements: mustFromAll(elems)}
}

// DataFrameFromRecord encodes rec as an Arrow IPC file payload.
func DataFrameFromRecord(rec arrow.Record) (*DataFrame, error) {
	payload, err := table.EncodeRecord(rec)
	if err != nil {
		return nil, err
	}
	return &DataFrame{Payload: payload}, nil
}

// From converts a Go value into a Node. Maps are emitted with sorted keys.
func From(v any) (Node, error) {
	switch t := v.(type) {
	case Node:
		return t, nil
	case nil:
		return &Null{}, nil
	case string, bool, float64:
		return &Literal{Value: t}, nil
	case float32:
		return &Literal{Value: float64(t)}, nil
	case int:
		return &Literal{Value: float64(t)}, nil
	case int64:
		return &Literal{Value: float64(t)}, nil
	case []any:
		return fromSlice(len(t), func(i int) any { return t[i] })
	case []float64:
		return fromSlice(len(t), func(i int) any { return t[i] })
	case []string:
		return fromSlice(len(t), func(i int) any { return t[i] })
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := &Mapping{}
		for _, k := range keys {
			n, err := From(t[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			m.Entries = append(m.Entries, Entry{Key: k, Value: n})
		}
		return m, nil
	case arrow.Record:
		return DataFrameFromRecord(t)
	default:
		return nil, fmt.Errorf("spec: cannot convert %T", v)
	}
}

func fromSlice(n int, at func(int) any) (Node, error) {
	seq := &Sequence{Elements: make([]Node, n)}
	for i := 0; i < n; i++ {
		node, err := From(at(i))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		seq.Elements[i] = node
	}
	return seq, nil
}

func mustFrom(v any) Node {
	n, err := From(v)
	if err != nil {
		panic(err)
	}
	return n
}

func mustFromAll(vs []any) []Node {
	nodes := make([]Node, len(vs))
	for i, v := range vs {
		nodes[i] = mustFrom(v)
	}
	return nodes
}
