// Package plot is the plotting namespace. Mark methods build *Mark values and
// the plot composer lays marks out on shared scales and renders them as an SVG
// element tree.
package plot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chosenoffset/obsplot/pkg/obsplot/namespace"
	"github.com/chosenoffset/obsplot/pkg/obsplot/table"
	"github.com/chosenoffset/obsplot/pkg/obsplot/value"
)

// AllowedDefaults lists the plot options that may be given process-wide
// defaults.
var AllowedDefaults = []string{
	"marginTop",
	"marginRight",
	"marginBottom",
	"marginLeft",
	"margin",
	"width",
	"height",
	"aspectRatio",
	"style",
}

// CheckDefaults rejects default keys outside AllowedDefaults.
func CheckDefaults(defaults map[string]any) error {
	var bad []string
	for k := range defaults {
		if !isAllowedDefault(k) {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("invalid plot defaults %s; allowed: %s", strings.Join(bad, ", "), strings.Join(AllowedDefaults, ", "))
	}
	return nil
}

func isAllowedDefault(key string) bool {
	for _, k := range AllowedDefaults {
		if k == key {
			return true
		}
	}
	return false
}

// Mark is a layer description. It is not displayable on its own.
type Mark struct {
	Type    string
	Data    any
	Options *value.Object
}

func (m *Mark) String() string {
	return fmt.Sprintf("Mark(%s)", m.Type)
}

// Scale is the result of Plot.scale: a reusable scale description.
type Scale struct {
	Options *value.Object
}

func (s *Scale) String() string { return "Scale" }

var markTypes = []string{
	"dot",
	"line",
	"lineY",
	"areaY",
	"barY",
	"ruleX",
	"ruleY",
	"text",
}

// Namespace returns the "Plot" method table. defaults fill options that a
// plot call leaves unset; keys must pass CheckDefaults.
func Namespace(defaults map[string]any) *namespace.Namespace {
	ns := namespace.New("Plot")
	for _, kind := range markTypes {
		ns.Register(kind, markMethod(kind))
	}
	ns.Register("frame", frameMethod)
	ns.Register("scale", scaleMethod)
	ns.Register("plot", composer(defaults))
	return ns
}

func markMethod(kind string) namespace.Func {
	return func(args ...any) (any, error) {
		if err := namespace.Arity(kind, args, 0, 2); err != nil {
			return nil, err
		}
		m := &Mark{Type: kind, Options: value.NewObject()}
		if len(args) > 0 {
			if err := checkData(kind, args[0]); err != nil {
				return nil, err
			}
			m.Data = args[0]
		}
		if len(args) > 1 && args[1] != nil {
			opts, ok := args[1].(*value.Object)
			if !ok {
				return nil, &namespace.ArgError{Method: kind, Index: 1, Reason: fmt.Sprintf("options must be an object, got %T", args[1])}
			}
			m.Options = opts
		}
		return m, nil
	}
}

func checkData(kind string, data any) error {
	switch data.(type) {
	case nil, []any, *table.Table:
		return nil
	default:
		return &namespace.ArgError{Method: kind, Index: 0, Reason: fmt.Sprintf("data must be an array or a table, got %T", data)}
	}
}

func frameMethod(args ...any) (any, error) {
	if err := namespace.Arity("frame", args, 0, 1); err != nil {
		return nil, err
	}
	m := &Mark{Type: "frame", Options: value.NewObject()}
	if len(args) == 1 && args[0] != nil {
		opts, ok := args[0].(*value.Object)
		if !ok {
			return nil, &namespace.ArgError{Method: "frame", Index: 0, Reason: fmt.Sprintf("options must be an object, got %T", args[0])}
		}
		m.Options = opts
	}
	return m, nil
}

func scaleMethod(args ...any) (any, error) {
	if err := namespace.Arity("scale", args, 1, 1); err != nil {
		return nil, err
	}
	opts, ok := args[0].(*value.Object)
	if !ok {
		return nil, &namespace.ArgError{Method: "scale", Index: 0, Reason: fmt.Sprintf("options must be an object, got %T", args[0])}
	}
	return &Scale{Options: opts}, nil
}

func composer(defaults map[string]any) namespace.Func {
	return func(args ...any) (any, error) {
		if err := namespace.Arity("plot", args, 0, 1); err != nil {
			return nil, err
		}
		opts := value.NewObject()
		if len(args) == 1 && args[0] != nil {
			o, ok := args[0].(*value.Object)
			if !ok {
				return nil, &namespace.ArgError{Method: "plot", Index: 0, Reason: fmt.Sprintf("options must be an object, got %T", args[0])}
			}
			opts = o
		}
		merged := value.NewObject()
		for _, k := range opts.Keys() {
			v, _ := opts.Get(k)
			merged.Set(k, v)
		}
		for _, k := range AllowedDefaults {
			if v, ok := defaults[k]; ok && !merged.Has(k) {
				merged.Set(k, v)
			}
		}
		return Render(merged)
	}
}

// flattenMarks walks nested mark arrays, skipping nils.
func flattenMarks(v any, out []*Mark) ([]*Mark, error) {
	switch m := v.(type) {
	case nil:
		return out, nil
	case *Mark:
		return append(out, m), nil
	case []any:
		var err error
		for _, item := range m {
			if out, err = flattenMarks(item, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("plot: invalid mark %T", v)
	}
}
