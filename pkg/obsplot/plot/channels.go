package plot

import (
	"github.com/chosenoffset/obsplot/pkg/obsplot/table"
	"github.com/chosenoffset/obsplot/pkg/obsplot/value"
)

// source abstracts over the accepted mark data shapes.
type source struct {
	n     int
	at    func(i int) any
	field func(name string) ([]any, bool)
}

func newSource(data any) source {
	switch d := data.(type) {
	case *table.Table:
		return source{
			n:     d.NumRows(),
			at:    func(i int) any { return d.Row(i) },
			field: d.Column,
		}
	case []any:
		return source{
			n:  len(d),
			at: func(i int) any { return d[i] },
			field: func(name string) ([]any, bool) {
				found := false
				vals := make([]any, len(d))
				for i, item := range d {
					if row, ok := item.(*value.Object); ok {
						if v, ok := row.Get(name); ok {
							vals[i] = v
							found = true
						}
					}
				}
				return vals, found
			},
		}
	default:
		return source{
			at:    func(int) any { return nil },
			field: func(string) ([]any, bool) { return nil, false },
		}
	}
}

func (s source) values(fn func(i int) any) []any {
	out := make([]any, s.n)
	for i := range out {
		out[i] = fn(i)
	}
	return out
}

func (s source) index() []any {
	return s.values(func(i int) any { return float64(i) })
}

func (s source) identity() []any {
	return s.values(s.at)
}

// pairs reports whether every datum is an array of at least two elements.
func (s source) pairs() bool {
	if s.n == 0 {
		return false
	}
	for i := 0; i < s.n; i++ {
		arr, ok := s.at(i).([]any)
		if !ok || len(arr) < 2 {
			return false
		}
	}
	return true
}

func (s source) element(k int) []any {
	return s.values(func(i int) any { return s.at(i).([]any)[k] })
}

// layer holds one mark's resolved channels. A nil channel slice means the
// channel is absent; constants live in the *Const fields.
type layer struct {
	mark *Mark
	n    int

	x, y, fill, stroke, r, text []any

	fillConst, strokeConst string
	rConst                 float64

	xLabel, yLabel string
}

// channel resolves option key against the data. A string naming a field
// selects that field; an array of matching length is used as is; anything
// else is a constant.
func channel(src source, opts *value.Object, key string) (vals []any, constant any, field string) {
	opt, ok := opts.Get(key)
	if !ok || opt == nil {
		return nil, nil, ""
	}
	switch o := opt.(type) {
	case string:
		if vals, ok := src.field(o); ok {
			return vals, nil, o
		}
		return nil, o, ""
	case []any:
		if len(o) == src.n {
			return o, nil, ""
		}
	}
	return nil, opt, ""
}

func repeat(v any, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newLayer(m *Mark) *layer {
	src := newSource(m.Data)
	l := &layer{mark: m, n: src.n, rConst: 3}

	var xc, yc any
	l.x, xc, l.xLabel = channel(src, m.Options, "x")
	l.y, yc, l.yLabel = channel(src, m.Options, "y")
	if l.x == nil && xc != nil {
		l.x = repeat(xc, src.n)
	}
	if l.y == nil && yc != nil {
		l.y = repeat(yc, src.n)
	}

	switch m.Type {
	case "lineY", "areaY", "barY":
		if l.y == nil {
			l.y = src.identity()
		}
		if l.x == nil {
			l.x = src.index()
		}
	case "ruleY":
		if l.y == nil {
			l.y = src.identity()
		}
	case "ruleX":
		if l.x == nil {
			l.x = src.identity()
		}
	case "dot", "line", "text":
		if l.x == nil && l.y == nil {
			if src.pairs() {
				l.x, l.y = src.element(0), src.element(1)
			} else {
				l.x, l.y = src.index(), src.identity()
			}
		}
	}

	var c any
	if l.fill, c, _ = channel(src, m.Options, "fill"); c != nil {
		l.fillConst, _ = c.(string)
	}
	if l.stroke, c, _ = channel(src, m.Options, "stroke"); c != nil {
		l.strokeConst, _ = c.(string)
	}
	if l.r, c, _ = channel(src, m.Options, "r"); c != nil {
		if f, ok := value.Float(c); ok {
			l.rConst = f
		}
	}
	if l.text, c, _ = channel(src, m.Options, "text"); c != nil {
		l.text = repeat(c, src.n)
	}
	if l.text == nil && m.Type == "text" {
		l.text = src.identity()
	}
	return l
}
