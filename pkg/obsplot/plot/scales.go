package plot

import (
	"math"

	"github.com/chosenoffset/obsplot/pkg/obsplot/d3"
	"github.com/chosenoffset/obsplot/pkg/obsplot/value"
)

type tick struct {
	pos   float64
	label string
}

type scale interface {
	// Map returns the position of v, or false if v has none.
	Map(v any) (float64, bool)
	Bandwidth() float64
	Ticks() []tick
}

type linearScale struct {
	d0, d1, r0, r1 float64
	count          int
}

func (s *linearScale) Map(v any) (float64, bool) {
	f, ok := value.Float(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return s.r0 + (f-s.d0)/(s.d1-s.d0)*(s.r1-s.r0), true
}

func (s *linearScale) Bandwidth() float64 { return 0 }

func (s *linearScale) Ticks() []tick {
	var out []tick
	for _, t := range d3.Ticks(s.d0, s.d1, s.count) {
		pos, _ := s.Map(t)
		out = append(out, tick{pos: pos, label: value.Label(t)})
	}
	return out
}

// ordinalScale places distinct values on evenly spaced bands, or on points
// when bw is zero.
type ordinalScale struct {
	domain []string
	index  map[string]int
	r0     float64
	step   float64
	bw     float64
	offset float64
}

func newOrdinalScale(domain []string, r0, r1 float64, band bool) *ordinalScale {
	s := &ordinalScale{domain: domain, index: make(map[string]int, len(domain)), r0: r0}
	for i, d := range domain {
		s.index[d] = i
	}
	n := float64(len(domain))
	if n == 0 {
		return s
	}
	if band {
		const padding = 0.1
		s.step = (r1 - r0) / (n + padding)
		s.bw = s.step * (1 - padding)
		s.offset = s.step * padding
	} else {
		s.step = (r1 - r0) / n
		s.offset = s.step / 2
	}
	return s
}

func (s *ordinalScale) Map(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := s.index[value.Label(v)]
	if !ok {
		return 0, false
	}
	return s.r0 + s.offset + float64(i)*s.step, true
}

func (s *ordinalScale) Bandwidth() float64 { return s.bw }

func (s *ordinalScale) Ticks() []tick {
	out := make([]tick, len(s.domain))
	for i, d := range s.domain {
		pos, _ := s.Map(d)
		out[i] = tick{pos: pos + s.bw/2, label: d}
	}
	return out
}

// scaleOptions reads the per-axis option, accepting an object or a Plot.scale
// result.
func scaleOptions(opts *value.Object, key string) *value.Object {
	v, ok := opts.Get(key)
	if !ok {
		return value.NewObject()
	}
	switch o := v.(type) {
	case *value.Object:
		return o
	case *Scale:
		return o.Options
	default:
		return value.NewObject()
	}
}

// buildScale chooses a scale type for vals and fits it to [r0, r1].
// It returns nil when there is nothing to show on this axis.
func buildScale(opts *value.Object, vals []any, band, zero bool, r0, r1 float64) scale {
	kind, _ := opts.String("type")
	domain, hasDomain := opts.Get("domain")
	domainArr, _ := domain.([]any)
	if len(vals) == 0 && !hasDomain {
		return nil
	}
	if kind == "" {
		switch {
		case band:
			kind = "band"
		case len(vals) > 0 && allNumeric(vals), len(vals) == 0 && allNumeric(domainArr):
			kind = "linear"
		default:
			kind = "point"
		}
	}

	count := int(math.Abs(r1-r0) / 80)
	if r0 > r1 {
		count = int(math.Abs(r1-r0) / 35)
	}
	if count < 2 {
		count = 2
	}
	if count > d3.MaxTickCount {
		count = d3.MaxTickCount
	}

	switch kind {
	case "band", "point":
		labels := distinct(vals)
		if hasDomain {
			labels = distinct(domainArr)
		}
		return newOrdinalScale(labels, r0, r1, kind == "band")
	default:
		nums, _ := value.Floats(vals)
		if zero {
			nums = append(nums, 0)
		}
		if hasDomain {
			nums, _ = value.Floats(domainArr)
		}
		d0, d1, ok := d3.Extent(nums)
		if !ok {
			d0, d1 = 0, 1
		}
		if d0 == d1 {
			d0, d1 = d0-1, d1+1
		}
		if nice, _ := opts.Get("nice"); nice == true {
			if inc := d3.TickIncrement(d0, d1, count); inc > 0 {
				d0 = math.Floor(d0/inc) * inc
				d1 = math.Ceil(d1/inc) * inc
			}
		}
		return &linearScale{d0: d0, d1: d1, r0: r0, r1: r1, count: count}
	}
}

func allNumeric(vals []any) bool {
	seen := false
	for _, v := range vals {
		if v == nil {
			continue
		}
		if _, ok := value.Float(v); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func distinct(vals []any) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		if v == nil {
			continue
		}
		l := value.Label(v)
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

var tableau10 = []string{
	"#4e79a7", "#f28e2c", "#e15759", "#76b7b2", "#59a14f",
	"#edc949", "#af7aa1", "#ff9da7", "#9c755f", "#bab0ab",
}

// colorScale assigns palette colors to distinct values in order of first
// appearance across all layers.
type colorScale struct {
	index map[string]int
}

func newColorScale(channels ...[]any) *colorScale {
	c := &colorScale{index: make(map[string]int)}
	for _, ch := range channels {
		for _, l := range distinct(ch) {
			if _, ok := c.index[l]; !ok {
				c.index[l] = len(c.index)
			}
		}
	}
	return c
}

func (c *colorScale) Color(v any) string {
	if v == nil {
		return "none"
	}
	i, ok := c.index[value.Label(v)]
	if !ok {
		return "currentColor"
	}
	return tableau10[i%len(tableau10)]
}
