package plot

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/chosenoffset/obsplot/pkg/obsplot/d3"
	"github.com/chosenoffset/obsplot/pkg/obsplot/dom"
	"github.com/chosenoffset/obsplot/pkg/obsplot/value"
)

const (
	defaultWidth  = 640
	defaultHeight = 400
)

// MaxDimension bounds the plot size and margins, in pixels.
const MaxDimension = 100_000

type frame struct {
	width, height                                    float64
	marginTop, marginRight, marginBottom, marginLeft float64
}

func newFrame(opts *value.Object) (frame, error) {
	f := frame{
		width:        defaultWidth,
		marginTop:    20,
		marginRight:  20,
		marginBottom: 30,
		marginLeft:   40,
	}
	if w, ok := opts.Float("width"); ok && w > 0 {
		f.width = w
	}
	switch h, ok := opts.Float("height"); {
	case ok && h > 0:
		f.height = h
	default:
		if ar, ok := opts.Float("aspectRatio"); ok && ar > 0 {
			f.height = math.Round(f.width / ar)
		} else {
			f.height = defaultHeight
		}
	}
	if m, ok := opts.Float("margin"); ok {
		f.marginTop, f.marginRight, f.marginBottom, f.marginLeft = m, m, m, m
	}
	for key, dst := range map[string]*float64{
		"marginTop":    &f.marginTop,
		"marginRight":  &f.marginRight,
		"marginBottom": &f.marginBottom,
		"marginLeft":   &f.marginLeft,
	} {
		if m, ok := opts.Float(key); ok {
			*dst = m
		}
	}

	for _, d := range []struct {
		name string
		v    float64
	}{
		{"width", f.width},
		{"height", f.height},
		{"marginTop", f.marginTop},
		{"marginRight", f.marginRight},
		{"marginBottom", f.marginBottom},
		{"marginLeft", f.marginLeft},
	} {
		if math.IsNaN(d.v) || math.Abs(d.v) > MaxDimension {
			return frame{}, fmt.Errorf("plot: %s %v out of range, the limit is %d", d.name, d.v, MaxDimension)
		}
	}
	return f, nil
}

// Render lays out the marks listed in opts and returns the chart element. A
// title or caption wraps the SVG in a figure.
func Render(opts *value.Object) (*html.Node, error) {
	markOpt, _ := opts.Get("marks")
	marks, err := flattenMarks(markOpt, nil)
	if err != nil {
		return nil, err
	}
	layers := make([]*layer, len(marks))
	for i, m := range marks {
		layers[i] = newLayer(m)
	}

	f, err := newFrame(opts)
	if err != nil {
		return nil, err
	}
	xOpts := scaleOptions(opts, "x")
	yOpts := scaleOptions(opts, "y")

	var xVals, yVals, fills, strokes []any
	xBand, yZero := false, false
	for _, l := range layers {
		xVals = append(xVals, l.x...)
		yVals = append(yVals, l.y...)
		fills = append(fills, l.fill...)
		strokes = append(strokes, l.stroke...)
		switch l.mark.Type {
		case "barY":
			xBand, yZero = true, true
		case "areaY":
			yZero = true
		}
	}
	xs := buildScale(xOpts, xVals, xBand, false, f.marginLeft, f.width-f.marginRight)
	ys := buildScale(yOpts, yVals, false, yZero, f.height-f.marginBottom, f.marginTop)
	colors := newColorScale(fills, strokes)

	svg := dom.Element("svg",
		"class", "plot",
		"fill", "currentColor",
		"font-family", "system-ui, sans-serif",
		"font-size", "10",
		"text-anchor", "middle",
		"width", num(f.width),
		"height", num(f.height),
		"viewBox", fmt.Sprintf("0 0 %s %s", num(f.width), num(f.height)),
	)
	if style := styleAttr(opts); style != "" {
		dom.SetAttr(svg, "style", style)
	}

	grid, _ := opts.Get("grid")
	if ys != nil {
		dom.Append(svg, yAxis(ys, f, axisLabel(yOpts, layers, false), grid == true || gridOption(yOpts)))
	}
	if xs != nil {
		dom.Append(svg, xAxis(xs, f, axisLabel(xOpts, layers, true), grid == true || gridOption(xOpts)))
	}
	for _, l := range layers {
		dom.Append(svg, renderLayer(l, xs, ys, colors, f))
	}

	title, _ := opts.String("title")
	caption, _ := opts.String("caption")
	if title == "" && caption == "" {
		return svg, nil
	}
	fig := dom.Element("figure", "class", "plot-figure")
	if title != "" {
		dom.Append(fig, dom.Append(dom.Element("h2"), dom.Text(title)))
	}
	dom.Append(fig, svg)
	if caption != "" {
		dom.Append(fig, dom.Append(dom.Element("figcaption"), dom.Text(caption)))
	}
	return fig, nil
}

func gridOption(opts *value.Object) bool {
	g, _ := opts.Get("grid")
	return g == true
}

func styleAttr(opts *value.Object) string {
	v, ok := opts.Get("style")
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case *value.Object:
		var parts []string
		for _, k := range s.Keys() {
			val, _ := s.Get(k)
			parts = append(parts, fmt.Sprintf("%s: %s", cssName(k), value.Label(val)))
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// cssName turns camelCase keys into CSS property names.
func cssName(k string) string {
	var out strings.Builder
	for _, r := range k {
		if r >= 'A' && r <= 'Z' {
			out.WriteByte('-')
			out.WriteRune(r + ('a' - 'A'))
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

func axisLabel(opts *value.Object, layers []*layer, isX bool) string {
	if label, ok := opts.Get("label"); ok {
		if label == nil {
			return ""
		}
		return value.Label(label)
	}
	for _, l := range layers {
		if isX && l.xLabel != "" {
			return l.xLabel + " →"
		}
		if !isX && l.yLabel != "" {
			return "↑ " + l.yLabel
		}
	}
	return ""
}

func xAxis(s scale, f frame, label string, grid bool) *html.Node {
	g := dom.Element("g", "aria-label", "x-axis", "transform", fmt.Sprintf("translate(0,%s)", num(f.height-f.marginBottom)))
	for _, t := range s.Ticks() {
		if grid {
			dom.Append(g, dom.Element("line", "class", "grid", "stroke", "currentColor", "stroke-opacity", "0.1",
				"x1", num(t.pos), "x2", num(t.pos), "y1", "0", "y2", num(f.marginTop+f.marginBottom-f.height)))
		}
		dom.Append(g,
			dom.Element("line", "stroke", "currentColor", "x1", num(t.pos), "x2", num(t.pos), "y1", "0", "y2", "6"),
			dom.Append(dom.Element("text", "x", num(t.pos), "y", "9", "dy", "0.71em"), dom.Text(t.label)),
		)
	}
	if label != "" {
		dom.Append(g, dom.Append(dom.Element("text", "class", "label", "x", num(f.width-f.marginRight), "y", "27", "text-anchor", "end"), dom.Text(label)))
	}
	return g
}

func yAxis(s scale, f frame, label string, grid bool) *html.Node {
	g := dom.Element("g", "aria-label", "y-axis", "text-anchor", "end", "transform", fmt.Sprintf("translate(%s,0)", num(f.marginLeft)))
	for _, t := range s.Ticks() {
		if grid {
			dom.Append(g, dom.Element("line", "class", "grid", "stroke", "currentColor", "stroke-opacity", "0.1",
				"x1", "0", "x2", num(f.width-f.marginLeft-f.marginRight), "y1", num(t.pos), "y2", num(t.pos)))
		}
		dom.Append(g,
			dom.Element("line", "stroke", "currentColor", "x1", "-6", "x2", "0", "y1", num(t.pos), "y2", num(t.pos)),
			dom.Append(dom.Element("text", "x", "-9", "y", num(t.pos), "dy", "0.32em"), dom.Text(t.label)),
		)
	}
	if label != "" {
		dom.Append(g, dom.Append(dom.Element("text", "class", "label", "x", num(-f.marginLeft), "y", num(f.marginTop-8), "text-anchor", "start"), dom.Text(label)))
	}
	return g
}

// point maps row i of l, centring on bands.
func point(l *layer, i int, xs, ys scale) (x, y float64, ok bool) {
	if xs == nil || ys == nil || l.x == nil || l.y == nil {
		return 0, 0, false
	}
	x, okx := xs.Map(l.x[i])
	y, oky := ys.Map(l.y[i])
	return x + xs.Bandwidth()/2, y + ys.Bandwidth()/2, okx && oky
}

func paint(vals []any, constant, fallback string, i int, colors *colorScale) string {
	switch {
	case vals != nil:
		return colors.Color(vals[i])
	case constant != "":
		return constant
	default:
		return fallback
	}
}

func renderLayer(l *layer, xs, ys scale, colors *colorScale, f frame) *html.Node {
	g := dom.Element("g", "aria-label", l.mark.Type)
	switch l.mark.Type {
	case "dot":
		dom.SetAttr(g, "fill", "none")
		dom.SetAttr(g, "stroke-width", "1.5")
		rmax := maxFloat(l.r)
		for i := 0; i < l.n; i++ {
			x, y, ok := point(l, i, xs, ys)
			if !ok {
				continue
			}
			r := l.rConst
			if l.r != nil {
				v, ok := value.Float(l.r[i])
				if !ok || rmax <= 0 || v < 0 || math.IsInf(v, 0) {
					continue
				}
				r = 8 * math.Sqrt(v/rmax)
			}
			dom.Append(g, dom.Element("circle", "cx", num(x), "cy", num(y), "r", num(r),
				"fill", paint(l.fill, l.fillConst, "none", i, colors),
				"stroke", paint(l.stroke, l.strokeConst, "currentColor", i, colors)))
		}
	case "line", "lineY", "areaY":
		d := pathData(l, xs, ys, l.mark.Type == "areaY", f)
		if d == "" {
			return g
		}
		p := dom.Element("path", "d", d)
		if l.mark.Type == "areaY" {
			dom.SetAttr(p, "fill", firstPaint(l.fill, l.fillConst, colors))
		} else {
			dom.SetAttr(p, "fill", "none")
			dom.SetAttr(p, "stroke", firstPaint(l.stroke, l.strokeConst, colors))
			dom.SetAttr(p, "stroke-width", "1.5")
		}
		dom.Append(g, p)
	case "barY":
		if xs == nil || ys == nil {
			return g
		}
		y0, _ := ys.Map(0.0)
		for i := 0; i < l.n; i++ {
			x, okx := xs.Map(l.x[i])
			y, oky := ys.Map(l.y[i])
			if !okx || !oky {
				continue
			}
			dom.Append(g, dom.Element("rect",
				"x", num(x), "width", num(xs.Bandwidth()),
				"y", num(math.Min(y, y0)), "height", num(math.Abs(y0-y)),
				"fill", paint(l.fill, l.fillConst, "currentColor", i, colors)))
		}
	case "ruleY":
		if ys == nil {
			return g
		}
		for i := 0; i < l.n; i++ {
			y, ok := ys.Map(l.y[i])
			if !ok {
				continue
			}
			dom.Append(g, dom.Element("line", "x1", num(f.marginLeft), "x2", num(f.width-f.marginRight),
				"y1", num(y), "y2", num(y), "stroke", paint(l.stroke, l.strokeConst, "currentColor", i, colors)))
		}
	case "ruleX":
		if xs == nil {
			return g
		}
		for i := 0; i < l.n; i++ {
			x, ok := xs.Map(l.x[i])
			if !ok {
				continue
			}
			x += xs.Bandwidth() / 2
			dom.Append(g, dom.Element("line", "x1", num(x), "x2", num(x),
				"y1", num(f.marginTop), "y2", num(f.height-f.marginBottom), "stroke", paint(l.stroke, l.strokeConst, "currentColor", i, colors)))
		}
	case "text":
		for i := 0; i < l.n; i++ {
			x, y, ok := point(l, i, xs, ys)
			if !ok {
				continue
			}
			dom.Append(g, dom.Append(
				dom.Element("text", "x", num(x), "y", num(y), "dy", "0.32em", "fill", paint(l.fill, l.fillConst, "currentColor", i, colors)),
				dom.Text(value.Label(l.text[i]))))
		}
	case "frame":
		dom.Append(g, dom.Element("rect",
			"x", num(f.marginLeft), "y", num(f.marginTop),
			"width", num(f.width-f.marginLeft-f.marginRight), "height", num(f.height-f.marginTop-f.marginBottom),
			"fill", "none", "stroke", paint(nil, l.strokeConst, "currentColor", 0, colors)))
	}
	return g
}

func firstPaint(vals []any, constant string, colors *colorScale) string {
	if len(vals) > 0 {
		return colors.Color(vals[0])
	}
	if constant != "" {
		return constant
	}
	return "currentColor"
}

// pathData joins consecutive mappable rows; a row that cannot be mapped
// breaks the line. Areas close down to y=0.
func pathData(l *layer, xs, ys scale, area bool, f frame) string {
	type pt struct{ x, y float64 }
	var segments [][]pt
	var cur []pt
	for i := 0; i < l.n; i++ {
		x, y, ok := point(l, i, xs, ys)
		if !ok {
			if len(cur) > 0 {
				segments = append(segments, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, pt{x, y})
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}

	y0 := f.height - f.marginBottom
	if area && ys != nil {
		if v, ok := ys.Map(0.0); ok {
			y0 = v
		}
	}

	var out strings.Builder
	for _, seg := range segments {
		for i, p := range seg {
			if i == 0 {
				out.WriteString("M")
			} else {
				out.WriteString("L")
			}
			out.WriteString(num(p.x) + "," + num(p.y))
		}
		if area {
			last, first := seg[len(seg)-1], seg[0]
			out.WriteString("L" + num(last.x) + "," + num(y0))
			out.WriteString("L" + num(first.x) + "," + num(y0) + "Z")
		}
	}
	return out.String()
}

func maxFloat(vals []any) float64 {
	nums, _ := value.Floats(vals)
	_, hi, ok := d3.Extent(nums)
	if !ok {
		return 0
	}
	return hi
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
