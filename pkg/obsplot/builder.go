package obsplot

import (
	"fmt"
	"time"

	"golang.org/x/net/html"

	"github.com/chosenoffset/obsplot/internal/panicerr"
	"github.com/chosenoffset/obsplot/pkg/obsplot/dom"
	"github.com/chosenoffset/obsplot/pkg/obsplot/namespace"
	"github.com/chosenoffset/obsplot/pkg/obsplot/spec"
)

// Marker classes on the elements the builder produces. The controller finds
// its managed child by PlotClass.
const (
	PlotClass  = "ipyobsplot-plot"
	ErrorClass = "ipyobsplot-error"
)

// RenderObserver receives the outcome of every build.
type RenderObserver interface {
	ObserveRender(d time.Duration, err error)
}

// Builder turns a spec into a displayable container element. It never
// returns an error: failures are rendered in place.
type Builder struct {
	interp   *Interpreter
	compose  namespace.Func
	observer RenderObserver
}

type BuilderOption func(*Builder)

func WithObserver(o RenderObserver) BuilderOption {
	return func(b *Builder) {
		b.observer = o
	}
}

// NewBuilder uses the interpreter's "plot" method as the composer for
// non-element results.
func NewBuilder(interp *Interpreter, opts ...BuilderOption) *Builder {
	b := &Builder{interp: interp}
	b.compose, _ = interp.plot.Lookup("plot")
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildJSON decodes raw and builds it. A malformed spec is rendered as an
// error.
func (b *Builder) BuildJSON(raw []byte) *html.Node {
	start := time.Now()
	node, err := spec.Decode(raw)
	if err != nil {
		b.observe(start, err)
		return b.container(nil, err)
	}
	return b.build(start, node)
}

func (b *Builder) Build(node spec.Node) *html.Node {
	return b.build(time.Now(), node)
}

func (b *Builder) build(start time.Time, node spec.Node) *html.Node {
	var chart *html.Node
	err := panicerr.Guard("render", func() error {
		var err error
		chart, err = b.chart(node)
		return err
	})
	b.observe(start, err)
	return b.container(chart, err)
}

// chart interprets node. A call that already yields an element is shown as
// is; any other call result falls back to an empty plot. Non-call values are
// handed to the composer as its options.
func (b *Builder) chart(node spec.Node) (*html.Node, error) {
	out, err := b.interp.Interpret(node)
	if err != nil {
		return nil, err
	}

	_, isCall := node.(*spec.Call)
	if isCall && dom.IsElement(out) {
		return out.(*html.Node), nil
	}
	if b.compose == nil {
		return nil, &UndefinedMethodError{Namespace: spec.ModulePlot, Method: "plot"}
	}
	var composed any
	if isCall {
		composed, err = b.compose()
	} else {
		composed, err = b.compose(out)
	}
	if err != nil {
		return nil, err
	}
	if !dom.IsElement(composed) {
		return nil, fmt.Errorf("plot returned %T, not an element", composed)
	}
	return composed.(*html.Node), nil
}

func (b *Builder) container(chart *html.Node, err error) *html.Node {
	div := dom.Element("div", "class", PlotClass)
	if err != nil {
		pre := dom.Element("pre", "class", ErrorClass)
		return dom.Append(div, dom.Append(pre, dom.Text(err.Error())))
	}
	return dom.Append(div, chart)
}

func (b *Builder) observe(start time.Time, err error) {
	if b.observer != nil {
		b.observer.ObserveRender(time.Since(start), err)
	}
}
