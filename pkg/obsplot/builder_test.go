package obsplot

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/chosenoffset/obsplot/pkg/obsplot/d3"
	"github.com/chosenoffset/obsplot/pkg/obsplot/dom"
	"github.com/chosenoffset/obsplot/pkg/obsplot/namespace"
	"github.com/chosenoffset/obsplot/pkg/obsplot/plot"
	"github.com/chosenoffset/obsplot/pkg/obsplot/spec"
)

type observed struct {
	mu     sync.Mutex
	count  int
	errors []error
}

func (o *observed) ObserveRender(d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.count++
	if err != nil {
		o.errors = append(o.errors, err)
	}
}

func newTestBuilder(opts ...BuilderOption) *Builder {
	return NewBuilder(newTestInterpreter(), opts...)
}

// sole asserts that n is a plot container with exactly one element child and
// returns that child.
func sole(t *testing.T, n *html.Node) *html.Node {
	t.Helper()
	require.Equal(t, "div", n.Data)
	require.True(t, dom.HasClass(n, PlotClass))
	children := dom.Children(n)
	require.Len(t, children, 1)
	return children[0]
}

func errorText(t *testing.T, n *html.Node) string {
	t.Helper()
	child := sole(t, n)
	require.Equal(t, "pre", child.Data)
	require.True(t, dom.HasClass(child, ErrorClass))
	return dom.TextContent(child)
}

func TestBuildPlotCall(t *testing.T) {
	out := newTestBuilder().Build(spec.Plot("plot", spec.Object("marks", spec.Array(spec.Plot("dot", spec.Array(1.0, 2.0))))))
	svg := sole(t, out)
	assert.Equal(t, "svg", svg.Data)

	rendered, err := dom.Render(svg)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(rendered, "<circle"))
}

func TestBuildNonElementCallFallsBackToEmptyPlot(t *testing.T) {
	out := newTestBuilder().Build(spec.Plot("dot", spec.Array(1.0, 2.0)))
	svg := sole(t, out)
	assert.Equal(t, "svg", svg.Data)
	assert.Empty(t, dom.Children(svg))
}

func TestBuildOptionsMappingIsComposed(t *testing.T) {
	raw := `{"marks":[{"ipyobsplot-type":"function","module":"Plot","method":"dot","args":[[[1,2],[3,4]]]}],"width":320}`
	svg := sole(t, newTestBuilder().BuildJSON([]byte(raw)))
	width, _ := dom.Attr(svg, "width")
	assert.Equal(t, "320", width)
}

func TestBuildNullIsEmptyPlot(t *testing.T) {
	svg := sole(t, newTestBuilder().BuildJSON([]byte(`null`)))
	assert.Equal(t, "svg", svg.Data)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "invalid namespace",
			raw:      `{"ipyobsplot-type":"function","module":"Bogus","method":"x","args":[]}`,
			expected: "Invalid module: Bogus",
		},
		{
			name:     "undefined method",
			raw:      `{"ipyobsplot-type":"function","module":"Plot","method":"notAMethod","args":[]}`,
			expected: "Plot.notAMethod is not defined",
		},
		{
			name:     "malformed call",
			raw:      `{"ipyobsplot-type":"function","module":1,"method":"x"}`,
			expected: "malformed spec at $.module",
		},
		{
			name:     "bad dataframe",
			raw:      `{"ipyobsplot-type":"DataFrame","value":""}`,
			expected: "arrow: empty IPC payload",
		},
		{
			name:     "invalid json",
			raw:      `{"marks":`,
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := errorText(t, newTestBuilder().BuildJSON([]byte(tt.raw)))
			assert.NotEmpty(t, text)
			assert.Contains(t, text, tt.expected)
		})
	}
}

func TestBuildErrorIsEscaped(t *testing.T) {
	out := newTestBuilder().Build(&spec.Call{Module: "<script>alert(1)</script>", Method: "x"})
	assert.Equal(t, "Invalid module: <script>alert(1)</script>", errorText(t, out))

	rendered, err := dom.Render(out)
	require.NoError(t, err)
	assert.NotContains(t, rendered, "<script>")
}

func TestBuildRecoversPanics(t *testing.T) {
	ns := plot.Namespace(nil)
	ns.Register("explode", func(args ...any) (any, error) {
		panic("kaboom")
	})
	b := NewBuilder(NewInterpreter(ns, d3.Namespace()))

	text := errorText(t, b.Build(spec.Plot("explode")))
	assert.Contains(t, text, "kaboom")
}

func TestBuildWithoutComposer(t *testing.T) {
	ns := namespace.New("Plot")
	ns.Register("legend", func(args ...any) (any, error) {
		return dom.Element("figure"), nil
	})
	ns.Register("count", func(args ...any) (any, error) {
		return 3.0, nil
	})
	b := NewBuilder(NewInterpreter(ns, d3.Namespace()))

	assert.Equal(t, "Plot.plot is not defined", errorText(t, b.Build(&spec.Null{})))
	assert.Equal(t, "Plot.plot is not defined", errorText(t, b.Build(spec.Plot("count"))))
	assert.Equal(t, "figure", sole(t, b.Build(spec.Plot("legend"))).Data)
}

func TestBuildObserver(t *testing.T) {
	obs := &observed{}
	b := newTestBuilder(WithObserver(obs))
	b.BuildJSON([]byte(`null`))
	b.BuildJSON([]byte(`{"ipyobsplot-type":"function","module":"Bogus","method":"x"}`))
	b.BuildJSON([]byte(`nope`))

	assert.Equal(t, 3, obs.count)
	require.Len(t, obs.errors, 2)
	var nsErr *InvalidNamespaceError
	assert.True(t, errors.As(obs.errors[0], &nsErr))
}
