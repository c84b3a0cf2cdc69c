package obsplot

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosenoffset/obsplot/pkg/obsplot/dom"
	"github.com/chosenoffset/obsplot/pkg/obsplot/spec"
)

// Specs come from the host process and are trusted, but anything they carry
// into the page must still arrive as text, never as markup.
func TestInjectedMarkupIsEscaped(t *testing.T) {
	payload := `<script>alert('xss')</script>`
	tests := []struct {
		name string
		node spec.Node
	}{
		{"title", spec.Plot("plot", spec.Object("title", payload))},
		{"caption", spec.Plot("plot", spec.Object("caption", payload))},
		{"text mark", spec.Plot("plot", spec.Object("marks", spec.Array(
			spec.Plot("text", spec.Array(spec.Object("x", 1.0, "y", 1.0, "label", payload)), spec.Object("x", "x", "y", "y", "text", "label")),
		)))},
		{"category label", spec.Plot("plot", spec.Object("marks", spec.Array(
			spec.Plot("barY", spec.Array(spec.Object("k", payload, "v", 1.0)), spec.Object("x", "k", "y", "v")),
		)))},
		{"module name", &spec.Call{Module: payload, Method: "x"}},
		{"method name", spec.Plot(payload)},
	}
	b := newTestBuilder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := dom.Render(b.Build(tt.node))
			require.NoError(t, err)
			assert.NotContains(t, out, "<script>")
			assert.Contains(t, out, "&lt;script&gt;")
		})
	}
}

func TestStyleAttributeCannotBreakOut(t *testing.T) {
	out, err := dom.Render(newTestBuilder().Build(spec.Plot("plot", spec.Object("style", `"><script>x</script>`))))
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestHostileInputs(t *testing.T) {
	deep := strings.Repeat("[", 500) + strings.Repeat("]", 500)
	tests := []struct {
		name string
		raw  string
	}{
		{"null byte", "\"test\\u0000admin\""},
		{"format string", `{"title":"%n%n%n%n"}`},
		{"large string", `{"title":"` + strings.Repeat("A", 100000) + `"}`},
		{"deep nesting", deep},
		{"huge number", `{"width":1e308}`},
		{"negative size", `{"width":-5,"height":-5}`},
		{"path traversal", `{"ipyobsplot-type":"function","module":"d3","method":"csvParse","args":["../../../etc/passwd"]}`},
		{"wrong arg types", `{"ipyobsplot-type":"function","module":"d3","method":"range","args":[{"x":1}]}`},
		{"infinite string", `{"marks":[{"ipyobsplot-type":"function","module":"Plot","method":"dot","args":[[["Inf",1],[2,"NaN"],[3,4]]]}]}`},
	}
	b := newTestBuilder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out string
			require.NotPanics(t, func() {
				n := b.BuildJSON([]byte(tt.raw))
				out, _ = dom.Render(n)
			})
			assert.True(t, strings.HasPrefix(out, fmt.Sprintf(`<div class="%s">`, PlotClass)))
		})
	}
}

// Sizes taken from the spec must not be able to exhaust memory; oversized
// requests render an error instead.
func TestOversizedSpecsRenderErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "huge width",
			raw:  `{"width":1e12,"marks":[{"ipyobsplot-type":"function","module":"Plot","method":"dot","args":[[1,2]]}]}`,
			want: "width 1e+12 out of range",
		},
		{
			name: "huge range",
			raw:  `{"ipyobsplot-type":"function","module":"d3","method":"range","args":[1e10]}`,
			want: "exceeds 1000000",
		},
		{
			name: "huge range inside a mark",
			raw:  `{"marks":[{"ipyobsplot-type":"function","module":"Plot","method":"lineY","args":[{"ipyobsplot-type":"function","module":"d3","method":"range","args":[0,1,1e-15]}]}]}`,
			want: "exceeds 1000000",
		},
		{
			name: "infinite height",
			raw:  `{"height":"Infinity"}`,
			want: "height +Inf out of range",
		},
	}
	b := newTestBuilder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := b.BuildJSON([]byte(tt.raw))
			assert.Contains(t, errorText(t, n), tt.want)
		})
	}
}

func TestHugeTickCountIsClamped(t *testing.T) {
	out, err := dom.Render(newTestBuilder().BuildJSON([]byte(
		`{"ipyobsplot-type":"function","module":"d3","method":"ticks","args":[0,1e12,1e300]}`,
	)))
	require.NoError(t, err)
	assert.NotContains(t, out, ErrorClass)
}
