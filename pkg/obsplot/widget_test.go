package obsplot

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosenoffset/obsplot/pkg/obsplot/model"
	"github.com/chosenoffset/obsplot/pkg/obsplot/spec"
)

func newTestWidget(t *testing.T) *Widget {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = 0
	w, err := NewWidget(cfg)
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	return w
}

func TestNewWidgetRendersEmptyPlot(t *testing.T) {
	w := newTestWidget(t)
	assert.JSONEq(t, `null`, string(w.Spec()))
	assert.True(t, strings.HasPrefix(w.HTML(), `<div class="ipyobsplot-plot"><svg class="plot"`))
	assert.Equal(t, int64(1), w.GetRenderStats().Count)
	assert.False(t, w.IsRunning())
}

func TestNewWidgetRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults = map[string]any{"marks": []any{}}
	_, err := NewWidget(cfg)
	assert.Error(t, err)
}

func TestWidgetDefaultsApply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults = map[string]any{"width": 321}
	w, err := NewWidget(cfg)
	require.NoError(t, err)
	assert.Contains(t, w.HTML(), `width="321"`)
}

func TestWidgetSetSpec(t *testing.T) {
	w := newTestWidget(t)
	require.NoError(t, w.SetSpecNode(spec.Plot("plot", spec.Object(
		"marks", spec.Array(spec.Plot("barY", spec.Array(3.0, 1.0, 2.0))),
	))))
	assert.Equal(t, 3, strings.Count(w.HTML(), "<rect"))

	before := w.HTML()
	assert.Error(t, w.SetSpec([]byte(`{"broken":`)))
	assert.Equal(t, before, w.HTML())

	require.NoError(t, w.SetSpec([]byte(`{"ipyobsplot-type":"function","module":"Bogus","method":"x","args":[]}`)))
	assert.Contains(t, w.HTML(), `<pre class="ipyobsplot-error">Invalid module: Bogus</pre>`)

	stats := w.GetRenderStats()
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Len(t, w.GetRenderHistory(), 3)
}

func TestWidgetModelObservers(t *testing.T) {
	w := newTestWidget(t)
	var seen []string
	require.NoError(t, w.Model().On("change:"+SpecProperty, func(c model.Change) {
		seen = append(seen, string(c.New))
	}))
	require.NoError(t, w.SetSpec([]byte(`{"height":50}`)))
	assert.Equal(t, []string{`{"height":50}`}, seen)
}

func TestWidgetHandler(t *testing.T) {
	w := newTestWidget(t)
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/spec", "application/json", strings.NewReader(`{"width":250}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/render")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `width="250"`)

	resp, err = http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	var stats struct {
		Data struct {
			HTTP struct {
				RequestCount int64 `json:"request_count"`
			} `json:"http"`
			Render struct {
				Count int64 `json:"count"`
			} `json:"render"`
			Runtime struct {
				NumGoroutine int `json:"num_goroutine"`
			} `json:"runtime"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, int64(2), stats.Data.Render.Count)
	assert.GreaterOrEqual(t, stats.Data.HTTP.RequestCount, int64(2))
	assert.Greater(t, stats.Data.Runtime.NumGoroutine, 0)
}

func TestWidgetStartStop(t *testing.T) {
	w := newTestWidget(t)
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())
	require.NotNil(t, w.Addr())

	tcp, ok := w.Addr().(*net.TCPAddr)
	require.True(t, ok)
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/render", tcp.Port))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	w.Stop()
	w.Stop()
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.Addr())
}
