package obsplot

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/chosenoffset/obsplot/pkg/obsplot/d3"
	"github.com/chosenoffset/obsplot/pkg/obsplot/dashboard"
	"github.com/chosenoffset/obsplot/pkg/obsplot/dom"
	"github.com/chosenoffset/obsplot/pkg/obsplot/metrics"
	"github.com/chosenoffset/obsplot/pkg/obsplot/model"
	"github.com/chosenoffset/obsplot/pkg/obsplot/plot"
	"github.com/chosenoffset/obsplot/pkg/obsplot/spec"
)

// SpecProperty is the model property holding the widget's spec.
const SpecProperty = "spec"

// Widget is a live plot: a spec property, the element it renders to, and a
// dashboard that shows the element in a browser.
// It is safe for concurrent use.
type Widget struct {
	config      *Config
	model       *model.Model
	spec        *model.Property
	interpreter *Interpreter
	builder     *Builder
	controller  *Controller
	renderStats *metrics.RenderCollector
	httpMetrics *metrics.HTTPMetrics
	dashboard   *dashboard.Server
	addr        net.Addr
	running     bool
	mutex       sync.RWMutex
}

// NewWidget builds a widget whose spec starts as null, which renders an empty
// plot. A nil cfg uses DefaultConfig. The dashboard is not started.
func NewWidget(cfg *Config) (*Widget, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Widget{
		config:      cfg,
		model:       model.New(),
		renderStats: metrics.NewRenderCollector(cfg.HistorySize),
		httpMetrics: metrics.NewHTTPMetrics(cfg.HTTPSamples),
		dashboard:   dashboard.NewServer(cfg.Port, cfg.MaxClients),
	}
	w.spec = w.model.Property(SpecProperty)
	if err := w.spec.Set([]byte("null")); err != nil {
		return nil, err
	}
	if cfg.LogChanges {
		if err := w.model.On("change:"+SpecProperty, model.LogChanges(nil)); err != nil {
			return nil, err
		}
	}

	w.interpreter = NewInterpreter(plot.Namespace(cfg.PlotDefaults()), d3.Namespace())
	w.builder = NewBuilder(w.interpreter, WithObserver(w.renderStats))
	w.controller = NewController(dom.Element("div", "class", "ipyobsplot"), w.spec, w.builder)
	w.controller.OnRender(w.dashboard.SendRender)
	w.controller.Render()

	w.dashboard.SetSpecProvider(w.Spec, w.SetSpec)
	w.dashboard.SetRenderProvider(w.controller.HTML)
	w.dashboard.SetStatsProvider(
		func() interface{} {
			return map[string]interface{}{
				"http":    w.httpMetrics.GetStats(),
				"render":  w.renderStats.GetStats(),
				"runtime": metrics.ReadRuntime(),
			}
		},
		func() interface{} { return w.renderStats.GetHistory() },
	)
	w.dashboard.SetMiddleware(w.httpMetrics.Middleware)
	return w, nil
}

// Start launches the dashboard on the configured port. Start is idempotent.
func (w *Widget) Start() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.running {
		return nil
	}
	addr, err := w.dashboard.StartBackground()
	if err != nil {
		return fmt.Errorf("start dashboard: %w", err)
	}
	w.addr = addr
	w.running = true
	return nil
}

// Addr is the dashboard's bound address while running.
func (w *Widget) Addr() net.Addr {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.addr
}

// Stop shuts the dashboard down. Stop is idempotent.
func (w *Widget) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if !w.running {
		return
	}
	w.running = false
	w.addr = nil
	if err := w.dashboard.Stop(); err != nil {
		log.Printf("[obsplot] dashboard shutdown: %v", err)
	}
}

func (w *Widget) IsRunning() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.running
}

// SetSpec replaces the spec and re-renders. Invalid JSON is rejected and the
// current render is kept; a well-formed but failing spec renders its error.
func (w *Widget) SetSpec(raw []byte) error {
	if err := w.spec.Set(raw); err != nil {
		log.Printf("[obsplot] rejected spec update: %v", err)
		return err
	}
	return nil
}

// SetSpecNode encodes node and sets it as the spec.
func (w *Widget) SetSpecNode(node spec.Node) error {
	raw, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}
	return w.SetSpec(raw)
}

func (w *Widget) Spec() json.RawMessage {
	return w.spec.Get()
}

// HTML returns the widget's current rendered content.
func (w *Widget) HTML() string {
	return w.controller.HTML()
}

// Model exposes the property store, e.g. to observe spec changes.
func (w *Widget) Model() *model.Model {
	return w.model
}

func (w *Widget) Config() *Config {
	return w.config
}

// Handler returns the dashboard routes without listening on a port.
func (w *Widget) Handler() http.Handler {
	return w.dashboard.Handler()
}

func (w *Widget) GetDashboard() *dashboard.Server {
	return w.dashboard
}

func (w *Widget) GetRenderStats() metrics.RenderStats {
	return w.renderStats.GetStats()
}

func (w *Widget) GetRenderHistory() []metrics.RenderSample {
	return w.renderStats.GetHistory()
}

func (w *Widget) GetHTTPMetrics() metrics.HTTPStats {
	return w.httpMetrics.GetStats()
}
