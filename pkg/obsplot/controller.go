package obsplot

import (
	"encoding/json"
	"sync"

	"golang.org/x/net/html"

	"github.com/chosenoffset/obsplot/pkg/obsplot/dom"
)

// Property is an observable spec source.
type Property interface {
	Get() json.RawMessage
	Subscribe(func())
}

// Controller keeps one rendered plot mounted in a container and replaces it
// whenever the observed property changes.
type Controller struct {
	mu        sync.RWMutex
	container *html.Node
	prop      Property
	builder   *Builder
	seq       uint64 // bumped under mu on every mount

	observerMu sync.RWMutex
	observers  []func(html string)

	deliverMu sync.Mutex
	delivered uint64
}

func NewController(container *html.Node, prop Property, b *Builder) *Controller {
	return &Controller{
		container: container,
		prop:      prop,
		builder:   b,
	}
}

// Render mounts the current spec and subscribes to its changes.
func (c *Controller) Render() {
	c.Mount()
	c.prop.Subscribe(c.OnChange)
}

// Mount builds the current spec and appends it to the container.
func (c *Controller) Mount() {
	c.mu.Lock()
	c.mountLocked()
	seq, out := c.seq, c.htmlLocked()
	c.mu.Unlock()
	c.notify(seq, out)
}

// OnChange replaces the managed child with a fresh build. If no managed child
// is present, it just mounts.
func (c *Controller) OnChange() {
	c.mu.Lock()
	if old := dom.FindByClass(c.container, PlotClass); old != nil && old.Parent != nil {
		old.Parent.RemoveChild(old)
	}
	c.mountLocked()
	seq, out := c.seq, c.htmlLocked()
	c.mu.Unlock()
	c.notify(seq, out)
}

func (c *Controller) mountLocked() {
	c.container.AppendChild(c.builder.BuildJSON(c.prop.Get()))
	c.seq++
}

// HTML renders the container's children.
func (c *Controller) HTML() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.htmlLocked()
}

func (c *Controller) htmlLocked() string {
	out, err := dom.RenderChildren(c.container)
	if err != nil {
		return ""
	}
	return out
}

// OnRender registers fn to receive the container HTML after every mount.
// Observers see renders in mount order; a render that loses the race to a
// newer one is skipped. Observers must not mount from inside the callback.
func (c *Controller) OnRender(fn func(html string)) {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Controller) notify(seq uint64, out string) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if seq <= c.delivered {
		return
	}
	c.delivered = seq

	c.observerMu.RLock()
	observers := make([]func(string), len(c.observers))
	copy(observers, c.observers)
	c.observerMu.RUnlock()

	for _, fn := range observers {
		fn(out)
	}
}
