// Package model is an in-process observable property store. Each property
// holds a JSON document; handlers registered for "change:<name>" run after
// every Set that changes the value.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

const changePrefix = "change:"

type Change struct {
	Name      string
	Old       json.RawMessage
	New       json.RawMessage
	Timestamp time.Time
}

type Handler func(Change)

// LogChanges returns a handler that logs each change. A nil logger uses the
// standard logger.
func LogChanges(logger *log.Logger) Handler {
	return func(c Change) {
		if logger == nil {
			log.Printf("[model] %s changed (%d bytes)", c.Name, len(c.New))
		} else {
			logger.Printf("[model] %s changed (%d bytes)", c.Name, len(c.New))
		}
	}
}

type Model struct {
	mu       sync.RWMutex
	values   map[string]json.RawMessage
	handlers map[string][]Handler
}

func New() *Model {
	return &Model{
		values:   make(map[string]json.RawMessage),
		handlers: make(map[string][]Handler),
	}
}

// Get returns a copy of the current value of name, or nil if it was never set.
func (m *Model) Get(name string) json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	if !ok {
		return nil
	}
	return append(json.RawMessage(nil), v...)
}

// Set stores raw under name and notifies its change handlers, in
// registration order, on the calling goroutine. raw must be valid JSON.
// Setting an identical document is a no-op.
func (m *Model) Set(name string, raw []byte) error {
	if !json.Valid(raw) {
		return fmt.Errorf("model: %s: invalid JSON", name)
	}
	m.mu.Lock()
	old := m.values[name]
	if old != nil && bytes.Equal(old, raw) {
		m.mu.Unlock()
		return nil
	}
	value := append(json.RawMessage(nil), raw...)
	m.values[name] = value

	// Copy handlers so they run without the lock held.
	handlers := make([]Handler, len(m.handlers[name]))
	copy(handlers, m.handlers[name])
	m.mu.Unlock()

	change := Change{
		Name:      name,
		Old:       old,
		New:       append(json.RawMessage(nil), value...),
		Timestamp: time.Now(),
	}
	for _, h := range handlers {
		h(change)
	}
	return nil
}

// On registers h for event, which must have the form "change:<name>".
func (m *Model) On(event string, h Handler) error {
	name, ok := strings.CutPrefix(event, changePrefix)
	if !ok || name == "" {
		return fmt.Errorf("model: unsupported event %q", event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = append(m.handlers[name], h)
	return nil
}

// Names lists the properties that have been set.
func (m *Model) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.values))
	for name := range m.values {
		names = append(names, name)
	}
	return names
}

// Property binds one property of m.
func (m *Model) Property(name string) *Property {
	return &Property{model: m, name: name}
}

type Property struct {
	model *Model
	name  string
}

func (p *Property) Name() string { return p.name }

func (p *Property) Get() json.RawMessage {
	return p.model.Get(p.name)
}

func (p *Property) Set(raw []byte) error {
	return p.model.Set(p.name, raw)
}

// Subscribe calls fn after every change of the property.
func (p *Property) Subscribe(fn func()) {
	// The event name is built here, so On cannot fail.
	_ = p.model.On(changePrefix+p.name, func(Change) { fn() })
}
