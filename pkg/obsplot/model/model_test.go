package model

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	m := New()
	assert.Nil(t, m.Get("spec"))

	require.NoError(t, m.Set("spec", []byte(`{"a":1}`)))
	assert.JSONEq(t, `{"a":1}`, string(m.Get("spec")))

	got := m.Get("spec")
	got[0] = 'x'
	assert.JSONEq(t, `{"a":1}`, string(m.Get("spec")), "Get must return a copy")
}

func TestSetRejectsInvalidJSON(t *testing.T) {
	m := New()
	err := m.Set("spec", []byte(`{"a":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
	assert.Nil(t, m.Get("spec"))
}

func TestChangeHandlersRunInOrder(t *testing.T) {
	m := New()
	var calls []string
	require.NoError(t, m.On("change:spec", func(c Change) { calls = append(calls, "first:"+string(c.New)) }))
	require.NoError(t, m.On("change:spec", func(c Change) { calls = append(calls, "second:"+string(c.Old)) }))
	require.NoError(t, m.On("change:other", func(Change) { calls = append(calls, "other") }))

	require.NoError(t, m.Set("spec", []byte(`1`)))
	require.NoError(t, m.Set("spec", []byte(`2`)))
	assert.Equal(t, []string{"first:1", "second:", "first:2", "second:1"}, calls)
}

func TestIdenticalSetDoesNotNotify(t *testing.T) {
	m := New()
	count := 0
	require.NoError(t, m.On("change:spec", func(Change) { count++ }))
	require.NoError(t, m.Set("spec", []byte(`[1]`)))
	require.NoError(t, m.Set("spec", []byte(`[1]`)))
	assert.Equal(t, 1, count)
}

func TestOnRejectsUnknownEvents(t *testing.T) {
	m := New()
	for _, event := range []string{"spec", "change:", "update:spec"} {
		t.Run(event, func(t *testing.T) {
			assert.Error(t, m.On(event, func(Change) {}))
		})
	}
}

func TestProperty(t *testing.T) {
	m := New()
	p := m.Property("spec")
	assert.Equal(t, "spec", p.Name())

	fired := 0
	p.Subscribe(func() { fired++ })
	require.NoError(t, p.Set([]byte(`null`)))
	assert.Equal(t, "null", string(p.Get()))
	assert.Equal(t, 1, fired)
	assert.ElementsMatch(t, []string{"spec"}, m.Names())
}

func TestLogChanges(t *testing.T) {
	var buf bytes.Buffer
	m := New()
	require.NoError(t, m.On("change:spec", LogChanges(log.New(&buf, "", 0))))
	require.NoError(t, m.Set("spec", []byte(`{}`)))
	assert.Equal(t, "[model] spec changed (2 bytes)\n", buf.String())
}
