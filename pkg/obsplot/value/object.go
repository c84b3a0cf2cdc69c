// Package value holds the realized-value helpers shared by the interpreter and
// the namespaces: an insertion-ordered object and loose numeric coercions.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Object is a string-keyed mapping that remembers insertion order.
type Object struct {
	keys   []string
	values map[string]any
}

func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set adds or replaces key. A replaced key keeps its original position.
func (o *Object) Set(key string, v any) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns a copy of the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// String looks up key and returns it when it holds a string.
func (o *Object) String(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float looks up key and coerces it with Float.
func (o *Object) Float(key string) (float64, bool) {
	v, ok := o.Get(key)
	if !ok {
		return 0, false
	}
	return Float(v)
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			out.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out.Write(kb)
		out.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out.Write(vb)
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

func (o *Object) Inspect() string {
	var out strings.Builder
	out.WriteString("{")
	for i, k := range o.keys {
		if i > 0 {
			out.WriteString(", ")
		}
		fmt.Fprintf(&out, "%s: %v", k, o.values[k])
	}
	out.WriteString("}")
	return out.String()
}

// Float coerces numeric values, numeric strings, decimals and times (as Unix
// milliseconds) to float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, true
	case time.Time:
		return float64(n.UnixMilli()), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Floats coerces an array of numbers. Nil entries and entries that are not
// numeric are skipped.
func Floats(v any) ([]float64, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array, got %T", v)
	}
	out := make([]float64, 0, len(arr))
	for _, item := range arr {
		if f, ok := Float(item); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Label formats a realized value for display in axes and text marks.
func Label(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case decimal.Decimal:
		return n.String()
	case time.Time:
		return n.UTC().Format("2006-01-02")
	default:
		return fmt.Sprint(n)
	}
}
