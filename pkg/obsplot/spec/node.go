package spec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Discriminator field and tag values of the wire format.
const (
	TypeField     = "ipyobsplot-type"
	TypeDataFrame = "DataFrame"
	TypeFunction  = "function"
)

type Kind int

const (
	NullKind Kind = iota
	LiteralKind
	SequenceKind
	DataFrameKind
	CallKind
	MappingKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case LiteralKind:
		return "literal"
	case SequenceKind:
		return "sequence"
	case DataFrameKind:
		return "DataFrame"
	case CallKind:
		return "function"
	case MappingKind:
		return "mapping"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Node is a decoded spec node. Every node re-encodes to its wire form.
type Node interface {
	Kind() Kind
	String() string
	json.Marshaler
}

type Null struct{}

func (n *Null) Kind() Kind                   { return NullKind }
func (n *Null) String() string               { return "null" }
func (n *Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Literal holds a string, float64 or bool.
type Literal struct {
	Value any
}

func (l *Literal) Kind() Kind                   { return LiteralKind }
func (l *Literal) MarshalJSON() ([]byte, error) { return json.Marshal(l.Value) }
func (l *Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(l.Value)
}

type Sequence struct {
	Elements []Node
}

func (s *Sequence) Kind() Kind { return SequenceKind }
func (s *Sequence) String() string {
	var out bytes.Buffer
	out.WriteString("[")
	out.WriteString(joinNodes(s.Elements))
	out.WriteString("]")
	return out.String()
}
func (s *Sequence) MarshalJSON() ([]byte, error) {
	elems := s.Elements
	if elems == nil {
		elems = []Node{}
	}
	return json.Marshal(elems)
}

// DataFrame carries an Arrow IPC payload.
type DataFrame struct {
	Payload []byte
}

func (d *DataFrame) Kind() Kind     { return DataFrameKind }
func (d *DataFrame) String() string { return fmt.Sprintf("DataFrame(%d bytes)", len(d.Payload)) }
func (d *DataFrame) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		TypeField: TypeDataFrame,
		"value":   base64.StdEncoding.EncodeToString(d.Payload),
	})
}

// Call invokes Method of namespace Module with Args.
type Call struct {
	Module string
	Method string
	Args   []Node
}

func (c *Call) Kind() Kind { return CallKind }
func (c *Call) String() string {
	var out bytes.Buffer
	out.WriteString(c.Module)
	out.WriteString(".")
	out.WriteString(c.Method)
	out.WriteString("(")
	out.WriteString(joinNodes(c.Args))
	out.WriteString(")")
	return out.String()
}
func (c *Call) MarshalJSON() ([]byte, error) {
	args := c.Args
	if args == nil {
		args = []Node{}
	}
	var out bytes.Buffer
	out.WriteString(`{"` + TypeField + `":"` + TypeFunction + `","module":`)
	if err := writeJSON(&out, c.Module); err != nil {
		return nil, err
	}
	out.WriteString(`,"method":`)
	if err := writeJSON(&out, c.Method); err != nil {
		return nil, err
	}
	out.WriteString(`,"args":`)
	if err := writeJSON(&out, args); err != nil {
		return nil, err
	}
	out.WriteString("}")
	return out.Bytes(), nil
}

type Entry struct {
	Key   string
	Value Node
}

// Mapping is a plain object; entries keep document order.
type Mapping struct {
	Entries []Entry
}

func (m *Mapping) Kind() Kind { return MappingKind }
func (m *Mapping) String() string {
	parts := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		parts[i] = fmt.Sprintf("%q: %s", e.Key, e.Value.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var out bytes.Buffer
	out.WriteString("{")
	for i, e := range m.Entries {
		if i > 0 {
			out.WriteString(",")
		}
		if err := writeJSON(&out, e.Key); err != nil {
			return nil, err
		}
		out.WriteString(":")
		if err := writeJSON(&out, e.Value); err != nil {
			return nil, err
		}
	}
	out.WriteString("}")
	return out.Bytes(), nil
}

// Lookup returns the value stored under key.
func (m *Mapping) Lookup(key string) (Node, bool) {
	for _, e := range m.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

func writeJSON(out *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	out.Write(b)
	return nil
}
