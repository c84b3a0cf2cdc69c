package spec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ShapeError reports a tagged object whose fields have the wrong shape.
type ShapeError struct {
	Path   string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("malformed spec at %s: %s", e.Path, e.Reason)
}

// Decode parses raw JSON into a Node tree. Object key order is preserved.
func Decode(raw []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	p := &decoder{dec: dec}
	node, err := p.parseValue("$")
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, fmt.Errorf("spec: %w", err)
	}
	return node, nil
}

type decoder struct {
	dec *json.Decoder
}

func (p *decoder) parseValue(path string) (Node, error) {
	tok, err := p.dec.Token()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("spec: %w", err)
	}
	switch t := tok.(type) {
	case nil:
		return &Null{}, nil
	case string, float64, bool:
		return &Literal{Value: t}, nil
	case json.Delim:
		switch t {
		case '[':
			return p.parseSequence(path)
		case '{':
			return p.parseObject(path)
		}
	}
	return nil, fmt.Errorf("spec: unexpected token %v at %s", tok, path)
}

func (p *decoder) parseSequence(path string) (Node, error) {
	seq := &Sequence{Elements: []Node{}}
	for i := 0; p.dec.More(); i++ {
		elem, err := p.parseValue(fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		seq.Elements = append(seq.Elements, elem)
	}
	if _, err := p.dec.Token(); err != nil {
		return nil, fmt.Errorf("spec: %w", err)
	}
	return seq, nil
}

func (p *decoder) parseObject(path string) (Node, error) {
	m := &Mapping{}
	positions := make(map[string]int)
	for p.dec.More() {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("spec: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("spec: object key %v at %s is not a string", tok, path)
		}
		val, err := p.parseValue(path + "." + key)
		if err != nil {
			return nil, err
		}
		// Later duplicates win but keep the first position.
		if i, dup := positions[key]; dup {
			m.Entries[i].Value = val
			continue
		}
		positions[key] = len(m.Entries)
		m.Entries = append(m.Entries, Entry{Key: key, Value: val})
	}
	if _, err := p.dec.Token(); err != nil {
		return nil, fmt.Errorf("spec: %w", err)
	}
	return classify(m, path)
}

// classify turns tagged mappings into DataFrame and Call nodes.
func classify(m *Mapping, path string) (Node, error) {
	tag, ok := m.Lookup(TypeField)
	if !ok {
		return m, nil
	}
	lit, ok := tag.(*Literal)
	if !ok {
		return m, nil
	}
	switch lit.Value {
	case TypeDataFrame:
		return decodeDataFrame(m, path)
	case TypeFunction:
		return decodeCall(m, path)
	default:
		return m, nil
	}
}

func decodeDataFrame(m *Mapping, path string) (Node, error) {
	raw, err := stringField(m, "value", path)
	if err != nil {
		return nil, err
	}
	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, &ShapeError{Path: path + ".value", Reason: "payload is not valid base64: " + err.Error()}
	}
	return &DataFrame{Payload: payload}, nil
}

func decodeCall(m *Mapping, path string) (Node, error) {
	module, err := stringField(m, "module", path)
	if err != nil {
		return nil, err
	}
	method, err := stringField(m, "method", path)
	if err != nil {
		return nil, err
	}
	call := &Call{Module: module, Method: method, Args: []Node{}}
	args, ok := m.Lookup("args")
	if !ok {
		return call, nil
	}
	seq, ok := args.(*Sequence)
	if !ok {
		return nil, &ShapeError{Path: path + ".args", Reason: "expected an array, got " + args.Kind().String()}
	}
	call.Args = seq.Elements
	return call, nil
}

func stringField(m *Mapping, key, path string) (string, error) {
	n, ok := m.Lookup(key)
	if !ok {
		return "", &ShapeError{Path: path, Reason: fmt.Sprintf("missing %q field", key)}
	}
	lit, ok := n.(*Literal)
	if !ok {
		return "", &ShapeError{Path: path + "." + key, Reason: "expected a string, got " + n.Kind().String()}
	}
	s, ok := lit.Value.(string)
	if !ok {
		return "", &ShapeError{Path: path + "." + key, Reason: fmt.Sprintf("expected a string, got %T", lit.Value)}
	}
	return s, nil
}
