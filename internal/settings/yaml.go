package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses a YAML document into a Value. An empty document is Null.
func ParseYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind == 0 {
		return Null(), nil
	}
	d := &nodeDecoder{expanding: make(map[*yaml.Node]bool)}
	return d.fromNode(&doc)
}

// MustParseYAML is ParseYAML for fixed documents; it panics on error
func MustParseYAML(doc string) Value {
	v, err := ParseYAML([]byte(doc))
	if err != nil {
		panic(err)
	}
	return v
}

// nodeDecoder converts a yaml.Node tree into a Value. expanding holds the
// anchors whose alias is being followed, so a self-referencing anchor is an
// error rather than endless recursion.
type nodeDecoder struct {
	expanding map[*yaml.Node]bool
}

func (d *nodeDecoder) fromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return d.fromNode(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return Null(), nil
		}
		if d.expanding[n.Alias] {
			return Value{}, fmt.Errorf("line %d: anchor '%s' value contains itself", n.Line, n.Value)
		}
		d.expanding[n.Alias] = true
		v, err := d.fromNode(n.Alias)
		delete(d.expanding, n.Alias)
		return v, err
	case yaml.ScalarNode:
		return fromScalar(n)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := d.fromNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Seq(items...), nil
	case yaml.MappingNode:
		return d.fromMapping(n)
	}
	return Value{}, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}

func fromScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Float(f), nil
	}
	return String(n.Value), nil
}

func (d *nodeDecoder) fromMapping(n *yaml.Node) (Value, error) {
	m := NewMap()
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return Value{}, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
		}
		if key.ShortTag() == "!!merge" {
			merges = append(merges, val)
			continue
		}
		v, err := d.fromNode(val)
		if err != nil {
			return Value{}, err
		}
		m.Set(key.Value, v)
	}
	// "<<" merge keys only fill in keys not set explicitly
	for _, src := range merges {
		mv, err := d.fromNode(src)
		if err != nil {
			return Value{}, err
		}
		sources := []Value{mv}
		if mv.IsSeq() {
			sources = mv.Items()
		}
		for _, s := range sources {
			s.Map().Range(func(k string, v Value) bool {
				if !m.Has(k) {
					m.Set(k, v)
				}
				return true
			})
		}
	}
	return MapValue(m), nil
}

// Node converts v into a yaml.Node tree
func (v Value) Node() *yaml.Node {
	switch v.kind {
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case KindInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v.i, 10)}
	case KindFloat:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(v.f, 'g', -1, 64)}
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.s}
	case KindSeq:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.seq {
			n.Content = append(n.Content, item.Node())
		}
		return n
	case KindMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		v.Map().Range(func(k string, item Value) bool {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				item.Node())
			return true
		})
		return n
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

// MarshalYAML implements yaml.Marshaler
func (v Value) MarshalYAML() (interface{}, error) {
	return v.Node(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	d := &nodeDecoder{expanding: make(map[*yaml.Node]bool)}
	parsed, err := d.fromNode(n)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON implements json.Marshaler, keeping mapping key order
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindSeq:
		buf.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case KindMap:
		buf.WriteByte('{')
		var err error
		first := true
		v.Map().Range(func(k string, item Value) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			err = item.writeJSON(buf)
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	}
	data, err := json.Marshal(v.Native())
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
