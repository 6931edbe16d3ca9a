package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the shape of a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSeq
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSeq:
		return "list"
	case KindMap:
		return "mapping"
	}
	return "unknown"
}

// Value is one node of a settings tree: null, bool, number, string,
// sequence or mapping. Values are treated as immutable once built; every
// merge or filter step produces new containers and shares untouched subtrees.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	seq  []Value
	m    *Map
}

func Null() Value           { return Value{} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Seq(items ...Value) Value {
	return Value{kind: KindSeq, seq: items}
}

// MapValue wraps m; a nil m is an empty mapping
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// Strings builds a sequence of string values
func Strings(items ...string) Value {
	seq := make([]Value, len(items))
	for i, s := range items {
		seq[i] = String(s)
	}
	return Seq(seq...)
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsMap() bool  { return v.kind == KindMap }
func (v Value) IsSeq() bool  { return v.kind == KindSeq }

// Bool returns the boolean payload and whether v is a bool
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer payload and whether v is an integer
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the numeric payload of an integer or float
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Str returns the string payload and whether v is a string
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Items returns the elements of a sequence, or nil
func (v Value) Items() []Value {
	if v.kind != KindSeq {
		return nil
	}
	return v.seq
}

// Map returns the mapping payload, or nil when v is not a mapping
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	if v.m == nil {
		return NewMap()
	}
	return v.m
}

// Truthy reports whether v is non-empty: null, false, zero, "" and empty
// containers are all falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindSeq:
		return len(v.seq) > 0
	case KindMap:
		return v.m != nil && v.m.Len() > 0
	}
	return false
}

// Equal reports deep equality, including mapping key order
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindSeq:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.Map().Equal(o.Map())
	}
	return false
}

// Native converts v into plain Go values (map[string]any, []any, int64, ...)
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindSeq:
		out := make([]any, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.Map().Len())
		v.Map().Range(func(k string, item Value) bool {
			out[k] = item.Native()
			return true
		})
		return out
	}
	return nil
}

// String renders v compactly for log and error messages
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "None"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindSeq:
		parts := make([]string, len(v.seq))
		for i, item := range v.seq {
			parts[i] = item.quoted()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		var parts []string
		v.Map().Range(func(k string, item Value) bool {
			parts = append(parts, strconv.Quote(k)+": "+item.quoted())
			return true
		})
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("<%s>", v.kind)
}

func (v Value) quoted() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.String()
}

// Map is an insertion-ordered string-keyed mapping
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap creates an empty mapping
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// SortedKeys returns the keys in lexical order
func (m *Map) SortedKeys() []string {
	keys := m.Keys()
	sort.Strings(keys)
	return keys
}

func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[key]
	return v, ok
}

func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores value under key; a new key is appended to the order
func (m *Map) Set(key string, value Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
}

func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each entry in order until fn returns false
func (m *Map) Range(fn func(key string, value Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// Clone returns a copy of the top level; nested values are shared
func (m *Map) Clone() *Map {
	out := &Map{
		keys: m.Keys(),
		vals: make(map[string]Value, m.Len()),
	}
	m.Range(func(k string, v Value) bool {
		out.vals[k] = v
		return true
	})
	return out
}

func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i, k := range m.keys {
		if o.keys[i] != k || !m.vals[k].Equal(o.vals[k]) {
			return false
		}
	}
	return true
}
