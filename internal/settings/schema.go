package settings

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"fabricnms/internal/domain"
)

// Check validates a value that already has the field's kind
type Check func(Value) error

// Field describes one entry of a settings schema
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Nullable    bool
	Required    bool
	Default     func() Value
	Check       Check

	// Fields lists the fixed keys of a mapping
	Fields []*Field
	// Items describes every element of a sequence
	Items *Field
	// Values describes every value of a mapping with free-form keys
	Values *Field
}

// Schema is the root of a settings tree description
type Schema struct {
	fields []*Field
}

// NewSchema creates a schema for a top-level mapping
func NewSchema(fields ...*Field) *Schema {
	return &Schema{fields: fields}
}

// Validate checks tree against the schema. The returned tree keeps only
// known keys, with defaults filled in for absent fields; unknown holds the
// dropped top-level keys. All violations are aggregated into one
// *SyntaxError annotated with value origins.
func (s *Schema) Validate(tree *Map, origins *Origins) (validated *Map, unknown []string, err error) {
	v := &validator{origins: origins}
	out := v.mapping(s.fields, tree, nil)
	tree.Range(func(k string, _ Value) bool {
		if s.field(k) == nil {
			unknown = append(unknown, k)
		}
		return true
	})
	if len(v.violations) > 0 {
		return nil, unknown, &SyntaxError{Violations: v.violations}
	}
	return out, unknown, nil
}

func (s *Schema) field(name string) *Field {
	for _, f := range s.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

type validator struct {
	origins    *Origins
	violations []Violation
}

func (v *validator) fail(f *Field, path []string, val Value, msg string) {
	v.violations = append(v.violations, Violation{
		Path:     path,
		Value:    val,
		Origin:   v.origins.Label(path...),
		Expected: f.Description,
		Message:  msg,
	})
}

func (v *validator) mapping(fields []*Field, m *Map, path []string) *Map {
	out := NewMap()
	for _, f := range fields {
		val, ok := m.Get(f.Name)
		p := appendPath(path, f.Name)
		if !ok {
			switch {
			case f.Required:
				v.fail(f, p, Null(), "field required")
			case f.Default != nil:
				out.Set(f.Name, f.Default())
			}
			continue
		}
		if res, ok := v.value(f, val, p); ok {
			out.Set(f.Name, res)
		}
	}
	return out
}

func (v *validator) value(f *Field, val Value, path []string) (Value, bool) {
	if val.IsNull() {
		if f.Nullable {
			return val, true
		}
		v.fail(f, path, val, "none is not an allowed value")
		return Value{}, false
	}
	if !kindMatches(f.Kind, val) {
		v.fail(f, path, val, fmt.Sprintf("value is not a valid %s", f.Kind))
		return Value{}, false
	}
	if f.Check != nil {
		if err := f.Check(val); err != nil {
			v.fail(f, path, val, err.Error())
			return Value{}, false
		}
	}

	switch {
	case f.Kind == KindMap && f.Fields != nil:
		return MapValue(v.mapping(f.Fields, val.Map(), path)), true
	case f.Kind == KindMap && f.Values != nil:
		out := NewMap()
		val.Map().Range(func(k string, item Value) bool {
			if res, ok := v.value(f.Values, item, appendPath(path, k)); ok {
				out.Set(k, res)
			}
			return true
		})
		return MapValue(out), true
	case f.Kind == KindSeq && f.Items != nil:
		items := make([]Value, 0, len(val.Items()))
		for i, item := range val.Items() {
			if res, ok := v.value(f.Items, item, appendPath(path, fmt.Sprint(i))); ok {
				items = append(items, res)
			}
		}
		return Seq(items...), true
	}
	return val, true
}

func kindMatches(want Kind, val Value) bool {
	switch want {
	case KindNull:
		return true
	case KindFloat:
		return val.Kind() == KindFloat || val.Kind() == KindInt
	}
	return val.Kind() == want
}

// Field constructors used by the schema tables. Scalars accept null;
// lists and mappings do not, so a layer cannot erase an inherited container.

func strField(name, descr string, check Check) *Field {
	return &Field{Name: name, Kind: KindString, Description: descr, Nullable: true, Check: check}
}

func intField(name, descr string, check Check) *Field {
	return &Field{Name: name, Kind: KindInt, Description: descr, Nullable: true, Check: check}
}

func boolField(name string) *Field {
	return &Field{Name: name, Kind: KindBool, Description: "true or false", Nullable: true}
}

func listField(name, descr string, items *Field) *Field {
	return &Field{Name: name, Kind: KindSeq, Description: descr, Items: items}
}

func mapField(name, descr string, fields ...*Field) *Field {
	return &Field{Name: name, Kind: KindMap, Description: descr, Fields: fields}
}

func dictField(name, descr string, values *Field) *Field {
	return &Field{Name: name, Kind: KindMap, Description: descr, Values: values}
}

func required(f *Field) *Field {
	f.Required = true
	f.Nullable = false
	return f
}

func withDefault(f *Field, def func() Value) *Field {
	f.Default = def
	return f
}

func emptyList() Value { return Seq() }

func emptyMap() Value { return MapValue(NewMap()) }

// Checks

func intRange(lo, hi int64) Check {
	return func(v Value) error {
		i, _ := v.Int()
		if i < lo || i > hi {
			return fmt.Errorf("ensure this value is between %d and %d", lo, hi)
		}
		return nil
	}
}

func matches(pattern string) Check {
	re := regexp.MustCompile(pattern)
	return func(v Value) error {
		s, _ := v.Str()
		if !re.MatchString(s) {
			return fmt.Errorf("string does not match regex %q", pattern)
		}
		return nil
	}
}

func oneOf(options ...string) Check {
	return func(v Value) error {
		s, _ := v.Str()
		for _, o := range options {
			if s == o {
				return nil
			}
		}
		return fmt.Errorf("value is not one of: %s", strings.Join(options, ", "))
	}
}

func ipv4Address(v Value) error {
	s, _ := v.Str()
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("value is not a valid IPv4 address")
	}
	return nil
}

func ipv6Address(v Value) error {
	s, _ := v.Str()
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is6() {
		return fmt.Errorf("value is not a valid IPv6 address")
	}
	return nil
}

func ipv4Interface(v Value) error {
	s, _ := v.Str()
	p, err := netip.ParsePrefix(s)
	if err != nil || !p.Addr().Is4() {
		return fmt.Errorf("value is not a valid IPv4 interface")
	}
	return nil
}

func ipv6Interface(v Value) error {
	s, _ := v.Str()
	p, err := netip.ParsePrefix(s)
	if err != nil || !p.Addr().Is6() {
		return fmt.Errorf("value is not a valid IPv6 interface")
	}
	return nil
}

func ipv4Network(v Value) error {
	s, _ := v.Str()
	p, err := netip.ParsePrefix(s)
	if err != nil || !p.Addr().Is4() {
		return fmt.Errorf("value is not a valid IPv4 network")
	}
	if p.Masked() != p {
		return fmt.Errorf("%s has host bits set", s)
	}
	return nil
}

func validHostname(v Value) error {
	s, _ := v.Str()
	if !domain.ValidHostname(s) {
		return fmt.Errorf("value is not a valid hostname")
	}
	return nil
}

func validHost(v Value) error {
	s, _ := v.Str()
	if _, err := netip.ParseAddr(s); err == nil {
		return nil
	}
	if domain.ValidHostname(s) {
		return nil
	}
	return fmt.Errorf("value is not a valid IP address or hostname")
}

func validRegex(v Value) error {
	s, _ := v.Str()
	if _, err := regexp.Compile(s); err != nil {
		return fmt.Errorf("invalid regex: %v", err)
	}
	return nil
}
