package settings

import "fmt"

// DefaultFilterDepth bounds recursion in Filter
const DefaultFilterDepth = 100

const (
	scopeGroupsKey  = "groups"
	scopeDevicesKey = "devices"
)

// Filter prunes subtrees scoped to groups or devices the target is not part
// of. A mapping holding a non-empty "groups" or "devices" list survives only
// when one of its groups is in groups or hostname is one of its devices;
// otherwise it is absent and the parent drops it. The boolean result is
// false when v itself was dropped.
func Filter(v Value, groups []string, hostname string) (Value, bool, error) {
	return FilterDepth(v, groups, hostname, DefaultFilterDepth)
}

// FilterDepth is Filter with an explicit recursion limit. Once the limit is
// exhausted the remaining subtree is returned unfiltered.
func FilterDepth(v Value, groups []string, hostname string, depth int) (Value, bool, error) {
	member := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		member[g] = struct{}{}
	}
	f := &scopeFilter{groups: member, hostname: hostname}
	return f.filter(v, nil, depth)
}

type scopeFilter struct {
	groups   map[string]struct{}
	hostname string
}

func (f *scopeFilter) filter(v Value, path []string, depth int) (Value, bool, error) {
	if depth < 1 {
		return v, true, nil
	}
	switch v.Kind() {
	case KindSeq:
		items := make([]Value, 0, len(v.Items()))
		for i, item := range v.Items() {
			fv, keep, err := f.filter(item, appendPath(path, fmt.Sprint(i)), depth-1)
			if err != nil {
				return Value{}, false, err
			}
			if keep {
				items = append(items, fv)
			}
		}
		return Seq(items...), true, nil
	case KindMap:
		return f.filterMap(v.Map(), path, depth)
	}
	return v, true, nil
}

func (f *scopeFilter) filterMap(m *Map, path []string, depth int) (Value, bool, error) {
	gated, matched := false, false

	if gv, ok := m.Get(scopeGroupsKey); ok && gv.Truthy() {
		if !gv.IsSeq() {
			return Value{}, false, scopeTypeError(appendPath(path, scopeGroupsKey), gv, "Groups")
		}
		gated = true
		for _, g := range gv.Items() {
			if s, ok := g.Str(); ok {
				if _, ok := f.groups[s]; ok {
					matched = true
				}
			}
		}
	}
	if dv, ok := m.Get(scopeDevicesKey); ok && dv.Truthy() {
		if !dv.IsSeq() {
			return Value{}, false, scopeTypeError(appendPath(path, scopeDevicesKey), dv, "Devices")
		}
		gated = true
		for _, d := range dv.Items() {
			if s, ok := d.Str(); ok && f.hostname != "" && s == f.hostname {
				matched = true
			}
		}
	}
	if gated && !matched {
		return Value{}, false, nil
	}

	out := NewMap()
	var err error
	m.Range(func(k string, child Value) bool {
		if !child.Truthy() {
			out.Set(k, child)
			return true
		}
		var fv Value
		var keep bool
		fv, keep, err = f.filter(child, appendPath(path, k), depth-1)
		if err != nil {
			return false
		}
		if keep {
			out.Set(k, fv)
		}
		return true
	})
	if err != nil {
		return Value{}, false, err
	}
	return MapValue(out), true, nil
}

func scopeTypeError(path []string, v Value, field string) error {
	return &SyntaxError{Violations: []Violation{{
		Path:     path,
		Value:    v,
		Expected: "a list or empty",
		Message:  fmt.Sprintf("%s field must be a list or empty (currently %s)", field, v.Kind()),
	}}}
}

func appendPath(path []string, k string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, k)
}
