package settings

// Origins records which layer supplied each key of a settings tree. It
// mirrors the tree's mapping structure: a key either carries a label
// directly, or has a child Origins for a mapping that was merged from
// several layers. Keys without an entry inherit the label of the nearest
// ancestor, so every key in the tree always resolves to a label.
type Origins struct {
	fallback string
	labels   map[string]string
	children map[string]*Origins
}

// NewOrigins creates an empty origin map
func NewOrigins() *Origins {
	return &Origins{
		labels:   make(map[string]string),
		children: make(map[string]*Origins),
	}
}

// OriginsFor labels every top-level key of tree with label
func OriginsFor(tree *Map, label string) *Origins {
	o := NewOrigins()
	tree.Range(func(k string, _ Value) bool {
		o.labels[k] = label
		return true
	})
	return o
}

// Label returns the origin of the key at path
func (o *Origins) Label(path ...string) string {
	cur := o
	for _, k := range path {
		if cur == nil {
			return ""
		}
		if l, ok := cur.labels[k]; ok {
			return l
		}
		c, ok := cur.children[k]
		if !ok {
			return cur.fallback
		}
		cur = c
	}
	if cur == nil {
		return ""
	}
	return cur.fallback
}

// Set records label for key, replacing any nested origins below it
func (o *Origins) Set(key, label string) {
	o.labels[key] = label
	delete(o.children, key)
}

// child returns the nested origins for key, creating one that inherits
// key's current label when key was supplied whole by a single layer
func (o *Origins) child(key string) *Origins {
	if o == nil {
		return NewOrigins()
	}
	if c, ok := o.children[key]; ok {
		return c
	}
	c := NewOrigins()
	c.fallback = o.Label(key)
	return c
}

func (o *Origins) setChild(key string, c *Origins) {
	o.children[key] = c
	delete(o.labels, key)
}

func (o *Origins) clone() *Origins {
	out := NewOrigins()
	if o == nil {
		return out
	}
	out.fallback = o.fallback
	for k, l := range o.labels {
		out.labels[k] = l
	}
	for k, c := range o.children {
		out.children[k] = c
	}
	return out
}

// Expand renders the origins as a tree shaped like tree, where every
// non-mapping value (and every empty mapping) is replaced by its label
func (o *Origins) Expand(tree *Map) *Map {
	out := NewMap()
	tree.Range(func(k string, v Value) bool {
		if v.IsMap() && v.Map().Len() > 0 {
			out.Set(k, MapValue(o.child(k).Expand(v.Map())))
		} else {
			out.Set(k, String(o.Label(k)))
		}
		return true
	})
	return out
}

// OriginsFromExpanded rebuilds Origins from the output of Expand
func OriginsFromExpanded(expanded *Map) *Origins {
	o := NewOrigins()
	expanded.Range(func(k string, v Value) bool {
		if v.IsMap() {
			o.setChild(k, OriginsFromExpanded(v.Map()))
		} else if s, ok := v.Str(); ok {
			o.labels[k] = s
		}
		return true
	})
	return o
}
