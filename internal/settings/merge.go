package settings

// Merge layers incoming over base. Where both sides hold a mapping for a
// key the merge recurses; anywhere else the incoming value replaces the base
// value whole, and its origin becomes label. Keys only present in base keep
// their value and origin. Neither input is modified.
func Merge(base *Map, baseOrigins *Origins, incoming *Map, label string) (*Map, *Origins) {
	if base == nil {
		base = NewMap()
	}
	out := base.Clone()
	outOrigins := baseOrigins.clone()

	incoming.Range(func(k string, v Value) bool {
		if bv, ok := base.Get(k); ok && bv.IsMap() && v.IsMap() {
			merged, mergedOrigins := Merge(bv.Map(), baseOrigins.child(k), v.Map(), label)
			out.Set(k, MapValue(merged))
			outOrigins.setChild(k, mergedOrigins)
			return true
		}
		out.Set(k, v)
		outOrigins.Set(k, label)
		return true
	})
	return out, outOrigins
}

// MergeLayers merges each layer in order over an empty tree
func MergeLayers(layers ...Layer) (*Map, *Origins) {
	tree, origins := NewMap(), NewOrigins()
	for _, l := range layers {
		tree, origins = Merge(tree, origins, l.Tree, l.Origin)
	}
	return tree, origins
}

// Layer is one named source of settings
type Layer struct {
	Origin string
	Tree   *Map
}
