package settings

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"fabricnms/internal/domain"
)

const vxlansKey = "vxlans"

// injectDownstream copies into a DIST device's tree every VXLAN of its
// adjacent ACCESS devices that the tree does not already define. Neighbors
// are visited in hostname order. Conflicting definitions of the same name
// are left for the collision checker.
func (r *Resolver) injectDownstream(ctx context.Context, hostname string, tree *Map, origins *Origins) (*Map, *Origins, error) {
	if r.topology == nil {
		return tree, origins, nil
	}
	dev, err := r.topology.GetDevice(ctx, hostname)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up device %s: %w", hostname, err)
	}
	if dev == nil || dev.Type != domain.DeviceTypeDist {
		return tree, origins, nil
	}

	neighbors, err := r.topology.Neighbors(ctx, hostname)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list neighbors of %s: %w", hostname, err)
	}
	seen := make(map[string]bool)
	var downstream []string
	for _, n := range neighbors {
		if n.Type == domain.DeviceTypeAccess && !seen[n.Hostname] {
			seen[n.Hostname] = true
			downstream = append(downstream, n.Hostname)
		}
	}
	if len(downstream) == 0 {
		return tree, origins, nil
	}
	sort.Strings(downstream)

	current, _ := tree.Get(vxlansKey)
	vxlans := NewMap()
	if current.IsMap() {
		vxlans = current.Map().Clone()
	}
	vxlanOrigins := origins.child(vxlansKey).clone()

	injected := 0
	for _, ds := range downstream {
		dsSettings, err := r.Resolve(ctx, ds, domain.DeviceTypeAccess)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve downstream device %s: %w", ds, err)
		}
		dsVXLANs, _ := dsSettings.Tree.Get(vxlansKey)
		dsVXLANs.Map().Range(func(name string, data Value) bool {
			if vxlans.Has(name) {
				return true
			}
			vxlans.Set(name, data)
			vxlanOrigins.Set(name, fmt.Sprintf("downstream->%s->%s", ds, dsSettings.Origin(vxlansKey, name)))
			injected++
			return true
		})
	}
	if injected == 0 {
		return tree, origins, nil
	}
	r.logger.Debug("Injected downstream VXLANs",
		zap.String("hostname", hostname), zap.Strings("downstream", downstream), zap.Int("count", injected))

	out := tree.Clone()
	out.Set(vxlansKey, MapValue(vxlans))
	outOrigins := origins.clone()
	outOrigins.setChild(vxlansKey, vxlanOrigins)
	return out, outOrigins, nil
}
