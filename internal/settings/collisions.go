package settings

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fabricnms/internal/domain"
)

const managementVXLAN = "management"

// VXLAN is one entry of a resolved vxlans mapping. Fields absent from the
// settings are nil.
type VXLAN struct {
	Name     string  `mapstructure:"-"`
	VNI      *int    `mapstructure:"vni"`
	VLANID   *int    `mapstructure:"vlan_id"`
	VLANName *string `mapstructure:"vlan_name"`
}

// VXLANs decodes the vxlans mapping of the settings in declaration order
func (s *Settings) VXLANs() ([]VXLAN, error) {
	raw, _ := s.Tree.Get(vxlansKey)
	var out []VXLAN
	var err error
	raw.Map().Range(func(name string, data Value) bool {
		var vx VXLAN
		if data.IsMap() {
			// a wrongly typed field decodes as absent
			fields := data.Map().Clone()
			for _, k := range []string{"vni", "vlan_id"} {
				if v, ok := fields.Get(k); ok && v.Kind() != KindInt {
					fields.Delete(k)
				}
			}
			if v, ok := fields.Get("vlan_name"); ok && v.Kind() != KindString {
				fields.Delete("vlan_name")
			}
			if err = mapstructure.Decode(MapValue(fields).Native(), &vx); err != nil {
				err = fmt.Errorf("vxlan %s: %w", name, err)
				return false
			}
		}
		vx.Name = name
		out = append(out, vx)
		return true
	})
	return out, err
}

// DeviceVXLANs is the resolved VXLAN set of one managed device
type DeviceVXLANs struct {
	Hostname string
	Type     domain.DeviceType
	VXLANs   []VXLAN
}

// CheckVLANCollisions verifies VNI, VLAN id and VLAN name uniqueness over
// the given devices, in order. mgmtVLANs are pre-claimed by the management
// network. The first collision found is returned.
func CheckVLANCollisions(devices []DeviceVXLANs, mgmtVLANs []int, uniqueVLANs bool, logger *zap.Logger) error {
	globalVLANs := make(map[int]string, len(mgmtVLANs))
	for _, id := range mgmtVLANs {
		globalVLANs[id] = managementVXLAN
	}
	globalVNIs := make(map[int]string)

	for _, dev := range devices {
		deviceVLANIDs := make(map[int]string)
		deviceVLANNames := make(map[string]string)

		for _, vx := range dev.VXLANs {
			if vx.VNI == nil {
				logger.Error("VXLAN is missing vni", zap.String("hostname", dev.Hostname), zap.String("vxlan", vx.Name))
			} else if owner, ok := globalVNIs[*vx.VNI]; ok && owner != vx.Name {
				return &CollisionError{Kind: CollisionVNI, ID: *vx.VNI, VXLAN: vx.Name, Owner: owner}
			} else if !ok {
				globalVNIs[*vx.VNI] = vx.Name
			}

			if vx.VLANID == nil {
				logger.Error("VXLAN is missing vlan_id", zap.String("hostname", dev.Hostname), zap.String("vxlan", vx.Name))
			} else {
				id := *vx.VLANID
				if owner, ok := globalVLANs[id]; uniqueVLANs && ok && owner != vx.Name {
					return &CollisionError{Kind: CollisionVLANID, ID: id, VXLAN: vx.Name, Owner: owner}
				}
				if owner, ok := deviceVLANIDs[id]; ok && owner != vx.Name {
					return &CollisionError{Kind: CollisionVLANID, ID: id, VXLAN: vx.Name, Owner: owner, Hostname: dev.Hostname}
				}
				deviceVLANIDs[id] = vx.Name
				globalVLANs[id] = vx.Name
			}

			if vx.VLANName == nil {
				logger.Error("VXLAN is missing vlan_name", zap.String("hostname", dev.Hostname), zap.String("vxlan", vx.Name))
				continue
			}
			name := *vx.VLANName
			if owner, ok := deviceVLANNames[name]; ok && owner != vx.Name && dev.Type == domain.DeviceTypeAccess {
				return &CollisionError{Kind: CollisionVLANName, Name: name, VXLAN: vx.Name, Owner: owner, Hostname: dev.Hostname}
			}
			deviceVLANNames[name] = vx.Name
		}
	}
	return nil
}

// Fleet is the part of the device directory the collision checker scans
type Fleet interface {
	ListDevicesByState(ctx context.Context, state domain.DeviceState) ([]domain.Device, error)
	ListMgmtdomains(ctx context.Context) ([]domain.Mgmtdomain, error)
}

// CollisionChecker runs the fleet-wide VLAN/VNI collision check
type CollisionChecker struct {
	resolver    *Resolver
	fleet       Fleet
	logger      *zap.Logger
	concurrency int
}

// NewCollisionChecker creates a checker resolving at most concurrency
// devices at a time
func NewCollisionChecker(resolver *Resolver, fleet Fleet, logger *zap.Logger, concurrency int) *CollisionChecker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CollisionChecker{
		resolver:    resolver,
		fleet:       fleet,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Check resolves the settings of every managed device and verifies that
// no VLAN or VNI collides. Devices are checked in hostname order so the
// reported collision is deterministic.
func (c *CollisionChecker) Check(ctx context.Context, uniqueVLANs bool) error {
	mgmtVLANs, err := c.managementVLANs(ctx, uniqueVLANs)
	if err != nil {
		return err
	}

	devices, err := c.fleet.ListDevicesByState(ctx, domain.DeviceStateManaged)
	if err != nil {
		return fmt.Errorf("failed to list managed devices: %w", err)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Hostname < devices[j].Hostname })

	resolved := make([]DeviceVXLANs, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, dev := range devices {
		g.Go(func() error {
			s, err := c.resolver.Resolve(gctx, dev.Hostname, dev.Type)
			if err != nil {
				return fmt.Errorf("failed to resolve settings for %s: %w", dev.Hostname, err)
			}
			vxlans, err := s.VXLANs()
			if err != nil {
				return err
			}
			resolved[i] = DeviceVXLANs{Hostname: dev.Hostname, Type: dev.Type, VXLANs: vxlans}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.logger.Debug("Checking VLAN collisions",
		zap.Int("devices", len(resolved)), zap.Int("management_vlans", len(mgmtVLANs)), zap.Bool("unique_vlans", uniqueVLANs))
	return CheckVLANCollisions(resolved, mgmtVLANs, uniqueVLANs, c.logger)
}

func (c *CollisionChecker) managementVLANs(ctx context.Context, uniqueVLANs bool) ([]int, error) {
	mgmtdomains, err := c.fleet.ListMgmtdomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list management domains: %w", err)
	}
	seen := make(map[int]bool)
	var vlans []int
	for _, md := range mgmtdomains {
		if md.VLAN == nil {
			continue
		}
		if seen[*md.VLAN] {
			if uniqueVLANs {
				return nil, &CollisionError{Kind: CollisionMgmtVLAN, ID: *md.VLAN}
			}
			continue
		}
		seen[*md.VLAN] = true
		vlans = append(vlans, *md.VLAN)
	}
	return vlans, nil
}
