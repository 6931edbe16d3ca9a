package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fabricnms/internal/domain"
)

func intp(i int) *int       { return &i }
func strp(s string) *string { return &s }
func vx(name string, vni, vlanID int, vlanName string) VXLAN {
	return VXLAN{Name: name, VNI: intp(vni), VLANID: intp(vlanID), VLANName: strp(vlanName)}
}

func TestCheckVLANCollisions(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name      string
		devices   []DeviceVXLANs
		mgmtVLANs []int
		unique    bool
		wantKind  CollisionKind
		wantMsg   string
	}{
		{
			name: "shared vni between different vxlans",
			devices: []DeviceVXLANs{
				{Hostname: "acc-01", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{vx("office", 100, 10, "office")}},
				{Hostname: "acc-02", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{vx("guest", 100, 20, "guest")}},
			},
			unique:   true,
			wantKind: CollisionVNI,
			wantMsg:  "VXLAN VNI 100 used in VXLAN guest is already used by VXLAN office",
		},
		{
			name: "same vxlan on many devices",
			devices: []DeviceVXLANs{
				{Hostname: "acc-01", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{vx("office", 100, 10, "office")}},
				{Hostname: "acc-02", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{vx("office", 100, 10, "office")}},
				{Hostname: "dist-01", Type: domain.DeviceTypeDist, VXLANs: []VXLAN{vx("office", 100, 10, "office")}},
			},
			unique: true,
		},
		{
			name: "vlan id reused across devices with unique vlans",
			devices: []DeviceVXLANs{
				{Hostname: "acc-01", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{vx("office", 100, 10, "office")}},
				{Hostname: "acc-02", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{vx("guest", 200, 10, "guest")}},
			},
			unique:   true,
			wantKind: CollisionVLANID,
			wantMsg:  "VLAN id 10 used in VXLAN guest is already used elsewhere by office",
		},
		{
			name: "vlan id reused across devices without unique vlans",
			devices: []DeviceVXLANs{
				{Hostname: "acc-01", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{vx("office", 100, 10, "office")}},
				{Hostname: "acc-02", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{vx("guest", 200, 10, "guest")}},
			},
			unique: false,
		},
		{
			name: "vlan id reused on one device without unique vlans",
			devices: []DeviceVXLANs{
				{Hostname: "dist-01", Type: domain.DeviceTypeDist, VXLANs: []VXLAN{
					vx("office", 100, 10, "office"),
					vx("guest", 200, 10, "guest"),
				}},
			},
			unique:   false,
			wantKind: CollisionVLANID,
			wantMsg:  "in device dist-01",
		},
		{
			name: "management vlan is pre-claimed",
			devices: []DeviceVXLANs{
				{Hostname: "acc-01", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{vx("office", 100, 600, "office")}},
			},
			mgmtVLANs: []int{600},
			unique:    true,
			wantKind:  CollisionVLANID,
			wantMsg:   "already used elsewhere by management",
		},
		{
			name: "vlan name reused on access device",
			devices: []DeviceVXLANs{
				{Hostname: "acc-01", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{
					vx("office", 100, 10, "staff"),
					vx("admin", 200, 20, "staff"),
				}},
			},
			unique:   true,
			wantKind: CollisionVLANName,
			wantMsg:  "VLAN name staff used multiple times in device acc-01",
		},
		{
			name: "vlan name reused on distribution device",
			devices: []DeviceVXLANs{
				{Hostname: "dist-01", Type: domain.DeviceTypeDist, VXLANs: []VXLAN{
					vx("office", 100, 10, "staff"),
					vx("admin", 200, 20, "staff"),
				}},
			},
			unique: true,
		},
		{
			name: "missing fields skip their checks",
			devices: []DeviceVXLANs{
				{Hostname: "acc-01", Type: domain.DeviceTypeAccess, VXLANs: []VXLAN{
					{Name: "office", VLANID: intp(10)},
					{Name: "guest", VNI: intp(200)},
					{Name: "admin", VNI: intp(300), VLANID: intp(30)},
				}},
			},
			unique: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVLANCollisions(tt.devices, tt.mgmtVLANs, tt.unique, logger)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			var collision *CollisionError
			require.ErrorAs(t, err, &collision)
			assert.Equal(t, tt.wantKind, collision.Kind)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSettingsVXLANs(t *testing.T) {
	s := &Settings{Tree: layer(`
vxlans:
  office: {vni: 100, vlan_id: 10, vlan_name: office}
  partial: {vni: 200, vlan_name: 7}
`)}
	vxlans, err := s.VXLANs()
	require.NoError(t, err)
	require.Len(t, vxlans, 2)
	assert.Equal(t, vx("office", 100, 10, "office"), vxlans[0])
	assert.Equal(t, "partial", vxlans[1].Name)
	assert.Equal(t, 200, *vxlans[1].VNI)
	assert.Nil(t, vxlans[1].VLANID)
	assert.Nil(t, vxlans[1].VLANName)
}

type fakeFleet struct {
	devices     []domain.Device
	mgmtdomains []domain.Mgmtdomain
}

func (f *fakeFleet) ListDevicesByState(_ context.Context, state domain.DeviceState) ([]domain.Device, error) {
	var out []domain.Device
	for _, d := range f.devices {
		if d.State == state {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeFleet) ListMgmtdomains(context.Context) ([]domain.Mgmtdomain, error) {
	return f.mgmtdomains, nil
}

func TestCollisionChecker(t *testing.T) {
	ctx := context.Background()
	root := writeRepo(t, map[string]string{
		"global/vxlans.yml": `
vxlans:
  office: {vni: 100, vlan_id: 10, vlan_name: office, devices: [acc-01]}
  guest: {vni: 100, vlan_id: 20, vlan_name: guest, devices: [acc-02]}
  lab: {vni: 300, vlan_id: 30, vlan_name: lab, devices: [acc-03]}
`,
	})
	r := newTestResolver(t, root)
	logger := zaptest.NewLogger(t)

	managed := func(hostname string) domain.Device {
		return domain.Device{Hostname: hostname, Type: domain.DeviceTypeAccess, State: domain.DeviceStateManaged}
	}

	t.Run("vni collision across devices", func(t *testing.T) {
		fleet := &fakeFleet{devices: []domain.Device{managed("acc-02"), managed("acc-01")}}
		err := NewCollisionChecker(r, fleet, logger, 4).Check(ctx, true)
		assert.EqualError(t, err, "VXLAN VNI 100 used in VXLAN guest is already used by VXLAN office")
	})

	t.Run("unmanaged devices are skipped", func(t *testing.T) {
		dhcp := managed("acc-02")
		dhcp.State = domain.DeviceStateDHCPBoot
		fleet := &fakeFleet{devices: []domain.Device{managed("acc-01"), dhcp, managed("acc-03")}}
		assert.NoError(t, NewCollisionChecker(r, fleet, logger, 2).Check(ctx, true))
	})

	t.Run("management vlans", func(t *testing.T) {
		md1, err := domain.NewMgmtdomain("dist-01", "dist-02", "10.0.6.1/24", intp(30))
		require.NoError(t, err)
		md2, err := domain.NewMgmtdomain("dist-03", "dist-04", "10.0.7.1/24", intp(30))
		require.NoError(t, err)

		fleet := &fakeFleet{
			devices:     []domain.Device{managed("acc-03")},
			mgmtdomains: []domain.Mgmtdomain{*md1},
		}
		err = NewCollisionChecker(r, fleet, logger, 1).Check(ctx, true)
		assert.ErrorContains(t, err, "VLAN id 30 used in VXLAN lab is already used elsewhere by management")
		assert.NoError(t, NewCollisionChecker(r, fleet, logger, 1).Check(ctx, false))

		fleet.mgmtdomains = append(fleet.mgmtdomains, *md2)
		fleet.devices = nil
		var collision *CollisionError
		err = NewCollisionChecker(r, fleet, logger, 1).Check(ctx, true)
		require.ErrorAs(t, err, &collision)
		assert.Equal(t, CollisionMgmtVLAN, collision.Kind)
		assert.NoError(t, NewCollisionChecker(r, fleet, logger, 1).Check(ctx, false))
	})
}
