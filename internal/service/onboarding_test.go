package service

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fabricnms/internal/adapter"
	"fabricnms/internal/domain"
	"fabricnms/internal/mgmtdomain"
	"fabricnms/internal/repository/sqlite"
)

type fakeProber struct {
	live []netip.Addr
	err  error
}

func (f *fakeProber) Name() string { return "fake" }

func (f *fakeProber) LiveHosts(context.Context, netip.Prefix) ([]netip.Addr, error) {
	return f.live, f.err
}

type onboardingFixture struct {
	repo   *sqlite.Repository
	svc    *OnboardingService
	events chan Event
}

func newOnboardingFixture(t *testing.T, prober *fakeProber) *onboardingFixture {
	t.Helper()
	ctx := context.Background()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	for _, d := range []domain.Device{
		{Hostname: "dist-01", Type: domain.DeviceTypeDist, State: domain.DeviceStateManaged},
		{Hostname: "dist-02", Type: domain.DeviceTypeDist, State: domain.DeviceStateManaged},
		{Hostname: "acc-01", Type: domain.DeviceTypeAccess, State: domain.DeviceStateManaged,
			ManagementIP: netip.MustParseAddr("10.0.6.2")},
		{Hostname: "acc-new", Type: domain.DeviceTypeAccess, State: domain.DeviceStateDiscovered},
	} {
		require.NoError(t, repo.UpsertDevice(ctx, &d))
	}
	vlan := 600
	md, err := domain.NewMgmtdomain("dist-01", "dist-02", "10.0.6.1/29", &vlan)
	require.NoError(t, err)
	require.NoError(t, repo.CreateMgmtdomain(ctx, md))

	bus := NewEventBus()
	events := make(chan Event, 16)
	bus.Subscribe(events)

	var p adapter.Prober
	if prober != nil {
		p = prober
	}
	svc := NewOnboardingService(repo, p, bus, zaptest.NewLogger(t))
	return &onboardingFixture{repo: repo, svc: svc, events: events}
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()

	t.Run("first free address", func(t *testing.T) {
		f := newOnboardingFixture(t, nil)
		alloc, err := f.svc.Allocate(ctx, "acc-new", []string{"dist-02", "dist-01"})
		require.NoError(t, err)
		assert.Equal(t, netip.MustParsePrefix("10.0.6.3/29"), alloc.IP)
		assert.Equal(t, netip.MustParseAddr("10.0.6.1"), alloc.Gateway)
		require.NotNil(t, alloc.VLAN)
		assert.Equal(t, 600, *alloc.VLAN)

		dev, err := f.repo.GetDevice(ctx, "acc-new")
		require.NoError(t, err)
		assert.Equal(t, netip.MustParseAddr("10.0.6.3"), dev.ManagementIP)
		assert.Equal(t, EventMgmtIPAllocated, (<-f.events).Type)
	})

	t.Run("reallocation keeps own address", func(t *testing.T) {
		f := newOnboardingFixture(t, nil)
		first, err := f.svc.Allocate(ctx, "acc-new", []string{"dist-01", "dist-02"})
		require.NoError(t, err)
		second, err := f.svc.Allocate(ctx, "acc-new", []string{"dist-01", "dist-02"})
		require.NoError(t, err)
		assert.Equal(t, first.IP, second.IP)
	})

	t.Run("live hosts are skipped", func(t *testing.T) {
		f := newOnboardingFixture(t, &fakeProber{live: []netip.Addr{
			netip.MustParseAddr("10.0.6.3"),
			netip.MustParseAddr("10.0.6.4"),
		}})
		alloc, err := f.svc.Allocate(ctx, "acc-new", []string{"dist-01", "dist-02"})
		require.NoError(t, err)
		assert.Equal(t, netip.MustParsePrefix("10.0.6.5/29"), alloc.IP)
	})

	t.Run("probe failure falls back to directory", func(t *testing.T) {
		f := newOnboardingFixture(t, &fakeProber{err: errors.New("nmap not found")})
		alloc, err := f.svc.Allocate(ctx, "acc-new", []string{"dist-01", "dist-02"})
		require.NoError(t, err)
		assert.Equal(t, netip.MustParsePrefix("10.0.6.3/29"), alloc.IP)
	})

	t.Run("subnet exhausted", func(t *testing.T) {
		f := newOnboardingFixture(t, &fakeProber{live: []netip.Addr{
			netip.MustParseAddr("10.0.6.3"),
			netip.MustParseAddr("10.0.6.4"),
			netip.MustParseAddr("10.0.6.5"),
			netip.MustParseAddr("10.0.6.6"),
		}})
		_, err := f.svc.Allocate(ctx, "acc-new", []string{"dist-01", "dist-02"})
		assert.ErrorIs(t, err, ErrNoFreeAddress)
	})

	t.Run("unknown device", func(t *testing.T) {
		f := newOnboardingFixture(t, nil)
		_, err := f.svc.Allocate(ctx, "acc-missing", []string{"dist-01", "dist-02"})
		assert.ErrorIs(t, err, mgmtdomain.ErrDeviceNotFound)
	})

	t.Run("no applicable mgmtdomain", func(t *testing.T) {
		f := newOnboardingFixture(t, nil)
		// access uplink whose management address is outside every domain
		require.NoError(t, f.repo.UpsertDevice(ctx, &domain.Device{
			Hostname: "acc-far", Type: domain.DeviceTypeAccess, State: domain.DeviceStateManaged,
			ManagementIP: netip.MustParseAddr("192.0.2.10"),
		}))
		_, err := f.svc.Allocate(ctx, "acc-new", []string{"acc-far"})
		assert.ErrorIs(t, err, ErrNoApplicableMgmtdomain)
	})

	t.Run("tier mismatch", func(t *testing.T) {
		f := newOnboardingFixture(t, nil)
		_, err := f.svc.Allocate(ctx, "acc-new", []string{"dist-01", "acc-01"})
		assert.ErrorIs(t, err, mgmtdomain.ErrTierMismatch)
	})
}

func TestFreeAddress(t *testing.T) {
	md, err := domain.NewMgmtdomain("a", "b", "10.0.6.1/30", nil)
	require.NoError(t, err)

	ip, err := freeAddress(md, nil)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.6.2"), ip)

	_, err = freeAddress(md, map[netip.Addr]bool{netip.MustParseAddr("10.0.6.2"): true})
	assert.ErrorIs(t, err, ErrNoFreeAddress)

	p2p, err := domain.NewMgmtdomain("a", "b", "10.0.6.0/31", nil)
	require.NoError(t, err)
	_, err = freeAddress(p2p, nil)
	assert.ErrorIs(t, err, ErrNoFreeAddress)
}

func TestRegisterDHCP(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(t, nil)
	ip := netip.MustParseAddr("10.0.0.50")

	dev, created, err := f.svc.RegisterDHCP(ctx, "08:00:27:AB:CD:EF", ip, "eos")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "mac-080027abcdef", dev.Hostname)
	assert.Equal(t, domain.DeviceTypeUnknown, dev.Type)
	assert.Equal(t, domain.DeviceStateDHCPBoot, dev.State)
	assert.Equal(t, EventDeviceRegistered, (<-f.events).Type)

	again, created, err := f.svc.RegisterDHCP(ctx, "0800.27ab.cdef", netip.MustParseAddr("10.0.0.51"), "eos")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, dev.Hostname, again.Hostname)
	assert.Equal(t, ip, again.DHCPIP, "existing record is left untouched")
	assert.Len(t, f.events, 0)

	_, _, err = f.svc.RegisterDHCP(ctx, "not-a-mac", ip, "eos")
	assert.Error(t, err)
}
