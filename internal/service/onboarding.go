package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"fabricnms/internal/adapter"
	"fabricnms/internal/domain"
	"fabricnms/internal/mgmtdomain"
	"fabricnms/internal/repository"
)

var (
	// ErrNoApplicableMgmtdomain is returned when the uplinks resolve to no
	// management domain
	ErrNoApplicableMgmtdomain = errors.New("no applicable mgmtdomain for uplinks")

	// ErrNoFreeAddress is returned when a management subnet is exhausted
	ErrNoFreeAddress = errors.New("no free address in mgmtdomain")
)

// Allocation is the management addressing handed to a new device
type Allocation struct {
	Hostname   string             `json:"hostname"`
	IP         netip.Prefix       `json:"mgmt_ip"`
	Gateway    netip.Addr         `json:"mgmt_gw"`
	VLAN       *int               `json:"mgmt_vlan_id,omitempty"`
	Mgmtdomain *domain.Mgmtdomain `json:"mgmtdomain"`
}

// OnboardingService handles devices entering the fabric
type OnboardingService struct {
	repo     repository.Repository
	resolver *mgmtdomain.Resolver
	prober   adapter.Prober
	eventBus *EventBus
	logger   *zap.Logger
}

// NewOnboardingService creates a new onboarding service. prober may be nil,
// in which case only the directory decides which addresses are taken.
func NewOnboardingService(repo repository.Repository, prober adapter.Prober, eventBus *EventBus, logger *zap.Logger) *OnboardingService {
	return &OnboardingService{
		repo:     repo,
		resolver: mgmtdomain.NewResolver(repo, logger),
		prober:   prober,
		eventBus: eventBus,
		logger:   logger,
	}
}

// ResolveMgmtdomain finds the management domain for one or two uplinks
func (s *OnboardingService) ResolveMgmtdomain(ctx context.Context, hostnames ...string) (*domain.Mgmtdomain, error) {
	return s.resolver.Resolve(ctx, hostnames...)
}

// MgmtdomainsForDevice lists the management domains hostname is an endpoint of
func (s *OnboardingService) MgmtdomainsForDevice(ctx context.Context, hostname string) ([]domain.Mgmtdomain, error) {
	return s.resolver.AllForDevice(ctx, hostname)
}

// RegisterDHCP records the first DHCP sighting of a MAC. It returns the
// device registered for the MAC and whether this call created it.
func (s *OnboardingService) RegisterDHCP(ctx context.Context, mac string, dhcpIP netip.Addr, platform string) (*domain.Device, bool, error) {
	dev, err := domain.NewDHCPDevice(mac, dhcpIP, platform)
	if err != nil {
		return nil, false, err
	}

	var created bool
	err = s.repo.WithTx(ctx, func(dir repository.Directory) error {
		var err error
		created, err = dir.RegisterDHCPDevice(ctx, dev)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to register %s: %w", mac, err)
	}
	if !created {
		// dev now holds the existing record
		s.logger.Warn("DHCP device already registered",
			zap.String("mac", dev.ZTPMAC), zap.String("hostname", dev.Hostname))
		return dev, false, nil
	}

	s.logger.Info("Registered DHCP device",
		zap.String("hostname", dev.Hostname), zap.Stringer("dhcp_ip", dhcpIP), zap.String("platform", platform))
	s.eventBus.Publish(Event{
		Type:    EventDeviceRegistered,
		Payload: map[string]string{"hostname": dev.Hostname, "mac": dev.ZTPMAC},
	})
	return dev, true, nil
}

// Allocate picks the management address of hostname from the management
// domain of its uplinks and stores it on the device. The address is the
// lowest host address of the domain's subnet that is not the gateway, not
// assigned to a device and not answering a probe.
func (s *OnboardingService) Allocate(ctx context.Context, hostname string, uplinks []string) (*Allocation, error) {
	md, err := s.resolver.Resolve(ctx, uplinks...)
	if err != nil {
		return nil, err
	}
	if md == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoApplicableMgmtdomain, uplinks)
	}

	var live []netip.Addr
	if s.prober != nil {
		live, err = s.prober.LiveHosts(ctx, md.Subnet())
		if err != nil {
			s.logger.Warn("Probe of management subnet failed, using directory only",
				zap.String("prober", s.prober.Name()), zap.Stringer("subnet", md.Subnet()), zap.Error(err))
			live = nil
		}
	}

	var alloc *Allocation
	err = s.repo.WithTx(ctx, func(dir repository.Directory) error {
		dev, err := dir.GetDevice(ctx, hostname)
		if err != nil {
			return err
		}
		if dev == nil {
			return fmt.Errorf("%w: %s", mgmtdomain.ErrDeviceNotFound, hostname)
		}

		devices, err := dir.ListDevices(ctx, repository.DeviceFilter{})
		if err != nil {
			return err
		}
		taken := make(map[netip.Addr]bool, len(devices)+len(live))
		for _, d := range devices {
			if d.ManagementIP.IsValid() && d.Hostname != hostname {
				taken[d.ManagementIP] = true
			}
		}
		for _, ip := range live {
			taken[ip] = true
		}

		ip, err := freeAddress(md, taken)
		if err != nil {
			return err
		}

		dev.ManagementIP = ip
		dev.UpdatedAt = time.Now()
		if err := dir.UpsertDevice(ctx, dev); err != nil {
			return err
		}
		alloc = &Allocation{
			Hostname:   hostname,
			IP:         netip.PrefixFrom(ip, md.Subnet().Bits()),
			Gateway:    md.Gateway(),
			VLAN:       md.VLAN,
			Mgmtdomain: md,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Allocated management address",
		zap.String("hostname", hostname), zap.Stringer("ip", alloc.IP), zap.Int64("mgmtdomain", md.ID))
	s.eventBus.Publish(Event{
		Type:    EventMgmtIPAllocated,
		Payload: alloc,
	})
	return alloc, nil
}

// freeAddress returns the lowest usable host address of md's subnet not in taken
func freeAddress(md *domain.Mgmtdomain, taken map[netip.Addr]bool) (netip.Addr, error) {
	subnet := md.Subnet()
	if subnet.Bits() >= 31 {
		return netip.Addr{}, fmt.Errorf("%w: subnet %s has no host addresses", ErrNoFreeAddress, subnet)
	}
	gw := md.Gateway()
	for ip := subnet.Addr().Next(); subnet.Contains(ip); ip = ip.Next() {
		if !subnet.Contains(ip.Next()) {
			// broadcast
			break
		}
		if ip == gw || taken[ip] {
			continue
		}
		return ip, nil
	}
	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNoFreeAddress, subnet)
}
