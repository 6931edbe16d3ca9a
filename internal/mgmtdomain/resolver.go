package mgmtdomain

import (
	"context"
	"fmt"
	"net/netip"

	"go.uber.org/zap"

	"fabricnms/internal/domain"
)

// Directory is the device and management domain lookup the resolver needs
type Directory interface {
	GetDevice(ctx context.Context, hostname string) (*domain.Device, error)
	ListMgmtdomains(ctx context.Context) ([]domain.Mgmtdomain, error)
	MgmtdomainsByDevice(ctx context.Context, hostname string) ([]domain.Mgmtdomain, error)
	MgmtdomainByPair(ctx context.Context, a, b string) (*domain.Mgmtdomain, error)
	MgmtdomainsWithEndpointType(ctx context.Context, t domain.DeviceType) ([]domain.Mgmtdomain, error)
}

// Resolver finds management domains for uplink devices
type Resolver struct {
	dir    Directory
	logger *zap.Logger
}

// NewResolver creates a resolver over dir
func NewResolver(dir Directory, logger *zap.Logger) *Resolver {
	return &Resolver{dir: dir, logger: logger}
}

// Resolve returns the management domain for a device with the given one
// or two uplink devices. A nil domain with a nil error means no domain
// applies.
func (r *Resolver) Resolve(ctx context.Context, hostnames ...string) (*domain.Mgmtdomain, error) {
	if len(hostnames) < 1 || len(hostnames) > 2 {
		return nil, fmt.Errorf("%w, got: %v", ErrHostnameCount, hostnames)
	}
	for _, h := range hostnames {
		if !domain.ValidHostname(h) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHostname, h)
		}
	}
	devices := make([]*domain.Device, len(hostnames))
	for i, h := range hostnames {
		dev, err := r.lookup(ctx, h)
		if err != nil {
			return nil, err
		}
		devices[i] = dev
	}

	if len(devices) == 1 {
		return r.resolveSingle(ctx, devices[0])
	}
	return r.resolvePair(ctx, devices[0], devices[1])
}

func (r *Resolver) lookup(ctx context.Context, hostname string) (*domain.Device, error) {
	dev, err := r.dir.GetDevice(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", hostname, err)
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, hostname)
	}
	return dev, nil
}

func (r *Resolver) resolveSingle(ctx context.Context, dev *domain.Device) (*domain.Mgmtdomain, error) {
	switch dev.Type {
	case domain.DeviceTypeDist:
		mds, err := r.dir.MgmtdomainsByDevice(ctx, dev.Hostname)
		if err != nil {
			return nil, fmt.Errorf("failed to list mgmtdomains for %s: %w", dev.Hostname, err)
		}
		if len(mds) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoMgmtdomain, dev.Hostname)
		}
		return &mds[0], nil
	case domain.DeviceTypeAccess:
		return r.FindByIP(ctx, dev.ManagementIP)
	}
	r.logger.Info("Management domain not applicable for uplink device type",
		zap.String("hostname", dev.Hostname), zap.String("device_type", string(dev.Type)))
	return nil, nil
}

func (r *Resolver) resolvePair(ctx context.Context, a, b *domain.Device) (*domain.Mgmtdomain, error) {
	if a.Type != b.Type {
		return nil, fmt.Errorf("%w: %s (%s), %s (%s)", ErrTierMismatch, a.Hostname, a.Type, b.Hostname, b.Type)
	}

	switch a.Type {
	case domain.DeviceTypeDist:
		md, err := r.dir.MgmtdomainByPair(ctx, a.Hostname, b.Hostname)
		if err != nil {
			return nil, fmt.Errorf("failed to look up mgmtdomain for %s and %s: %w", a.Hostname, b.Hostname, err)
		}
		if md != nil {
			return md, nil
		}
		return r.coreFallback(ctx, a.Hostname, b.Hostname)

	case domain.DeviceTypeAccess:
		mdA, err := r.FindByIP(ctx, a.ManagementIP)
		if err != nil {
			return nil, err
		}
		mdB, err := r.FindByIP(ctx, b.ManagementIP)
		if err != nil {
			return nil, err
		}
		if mdA == nil || mdB == nil {
			return nil, fmt.Errorf("%w: %s: %s, %s: %s",
				ErrMissingMgmtdomain, a.Hostname, gatewayString(mdA), b.Hostname, gatewayString(mdB))
		}
		if mdA.ID != mdB.ID {
			return nil, fmt.Errorf("%w: %s, %s", ErrInconsistentMgmtdomain, a.Hostname, b.Hostname)
		}
		return mdA, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnexpectedTier, a.Type)
}

// coreFallback serves distribution pairs without a domain of their own
// from the single domain that has a CORE endpoint
func (r *Resolver) coreFallback(ctx context.Context, a, b string) (*domain.Mgmtdomain, error) {
	mds, err := r.dir.MgmtdomainsWithEndpointType(ctx, domain.DeviceTypeCore)
	if err != nil {
		return nil, fmt.Errorf("failed to list core mgmtdomains: %w", err)
	}
	switch len(mds) {
	case 0:
		r.logger.Info("No mgmtdomain found for distribution pair", zap.String("device_a", a), zap.String("device_b", b))
		return nil, nil
	case 1:
		r.logger.Debug("Using core mgmtdomain for distribution pair",
			zap.String("device_a", a), zap.String("device_b", b), zap.Int64("mgmtdomain_id", mds[0].ID))
		return &mds[0], nil
	}
	return nil, ErrAmbiguousMgmtdomain
}

// FindByIP returns the first management domain whose subnet contains ip,
// or nil when none does
func (r *Resolver) FindByIP(ctx context.Context, ip netip.Addr) (*domain.Mgmtdomain, error) {
	if !ip.IsValid() {
		return nil, nil
	}
	mds, err := r.dir.ListMgmtdomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mgmtdomains: %w", err)
	}
	for i := range mds {
		if mds[i].Contains(ip) {
			return &mds[i], nil
		}
	}
	return nil, nil
}

// AllForDevice returns every management domain hostname is an endpoint of
func (r *Resolver) AllForDevice(ctx context.Context, hostname string) ([]domain.Mgmtdomain, error) {
	if !domain.ValidHostname(hostname) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}
	if _, err := r.lookup(ctx, hostname); err != nil {
		return nil, err
	}
	mds, err := r.dir.MgmtdomainsByDevice(ctx, hostname)
	if err != nil {
		return nil, fmt.Errorf("failed to list mgmtdomains for %s: %w", hostname, err)
	}
	return mds, nil
}

func gatewayString(md *domain.Mgmtdomain) string {
	if md == nil {
		return "None"
	}
	return md.IPv4Gateway.String()
}
