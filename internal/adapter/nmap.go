package adapter

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"go.uber.org/zap"
)

// NmapProber finds live hosts with an nmap ping scan
type NmapProber struct {
	timeout      time.Duration
	minPrefixLen int
	icmpEcho     bool
	logger       *zap.Logger
}

// NewNmapProber creates a new nmap-based prober
func NewNmapProber(logger *zap.Logger, opts ...NmapOption) *NmapProber {
	p := &NmapProber{
		timeout:      2 * time.Minute,
		minPrefixLen: 20,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the prober identifier
func (n *NmapProber) Name() string {
	return "nmap"
}

// Available checks if the nmap binary can be run
func (n *NmapProber) Available(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return false
	}
	_, _, err = scanner.Run()
	return err == nil
}

// LiveHosts ping-scans prefix and returns the addresses that are up
func (n *NmapProber) LiveHosts(ctx context.Context, prefix netip.Prefix) ([]netip.Addr, error) {
	if !prefix.IsValid() || !prefix.Addr().Is4() {
		return nil, fmt.Errorf("invalid IPv4 prefix %s", prefix)
	}
	if prefix.Bits() < n.minPrefixLen {
		return nil, fmt.Errorf("refusing to scan %s: larger than /%d", prefix, n.minPrefixLen)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	opts := []nmap.Option{
		nmap.WithTargets(prefix.Masked().String()),
		nmap.WithPingScan(),
	}
	if n.icmpEcho {
		opts = append(opts, nmap.WithICMPEchoDiscovery())
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	n.logger.Debug("Nmap ping scan", zap.Stringer("prefix", prefix))
	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan of %s failed: %w", prefix, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		n.logger.Warn("Nmap scan warnings", zap.Stringer("prefix", prefix), zap.Strings("warnings", *warnings))
	}

	live, err := liveAddrs(result, prefix)
	if err != nil {
		return nil, err
	}
	n.logger.Info("Nmap ping scan complete", zap.Stringer("prefix", prefix), zap.Int("live", len(live)))
	return live, nil
}

// liveAddrs extracts the IPv4 addresses of hosts that are up and inside
// prefix from a scan result
func liveAddrs(result *nmap.Run, prefix netip.Prefix) ([]netip.Addr, error) {
	if result == nil {
		return nil, fmt.Errorf("nil scan result")
	}

	var live []netip.Addr
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}
		for _, addr := range host.Addresses {
			if addr.AddrType != "ipv4" {
				continue
			}
			ip, err := netip.ParseAddr(addr.Addr)
			if err != nil || !prefix.Contains(ip) {
				continue
			}
			live = append(live, ip)
			break
		}
	}
	slices.SortFunc(live, func(a, b netip.Addr) int { return a.Compare(b) })
	return slices.Compact(live), nil
}
