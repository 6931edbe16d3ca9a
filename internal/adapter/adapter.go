package adapter

import (
	"context"
	"net/netip"
)

// Prober discovers live hosts in a subnet
type Prober interface {
	// Name returns the unique identifier for this prober
	Name() string

	// LiveHosts returns the addresses in prefix that answered, sorted
	LiveHosts(ctx context.Context, prefix netip.Prefix) ([]netip.Addr, error)
}
