package domain

import (
	"fmt"
	"net/netip"
)

// Mgmtdomain is a management subnet shared by an uplink pair
type Mgmtdomain struct {
	ID          int64        `json:"id"`
	DeviceA     string       `json:"device_a"`
	DeviceB     string       `json:"device_b"`
	IPv4Gateway netip.Prefix `json:"ipv4_gw"`
	VLAN        *int         `json:"vlan,omitempty"`
	Description string       `json:"description,omitempty"`
}

// NewMgmtdomain builds a management domain from a gateway interface
// address such as "10.0.6.1/24"
func NewMgmtdomain(deviceA, deviceB, gateway string, vlan *int) (*Mgmtdomain, error) {
	gw, err := netip.ParsePrefix(gateway)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway %q: %w", gateway, err)
	}
	if !gw.Addr().Is4() {
		return nil, fmt.Errorf("gateway %q is not IPv4", gateway)
	}
	return &Mgmtdomain{
		DeviceA:     deviceA,
		DeviceB:     deviceB,
		IPv4Gateway: gw,
		VLAN:        vlan,
	}, nil
}

// Subnet returns the network the gateway address defines
func (m *Mgmtdomain) Subnet() netip.Prefix {
	return m.IPv4Gateway.Masked()
}

// Gateway returns the gateway address without its prefix length
func (m *Mgmtdomain) Gateway() netip.Addr {
	return m.IPv4Gateway.Addr()
}

// Contains reports whether ip lies inside the domain's subnet
func (m *Mgmtdomain) Contains(ip netip.Addr) bool {
	if !ip.IsValid() || !m.IPv4Gateway.IsValid() {
		return false
	}
	return m.Subnet().Contains(ip.Unmap())
}

// HasEndpoint reports whether hostname is either end of the pair
func (m *Mgmtdomain) HasEndpoint(hostname string) bool {
	return m.DeviceA == hostname || m.DeviceB == hostname
}

// Connects reports whether the domain's unordered pair equals {a, b}
func (m *Mgmtdomain) Connects(a, b string) bool {
	return (m.DeviceA == a && m.DeviceB == b) || (m.DeviceA == b && m.DeviceB == a)
}
