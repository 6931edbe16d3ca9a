package domain

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DeviceType is a device's tier in the fabric hierarchy
type DeviceType string

const (
	DeviceTypeUnknown DeviceType = "UNKNOWN"
	DeviceTypeAccess  DeviceType = "ACCESS"
	DeviceTypeDist    DeviceType = "DIST"
	DeviceTypeCore    DeviceType = "CORE"
	DeviceTypeFabric  DeviceType = "FABRIC"
)

// ParseDeviceType converts a case-insensitive tier name into a DeviceType.
// An empty string yields the zero DeviceType, meaning "not given".
func ParseDeviceType(s string) (DeviceType, error) {
	if s == "" {
		return "", nil
	}
	t := DeviceType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case DeviceTypeUnknown, DeviceTypeAccess, DeviceTypeDist, DeviceTypeCore, DeviceTypeFabric:
		return t, nil
	}
	return "", fmt.Errorf("invalid device type %q", s)
}

// IsFabric reports whether the tier belongs to the routed fabric (dist + core)
func (t DeviceType) IsFabric() bool {
	return t == DeviceTypeDist || t == DeviceTypeCore
}

// DirName returns the settings repository directory for the tier
func (t DeviceType) DirName() string {
	return strings.ToLower(string(t))
}

// DeviceState is a device's lifecycle state
type DeviceState string

const (
	DeviceStateUnknown       DeviceState = "UNKNOWN"
	DeviceStatePreConfigured DeviceState = "PRE_CONFIGURED"
	DeviceStateDHCPBoot      DeviceState = "DHCP_BOOT"
	DeviceStateDiscovered    DeviceState = "DISCOVERED"
	DeviceStateInit          DeviceState = "INIT"
	DeviceStateManaged       DeviceState = "MANAGED"
	DeviceStateManagedNoIf   DeviceState = "MANAGED_NOIF"
	DeviceStateUnmanaged     DeviceState = "UNMANAGED"
)

// Device represents a fabric switch known to the directory
type Device struct {
	ID           int64       `json:"id"`
	Hostname     string      `json:"hostname"`
	Type         DeviceType  `json:"device_type"`
	State        DeviceState `json:"state"`
	ManagementIP netip.Addr  `json:"management_ip,omitzero"`
	DHCPIP       netip.Addr  `json:"dhcp_ip,omitzero"`
	ZTPMAC       string      `json:"ztp_mac,omitempty"`
	Platform     string      `json:"platform,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewDHCPDevice creates the record registered on the first DHCP sighting of a MAC
func NewDHCPDevice(mac string, dhcpIP netip.Addr, platform string) (*Device, error) {
	canonical, err := CanonicalMAC(mac)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Device{
		Hostname:  "mac-" + canonical,
		Type:      DeviceTypeUnknown,
		State:     DeviceStateDHCPBoot,
		DHCPIP:    dhcpIP,
		ZTPMAC:    canonical,
		Platform:  platform,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const maxHostnameLength = 253

var hostnameLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// ValidHostname reports whether s is usable as a device hostname.
// Labels are restricted to letters, digits and inner hyphens, which also
// keeps hostnames safe to use as settings repository path components.
func ValidHostname(s string) bool {
	if s == "" || len(s) > maxHostnameLength {
		return false
	}
	if _, ok := dns.IsDomainName(s); !ok {
		return false
	}
	for _, label := range strings.Split(strings.TrimSuffix(s, "."), ".") {
		if !hostnameLabel.MatchString(label) {
			return false
		}
	}
	return true
}

// ErrInvalidMAC is returned for strings that are not a MAC address
var ErrInvalidMAC = errors.New("invalid MAC address")

// CanonicalMAC returns the bare lowercase hex form of a MAC address
// (e.g. "0800.2700.0001" and "08:00:27:00:00:01" both yield "080027000001")
func CanonicalMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		bare := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.ToLower(mac))
		if len(bare) != 12 {
			return "", fmt.Errorf("%w %q", ErrInvalidMAC, mac)
		}
		hw, err = net.ParseMAC(strings.Join([]string{
			bare[0:2], bare[2:4], bare[4:6], bare[6:8], bare[8:10], bare[10:12],
		}, ":"))
		if err != nil {
			return "", fmt.Errorf("%w %q", ErrInvalidMAC, mac)
		}
	}
	return strings.ReplaceAll(hw.String(), ":", ""), nil
}
