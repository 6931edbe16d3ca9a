package adapter

import "time"

// NmapOption is a functional option for configuring NmapProber
type NmapOption func(*NmapProber)

// WithTimeout sets the timeout for a single subnet scan
func WithTimeout(d time.Duration) NmapOption {
	return func(n *NmapProber) {
		n.timeout = d
	}
}

// WithMinPrefixLen refuses to scan subnets larger than /bits
func WithMinPrefixLen(bits int) NmapOption {
	return func(n *NmapProber) {
		if bits >= 0 && bits <= 32 {
			n.minPrefixLen = bits
		}
	}
}

// WithICMPEcho adds ICMP echo requests (-PE) to the default discovery probes
func WithICMPEcho(enabled bool) NmapOption {
	return func(n *NmapProber) {
		n.icmpEcho = enabled
	}
}
