package domain

import (
	"crypto/sha256"
	"fmt"
)

// Link represents an adjacency between two devices in the topology graph
type Link struct {
	ID         string `json:"id"`
	DeviceA    string `json:"device_a"`
	InterfaceA string `json:"interface_a,omitempty"`
	DeviceB    string `json:"device_b"`
	InterfaceB string `json:"interface_b,omitempty"`
}

// NewLink creates a new link
func NewLink(deviceA, interfaceA, deviceB, interfaceB string) *Link {
	link := &Link{
		DeviceA:    deviceA,
		InterfaceA: interfaceA,
		DeviceB:    deviceB,
		InterfaceB: interfaceB,
	}
	link.ID = link.GenerateID()
	return link
}

// GenerateID creates a deterministic ID for the link based on endpoints
func (l *Link) GenerateID() string {
	a := l.DeviceA + ":" + l.InterfaceA
	b := l.DeviceB + ":" + l.InterfaceB
	if a > b {
		a, b = b, a
	}
	hash := sha256.Sum256([]byte(a + "-" + b))
	return fmt.Sprintf("%x", hash[:8])
}

// Peer returns the opposite endpoint of hostname, or "" if hostname is not on the link
func (l *Link) Peer(hostname string) string {
	switch hostname {
	case l.DeviceA:
		return l.DeviceB
	case l.DeviceB:
		return l.DeviceA
	}
	return ""
}
