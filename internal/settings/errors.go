package settings

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPathNotInCatalogue is returned for settings paths outside the
	// repository catalogue
	ErrPathNotInCatalogue = errors.New("settings path not in catalogue")

	// ErrUnknownDeviceType is returned when resolving settings for tier UNKNOWN
	ErrUnknownDeviceType = errors.New("it is not possible to get settings for devices with type UNKNOWN")
)

// DirStructureError reports a settings repository that is missing a
// required file or directory
type DirStructureError struct {
	Path   string
	Reason string
}

func (e *DirStructureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Violation is a single schema or filter failure
type Violation struct {
	Path     []string
	Value    Value
	Origin   string
	Expected string
	Message  string
}

func (v Violation) String() string {
	origin := v.Origin
	if origin == "" {
		origin = "unknown"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Validation error for setting %s, bad value: %s (value origin: %s)\n",
		strings.Join(v.Path, "->"), v.Value, origin)
	b.WriteString("Message: ")
	b.WriteString(v.Message)
	if v.Expected != "" {
		b.WriteString(", field should be: ")
		b.WriteString(v.Expected)
	}
	b.WriteByte('\n')
	return b.String()
}

// SyntaxError aggregates every violation found in one settings tree
type SyntaxError struct {
	Violations []Violation
}

func (e *SyntaxError) Error() string {
	var b strings.Builder
	for _, v := range e.Violations {
		b.WriteString(v.String())
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// CollisionKind names the identifier that collided
type CollisionKind string

const (
	CollisionVNI      CollisionKind = "vni"
	CollisionVLANID   CollisionKind = "vlan_id"
	CollisionVLANName CollisionKind = "vlan_name"
	CollisionMgmtVLAN CollisionKind = "management_vlan"
)

// CollisionError reports the first VLAN/VNI conflict found in the fleet
type CollisionError struct {
	Kind     CollisionKind
	ID       int
	Name     string
	VXLAN    string
	Owner    string
	Hostname string
}

func (e *CollisionError) Error() string {
	switch e.Kind {
	case CollisionVNI:
		return fmt.Sprintf("VXLAN VNI %d used in VXLAN %s is already used by VXLAN %s", e.ID, e.VXLAN, e.Owner)
	case CollisionVLANID:
		if e.Hostname != "" {
			return fmt.Sprintf("VLAN id %d used in VXLAN %s is already used by VXLAN %s in device %s",
				e.ID, e.VXLAN, e.Owner, e.Hostname)
		}
		return fmt.Sprintf("VLAN id %d used in VXLAN %s is already used elsewhere by %s", e.ID, e.VXLAN, e.Owner)
	case CollisionVLANName:
		return fmt.Sprintf("VLAN name %s used multiple times in device %s (VXLAN %s and %s)",
			e.Name, e.Hostname, e.Owner, e.VXLAN)
	case CollisionMgmtVLAN:
		return fmt.Sprintf("management VLAN %d used in multiple management domains", e.ID)
	}
	return fmt.Sprintf("%s collision", e.Kind)
}
