package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fabricnms/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// addrToNull stores an unset address as NULL
func addrToNull(a netip.Addr) sql.NullString {
	if !a.IsValid() {
		return sql.NullString{}
	}
	return sql.NullString{String: a.String(), Valid: true}
}

// nullToAddr parses a stored address; NULL yields the zero Addr
func nullToAddr(ns sql.NullString) (netip.Addr, error) {
	if !ns.Valid || ns.String == "" {
		return netip.Addr{}, nil
	}
	return netip.ParseAddr(ns.String)
}

// intPtrToNull stores a nil *int as NULL
func intPtrToNull(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// nullToIntPtr converts sql.NullInt64 to *int
func nullToIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

// isConstraint reports whether err is a SQLite constraint violation with
// one of the given extended result codes
func isConstraint(err error, codes ...int) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	for _, c := range codes {
		if serr.Code() == c {
			return true
		}
	}
	return false
}

var uniqueViolation = []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY}

var foreignKeyViolation = []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a new column to the devices table:
// 1. Add field to deviceRow struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update deviceColumns constant - APPEND to end
// 4. Update toDomain() to map new field to domain.Device
// 5. Update deviceWriteArgs() if column should be writable
// 6. Add migration in sqlite.go migrate()
// 7. Update relevant tests
//
// CRITICAL: Column order must match between:
// - deviceColumns constant
// - scanArgs() return slice
// - All SELECT queries using deviceColumns
//
// Same pattern applies to mgmtdomains.

// ============================================================================
// Device Row Scanner
// ============================================================================

// deviceRow holds all columns from a device query for scanning
type deviceRow struct {
	ID           int64
	Hostname     string
	DeviceType   string
	State        string
	ManagementIP sql.NullString
	DHCPIP       sql.NullString
	ZTPMAC       sql.NullString
	Platform     sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match deviceColumns order exactly:
// id, hostname, device_type, state, management_ip, dhcp_ip, ztp_mac,
// platform, created_at, updated_at
func (r *deviceRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,           // 1
		&r.Hostname,     // 2
		&r.DeviceType,   // 3
		&r.State,        // 4
		&r.ManagementIP, // 5
		&r.DHCPIP,       // 6
		&r.ZTPMAC,       // 7
		&r.Platform,     // 8
		&r.CreatedAt,    // 9
		&r.UpdatedAt,    // 10
	}
}

// toDomain converts the scanned row to a domain.Device
func (r *deviceRow) toDomain() (*domain.Device, error) {
	dev := &domain.Device{
		ID:        r.ID,
		Hostname:  r.Hostname,
		Type:      domain.DeviceType(r.DeviceType),
		State:     domain.DeviceState(r.State),
		ZTPMAC:    nullToString(r.ZTPMAC),
		Platform:  nullToString(r.Platform),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	var err error
	if dev.ManagementIP, err = nullToAddr(r.ManagementIP); err != nil {
		return nil, fmt.Errorf("parse management_ip of %s: %w", r.Hostname, err)
	}
	if dev.DHCPIP, err = nullToAddr(r.DHCPIP); err != nil {
		return nil, fmt.Errorf("parse dhcp_ip of %s: %w", r.Hostname, err)
	}
	return dev, nil
}

// deviceColumns returns the SELECT column list for device queries
const deviceColumns = `id, hostname, device_type, state, management_ip, dhcp_ip, ztp_mac,
	platform, created_at, updated_at`

// deviceColumnsD is deviceColumns qualified for joins on alias d
const deviceColumnsD = `d.id, d.hostname, d.device_type, d.state, d.management_ip, d.dhcp_ip, d.ztp_mac,
	d.platform, d.created_at, d.updated_at`

// deviceWriteArgs prepares arguments for device INSERT/UPSERT
// Returns: hostname, device_type, state, management_ip, dhcp_ip, ztp_mac,
//
//	platform, created_at, updated_at
func deviceWriteArgs(dev *domain.Device) []interface{} {
	return []interface{}{
		dev.Hostname,
		string(dev.Type),
		string(dev.State),
		addrToNull(dev.ManagementIP),
		addrToNull(dev.DHCPIP),
		stringToNull(dev.ZTPMAC),
		stringToNull(dev.Platform),
		dev.CreatedAt,
		dev.UpdatedAt,
	}
}

// ============================================================================
// Mgmtdomain Row Scanner
// ============================================================================

// mgmtdomainRow holds all columns from a mgmtdomain query for scanning
type mgmtdomainRow struct {
	ID          int64
	DeviceA     string
	DeviceB     string
	IPv4Gateway string
	VLAN        sql.NullInt64
	Description sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match mgmtdomainColumns order exactly:
// id, device_a, device_b, ipv4_gw, vlan, description
func (r *mgmtdomainRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,          // 1
		&r.DeviceA,     // 2
		&r.DeviceB,     // 3
		&r.IPv4Gateway, // 4
		&r.VLAN,        // 5
		&r.Description, // 6
	}
}

// toDomain converts the scanned row to a domain.Mgmtdomain
func (r *mgmtdomainRow) toDomain() (*domain.Mgmtdomain, error) {
	gw, err := netip.ParsePrefix(r.IPv4Gateway)
	if err != nil {
		return nil, fmt.Errorf("parse ipv4_gw of mgmtdomain %d: %w", r.ID, err)
	}
	return &domain.Mgmtdomain{
		ID:          r.ID,
		DeviceA:     r.DeviceA,
		DeviceB:     r.DeviceB,
		IPv4Gateway: gw,
		VLAN:        nullToIntPtr(r.VLAN),
		Description: nullToString(r.Description),
	}, nil
}

// mgmtdomainColumns returns the SELECT column list for mgmtdomain queries
const mgmtdomainColumns = `id, device_a, device_b, ipv4_gw, vlan, description`

// mgmtdomainColumnsM is mgmtdomainColumns qualified for joins on alias m
const mgmtdomainColumnsM = `m.id, m.device_a, m.device_b, m.ipv4_gw, m.vlan, m.description`
