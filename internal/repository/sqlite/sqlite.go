package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fabricnms/internal/domain"
	"fabricnms/internal/repository"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store implements repository.Directory against a queryer
type store struct {
	q queryer
}

// Repository implements repository.Repository using SQLite
type Repository struct {
	*store
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps an in-memory database on a single connection
	db.SetMaxOpenConns(1)

	repo := &Repository{store: &store{q: db}, db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hostname TEXT NOT NULL UNIQUE,
		device_type TEXT NOT NULL DEFAULT 'UNKNOWN',
		state TEXT NOT NULL DEFAULT 'UNKNOWN',
		management_ip TEXT,
		dhcp_ip TEXT,
		ztp_mac TEXT,
		platform TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS mgmtdomains (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_a TEXT NOT NULL,
		device_b TEXT NOT NULL,
		ipv4_gw TEXT NOT NULL,
		vlan INTEGER,
		description TEXT,
		CHECK (device_a <> device_b),
		FOREIGN KEY (device_a) REFERENCES devices(hostname) ON DELETE CASCADE ON UPDATE CASCADE,
		FOREIGN KEY (device_b) REFERENCES devices(hostname) ON DELETE CASCADE ON UPDATE CASCADE
	);

	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		device_a TEXT NOT NULL,
		interface_a TEXT NOT NULL DEFAULT '',
		device_b TEXT NOT NULL,
		interface_b TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (device_a) REFERENCES devices(hostname) ON DELETE CASCADE ON UPDATE CASCADE,
		FOREIGN KEY (device_b) REFERENCES devices(hostname) ON DELETE CASCADE ON UPDATE CASCADE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_devices_ztp_mac ON devices(ztp_mac) WHERE ztp_mac IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_devices_state ON devices(state);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_mgmtdomains_pair
		ON mgmtdomains(min(device_a, device_b), max(device_a, device_b));
	CREATE INDEX IF NOT EXISTS idx_mgmtdomains_device_b ON mgmtdomains(device_b);
	CREATE INDEX IF NOT EXISTS idx_links_device_a ON links(device_a);
	CREATE INDEX IF NOT EXISTS idx_links_device_b ON links(device_b);
	`

	_, err := r.db.Exec(schema)
	return err
}

// WithTx runs fn against a Directory bound to one transaction
func (r *Repository) WithTx(ctx context.Context, fn func(repository.Directory) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&store{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// ============================================================================
// Devices
// ============================================================================

func (s *store) queryDevices(ctx context.Context, query string, args ...any) ([]domain.Device, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		var row deviceRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		dev, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		devices = append(devices, *dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	return devices, nil
}

func (s *store) queryDevice(ctx context.Context, query string, args ...any) (*domain.Device, error) {
	var row deviceRow
	err := s.q.QueryRowContext(ctx, query, args...).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return row.toDomain()
}

// GetDevice retrieves a device by hostname
func (s *store) GetDevice(ctx context.Context, hostname string) (*domain.Device, error) {
	return s.queryDevice(ctx, `SELECT `+deviceColumns+` FROM devices WHERE hostname = ?`, hostname)
}

// GetDeviceByMAC retrieves a device by its canonical ZTP MAC
func (s *store) GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	return s.queryDevice(ctx, `SELECT `+deviceColumns+` FROM devices WHERE ztp_mac = ?`, mac)
}

// ListDevices returns the devices matching filter, ordered by hostname
func (s *store) ListDevices(ctx context.Context, filter repository.DeviceFilter) ([]domain.Device, error) {
	var where []string
	var args []any
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}
	if filter.Type != "" {
		where = append(where, "device_type = ?")
		args = append(args, string(filter.Type))
	}

	query := `SELECT ` + deviceColumns + ` FROM devices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY hostname`
	return s.queryDevices(ctx, query, args...)
}

// ListDevicesByState returns the devices in state, ordered by hostname
func (s *store) ListDevicesByState(ctx context.Context, state domain.DeviceState) ([]domain.Device, error) {
	return s.ListDevices(ctx, repository.DeviceFilter{State: state})
}

// UpsertDevice inserts or updates a device keyed by hostname and sets its ID
func (s *store) UpsertDevice(ctx context.Context, dev *domain.Device) error {
	now := time.Now().UTC()
	if dev.CreatedAt.IsZero() {
		dev.CreatedAt = now
	}
	dev.UpdatedAt = now

	err := s.q.QueryRowContext(ctx, `
		INSERT INTO devices (hostname, device_type, state, management_ip, dhcp_ip, ztp_mac,
			platform, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hostname) DO UPDATE SET
			device_type = excluded.device_type,
			state = excluded.state,
			management_ip = excluded.management_ip,
			dhcp_ip = excluded.dhcp_ip,
			ztp_mac = excluded.ztp_mac,
			platform = excluded.platform,
			updated_at = excluded.updated_at
		RETURNING id
	`, deviceWriteArgs(dev)...).Scan(&dev.ID)
	if isConstraint(err, uniqueViolation...) {
		return fmt.Errorf("%w: MAC %s already registered", repository.ErrConflict, dev.ZTPMAC)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", dev.Hostname, err)
	}
	return nil
}

// RegisterDHCPDevice inserts dev unless a device with the same ZTP MAC
// exists. On an existing MAC, dev is overwritten with the stored device
// and created is false.
func (s *store) RegisterDHCPDevice(ctx context.Context, dev *domain.Device) (bool, error) {
	existing, err := s.GetDeviceByMAC(ctx, dev.ZTPMAC)
	if err != nil {
		return false, err
	}
	if existing != nil {
		*dev = *existing
		return false, nil
	}
	if err := s.UpsertDevice(ctx, dev); err != nil {
		return false, err
	}
	return true, nil
}

// ============================================================================
// Management Domains
// ============================================================================

func (s *store) queryMgmtdomains(ctx context.Context, query string, args ...any) ([]domain.Mgmtdomain, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mgmtdomains: %w", err)
	}
	defer rows.Close()

	var mds []domain.Mgmtdomain
	for rows.Next() {
		var row mgmtdomainRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan mgmtdomain: %w", err)
		}
		md, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		mds = append(mds, *md)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mgmtdomains: %w", err)
	}
	return mds, nil
}

// CreateMgmtdomain inserts md and sets its ID. A DIST device may be the
// endpoint of at most one management domain.
func (s *store) CreateMgmtdomain(ctx context.Context, md *domain.Mgmtdomain) error {
	for _, h := range []string{md.DeviceA, md.DeviceB} {
		dev, err := s.GetDevice(ctx, h)
		if err != nil {
			return err
		}
		if dev == nil {
			return fmt.Errorf("%w: device %s", repository.ErrNotFound, h)
		}
		if dev.Type != domain.DeviceTypeDist {
			continue
		}
		existing, err := s.MgmtdomainsByDevice(ctx, h)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: distribution device %s already has mgmtdomain %d",
				repository.ErrConflict, h, existing[0].ID)
		}
	}

	err := s.q.QueryRowContext(ctx, `
		INSERT INTO mgmtdomains (device_a, device_b, ipv4_gw, vlan, description)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, md.DeviceA, md.DeviceB, md.IPv4Gateway.String(), intPtrToNull(md.VLAN), stringToNull(md.Description)).Scan(&md.ID)
	if isConstraint(err, uniqueViolation...) {
		return fmt.Errorf("%w: mgmtdomain for %s and %s already exists", repository.ErrConflict, md.DeviceA, md.DeviceB)
	}
	if err != nil {
		return fmt.Errorf("failed to insert mgmtdomain: %w", err)
	}
	return nil
}

// ListMgmtdomains returns every management domain ordered by ID
func (s *store) ListMgmtdomains(ctx context.Context) ([]domain.Mgmtdomain, error) {
	return s.queryMgmtdomains(ctx, `SELECT `+mgmtdomainColumns+` FROM mgmtdomains ORDER BY id`)
}

// MgmtdomainsByDevice returns the management domains with hostname as an endpoint
func (s *store) MgmtdomainsByDevice(ctx context.Context, hostname string) ([]domain.Mgmtdomain, error) {
	return s.queryMgmtdomains(ctx, `
		SELECT `+mgmtdomainColumns+` FROM mgmtdomains
		WHERE device_a = ? OR device_b = ?
		ORDER BY id
	`, hostname, hostname)
}

// MgmtdomainByPair returns the management domain of the unordered pair {a, b}
func (s *store) MgmtdomainByPair(ctx context.Context, a, b string) (*domain.Mgmtdomain, error) {
	mds, err := s.queryMgmtdomains(ctx, `
		SELECT `+mgmtdomainColumns+` FROM mgmtdomains
		WHERE (device_a = ? AND device_b = ?) OR (device_a = ? AND device_b = ?)
	`, a, b, b, a)
	if err != nil {
		return nil, err
	}
	if len(mds) == 0 {
		return nil, nil
	}
	return &mds[0], nil
}

// MgmtdomainsWithEndpointType returns the management domains having at
// least one endpoint of type t
func (s *store) MgmtdomainsWithEndpointType(ctx context.Context, t domain.DeviceType) ([]domain.Mgmtdomain, error) {
	return s.queryMgmtdomains(ctx, `
		SELECT `+mgmtdomainColumnsM+` FROM mgmtdomains m
		JOIN devices a ON a.hostname = m.device_a
		JOIN devices b ON b.hostname = m.device_b
		WHERE a.device_type = ? OR b.device_type = ?
		ORDER BY m.id
	`, string(t), string(t))
}

// ============================================================================
// Topology
// ============================================================================

// CreateLink inserts or replaces a link between two existing devices
func (s *store) CreateLink(ctx context.Context, link *domain.Link) error {
	if link.ID == "" {
		link.ID = link.GenerateID()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO links (id, device_a, interface_a, device_b, interface_b)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			device_a = excluded.device_a,
			interface_a = excluded.interface_a,
			device_b = excluded.device_b,
			interface_b = excluded.interface_b
	`, link.ID, link.DeviceA, link.InterfaceA, link.DeviceB, link.InterfaceB)
	if isConstraint(err, foreignKeyViolation...) {
		return fmt.Errorf("%w: link endpoint %s or %s", repository.ErrNotFound, link.DeviceA, link.DeviceB)
	}
	if err != nil {
		return fmt.Errorf("failed to insert link %s: %w", link.ID, err)
	}
	return nil
}

// Neighbors returns the devices linked to hostname, ordered by hostname
func (s *store) Neighbors(ctx context.Context, hostname string) ([]domain.Device, error) {
	return s.queryDevices(ctx, `
		SELECT DISTINCT `+deviceColumnsD+` FROM devices d
		JOIN links l ON (l.device_a = ? AND d.hostname = l.device_b)
			OR (l.device_b = ? AND d.hostname = l.device_a)
		ORDER BY d.hostname
	`, hostname, hostname)
}
