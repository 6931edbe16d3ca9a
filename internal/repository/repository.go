package repository

import (
	"context"
	"errors"

	"fabricnms/internal/domain"
)

var (
	// ErrNotFound is returned by writes that reference a missing device
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would break a uniqueness rule
	ErrConflict = errors.New("conflict")
)

// DeviceFilter narrows ListDevices; zero fields match everything
type DeviceFilter struct {
	State domain.DeviceState
	Type  domain.DeviceType
}

// Directory is the device directory: devices, management domains and links.
// Single-row lookups return nil, nil when nothing matches.
type Directory interface {
	// Devices
	GetDevice(ctx context.Context, hostname string) (*domain.Device, error)
	GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error)
	ListDevices(ctx context.Context, filter DeviceFilter) ([]domain.Device, error)
	ListDevicesByState(ctx context.Context, state domain.DeviceState) ([]domain.Device, error)
	UpsertDevice(ctx context.Context, dev *domain.Device) error
	RegisterDHCPDevice(ctx context.Context, dev *domain.Device) (created bool, err error)

	// Management domains
	CreateMgmtdomain(ctx context.Context, md *domain.Mgmtdomain) error
	ListMgmtdomains(ctx context.Context) ([]domain.Mgmtdomain, error)
	MgmtdomainsByDevice(ctx context.Context, hostname string) ([]domain.Mgmtdomain, error)
	MgmtdomainByPair(ctx context.Context, a, b string) (*domain.Mgmtdomain, error)
	MgmtdomainsWithEndpointType(ctx context.Context, t domain.DeviceType) ([]domain.Mgmtdomain, error)

	// Topology
	CreateLink(ctx context.Context, link *domain.Link) error
	Neighbors(ctx context.Context, hostname string) ([]domain.Device, error)
}

// Repository is a Directory with transactions
type Repository interface {
	Directory

	// WithTx runs fn in a transaction that commits if fn returns nil
	WithTx(ctx context.Context, fn func(Directory) error) error

	// Close releases resources
	Close() error
}
