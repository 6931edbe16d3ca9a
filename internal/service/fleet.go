package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"fabricnms/internal/cache"
	"fabricnms/internal/domain"
	"fabricnms/internal/mgmtdomain"
	"fabricnms/internal/settings"
)

// Checker runs the fleet-wide collision check
type Checker interface {
	Check(ctx context.Context, uniqueVLANs bool) error
}

// DeviceGetter looks up a device by hostname, returning nil when unknown
type DeviceGetter interface {
	GetDevice(ctx context.Context, hostname string) (*domain.Device, error)
}

// FleetService provides settings resolution and collision checking
type FleetService struct {
	// mu is held for reading by resolution and checks, and for writing
	// while the settings repository is updated
	mu       sync.RWMutex
	resolver *settings.Resolver
	checker  Checker
	devices  DeviceGetter
	cache    cache.Cache
	eventBus *EventBus
	logger   *zap.Logger
}

// NewFleetService creates a new fleet service. The cache must be the one
// the resolver was built with.
func NewFleetService(resolver *settings.Resolver, checker Checker, devices DeviceGetter, c cache.Cache, eventBus *EventBus, logger *zap.Logger) *FleetService {
	return &FleetService{
		resolver: resolver,
		checker:  checker,
		devices:  devices,
		cache:    c,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Settings resolves the settings of one device, or the fleet-wide settings
// when hostname and tier are empty
func (s *FleetService) Settings(ctx context.Context, hostname string, tier domain.DeviceType) (*settings.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver.Resolve(ctx, hostname, tier)
}

// DeviceSettings resolves the settings of a device in the directory,
// using its recorded tier
func (s *FleetService) DeviceSettings(ctx context.Context, hostname string) (*settings.Settings, error) {
	dev, err := s.devices.GetDevice(ctx, hostname)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: %s", mgmtdomain.ErrDeviceNotFound, hostname)
	}
	return s.Settings(ctx, dev.Hostname, dev.Type)
}

// Groups returns the groups hostname belongs to, or every group for an
// empty hostname
func (s *FleetService) Groups(ctx context.Context, hostname string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver.Groups(ctx, hostname)
}

// Check runs the collision check over every managed device
func (s *FleetService) Check(ctx context.Context, uniqueVLANs bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(ctx, uniqueVLANs)
}

func (s *FleetService) check(ctx context.Context, uniqueVLANs bool) error {
	err := s.checker.Check(ctx, uniqueVLANs)
	var collision *settings.CollisionError
	switch {
	case err == nil:
		s.logger.Info("Collision check passed", zap.Bool("unique_vlans", uniqueVLANs))
		s.eventBus.Publish(Event{
			Type:    EventCollisionCheckPassed,
			Payload: map[string]bool{"unique_vlans": uniqueVLANs},
		})
	case errors.As(err, &collision):
		s.logger.Warn("Collision check failed", zap.Error(err))
		s.eventBus.Publish(Event{
			Type:    EventCollisionCheckFailed,
			Payload: map[string]string{"kind": string(collision.Kind), "error": err.Error()},
		})
	}
	return err
}

// Invalidate drops every cached file load and resolution result
func (s *FleetService) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidate(ctx)
}

func (s *FleetService) invalidate(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("failed to invalidate settings cache: %w", err)
	}
	s.eventBus.Publish(Event{
		Type:    EventSettingsInvalidated,
		Payload: map[string]string{"root": s.resolver.Root()},
	})
	return nil
}

// UpdateRepository runs update (typically a pull of the settings
// repository) with no resolution or check in progress, then invalidates the
// cache and re-checks the fleet before letting readers back in. The cache is
// invalidated even when update fails, since it may have changed files.
func (s *FleetService) UpdateRepository(ctx context.Context, uniqueVLANs bool, update func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updateErr := update(ctx)
	if err := s.invalidate(ctx); err != nil {
		return err
	}
	if updateErr != nil {
		return fmt.Errorf("settings repository update failed: %w", updateErr)
	}
	return s.check(ctx, uniqueVLANs)
}
