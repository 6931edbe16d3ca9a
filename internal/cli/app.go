package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fabricnms/internal/adapter"
	"fabricnms/internal/cache"
	"fabricnms/internal/config"
	"fabricnms/internal/repository/sqlite"
	"fabricnms/internal/service"
	"fabricnms/internal/settings"
)

// app holds the components every command shares
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	repo       *sqlite.Repository
	cache      cache.Cache
	bus        *service.EventBus
	fleet      *service.FleetService
	onboarding *service.OnboardingService
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	c, err := newCache(ctx, cfg, logger)
	if err != nil {
		repo.Close()
		return nil, err
	}

	resolver, err := settings.NewResolver(cfg.Settings.RepoPath, logger,
		settings.WithCache(c), settings.WithTopology(repo))
	if err != nil {
		c.Close()
		repo.Close()
		return nil, err
	}
	checker := settings.NewCollisionChecker(resolver, repo, logger, cfg.Settings.CheckConcurrency)

	bus := service.NewEventBus()
	return &app{
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		cache:      c,
		bus:        bus,
		fleet:      service.NewFleetService(resolver, checker, repo, c, bus, logger),
		onboarding: service.NewOnboardingService(repo, newProber(ctx, cfg, logger), bus, logger),
	}, nil
}

func newCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		c, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
			TTL:      cfg.Cache.TTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect settings cache: %w", err)
		}
		logger.Info("Using redis settings cache", zap.String("addr", cfg.Cache.Redis.Addr))
		return c, nil
	default:
		return cache.NewMemory(cfg.Cache.TTL), nil
	}
}

// newProber returns nil unless probing is enabled and nmap is installed
func newProber(ctx context.Context, cfg *config.Config, logger *zap.Logger) adapter.Prober {
	if !cfg.Probe.Enabled {
		return nil
	}
	p := adapter.NewNmapProber(logger,
		adapter.WithTimeout(cfg.Probe.Timeout),
		adapter.WithMinPrefixLen(cfg.Probe.MinPrefixLen))
	if !p.Available(ctx) {
		logger.Warn("nmap not available, management addresses will be allocated from the directory only")
		return nil
	}
	return p
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("Failed to close settings cache", zap.Error(err))
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// openApp loads the config and opens the shared components
func openApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}
