package settings

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"fabricnms/internal/domain"
)

//go:embed data/default_settings.yml
var defaultSettingsYAML []byte

// Origin labels of the fixed layers
const (
	OriginDefault          = "default"
	OriginGlobalBaseSystem = "global->base_system.yml"
	OriginFabricBaseSystem = "fabric->base_system.yml"
	OriginDeviceTypeBase   = "devicetype->base_system.yml"
	OriginGlobalRouting    = "global->routing.yml"
	OriginGlobalVXLANs     = "global->vxlans.yml"
	OriginGlobalGroups     = "global"
)

// ErrInvalidHostname is returned for hostnames that fail the syntax check
var ErrInvalidHostname = errors.New("invalid hostname")

// Cache memoizes settings file loads and resolved settings
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Topology is the part of the device directory needed to inject
// downstream dependencies
type Topology interface {
	GetDevice(ctx context.Context, hostname string) (*domain.Device, error)
	Neighbors(ctx context.Context, hostname string) ([]domain.Device, error)
}

// Settings is a resolved settings tree with the origin of every key
type Settings struct {
	Tree    *Map
	Origins *Origins
}

// Origin returns the layer that supplied the key at path
func (s *Settings) Origin(path ...string) string {
	return s.Origins.Label(path...)
}

// OriginTree returns a tree shaped like the settings with every leaf
// replaced by its origin
func (s *Settings) OriginTree() *Map {
	return s.Origins.Expand(s.Tree)
}

type cachedSettings struct {
	Settings Value `yaml:"settings"`
	Origins  Value `yaml:"origins"`
}

// Resolver builds per-device settings from the layered settings repository
type Resolver struct {
	root         string
	topology     Topology
	cache        Cache
	schema       *Schema
	groupsSchema *Schema
	defaults     *Map
	verify       func(root string) error
	logger       *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithTopology enables downstream dependency injection for DIST devices
func WithTopology(t Topology) Option {
	return func(r *Resolver) { r.topology = t }
}

// WithCache memoizes file loads and resolution results in c
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// NewResolver creates a resolver for the settings repository at root
func NewResolver(root string, logger *zap.Logger, opts ...Option) (*Resolver, error) {
	defaults, err := ParseYAML(defaultSettingsYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse default settings: %w", err)
	}
	if !defaults.IsMap() {
		return nil, fmt.Errorf("default settings must be a mapping")
	}
	r := &Resolver{
		root:         root,
		schema:       RootSchema(),
		groupsSchema: GroupsSchema(),
		defaults:     defaults.Map(),
		verify:       VerifyDirStructure,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the settings repository path
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the validated settings for hostname of the given tier.
// Either may be empty: no hostname yields fleet-wide settings, no tier
// skips the tier layers.
func (r *Resolver) Resolve(ctx context.Context, hostname string, tier domain.DeviceType) (*Settings, error) {
	if hostname != "" && !domain.ValidHostname(hostname) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}
	if tier == domain.DeviceTypeUnknown {
		return nil, ErrUnknownDeviceType
	}

	key := fmt.Sprintf("settings:%s:%s", hostname, tier)
	if s, ok := r.cached(ctx, key); ok {
		return s, nil
	}

	s, err := r.resolve(ctx, hostname, tier)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, s)
	return s, nil
}

func (r *Resolver) resolve(ctx context.Context, hostname string, tier domain.DeviceType) (*Settings, error) {
	if err := r.verify(r.root); err != nil {
		r.logger.Error("Settings repository directory structure is invalid", zap.Error(err))
		return nil, err
	}

	b := &layerBuilder{
		r:       r,
		tree:    r.defaults.Clone(),
		origins: OriginsFor(r.defaults, OriginDefault),
	}

	b.read(ctx, OriginGlobalBaseSystem, scope{}, DirGlobal, FileBaseSystem)
	if tier.IsFabric() {
		b.read(ctx, OriginFabricBaseSystem, scope{}, DirFabric, FileBaseSystem)
	}
	if tier != "" {
		b.read(ctx, OriginDeviceTypeBase, scope{}, tier.DirName(), FileBaseSystem)
	}

	var groups []string
	if hostname != "" && b.err == nil {
		groups, b.err = r.groups(ctx, hostname)
	}
	// fleet-wide settings (no hostname) read the scoped layers unfiltered
	hosted := hostname != ""
	b.read(ctx, OriginGlobalRouting, scope{filter: hosted, groups: groups}, DirGlobal, FileRouting)
	b.read(ctx, OriginGlobalVXLANs, scope{filter: hosted, groups: groups, hostname: hostname}, DirGlobal, FileVXLANs)

	if hostname != "" {
		if b.err == nil {
			b.tree, b.origins, b.err = r.injectDownstream(ctx, hostname, b.tree, b.origins)
		}
		if dirExists(filepath.Join(r.root, DirDevices, hostname)) {
			b.read(ctx, deviceOrigin(hostname, FileBaseSystem), scope{}, DirDevices, hostname, FileBaseSystem)
			b.read(ctx, deviceOrigin(hostname, FileInterfaces), scope{}, DirDevices, hostname, FileInterfaces)
			b.read(ctx, deviceOrigin(hostname, FileRouting), scope{filter: true, groups: groups}, DirDevices, hostname, FileRouting)
		}
	}
	if b.err != nil {
		return nil, b.err
	}

	validated, unknown, err := r.schema.Validate(b.tree, b.origins)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		r.logger.Warn("Some configured settings are undefined in model",
			zap.String("hostname", hostname), zap.Strings("keys", unknown))
		for _, k := range unknown {
			delete(b.origins.labels, k)
			delete(b.origins.children, k)
		}
	}
	return &Settings{Tree: validated, Origins: b.origins}, nil
}

func deviceOrigin(hostname, file string) string {
	return fmt.Sprintf("device->%s->%s", hostname, file)
}

// scope selects group/host filtering for a layer; the zero scope reads the
// layer unfiltered. A filtered scope with no groups and no hostname drops
// every gated subtree.
type scope struct {
	filter   bool
	groups   []string
	hostname string
}

func (s scope) filtered() bool {
	return s.filter
}

// layerBuilder threads the tree and origins through successive layers and
// stops at the first error
type layerBuilder struct {
	r       *Resolver
	tree    *Map
	origins *Origins
	err     error
}

func (b *layerBuilder) read(ctx context.Context, origin string, sc scope, parts ...string) {
	if b.err != nil {
		return
	}
	b.tree, b.origins, b.err = b.r.readLayer(ctx, b.tree, b.origins, origin, sc, parts...)
}

// readLayer loads one catalogue file and merges it over tree. Filtered
// layers are syntax checked on their own first, since filtering needs a
// well-formed tree.
func (r *Resolver) readLayer(ctx context.Context, tree *Map, origins *Origins, origin string, sc scope, parts ...string) (*Map, *Origins, error) {
	path, err := SettingsPath(r.root, parts...)
	if err != nil {
		return nil, nil, err
	}
	data, err := r.loadFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if !data.Truthy() {
		return tree, origins, nil
	}
	if !data.IsMap() {
		r.logger.Info("Invalid yaml file ignored", zap.String("file", path))
		return tree, origins, nil
	}

	layer := data.Map()
	if sc.filtered() {
		syntaxTree, syntaxOrigins := Merge(NewMap(), NewOrigins(), layer, origin)
		if _, _, err := r.schema.Validate(syntaxTree, syntaxOrigins); err != nil {
			return nil, nil, err
		}
		fv, keep, err := Filter(data, sc.groups, sc.hostname)
		if err != nil {
			return nil, nil, err
		}
		layer = NewMap()
		if keep {
			layer = fv.Map()
		}
	}

	merged, mergedOrigins := Merge(tree, origins, layer, origin)
	return merged, mergedOrigins, nil
}

// loadFile reads and parses a settings file through the cache
func (r *Resolver) loadFile(ctx context.Context, path string) (Value, error) {
	key := "file:" + path
	if r.cache != nil {
		if data, ok, err := r.cache.Get(ctx, key); err != nil {
			r.logger.Warn("Settings cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return ParseYAML(data)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Value{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	v, err := ParseYAML(data)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", path, err)
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, data); err != nil {
			r.logger.Warn("Settings cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

func (r *Resolver) cached(ctx context.Context, key string) (*Settings, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("Settings cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var c cachedSettings
	if err := yaml.Unmarshal(data, &c); err != nil || !c.Settings.IsMap() {
		r.logger.Warn("Discarding undecodable cached settings", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &Settings{Tree: c.Settings.Map(), Origins: OriginsFromExpanded(c.Origins.Map())}, true
}

func (r *Resolver) store(ctx context.Context, key string, s *Settings) {
	if r.cache == nil {
		return
	}
	data, err := yaml.Marshal(cachedSettings{
		Settings: MapValue(s.Tree),
		Origins:  MapValue(s.OriginTree()),
	})
	if err != nil {
		r.logger.Warn("Failed to encode settings for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.cache.Set(ctx, key, data); err != nil {
		r.logger.Warn("Settings cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
