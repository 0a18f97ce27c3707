// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/crosschain-arb/internal/asset"
	"github.com/fd1az/crosschain-arb/internal/config"
	"github.com/fd1az/crosschain-arb/internal/di"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

// Service names for the shared infrastructure.
const (
	ConfigService        = "config"
	LoggerService        = "logger"
	AssetRegistryService = "assetRegistry"
	RedisService         = "redis"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	// Redis returns nil when redis is disabled.
	Redis() *redis.Client
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	assetRegistry *asset.Registry
	redis         *redis.Client
	container     di.Container
}

// New creates a new Monolith instance. The redis client is created only when
// enabled and is pinged once; an unreachable redis is a startup error.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	assets, err := asset.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("asset registry: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		log.Info(ctx, "redis connected", "addr", cfg.Redis.Addr)
	}

	container := di.New()
	container.Set(ConfigService, cfg)
	container.Set(LoggerService, log)
	container.Set(AssetRegistryService, assets)
	container.Set(RedisService, rdb)

	return &app{
		config:        cfg,
		logger:        log,
		assetRegistry: assets,
		redis:         rdb,
		container:     container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Redis() *redis.Client {
	return a.redis
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules in order.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

// Shared service accessors for module factories.

func ConfigFrom(sr di.ServiceRegistry) *config.Config {
	return sr.Get(ConfigService).(*config.Config)
}

func LoggerFrom(sr di.ServiceRegistry) logger.LoggerInterface {
	return sr.Get(LoggerService).(logger.LoggerInterface)
}

func AssetsFrom(sr di.ServiceRegistry) *asset.Registry {
	return sr.Get(AssetRegistryService).(*asset.Registry)
}

// RedisFrom returns the shared redis client, or nil when disabled.
func RedisFrom(sr di.ServiceRegistry) *redis.Client {
	rdb, _ := sr.Get(RedisService).(*redis.Client)
	return rdb
}
