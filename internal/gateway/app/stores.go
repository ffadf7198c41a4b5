package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	vaultcache "ascend/internal/cache/vault"
	"ascend/internal/gateway/config"
	"ascend/internal/gateway/repository/archive"
	"ascend/internal/gateway/repository/device"
	"ascend/internal/gateway/repository/schema"
	"ascend/internal/gateway/repository/usage"
	"ascend/internal/gateway/repository/vault"
	"ascend/internal/logger"
	"ascend/internal/metrics"
)

type gatewayStores struct {
	db  *sql.DB
	rdb *redis.Client

	usage   usage.Store
	device  device.Store
	vault   vault.Store
	archive archive.Store
}

func (s *gatewayStores) Close() error {
	var first error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			first = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func initStores(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log logger.Logger) (*gatewayStores, error) {
	stores := &gatewayStores{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		stores.rdb = redis.NewClient(opts)
		log.Info("redis configured", map[string]any{"addr": opts.Addr})
	}

	var vaultOrigin vault.Store
	if cfg.DatabaseURL != "" {
		db, err := schema.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		stores.db = db
		if err := schema.Migrate(ctx, db); err != nil {
			_ = stores.Close()
			return nil, err
		}
		stores.device = device.NewPostgresStore(db)
		vaultOrigin = vault.NewPostgresStore(db)
		log.Info("stores: postgres", nil)
	} else {
		stores.device = device.NewMemoryStore()
		vaultOrigin = vault.NewMemoryStore()
		log.Info("stores: in-memory", nil)
	}
	var obs vaultcache.LookupObserver
	if m != nil {
		obs = m
	}
	stores.vault = vaultcache.NewCachedStore(vaultOrigin, vaultcache.DefaultCacheConfig(), obs)

	u, err := chooseUsageStore(cfg, stores)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	stores.usage = u

	a, err := chooseArchiveStore(cfg, log)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	stores.archive = a
	return stores, nil
}

func chooseUsageStore(cfg *config.Config, stores *gatewayStores) (usage.Store, error) {
	backend := cfg.Quota.Backend
	if backend == "" {
		switch {
		case stores.db != nil:
			backend = "postgres"
		case stores.rdb != nil:
			backend = "redis"
		default:
			backend = "memory"
		}
	}
	switch backend {
	case "postgres":
		if stores.db == nil {
			return nil, fmt.Errorf("usage store: postgres selected without a database")
		}
		return usage.NewPostgresStore(stores.db), nil
	case "redis":
		if stores.rdb == nil {
			return nil, fmt.Errorf("usage store: redis selected without REDIS_URL")
		}
		return usage.NewRedisStore(stores.rdb, ""), nil
	default:
		return usage.NewMemoryStore(), nil
	}
}

func chooseArchiveStore(cfg *config.Config, log logger.Logger) (archive.Store, error) {
	if !cfg.Artifact.CanUseS3() {
		if cfg.Artifact.Enabled {
			log.Warn("archive: using in-memory fallback (s3 config incomplete)", nil)
		}
		return archive.NewMemoryStore(), nil
	}
	s3Cfg := archive.S3Config{
		Endpoint:  cfg.Artifact.Endpoint,
		Region:    cfg.Artifact.Region,
		AccessKey: cfg.Artifact.AccessKey,
		SecretKey: cfg.Artifact.SecretKey,
		Bucket:    cfg.Artifact.Bucket,
		UseSSL:    cfg.Artifact.UseSSL,
	}
	s, err := archive.NewS3Store(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive s3 store: %w", err)
	}
	log.Info("archive: s3", map[string]any{"bucket": s3Cfg.Bucket, "endpoint": s3Cfg.Endpoint})
	return s, nil
}
