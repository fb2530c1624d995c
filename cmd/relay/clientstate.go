package main

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/suPer8Hu/chat-relay/internal/client"
	"github.com/suPer8Hu/chat-relay/internal/store/filestore"
	"github.com/suPer8Hu/chat-relay/internal/store/redisstore"
	"github.com/suPer8Hu/chat-relay/internal/store/sqlstore"
)

// openBlobStore returns the configured durable client store and its closer.
func (a *app) openBlobStore(ctx context.Context) (client.BlobStore, func(), error) {
	cfg := a.cfg
	switch cfg.ClientStore {
	case "", "file":
		dir, err := filepath.Abs(cfg.ClientStorePath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "client store path")
		}
		return filestore.NewOS(dir), func() {}, nil
	case "sqlite", "mysql":
		driver := cfg.ClientStore
		if driver == "sqlite" && cfg.ClientDBDriver != "" {
			driver = cfg.ClientDBDriver
		}
		db, err := sqlstore.Open(driver, cfg.ClientDBDSN)
		if err != nil {
			return nil, nil, err
		}
		s, err := sqlstore.NewBlobStore(db)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return s, closeFn, nil
	case "redis":
		s, err := redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, errors.Errorf("unknown client store %q (file, sqlite, mysql or redis)", cfg.ClientStore)
	}
}

// openCache opens the store and restores the client state.
func (a *app) openCache(ctx context.Context) (*client.Cache, func(), error) {
	store, closeFn, err := a.openBlobStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	cache := client.NewCache(store)
	if _, err := cache.Restore(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return cache, closeFn, nil
}
