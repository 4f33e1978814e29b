package main

import (
	"errors"
	"fmt"

	"github.com/goodtune/sitelimit/internal/config"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/goodtune/sitelimit/internal/storage/bolt"
	"github.com/goodtune/sitelimit/internal/storage/redis"
	"go.etcd.io/bbolt"
)

// stores bundles the durable and session tiers. Both tiers may be served by
// the same backend when they point at the same bolt file.
type stores struct {
	durable storage.Store
	session storage.SessionStore
	shared  bool
}

func (s *stores) Close() error {
	var errs []error
	if err := s.durable.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	if !s.shared {
		if err := s.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

func openStores(cfg *config.Config) (*stores, error) {
	durable, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if cfg.SessionStorage.Type == "bolt" && cfg.Storage.Type == "bolt" && cfg.SessionStorage.Path == cfg.Storage.Path {
		if session, ok := durable.(storage.SessionStore); ok {
			return &stores{durable: durable, session: session, shared: true}, nil
		}
	}

	session, err := openSessionStorage(cfg.SessionStorage)
	if err != nil {
		_ = durable.Close()
		return nil, fmt.Errorf("failed to initialize session storage: %w", err)
	}

	return &stores{durable: durable, session: session}, nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "bolt", "":
		store, err := openBolt(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := redis.Open(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be 'bolt' or 'redis')", cfg.Type)
	}
}

func openSessionStorage(cfg config.StorageConfig) (storage.SessionStore, error) {
	switch cfg.Type {
	case "bolt", "":
		store, err := openBolt(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := redis.Open(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session storage type: %s (must be 'bolt' or 'redis')", cfg.Type)
	}
}

func openBolt(path string) (*bolt.Store, error) {
	store, err := bolt.Open(path)
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, fmt.Errorf("%s is locked, is the sitelimit daemon running? %w", path, err)
	}
	return store, err
}
