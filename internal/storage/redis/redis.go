package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/sitelimit/internal/config"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sitelimit"

// Store implements storage.Store and storage.SessionStore using Redis.
type Store struct {
	client        *redis.Client
	usageStore    *usageStore
	limitStore    *limitStore
	categoryStore *categoryStore
	blockStore    *blockStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:        client,
		usageStore:    &usageStore{client: client},
		limitStore:    &limitStore{client: client},
		categoryStore: &categoryStore{client: client},
		blockStore:    &blockStore{client: client},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Usage returns the UsageStore implementation
func (s *Store) Usage() storage.UsageStore {
	return s.usageStore
}

// Limits returns the LimitStore implementation
func (s *Store) Limits() storage.LimitStore {
	return s.limitStore
}

// Categories returns the CategoryStore implementation
func (s *Store) Categories() storage.CategoryStore {
	return s.categoryStore
}

// Blocks returns the BlockStore implementation
func (s *Store) Blocks() storage.BlockStore {
	return s.blockStore
}

func dailyUsageKey(date, domain string) string {
	return fmt.Sprintf("%s:usage:daily:%s:%s", keyPrefix, date, domain)
}

func dailyUsageIndexKey(date string) string {
	return fmt.Sprintf("%s:usage:daily:index:%s", keyPrefix, date)
}

func usageDatesKey() string {
	return keyPrefix + ":usage:dates"
}

func limitKey(domain string) string {
	return fmt.Sprintf("%s:limit:%s", keyPrefix, domain)
}

func limitsIndexKey() string {
	return keyPrefix + ":limits"
}

func categoryKey(id string) string {
	return fmt.Sprintf("%s:category:%s", keyPrefix, id)
}

func categoriesIndexKey() string {
	return keyPrefix + ":categories"
}

func blocksKey() string {
	return keyPrefix + ":blocks"
}
