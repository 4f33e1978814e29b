package redis

import (
	"context"
	"fmt"

	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/redis/go-redis/v9"
)

type limitStore struct {
	client *redis.Client
}

func (s *limitStore) Get(ctx context.Context, domain string) (*storage.SiteLimit, error) {
	data, err := s.client.HGetAll(ctx, limitKey(storage.NormalizeDomain(domain))).Result()
	if err != nil {
		return nil, err
	}
	return parseSiteLimit(data)
}

func (s *limitStore) List(ctx context.Context) ([]storage.SiteLimit, error) {
	return listIndexed(ctx, s.client, limitsIndexKey(), limitKey, parseSiteLimit)
}

func (s *limitStore) Upsert(ctx context.Context, limit storage.SiteLimit) error {
	if err := limit.Validate(); err != nil {
		return fmt.Errorf("invalid site limit: %w", err)
	}
	limit.Domain = storage.NormalizeDomain(limit.Domain)

	script := redis.NewScript(upsertIndexedScript)
	keys := []string{limitKey(limit.Domain), limitsIndexKey()}
	args := append([]interface{}{limit.Domain}, siteLimitFields(limit)...)

	return script.Run(ctx, s.client, keys, args...).Err()
}

func (s *limitStore) Delete(ctx context.Context, domain string) error {
	domain = storage.NormalizeDomain(domain)
	return deleteIndexed(ctx, s.client, limitKey(domain), limitsIndexKey(), domain)
}

type categoryStore struct {
	client *redis.Client
}

func (s *categoryStore) List(ctx context.Context) ([]storage.Category, error) {
	return listIndexed(ctx, s.client, categoriesIndexKey(), categoryKey, parseCategory)
}

func (s *categoryStore) Upsert(ctx context.Context, category storage.Category) error {
	if category.ID == "" {
		return fmt.Errorf("category id is required")
	}

	script := redis.NewScript(upsertIndexedScript)
	keys := []string{categoryKey(category.ID), categoriesIndexKey()}
	args := append([]interface{}{category.ID}, categoryFields(category)...)

	return script.Run(ctx, s.client, keys, args...).Err()
}

func (s *categoryStore) Delete(ctx context.Context, id string) error {
	return deleteIndexed(ctx, s.client, categoryKey(id), categoriesIndexKey(), id)
}

// listIndexed loads every hash whose id is a member of indexKey.
func listIndexed[T any](
	ctx context.Context,
	client *redis.Client,
	indexKey string,
	itemKey func(string) string,
	parse func(map[string]string) (*T, error),
) ([]T, error) {
	ids, err := client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []T{}, nil
	}

	pipe := client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, itemKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	items := make([]T, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		item, err := parse(data)
		if err == nil {
			items = append(items, *item)
		}
	}

	return items, nil
}

func deleteIndexed(ctx context.Context, client *redis.Client, itemKey, indexKey, id string) error {
	script := redis.NewScript(deleteIndexedScript)
	deleted, err := script.Run(ctx, client, []string{itemKey, indexKey}, id).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}
