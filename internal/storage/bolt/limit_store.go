package bolt

import (
	"context"
	"fmt"

	"github.com/goodtune/sitelimit/internal/storage"
	"go.etcd.io/bbolt"
)

type limitStore struct {
	db *bbolt.DB
}

func (s *limitStore) Get(ctx context.Context, domain string) (*storage.SiteLimit, error) {
	return getBucketValue[storage.SiteLimit](ctx, s.db, bucketLimits, storage.NormalizeDomain(domain))
}

func (s *limitStore) List(ctx context.Context) ([]storage.SiteLimit, error) {
	return listBucket[storage.SiteLimit](ctx, s.db, bucketLimits)
}

func (s *limitStore) Upsert(ctx context.Context, limit storage.SiteLimit) error {
	if err := limit.Validate(); err != nil {
		return fmt.Errorf("invalid site limit: %w", err)
	}
	limit.Domain = storage.NormalizeDomain(limit.Domain)
	return putBucketValue(ctx, s.db, bucketLimits, limit.Domain, limit)
}

func (s *limitStore) Delete(ctx context.Context, domain string) error {
	return deleteBucketValue(ctx, s.db, bucketLimits, storage.NormalizeDomain(domain))
}

type categoryStore struct {
	db *bbolt.DB
}

func (s *categoryStore) List(ctx context.Context) ([]storage.Category, error) {
	return listBucket[storage.Category](ctx, s.db, bucketCategories)
}

func (s *categoryStore) Upsert(ctx context.Context, category storage.Category) error {
	if category.ID == "" {
		return fmt.Errorf("category id is required")
	}
	return putBucketValue(ctx, s.db, bucketCategories, category.ID, category)
}

func (s *categoryStore) Delete(ctx context.Context, id string) error {
	return deleteBucketValue(ctx, s.db, bucketCategories, id)
}
