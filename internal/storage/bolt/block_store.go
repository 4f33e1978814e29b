package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

type blockStore struct {
	db *bbolt.DB
}

// blockMarker is the value stored for every blocked domain; only keys matter.
var blockMarker = []byte{1}

func (s *blockStore) Add(ctx context.Context, domain string) (bool, error) {
	added := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketBlocks))
		if b == nil {
			return fmt.Errorf("blocks bucket missing")
		}
		if b.Get([]byte(domain)) != nil {
			return nil
		}
		added = true
		return b.Put([]byte(domain), blockMarker)
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (s *blockStore) Contains(ctx context.Context, domain string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketBlocks))
		if b == nil {
			return nil
		}
		found = b.Get([]byte(domain)) != nil
		return nil
	})
	return found, err
}

func (s *blockStore) List(ctx context.Context) ([]string, error) {
	domains := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketBlocks))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			domains = append(domains, string(k))
			return nil
		})
	})
	return domains, err
}

func (s *blockStore) Clear(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tx.Bucket([]byte(bucketBlocks)) != nil {
			if err := tx.DeleteBucket([]byte(bucketBlocks)); err != nil {
				return fmt.Errorf("delete blocks bucket: %w", err)
			}
		}
		_, err := tx.CreateBucket([]byte(bucketBlocks))
		return err
	})
}
