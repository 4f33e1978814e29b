package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type blockStore struct {
	client *redis.Client
}

// Add inserts domain into the block set; SADD reports 1 only for new members
func (s *blockStore) Add(ctx context.Context, domain string) (bool, error) {
	added, err := s.client.SAdd(ctx, blocksKey(), domain).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

func (s *blockStore) Contains(ctx context.Context, domain string) (bool, error) {
	return s.client.SIsMember(ctx, blocksKey(), domain).Result()
}

func (s *blockStore) List(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, blocksKey()).Result()
}

func (s *blockStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, blocksKey()).Err()
}
