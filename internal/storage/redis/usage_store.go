package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/redis/go-redis/v9"
)

type usageStore struct {
	client *redis.Client
}

// GetDailyUsage retrieves daily usage for a specific date and domain
func (s *usageStore) GetDailyUsage(ctx context.Context, date, domain string) (*storage.DailyUsage, error) {
	data, err := s.client.HGetAll(ctx, dailyUsageKey(date, domain)).Result()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	return parseDailyUsage(data)
}

// ListDailyUsage returns all daily usage entries for a specific date
func (s *usageStore) ListDailyUsage(ctx context.Context, date string) ([]storage.DailyUsage, error) {
	domains, err := s.client.SMembers(ctx, dailyUsageIndexKey(date)).Result()
	if err != nil {
		return nil, err
	}

	if len(domains) == 0 {
		return []storage.DailyUsage{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(domains))
	for i, domain := range domains {
		cmds[i] = pipe.HGetAll(ctx, dailyUsageKey(date, domain))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	usages := make([]storage.DailyUsage, 0, len(domains))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		usage, err := parseDailyUsage(data)
		if err == nil {
			usages = append(usages, *usage)
		}
	}

	return usages, nil
}

// AddDailyUsage atomically increments (or creates) daily usage
func (s *usageStore) AddDailyUsage(ctx context.Context, date, domain string, seconds int64, icon string) (*storage.DailyUsage, error) {
	if seconds < 0 {
		return nil, fmt.Errorf("negative usage increment: %d", seconds)
	}

	script := redis.NewScript(addDailyUsageScript)

	keys := []string{dailyUsageKey(date, domain), dailyUsageIndexKey(date), usageDatesKey()}
	args := []interface{}{date, domain, seconds, icon}

	reply, err := script.Run(ctx, s.client, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("add daily usage: %w", err)
	}

	// The increment is committed at this point, so the entry is built from
	// the script reply rather than read back.
	usage := &storage.DailyUsage{Date: date, Domain: domain}
	if len(reply) == 2 {
		usage.TotalSeconds, _ = reply[0].(int64)
		usage.LastIcon, _ = reply[1].(string)
	}
	return usage, nil
}

// ListDates returns every date with recorded usage, oldest first
func (s *usageStore) ListDates(ctx context.Context) ([]string, error) {
	dates, err := s.client.SMembers(ctx, usageDatesKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(dates)
	return dates, nil
}

// DeleteDailyUsageBefore deletes daily usage entries before the specified date
func (s *usageStore) DeleteDailyUsageBefore(ctx context.Context, cutoffDate string) (int, error) {
	if _, err := time.Parse(storage.DateFormat, cutoffDate); err != nil {
		return 0, fmt.Errorf("invalid cutoff date: %w", err)
	}

	dates, err := s.ListDates(ctx)
	if err != nil {
		return 0, err
	}

	script := redis.NewScript(pruneDateScript)
	deleted := 0
	for _, date := range dates {
		if date >= cutoffDate {
			break
		}

		keys := []string{dailyUsageIndexKey(date), usageDatesKey()}
		args := []interface{}{dailyUsageKey(date, ""), date}

		n, err := script.Run(ctx, s.client, keys, args...).Int()
		if err != nil {
			return deleted, fmt.Errorf("prune %s: %w", date, err)
		}
		deleted += n
	}

	return deleted, nil
}
