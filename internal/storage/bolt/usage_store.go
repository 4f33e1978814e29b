package bolt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/sitelimit/internal/storage"
	"go.etcd.io/bbolt"
)

type usageStore struct {
	db *bbolt.DB
}

func (s *usageStore) GetDailyUsage(ctx context.Context, date, domain string) (*storage.DailyUsage, error) {
	return getBucketValue[storage.DailyUsage](ctx, s.db, bucketDailyUsage, dailyUsageKey(date, domain))
}

func (s *usageStore) ListDailyUsage(ctx context.Context, date string) ([]storage.DailyUsage, error) {
	prefix := []byte(date + "/")
	usages := make([]storage.DailyUsage, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDailyUsage))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var usage storage.DailyUsage
			if err := unmarshal(v, &usage); err != nil {
				return err
			}
			usages = append(usages, usage)
		}
		return nil
	})
	return usages, err
}

func (s *usageStore) AddDailyUsage(ctx context.Context, date, domain string, seconds int64, icon string) (*storage.DailyUsage, error) {
	if seconds < 0 {
		return nil, fmt.Errorf("negative usage increment: %d", seconds)
	}
	key := dailyUsageKey(date, domain)
	var usage storage.DailyUsage
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketDailyUsage))
		if b == nil {
			return fmt.Errorf("daily usage bucket missing")
		}
		if existing := b.Get([]byte(key)); existing != nil {
			if err := unmarshal(existing, &usage); err != nil {
				return err
			}
		} else {
			usage = storage.DailyUsage{
				Date:   date,
				Domain: domain,
			}
		}
		usage.TotalSeconds += seconds
		if icon != "" {
			usage.LastIcon = icon
		}
		data, err := marshal(usage)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

func (s *usageStore) ListDates(ctx context.Context) ([]string, error) {
	dates := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDailyUsage))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			date, _, ok := strings.Cut(string(k), "/")
			if !ok {
				continue
			}
			if len(dates) == 0 || dates[len(dates)-1] != date {
				dates = append(dates, date)
			}
		}
		return nil
	})
	return dates, err
}

func (s *usageStore) DeleteDailyUsageBefore(ctx context.Context, cutoffDate string) (int, error) {
	if _, err := time.Parse(storage.DateFormat, cutoffDate); err != nil {
		return 0, fmt.Errorf("invalid cutoff date: %w", err)
	}
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketDailyUsage))
		if b == nil {
			return nil
		}
		// Keys sort by date, so everything before the cutoff is a prefix of
		// the bucket. Collect first: deleting under a live cursor skips keys.
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			date, _, _ := strings.Cut(string(k), "/")
			if date >= cutoffDate {
				break
			}
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func dailyUsageKey(date, domain string) string {
	return fmt.Sprintf("%s/%s", date, domain)
}
