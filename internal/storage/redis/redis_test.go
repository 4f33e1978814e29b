package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/sitelimit/internal/config"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/redis/go-redis/v9"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays zero
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestOpenRejectsInvalidTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	_, err := Open(config.RedisConfig{Host: mr.Addr(), DialTimeout: "soon", ReadTimeout: "3s", WriteTimeout: "3s"})
	if err == nil {
		t.Fatal("Expected error for invalid dial_timeout")
	}
}

func TestUsageStore_AddDailyUsage(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	usageStore := store.Usage()
	date := "2026-03-10"

	if _, err := usageStore.AddDailyUsage(ctx, date, "github.com", 30, "https://github.com/favicon.ico"); err != nil {
		t.Fatalf("AddDailyUsage failed: %v", err)
	}
	usage, err := usageStore.AddDailyUsage(ctx, date, "github.com", 45, "")
	if err != nil {
		t.Fatalf("AddDailyUsage failed: %v", err)
	}

	if usage.TotalSeconds != 75 {
		t.Errorf("Expected TotalSeconds 75, got %d", usage.TotalSeconds)
	}
	if usage.LastIcon != "https://github.com/favicon.ico" {
		t.Errorf("Expected icon to be kept, got %q", usage.LastIcon)
	}

	if _, err := usageStore.GetDailyUsage(ctx, date, "reddit.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, err := usageStore.AddDailyUsage(ctx, date, "github.com", -5, ""); err == nil {
		t.Error("Expected error for negative increment")
	}
}

// failCommandHook fails every command with the given name before it is sent.
type failCommandHook struct {
	command string
}

func (failCommandHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h failCommandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == h.command {
			err := errors.New("read timeout")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failCommandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestUsageStore_AddDailyUsageDoesNotReadBack(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	usageStore := store.Usage()
	date := "2026-03-10"

	store.client.AddHook(failCommandHook{command: "hgetall"})

	usage, err := usageStore.AddDailyUsage(ctx, date, "x.example", 30, "https://x.example/favicon.ico")
	if err != nil {
		t.Fatalf("AddDailyUsage must not fail once the increment is committed: %v", err)
	}
	if usage.TotalSeconds != 30 || usage.LastIcon != "https://x.example/favicon.ico" {
		t.Errorf("Unexpected entry: %+v", usage)
	}

	usage, err = usageStore.AddDailyUsage(ctx, date, "x.example", 30, "")
	if err != nil {
		t.Fatalf("AddDailyUsage failed: %v", err)
	}
	if usage.TotalSeconds != 60 {
		t.Errorf("Expected TotalSeconds 60, got %d", usage.TotalSeconds)
	}
	if usage.Date != date || usage.Domain != "x.example" {
		t.Errorf("Unexpected key in entry: %+v", usage)
	}

	if got := mr.HGet(dailyUsageKey(date, "x.example"), "total_seconds"); got != "60" {
		t.Errorf("Expected stored total 60, got %q", got)
	}
}

func TestUsageStore_ListAndPrune(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	usageStore := store.Usage()

	seed := map[string][]string{
		"2026-01-01": {"github.com", "reddit.com"},
		"2026-01-02": {"github.com"},
		"2026-01-03": {"youtube.com"},
	}
	for date, domains := range seed {
		for _, domain := range domains {
			if _, err := usageStore.AddDailyUsage(ctx, date, domain, 60, ""); err != nil {
				t.Fatalf("AddDailyUsage failed: %v", err)
			}
		}
	}

	day, err := usageStore.ListDailyUsage(ctx, "2026-01-01")
	if err != nil {
		t.Fatalf("ListDailyUsage failed: %v", err)
	}
	if len(day) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(day))
	}

	dates, err := usageStore.ListDates(ctx)
	if err != nil {
		t.Fatalf("ListDates failed: %v", err)
	}
	if len(dates) != 3 || dates[0] != "2026-01-01" {
		t.Errorf("Unexpected dates: %v", dates)
	}

	deleted, err := usageStore.DeleteDailyUsageBefore(ctx, "2026-01-03")
	if err != nil {
		t.Fatalf("DeleteDailyUsageBefore failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deleted, got %d", deleted)
	}

	if mr.Exists(dailyUsageKey("2026-01-01", "github.com")) {
		t.Error("Old usage key should be gone")
	}
	if !mr.Exists(dailyUsageKey("2026-01-03", "youtube.com")) {
		t.Error("Usage on the cutoff date should be kept")
	}
}

func TestLimitStore(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	limits := store.Limits()

	limit := storage.SiteLimit{Domain: "Reddit.com", DailyLimitSeconds: 3600, CategoryID: "cat-3", CustomName: "Reddit"}
	if err := limits.Upsert(ctx, limit); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := limits.Get(ctx, "reddit.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.DailyLimitSeconds != 3600 || got.CategoryID != "cat-3" || got.CustomName != "Reddit" {
		t.Errorf("Unexpected limit: %+v", got)
	}

	// Clearing the limit keeps the other settings
	limit.DailyLimitSeconds = 0
	if err := limits.Upsert(ctx, limit); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	got, err = limits.Get(ctx, "reddit.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.HasLimit() {
		t.Error("Expected limit to be cleared")
	}

	all, err := limits.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 limit, got %d", len(all))
	}

	if err := limits.Delete(ctx, "reddit.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := limits.Get(ctx, "reddit.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := limits.Delete(ctx, "reddit.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCategoryStore(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	categories := store.Categories()

	if err := categories.Upsert(ctx, storage.Category{ID: "cat-1", Name: "Productivity", Color: "#4a9eff", IsDefault: true}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	list, err := categories.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || !list[0].IsDefault || list[0].Color != "#4a9eff" {
		t.Errorf("Unexpected categories: %+v", list)
	}

	if err := categories.Delete(ctx, "cat-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestBlockStore(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	blocks := store.Blocks()

	added, err := blocks.Add(ctx, "reddit.com")
	if err != nil || !added {
		t.Fatalf("Expected first add to insert, added=%v err=%v", added, err)
	}
	added, err = blocks.Add(ctx, "reddit.com")
	if err != nil || added {
		t.Fatalf("Expected second add to be a no-op, added=%v err=%v", added, err)
	}

	found, err := blocks.Contains(ctx, "reddit.com")
	if err != nil || !found {
		t.Fatalf("Expected reddit.com blocked, found=%v err=%v", found, err)
	}

	if err := blocks.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	list, err := blocks.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected empty block set, got %v", list)
	}
}
