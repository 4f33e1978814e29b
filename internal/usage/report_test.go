package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/goodtune/sitelimit/internal/storage/bolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{59, "59s"},
		{60, "1m"},
		{300, "5m"},
		{3600, "1h"},
		{3660, "1h 1m"},
		{5400, "1h 30m"},
		{86400, "24h"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestFormatLimitAndRemaining(t *testing.T) {
	assert.Equal(t, "No limit", FormatLimit(0))
	assert.Equal(t, "30m", FormatLimit(1800))

	_, ok := Remaining(0, 100)
	assert.False(t, ok)

	remaining, ok := Remaining(3600, 1000)
	assert.True(t, ok)
	assert.Equal(t, int64(2600), remaining)

	remaining, ok = Remaining(3600, 5000)
	assert.True(t, ok)
	assert.Equal(t, int64(0), remaining)
}

func newTestReporter(t *testing.T) (*Reporter, *bolt.Store) {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "report.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, 3, 10, 18, 0, 0, 0, time.Local))

	return NewReporter(db.Usage(), db.Limits(), db.Categories(), clock), db
}

func seedUsage(t *testing.T, db *bolt.Store, date string, seconds map[string]int64) {
	t.Helper()
	for domain, s := range seconds {
		_, err := db.Usage().AddDailyUsage(context.Background(), date, domain, s, "")
		require.NoError(t, err)
	}
}

func TestReporterDay(t *testing.T) {
	reporter, db := newTestReporter(t)
	ctx := context.Background()

	seedUsage(t, db, "2026-03-10", map[string]int64{
		"github.com":  1200,
		"reddit.com":  3000,
		"example.org": 45,
		"undefined":   500,
	})
	require.NoError(t, db.Limits().Upsert(ctx, storage.SiteLimit{Domain: "reddit.com", DailyLimitSeconds: 3600, CustomName: "Reddit"}))

	day, err := reporter.Day(ctx, reporter.Today())
	require.NoError(t, err)

	require.Len(t, day.Sites, 3)
	assert.Equal(t, int64(4245), day.TotalSeconds)
	assert.Equal(t, "1h 10m", day.Formatted)

	top := day.Sites[0]
	assert.Equal(t, "reddit.com", top.Domain)
	assert.Equal(t, "Reddit", top.DisplayName)
	assert.Equal(t, CategorySocial, top.CategoryID)
	assert.Equal(t, int64(3600), top.LimitSeconds)
	require.NotNil(t, top.RemainingSeconds)
	assert.Equal(t, int64(600), *top.RemainingSeconds)

	assert.Equal(t, "github.com", day.Sites[1].Domain)
	assert.Nil(t, day.Sites[1].RemainingSeconds)
	assert.Equal(t, DefaultIconURL("example.org"), day.Sites[2].Icon)
}

func TestReporterCategoryTotals(t *testing.T) {
	reporter, db := newTestReporter(t)
	ctx := context.Background()

	seedUsage(t, db, "2026-03-10", map[string]int64{
		"github.com":   600,
		"gitlab.com":   300,
		"youtube.com":  1200,
		"example.org":  100,
		"custom.local": 50,
	})
	require.NoError(t, db.Limits().Upsert(ctx, storage.SiteLimit{Domain: "custom.local", CategoryID: CategoryProductivity}))

	totals, err := reporter.CategoryTotals(ctx, "2026-03-10")
	require.NoError(t, err)

	byID := make(map[string]int64)
	for _, total := range totals {
		byID[total.Category.ID] = total.TotalSeconds
	}
	assert.Equal(t, map[string]int64{
		CategoryProductivity:  50,
		CategoryCode:          900,
		CategoryEntertainment: 1200,
		CategoryUncategorized: 100,
	}, byID)
	assert.Equal(t, "Other", totals[len(totals)-1].Category.Name)
}

func TestReporterSuggestions(t *testing.T) {
	reporter, db := newTestReporter(t)
	ctx := context.Background()

	seedUsage(t, db, "2026-03-10", map[string]int64{
		"github.com":        600,
		"notion.so":         900,
		"linear.app":        100,
		"figma.com":         50,
		"slack.com":         40,
		"docs.google.com":   30,
		"youtube.com":       5000,
		"stackoverflow.com": 20,
	})

	suggestions, err := reporter.Suggestions(ctx, "2026-03-10", "notion.so", 5)
	require.NoError(t, err)

	domains := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		domains = append(domains, s.Domain)
	}
	assert.Equal(t, []string{"github.com", "linear.app", "figma.com", "slack.com", "docs.google.com"}, domains)
}

func TestReporterTrend(t *testing.T) {
	reporter, db := newTestReporter(t)
	ctx := context.Background()

	seedUsage(t, db, "2026-03-04", map[string]int64{"reddit.com": 100})
	seedUsage(t, db, "2026-03-09", map[string]int64{"reddit.com": 200, "github.com": 50})
	seedUsage(t, db, "2026-03-10", map[string]int64{"reddit.com": 300})
	seedUsage(t, db, "2026-03-01", map[string]int64{"reddit.com": 999})

	weekly, err := reporter.Trend(ctx, "reddit.com", 7)
	require.NoError(t, err)
	require.Len(t, weekly, 7)
	assert.Equal(t, "2026-03-04", weekly[0].Date)
	assert.Equal(t, int64(100), weekly[0].TotalSeconds)
	assert.Equal(t, int64(200), weekly[5].TotalSeconds)
	assert.Equal(t, "2026-03-10", weekly[6].Date)
	assert.Equal(t, int64(300), weekly[6].TotalSeconds)

	all, err := reporter.Trend(ctx, "", 30)
	require.NoError(t, err)
	require.Len(t, all, 30)
	assert.Equal(t, int64(250), all[28].TotalSeconds)

	_, err = reporter.Trend(ctx, "reddit.com", 0)
	assert.Error(t, err)
}

func TestReporterDefaultCategories(t *testing.T) {
	reporter, db := newTestReporter(t)
	ctx := context.Background()

	categories, err := reporter.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategories, categories)

	require.NoError(t, db.Categories().Upsert(ctx, storage.Category{ID: "cat-9", Name: "Reading", Color: "#123456"}))
	categories, err = reporter.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Reading", categories[0].Name)
}
