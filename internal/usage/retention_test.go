package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/goodtune/sitelimit/internal/storage/bolt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrunerKeepsRetentionWindow(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "usage.bolt"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, 6, 30, 12, 0, 0, 0, time.Local))

	ctx := context.Background()
	for _, date := range []string{"2026-03-31", "2026-04-01", "2026-04-02", "2026-06-30"} {
		_, err := db.Usage().AddDailyUsage(ctx, date, "github.com", 60, "")
		require.NoError(t, err)
	}

	pruner := NewPruner(db.Usage(), 90, clock, zerolog.Nop())
	assert.Equal(t, "2026-04-01", pruner.Cutoff())

	deleted, err := pruner.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	dates, err := db.Usage().ListDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-04-01", "2026-04-02", "2026-06-30"}, dates)
}
