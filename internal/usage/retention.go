package usage

import (
	"context"
	"fmt"

	"github.com/coder/quartz"
	"github.com/goodtune/sitelimit/internal/metrics"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/rs/zerolog"
)

// Pruner removes ledger dates that fell out of the retention window.
type Pruner struct {
	usageStore storage.UsageStore
	days       int
	clock      quartz.Clock
	logger     zerolog.Logger
}

// NewPruner creates a pruner keeping the last days days of usage.
func NewPruner(usageStore storage.UsageStore, days int, clock quartz.Clock, logger zerolog.Logger) *Pruner {
	return &Pruner{
		usageStore: usageStore,
		days:       days,
		clock:      clock,
		logger:     logger.With().Str("component", "retention").Logger(),
	}
}

// Cutoff returns the oldest date that is kept.
func (p *Pruner) Cutoff() string {
	return p.clock.Now().AddDate(0, 0, -p.days).Format(storage.DateFormat)
}

// Prune deletes every ledger entry dated before Cutoff.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	cutoff := p.Cutoff()

	deleted, err := p.usageStore.DeleteDailyUsageBefore(ctx, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("failed to prune usage before %s: %w", cutoff, err)
	}

	metrics.RetentionDeleted.Add(float64(deleted))
	p.logger.Info().
		Int("entries_deleted", deleted).
		Str("cutoff_date", cutoff).
		Msg("Old usage data cleaned up")

	return deleted, nil
}
