package enforce

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/coder/quartz"
	"github.com/goodtune/sitelimit/internal/metrics"
	"github.com/goodtune/sitelimit/internal/policy"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/rs/zerolog"
)

// Notifier delivers block_domain notifications to the surfaces showing a
// domain and returns how many received it.
type Notifier interface {
	NotifyBlocked(ctx context.Context, domain string, limitSeconds int64) int
}

// Decider decides whether a domain should be blocked.
type Decider interface {
	Decide(ctx context.Context, facts policy.Facts) policy.Decision
}

// Status is the enforcement view of one domain for today.
type Status struct {
	Domain           string `json:"domain"`
	Date             string `json:"date"`
	Limited          bool   `json:"limited"`
	LimitSeconds     int64  `json:"limit_seconds,omitempty"`
	UsedSeconds      int64  `json:"used_seconds"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
	Blocked          bool   `json:"blocked"`
	Reason           string `json:"reason,omitempty"`
}

// Controller turns ledger totals and configured limits into the block set.
// Blocks only grow between resets: a domain under its limit is never removed.
type Controller struct {
	usageStore storage.UsageStore
	limitStore storage.LimitStore
	blockStore storage.BlockStore
	decider    Decider
	notifier   Notifier
	clock      quartz.Clock
	logger     zerolog.Logger
}

// NewController creates a controller. decider and notifier may be nil; a nil
// decider applies policy.ThresholdDecision.
func NewController(
	usageStore storage.UsageStore,
	limitStore storage.LimitStore,
	blockStore storage.BlockStore,
	decider Decider,
	notifier Notifier,
	clock quartz.Clock,
	logger zerolog.Logger,
) *Controller {
	return &Controller{
		usageStore: usageStore,
		limitStore: limitStore,
		blockStore: blockStore,
		decider:    decider,
		notifier:   notifier,
		clock:      clock,
		logger:     logger.With().Str("component", "enforcement").Logger(),
	}
}

// SetNotifier replaces the notifier.
func (c *Controller) SetNotifier(n Notifier) {
	c.notifier = n
}

// Recheck compares today's usage of domain with its limit and blocks the
// domain once the limit is reached. Surfaces are notified only when the
// domain was not blocked before.
func (c *Controller) Recheck(ctx context.Context, domain string) (*Status, error) {
	status, limit, err := c.status(ctx, domain)
	if err != nil {
		return nil, err
	}
	if !status.Limited {
		return status, nil
	}

	decision := c.decide(ctx, status)
	status.Reason = decision.Reason
	if !decision.Block || status.Blocked {
		return status, nil
	}

	added, err := c.blockStore.Add(ctx, status.Domain)
	if err != nil {
		return nil, fmt.Errorf("failed to block %s: %w", status.Domain, err)
	}
	status.Blocked = true
	if !added {
		return status, nil
	}

	metrics.BlocksTotal.WithLabelValues(status.Domain).Inc()
	metrics.BlockedDomains.Inc()

	notified := 0
	if c.notifier != nil {
		notified = c.notifier.NotifyBlocked(ctx, status.Domain, limit.DailyLimitSeconds)
	}

	c.logger.Info().
		Str("domain", status.Domain).
		Int64("used_seconds", status.UsedSeconds).
		Int64("limit_seconds", status.LimitSeconds).
		Str("reason", decision.Reason).
		Bool("policy_fallback", decision.Fallback).
		Int("surfaces_notified", notified).
		Msg("Blocked domain")

	return status, nil
}

// RecheckAll rechecks every domain with a configured limit. A failure on one
// domain does not stop the others.
func (c *Controller) RecheckAll(ctx context.Context) error {
	limits, err := c.limitStore.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list limits: %w", err)
	}

	var errs []error
	checked := 0
	for _, limit := range limits {
		if !limit.HasLimit() {
			continue
		}
		checked++
		if _, err := c.Recheck(ctx, limit.Domain); err != nil {
			c.logger.Error().Err(err).Str("domain", limit.Domain).Msg("Failed to recheck limit")
			errs = append(errs, err)
		}
	}

	c.logger.Debug().Int("domains", checked).Msg("Rechecked all limits")
	return errors.Join(errs...)
}

// ClearAll empties the block set.
func (c *Controller) ClearAll(ctx context.Context) error {
	if err := c.blockStore.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear blocks: %w", err)
	}
	metrics.BlockedDomains.Set(0)
	c.logger.Info().Msg("Cleared all blocks")
	return nil
}

// IsBlocked reports whether domain is in the block set.
func (c *Controller) IsBlocked(ctx context.Context, domain string) (bool, error) {
	return c.blockStore.Contains(ctx, storage.NormalizeDomain(domain))
}

// Blocked lists the blocked domains in order.
func (c *Controller) Blocked(ctx context.Context) ([]string, error) {
	domains, err := c.blockStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	sort.Strings(domains)
	return domains, nil
}

// Status reports limit, usage and block state without changing anything.
func (c *Controller) Status(ctx context.Context, domain string) (*Status, error) {
	status, _, err := c.status(ctx, domain)
	return status, err
}

func (c *Controller) status(ctx context.Context, domain string) (*Status, *storage.SiteLimit, error) {
	domain = storage.NormalizeDomain(domain)
	if domain == "" {
		return nil, nil, fmt.Errorf("domain is required")
	}

	status := &Status{
		Domain: domain,
		Date:   c.clock.Now().Format(storage.DateFormat),
	}

	blocked, err := c.blockStore.Contains(ctx, domain)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read block set: %w", err)
	}
	status.Blocked = blocked

	entry, err := c.usageStore.GetDailyUsage(ctx, status.Date, domain)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, nil, fmt.Errorf("failed to read usage for %s: %w", domain, err)
	default:
		status.UsedSeconds = entry.TotalSeconds
	}

	limit, err := c.limitStore.Get(ctx, domain)
	if errors.Is(err, storage.ErrNotFound) {
		return status, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read limit for %s: %w", domain, err)
	}
	if !limit.HasLimit() {
		return status, limit, nil
	}

	status.Limited = true
	status.LimitSeconds = limit.DailyLimitSeconds
	status.RemainingSeconds = max(0, limit.DailyLimitSeconds-status.UsedSeconds)
	return status, limit, nil
}

func (c *Controller) decide(ctx context.Context, status *Status) policy.Decision {
	facts := policy.Facts{
		Domain:         status.Domain,
		Date:           status.Date,
		UsedSeconds:    status.UsedSeconds,
		LimitSeconds:   status.LimitSeconds,
		AlreadyBlocked: status.Blocked,
	}
	if c.decider == nil {
		return policy.ThresholdDecision(facts)
	}
	return c.decider.Decide(ctx, facts)
}
