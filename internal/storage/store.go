package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// DateFormat is the layout of ledger date buckets.
const DateFormat = "2006-01-02"

// Store represents the durable storage tier.
// It holds the usage ledger and the user's limit and category settings.
type Store interface {
	Close() error
	Usage() UsageStore
	Limits() LimitStore
	Categories() CategoryStore
}

// SessionStore represents the volatile tier. Data held here survives the
// daemon being restarted but is expected to vanish when the host reboots.
type SessionStore interface {
	Close() error
	Blocks() BlockStore
}

// UsageStore manages the per-day, per-domain usage ledger.
type UsageStore interface {
	GetDailyUsage(ctx context.Context, date, domain string) (*DailyUsage, error)
	ListDailyUsage(ctx context.Context, date string) ([]DailyUsage, error)
	// AddDailyUsage atomically adds seconds to the (date, domain) total and
	// returns the updated entry. An empty icon leaves the stored icon as is.
	AddDailyUsage(ctx context.Context, date, domain string, seconds int64, icon string) (*DailyUsage, error)
	ListDates(ctx context.Context) ([]string, error)
	DeleteDailyUsageBefore(ctx context.Context, cutoffDate string) (int, error)
}

// LimitStore manages per-domain limit settings.
type LimitStore interface {
	Get(ctx context.Context, domain string) (*SiteLimit, error)
	List(ctx context.Context) ([]SiteLimit, error)
	Upsert(ctx context.Context, limit SiteLimit) error
	Delete(ctx context.Context, domain string) error
}

// CategoryStore manages user-defined site categories.
type CategoryStore interface {
	List(ctx context.Context) ([]Category, error)
	Upsert(ctx context.Context, category Category) error
	Delete(ctx context.Context, id string) error
}

// BlockStore manages the set of domains under active enforcement.
type BlockStore interface {
	// Add inserts domain and reports whether it was not already present.
	Add(ctx context.Context, domain string) (bool, error)
	Contains(ctx context.Context, domain string) (bool, error)
	List(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
