package storage

import (
	"fmt"
	"strings"
	"time"
)

// DailyUsage aggregates usage per day and domain.
type DailyUsage struct {
	Date         string `json:"date"`
	Domain       string `json:"domain"`
	TotalSeconds int64  `json:"total_seconds"`
	LastIcon     string `json:"last_icon,omitempty"`
}

// SiteLimit holds the user's settings for a single domain.
// A zero DailyLimitSeconds means no limit is configured.
type SiteLimit struct {
	Domain            string    `json:"domain"`
	DailyLimitSeconds int64     `json:"daily_limit_seconds,omitempty"`
	CategoryID        string    `json:"category_id,omitempty"`
	CustomName        string    `json:"custom_name,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasLimit reports whether a daily ceiling is configured.
func (l *SiteLimit) HasLimit() bool {
	return l != nil && l.DailyLimitSeconds > 0
}

// Validate checks the limit before it is stored.
func (l *SiteLimit) Validate() error {
	if strings.TrimSpace(l.Domain) == "" {
		return fmt.Errorf("domain is required")
	}
	if l.DailyLimitSeconds < 0 {
		return fmt.Errorf("daily limit must not be negative: %d", l.DailyLimitSeconds)
	}
	return nil
}

// Category groups domains for reporting.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// NormalizeDomain lower-cases and trims a domain used as a storage key.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
