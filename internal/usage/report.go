package usage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/coder/quartz"
	"github.com/goodtune/sitelimit/internal/storage"
)

// SuggestionCategories are the categories offered as alternatives on the
// intervention surface.
var SuggestionCategories = []string{CategoryProductivity, CategoryCode}

// SiteReport is one domain's usage on one day.
type SiteReport struct {
	Domain           string `json:"domain"`
	DisplayName      string `json:"display_name"`
	Icon             string `json:"icon"`
	TotalSeconds     int64  `json:"total_seconds"`
	Formatted        string `json:"formatted"`
	CategoryID       string `json:"category_id,omitempty"`
	LimitSeconds     int64  `json:"limit_seconds,omitempty"`
	RemainingSeconds *int64 `json:"remaining_seconds,omitempty"`
}

// DayReport summarizes a day of usage, busiest site first.
type DayReport struct {
	Date         string       `json:"date"`
	TotalSeconds int64        `json:"total_seconds"`
	Formatted    string       `json:"formatted"`
	Sites        []SiteReport `json:"sites"`
}

// CategoryTotal is the time spent in one category on one day.
type CategoryTotal struct {
	Category     storage.Category `json:"category"`
	TotalSeconds int64            `json:"total_seconds"`
	Formatted    string           `json:"formatted"`
}

// TrendPoint is one day in a usage trend.
type TrendPoint struct {
	Date         string `json:"date"`
	TotalSeconds int64  `json:"total_seconds"`
}

// Reporter builds read-only views over the ledger and the limit registry.
type Reporter struct {
	usageStore    storage.UsageStore
	limitStore    storage.LimitStore
	categoryStore storage.CategoryStore
	clock         quartz.Clock
}

// NewReporter creates a reporter.
func NewReporter(usageStore storage.UsageStore, limitStore storage.LimitStore, categoryStore storage.CategoryStore, clock quartz.Clock) *Reporter {
	return &Reporter{
		usageStore:    usageStore,
		limitStore:    limitStore,
		categoryStore: categoryStore,
		clock:         clock,
	}
}

// Today returns the current ledger date.
func (r *Reporter) Today() string {
	return r.clock.Now().Format(storage.DateFormat)
}

// Day reports every site with recorded time on date.
func (r *Reporter) Day(ctx context.Context, date string) (*DayReport, error) {
	entries, err := r.usageStore.ListDailyUsage(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage for %s: %w", date, err)
	}

	limits, err := r.limitsByDomain(ctx)
	if err != nil {
		return nil, err
	}

	report := &DayReport{Date: date, Sites: make([]SiteReport, 0, len(entries))}
	for _, entry := range entries {
		if !validDomain(entry.Domain) || entry.TotalSeconds <= 0 {
			continue
		}
		site := siteReport(entry, limits[entry.Domain])
		report.Sites = append(report.Sites, site)
		report.TotalSeconds += site.TotalSeconds
	}
	report.Formatted = FormatDuration(report.TotalSeconds)
	sortSites(report.Sites)

	return report, nil
}

// Categories returns the stored categories, or the defaults when none exist.
func (r *Reporter) Categories(ctx context.Context) ([]storage.Category, error) {
	categories, err := r.categoryStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) == 0 {
		return append([]storage.Category(nil), DefaultCategories...), nil
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

// CategoryTotals sums a day's usage per category. Domains whose category is
// unknown count towards Uncategorized. Categories without time are omitted.
func (r *Reporter) CategoryTotals(ctx context.Context, date string) ([]CategoryTotal, error) {
	day, err := r.Day(ctx, date)
	if err != nil {
		return nil, err
	}
	categories, err := r.Categories(ctx)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(categories)+1)
	totals := make(map[string]*CategoryTotal, len(categories)+1)
	for _, category := range append(categories, Uncategorized) {
		order = append(order, category.ID)
		totals[category.ID] = &CategoryTotal{Category: category}
	}

	for _, site := range day.Sites {
		key := site.CategoryID
		if _, ok := totals[key]; !ok {
			key = CategoryUncategorized
		}
		totals[key].TotalSeconds += site.TotalSeconds
	}

	result := make([]CategoryTotal, 0, len(order))
	for _, id := range order {
		total := totals[id]
		if total.TotalSeconds == 0 {
			continue
		}
		total.Formatted = FormatDuration(total.TotalSeconds)
		result = append(result, *total)
	}
	return result, nil
}

// Suggestions returns up to n productive sites used on date, excluding the
// blocked domain itself.
func (r *Reporter) Suggestions(ctx context.Context, date, exclude string, n int) ([]SiteReport, error) {
	day, err := r.Day(ctx, date)
	if err != nil {
		return nil, err
	}

	suggestions := make([]SiteReport, 0, n)
	for _, site := range day.Sites {
		if len(suggestions) == n {
			break
		}
		if site.Domain == exclude || !slices.Contains(SuggestionCategories, site.CategoryID) {
			continue
		}
		suggestions = append(suggestions, site)
	}
	return suggestions, nil
}

// Trend returns the last days days of usage ending today, oldest first. An
// empty domain sums every site.
func (r *Reporter) Trend(ctx context.Context, domain string, days int) ([]TrendPoint, error) {
	if days <= 0 {
		return nil, fmt.Errorf("trend length must be positive, got %d", days)
	}

	now := r.clock.Now()
	points := make([]TrendPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format(storage.DateFormat)
		seconds, err := r.secondsOn(ctx, date, domain)
		if err != nil {
			return nil, err
		}
		points = append(points, TrendPoint{Date: date, TotalSeconds: seconds})
	}
	return points, nil
}

func (r *Reporter) secondsOn(ctx context.Context, date, domain string) (int64, error) {
	if domain != "" {
		entry, err := r.usageStore.GetDailyUsage(ctx, date, domain)
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to get usage for %s on %s: %w", domain, date, err)
		}
		return entry.TotalSeconds, nil
	}

	entries, err := r.usageStore.ListDailyUsage(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("failed to list usage for %s: %w", date, err)
	}
	var total int64
	for _, entry := range entries {
		total += entry.TotalSeconds
	}
	return total, nil
}

func (r *Reporter) limitsByDomain(ctx context.Context) (map[string]*storage.SiteLimit, error) {
	limits, err := r.limitStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list limits: %w", err)
	}
	byDomain := make(map[string]*storage.SiteLimit, len(limits))
	for i := range limits {
		byDomain[limits[i].Domain] = &limits[i]
	}
	return byDomain, nil
}

func siteReport(entry storage.DailyUsage, limit *storage.SiteLimit) SiteReport {
	site := SiteReport{
		Domain:       entry.Domain,
		DisplayName:  entry.Domain,
		Icon:         entry.LastIcon,
		TotalSeconds: entry.TotalSeconds,
		Formatted:    FormatDuration(entry.TotalSeconds),
		CategoryID:   CategoryFor(entry.Domain, limit),
	}
	if site.Icon == "" {
		site.Icon = DefaultIconURL(entry.Domain)
	}
	if limit != nil {
		if limit.CustomName != "" {
			site.DisplayName = limit.CustomName
		}
		if remaining, ok := Remaining(limit.DailyLimitSeconds, entry.TotalSeconds); ok {
			site.LimitSeconds = limit.DailyLimitSeconds
			site.RemainingSeconds = &remaining
		}
	}
	return site
}

func sortSites(sites []SiteReport) {
	sort.SliceStable(sites, func(i, j int) bool {
		if sites[i].TotalSeconds != sites[j].TotalSeconds {
			return sites[i].TotalSeconds > sites[j].TotalSeconds
		}
		return sites[i].Domain < sites[j].Domain
	})
}

// validDomain filters ledger keys written by broken hosts.
func validDomain(domain string) bool {
	return domain != "" && domain != "null" && domain != "undefined"
}
