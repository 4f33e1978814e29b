package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/sitelimit/internal/storage"
)

// parseDailyUsage converts a Redis hash to DailyUsage
func parseDailyUsage(data map[string]string) (*storage.DailyUsage, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	totalSeconds, err := strconv.ParseInt(data["total_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_seconds: %w", err)
	}

	return &storage.DailyUsage{
		Date:         data["date"],
		Domain:       data["domain"],
		TotalSeconds: totalSeconds,
		LastIcon:     data["last_icon"],
	}, nil
}

// parseSiteLimit converts a Redis hash to SiteLimit
func parseSiteLimit(data map[string]string) (*storage.SiteLimit, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	limit := &storage.SiteLimit{
		Domain:     data["domain"],
		CategoryID: data["category_id"],
		CustomName: data["custom_name"],
	}

	if raw := data["daily_limit_seconds"]; raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse daily_limit_seconds: %w", err)
		}
		limit.DailyLimitSeconds = seconds
	}

	if raw := data["updated_at"]; raw != "" {
		updatedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		limit.UpdatedAt = updatedAt
	}

	return limit, nil
}

// siteLimitFields flattens a SiteLimit into HSET field/value pairs
func siteLimitFields(limit storage.SiteLimit) []interface{} {
	return []interface{}{
		"domain", limit.Domain,
		"daily_limit_seconds", limit.DailyLimitSeconds,
		"category_id", limit.CategoryID,
		"custom_name", limit.CustomName,
		"updated_at", limit.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// parseCategory converts a Redis hash to Category
func parseCategory(data map[string]string) (*storage.Category, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	isDefault := false
	if raw := data["is_default"]; raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse is_default: %w", err)
		}
		isDefault = parsed
	}

	return &storage.Category{
		ID:        data["id"],
		Name:      data["name"],
		Color:     data["color"],
		IsDefault: isDefault,
	}, nil
}

// categoryFields flattens a Category into HSET field/value pairs
func categoryFields(category storage.Category) []interface{} {
	return []interface{}{
		"id", category.ID,
		"name", category.Name,
		"color", category.Color,
		"is_default", strconv.FormatBool(category.IsDefault),
	}
}
