package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/rs/zerolog"
)

const (
	defaultTrendDays = 7
	maxTrendDays     = 90
	suggestionCount  = 5
)

// ReportsViews serves usage reports, categories and host settings.
type ReportsViews struct {
	reporter      *usage.Reporter
	categoryStore storage.CategoryStore
	config        Config
	logger        zerolog.Logger
}

// NewReportsViews creates a new reports views instance.
func NewReportsViews(reporter *usage.Reporter, categoryStore storage.CategoryStore, config Config, logger zerolog.Logger) *ReportsViews {
	return &ReportsViews{
		reporter:      reporter,
		categoryStore: categoryStore,
		config:        config,
		logger:        logger.With().Str("handler", "reports").Logger(),
	}
}

// Today returns today's usage report.
func (v *ReportsViews) Today(ctx *gin.Context) {
	v.writeDay(ctx, v.reporter.Today())
}

// Day returns the usage report of a specific date.
func (v *ReportsViews) Day(ctx *gin.Context) {
	date, ok := v.dateParam(ctx, ctx.Param("date"))
	if !ok {
		return
	}
	v.writeDay(ctx, date)
}

func (v *ReportsViews) writeDay(ctx *gin.Context, date string) {
	report, err := v.reporter.Day(ctx.Request.Context(), date)
	if err != nil {
		v.logger.Error().Err(err).Str("date", date).Msg("Failed to build usage report")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve usage")
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// ListCategories returns the configured categories.
func (v *ReportsViews) ListCategories(ctx *gin.Context) {
	categories, err := v.reporter.Categories(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to list categories")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve categories")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"count":      len(categories),
	})
}

// CategoryTotals returns per-category time for ?date= (default today).
func (v *ReportsViews) CategoryTotals(ctx *gin.Context) {
	date, ok := v.dateParam(ctx, ctx.DefaultQuery("date", v.reporter.Today()))
	if !ok {
		return
	}

	totals, err := v.reporter.CategoryTotals(ctx.Request.Context(), date)
	if err != nil {
		v.logger.Error().Err(err).Str("date", date).Msg("Failed to build category totals")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve category totals")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"date":       date,
		"categories": totals,
	})
}

type categoryRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

// PutCategory creates or renames a category.
func (v *ReportsViews) PutCategory(ctx *gin.Context) {
	var req categoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	category := storage.Category{ID: ctx.Param("id"), Name: req.Name, Color: req.Color}
	if err := v.categoryStore.Upsert(ctx.Request.Context(), category); err != nil {
		v.logger.Error().Err(err).Str("id", category.ID).Msg("Failed to store category")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to store category")
		return
	}

	ctx.JSON(http.StatusOK, category)
}

// DeleteCategory removes a category. Sites assigned to it count as
// uncategorized afterwards.
func (v *ReportsViews) DeleteCategory(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := v.categoryStore.Delete(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			abortWithError(ctx, http.StatusNotFound, "not_found", "Category not found")
			return
		}
		v.logger.Error().Err(err).Str("id", id).Msg("Failed to delete category")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to delete category")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Category removed"})
}

// Trend returns ?days= (default 7) days of usage for a domain, or for all
// sites when no domain is given.
func (v *ReportsViews) Trend(ctx *gin.Context) {
	days, err := strconv.Atoi(ctx.DefaultQuery("days", strconv.Itoa(defaultTrendDays)))
	if err != nil || days <= 0 || days > maxTrendDays {
		abortWithError(ctx, http.StatusBadRequest, "bad_request", "days must be between 1 and 90")
		return
	}
	domain := storage.NormalizeDomain(ctx.Param("domain"))

	points, err := v.reporter.Trend(ctx.Request.Context(), domain, days)
	if err != nil {
		v.logger.Error().Err(err).Str("domain", domain).Msg("Failed to build trend")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve trend")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"domain": domain,
		"days":   days,
		"points": points,
	})
}

// Suggestions returns the productive sites used today, excluding ?exclude=.
func (v *ReportsViews) Suggestions(ctx *gin.Context) {
	exclude := storage.NormalizeDomain(ctx.Query("exclude"))

	sites, err := v.reporter.Suggestions(ctx.Request.Context(), v.reporter.Today(), exclude, suggestionCount)
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to build suggestions")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve suggestions")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"suggestions": sites})
}

// HostConfig tells the host how to report presence.
func (v *ReportsViews) HostConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"idle_threshold_seconds": int64(v.config.IdleThreshold / time.Second),
		"flush_interval_seconds": int64(v.config.FlushInterval / time.Second),
	})
}

func (v *ReportsViews) dateParam(ctx *gin.Context, date string) (string, bool) {
	if _, err := time.Parse(storage.DateFormat, date); err != nil {
		abortWithError(ctx, http.StatusBadRequest, "bad_request", "Invalid date format (expected YYYY-MM-DD)")
		return "", false
	}
	return date, true
}
