package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitelimit/internal/enforce"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/rs/zerolog"
)

// EnforcementViews serves the block set and the limit settings.
type EnforcementViews struct {
	controller *enforce.Controller
	dispatcher Dispatcher
	limitStore storage.LimitStore
	logger     zerolog.Logger
}

// NewEnforcementViews creates a new enforcement views instance.
func NewEnforcementViews(controller *enforce.Controller, dispatcher Dispatcher, limitStore storage.LimitStore, logger zerolog.Logger) *EnforcementViews {
	return &EnforcementViews{
		controller: controller,
		dispatcher: dispatcher,
		limitStore: limitStore,
		logger:     logger.With().Str("handler", "enforcement").Logger(),
	}
}

// ListBlocked returns the blocked domains.
func (v *EnforcementViews) ListBlocked(ctx *gin.Context) {
	domains, err := v.controller.Blocked(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to list blocked domains")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve blocked domains")
		return
	}
	if domains == nil {
		domains = []string{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"domains": domains,
		"count":   len(domains),
	})
}

// GetBlocked answers the page-load query for one domain.
func (v *EnforcementViews) GetBlocked(ctx *gin.Context) {
	domain := storage.NormalizeDomain(ctx.Param("domain"))

	blocked, err := v.controller.IsBlocked(ctx.Request.Context(), domain)
	if err != nil {
		v.logger.Error().Err(err).Str("domain", domain).Msg("Failed to read block set")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to read block set")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"domain":  domain,
		"blocked": blocked,
	})
}

// Status reports limit, usage and block state for one domain.
func (v *EnforcementViews) Status(ctx *gin.Context) {
	status, err := v.controller.Status(ctx.Request.Context(), ctx.Param("domain"))
	if err != nil {
		v.logger.Error().Err(err).Str("domain", ctx.Param("domain")).Msg("Failed to read status")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to read status")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":    status,
		"used":      usage.FormatDuration(status.UsedSeconds),
		"limit":     usage.FormatLimit(status.LimitSeconds),
		"remaining": usage.FormatDuration(status.RemainingSeconds),
	})
}

// ListLimits returns every configured site.
func (v *EnforcementViews) ListLimits(ctx *gin.Context) {
	limits, err := v.limitStore.List(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to list limits")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve limits")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"limits": limits,
		"count":  len(limits),
	})
}

// GetLimit returns the settings of one site.
func (v *EnforcementViews) GetLimit(ctx *gin.Context) {
	domain := storage.NormalizeDomain(ctx.Param("domain"))

	limit, err := v.limitStore.Get(ctx.Request.Context(), domain)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			abortWithError(ctx, http.StatusNotFound, "not_found", "No settings for this domain")
			return
		}
		v.logger.Error().Err(err).Str("domain", domain).Msg("Failed to get limit")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to retrieve limit")
		return
	}

	ctx.JSON(http.StatusOK, limit)
}

type limitRequest struct {
	DailyLimitSeconds int64  `json:"daily_limit_seconds"`
	CategoryID        string `json:"category_id"`
	CustomName        string `json:"custom_name"`
}

// PutLimit stores the settings of one site and rechecks it right away, so a
// limit lowered below today's usage blocks immediately.
func (v *EnforcementViews) PutLimit(ctx *gin.Context) {
	var req limitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	limit := storage.SiteLimit{
		Domain:            storage.NormalizeDomain(ctx.Param("domain")),
		DailyLimitSeconds: req.DailyLimitSeconds,
		CategoryID:        req.CategoryID,
		CustomName:        req.CustomName,
		UpdatedAt:         time.Now(),
	}
	if err := limit.Validate(); err != nil {
		abortWithError(ctx, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if err := v.limitStore.Upsert(ctx.Request.Context(), limit); err != nil {
		v.logger.Error().Err(err).Str("domain", limit.Domain).Msg("Failed to store limit")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to store limit")
		return
	}

	status, err := v.dispatcher.Recheck(ctx.Request.Context(), limit.Domain)
	if err != nil {
		v.logger.Error().Err(err).Str("domain", limit.Domain).Msg("Failed to recheck domain after limit change")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Limit stored but recheck failed")
		return
	}

	v.logger.Info().
		Str("domain", limit.Domain).
		Int64("daily_limit_seconds", limit.DailyLimitSeconds).
		Bool("blocked", status.Blocked).
		Msg("Limit updated")

	ctx.JSON(http.StatusOK, gin.H{
		"limit":  limit,
		"status": status,
	})
}

// DeleteLimit removes the settings of one site. A block already in place
// stays until the next reset.
func (v *EnforcementViews) DeleteLimit(ctx *gin.Context) {
	domain := storage.NormalizeDomain(ctx.Param("domain"))

	if err := v.limitStore.Delete(ctx.Request.Context(), domain); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			abortWithError(ctx, http.StatusNotFound, "not_found", "No settings for this domain")
			return
		}
		v.logger.Error().Err(err).Str("domain", domain).Msg("Failed to delete limit")
		abortWithError(ctx, http.StatusInternalServerError, "server_error", "Failed to delete limit")
		return
	}

	v.logger.Info().Str("domain", domain).Msg("Limit removed")
	ctx.JSON(http.StatusOK, gin.H{"message": "Limit removed"})
}
