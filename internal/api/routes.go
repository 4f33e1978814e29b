package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes(deps Deps) {
	r := s.router
	r.Use(LoggingMiddleware(s.logger))
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(CORSMiddleware(s.config.AllowedOrigins))
	}

	signals := NewSignalsViews(deps.Dispatcher, s.logger)
	enforcement := NewEnforcementViews(deps.Controller, deps.Dispatcher, deps.Limits, s.logger)
	reports := NewReportsViews(deps.Reporter, deps.Categories, s.config, s.logger)
	surfaces := NewSurfacesViews(deps.Surfaces, s.closing, s.logger)

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/signals", signals.Post)
		v1.GET("/session", signals.Session)

		v1.GET("/blocked", enforcement.ListBlocked)
		v1.GET("/blocked/:domain", enforcement.GetBlocked)
		v1.GET("/status/:domain", enforcement.Status)

		v1.GET("/limits", enforcement.ListLimits)
		v1.GET("/limits/:domain", enforcement.GetLimit)
		v1.PUT("/limits/:domain", enforcement.PutLimit)
		v1.DELETE("/limits/:domain", enforcement.DeleteLimit)

		v1.GET("/usage/today", reports.Today)
		v1.GET("/usage/:date", reports.Day)
		v1.GET("/categories", reports.ListCategories)
		v1.GET("/categories/totals", reports.CategoryTotals)
		v1.PUT("/categories/:id", reports.PutCategory)
		v1.DELETE("/categories/:id", reports.DeleteCategory)
		v1.GET("/trend", reports.Trend)
		v1.GET("/trend/:domain", reports.Trend)
		v1.GET("/suggestions", reports.Suggestions)
		v1.GET("/config", reports.HostConfig)

		v1.GET("/surfaces/:tab", surfaces.Get)
		v1.GET("/surfaces/:tab/events", surfaces.Events)
	}
}
