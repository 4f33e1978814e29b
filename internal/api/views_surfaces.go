package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitelimit/internal/surface"
	"github.com/rs/zerolog"
)

const heartbeatInterval = 25 * time.Second

// SurfacesViews streams notifications to the surfaces (tabs) of the host.
type SurfacesViews struct {
	registry *surface.Registry
	closing  <-chan struct{}
	logger   zerolog.Logger
}

// NewSurfacesViews creates a new surfaces views instance. Streams end when
// closing is closed.
func NewSurfacesViews(registry *surface.Registry, closing <-chan struct{}, logger zerolog.Logger) *SurfacesViews {
	return &SurfacesViews{
		registry: registry,
		closing:  closing,
		logger:   logger.With().Str("handler", "surfaces").Logger(),
	}
}

// Get returns what the daemon knows about a tab.
func (v *SurfacesViews) Get(ctx *gin.Context) {
	tabID, ok := tabParam(ctx)
	if !ok {
		return
	}

	s, found := v.registry.Get(tabID)
	if !found {
		abortWithError(ctx, http.StatusNotFound, "not_found", "Unknown tab")
		return
	}
	ctx.JSON(http.StatusOK, s)
}

// Events streams block_domain events for one tab as server-sent events.
// A "ready" event is sent once the subscription is in place.
func (v *SurfacesViews) Events(ctx *gin.Context) {
	tabID, ok := tabParam(ctx)
	if !ok {
		return
	}

	sub := v.registry.Subscribe(tabID)
	defer sub.Close()

	v.logger.Debug().Int("tab_id", tabID).Msg("Surface subscribed")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.SSEvent("ready", gin.H{"tab_id": tabID})
	ctx.Writer.Flush()

	ctx.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-sub.C:
			if !open {
				return false
			}
			ctx.SSEvent(event.Type, event)
			return true
		case <-heartbeat.C:
			ctx.SSEvent("ping", gin.H{})
			return true
		case <-ctx.Request.Context().Done():
			return false
		case <-v.closing:
			return false
		}
	})

	v.logger.Debug().Int("tab_id", tabID).Msg("Surface unsubscribed")
}

func tabParam(ctx *gin.Context) (int, bool) {
	tabID, err := strconv.Atoi(ctx.Param("tab"))
	if err != nil {
		abortWithError(ctx, http.StatusBadRequest, "bad_request", "Invalid tab id")
		return 0, false
	}
	return tabID, true
}
