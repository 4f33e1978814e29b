package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/rs/zerolog"
)

// maxSignalBytes caps a signal body. Host snapshots listing every open tab
// are the largest payload and stay well below it.
const maxSignalBytes = 1 << 20

// SignalsViews accepts host environment signals.
type SignalsViews struct {
	dispatcher Dispatcher
	logger     zerolog.Logger
}

// NewSignalsViews creates a new signals views instance.
func NewSignalsViews(dispatcher Dispatcher, logger zerolog.Logger) *SignalsViews {
	return &SignalsViews{
		dispatcher: dispatcher,
		logger:     logger.With().Str("handler", "signals").Logger(),
	}
}

// Post decodes one signal and waits until the event loop has applied it.
func (v *SignalsViews) Post(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxSignalBytes)
	body, err := ctx.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(ctx, http.StatusRequestEntityTooLarge, "too_large", "Signal body is too large")
			return
		}
		abortWithError(ctx, http.StatusBadRequest, "bad_request", "Failed to read request body")
		return
	}

	sig, err := usage.DecodeSignal(body)
	if err != nil {
		abortWithError(ctx, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if err := v.dispatcher.Submit(ctx.Request.Context(), sig); err != nil {
		v.logger.Error().Err(err).Str("signal", string(sig.Type())).Msg("Failed to handle signal")
		abortWithError(ctx, http.StatusServiceUnavailable, "unavailable", "Signal could not be applied")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"type": sig.Type()})
}

// Session reports what the tracker is currently accounting.
func (v *SignalsViews) Session(ctx *gin.Context) {
	state, session, err := v.dispatcher.Session(ctx.Request.Context())
	if err != nil {
		v.logger.Error().Err(err).Msg("Failed to read session")
		abortWithError(ctx, http.StatusServiceUnavailable, "unavailable", "Session is not available")
		return
	}

	response := gin.H{
		"state":        state.String(),
		"domain":       session.Domain,
		"icon":         session.Icon,
		"user_present": session.UserPresent,
		"host_focused": session.HostFocused,
	}
	if !session.StartedAt.IsZero() {
		response["started_at"] = session.StartedAt.Format(time.RFC3339)
	}
	ctx.JSON(http.StatusOK, response)
}
