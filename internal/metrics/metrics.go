package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracking metrics
	TrackedSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitelimit_tracked_seconds_total",
			Help: "Total seconds of active use written to the usage ledger",
		},
		[]string{"domain"},
	)

	Flushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitelimit_flushes_total",
			Help: "Tracking session flushes by result",
		},
		[]string{"result"},
	)

	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitelimit_signals_total",
			Help: "Host environment signals handled by the event loop",
		},
		[]string{"type"},
	)

	SignalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitelimit_signal_duration_seconds",
			Help:    "Time spent handling a signal, including storage round-trips",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"type"},
	)

	// Enforcement metrics
	BlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitelimit_blocks_total",
			Help: "Domains added to the block set",
		},
		[]string{"domain"},
	)

	BlockedDomains = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitelimit_blocked_domains",
			Help: "Number of domains currently blocked",
		},
	)

	BlockNotifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitelimit_block_notifications_total",
			Help: "block_domain notifications delivered to surfaces",
		},
	)

	PolicyErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitelimit_policy_errors_total",
			Help: "Policy evaluations that failed and fell back to the plain comparison",
		},
	)

	DailyResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitelimit_daily_resets_total",
			Help: "Daily block set resets performed",
		},
	)

	// Retention metrics
	RetentionDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitelimit_retention_deleted_total",
			Help: "Usage ledger entries removed by retention pruning",
		},
	)

	// Surface metrics
	ActiveSurfaces = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitelimit_active_surfaces",
			Help: "Number of surfaces (tabs) known to the registry",
		},
	)

	SurfaceSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitelimit_surface_subscribers",
			Help: "Number of open surface event streams",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		TrackedSeconds,
		Flushes,
		SignalsTotal,
		SignalDuration,
		BlocksTotal,
		BlockedDomains,
		BlockNotifications,
		PolicyErrors,
		DailyResets,
		RetentionDeleted,
		ActiveSurfaces,
		SurfaceSubscribers,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
