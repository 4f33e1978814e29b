package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/goodtune/sitelimit/internal/enforce"
	"github.com/goodtune/sitelimit/internal/metrics"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/goodtune/sitelimit/internal/surface"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/rs/zerolog"
)

// ErrStopped is returned by Submit and Do once the event loop has exited.
var ErrStopped = errors.New("daemon: event loop stopped")

// shutdownFlushTimeout bounds the final flush after the loop is cancelled.
const shutdownFlushTimeout = 5 * time.Second

// Config holds the event loop settings.
type Config struct {
	FlushInterval time.Duration
}

type job struct {
	name string
	fn   func(ctx context.Context) error
	done chan error
}

// Daemon owns the tracking session and runs every mutation on a single
// goroutine, one job at a time, in submission order.
type Daemon struct {
	config     Config
	tracker    *usage.Tracker
	controller *enforce.Controller
	registry   *surface.Registry
	clock      quartz.Clock
	logger     zerolog.Logger

	jobs    chan job
	stopped chan struct{}
}

// New creates a daemon. The controller rechecks a domain after every
// successful flush and the registry receives block notifications.
func New(
	config Config,
	usageStore storage.UsageStore,
	controller *enforce.Controller,
	registry *surface.Registry,
	clock quartz.Clock,
	logger zerolog.Logger,
) *Daemon {
	d := &Daemon{
		config:     config,
		controller: controller,
		registry:   registry,
		clock:      clock,
		logger:     logger.With().Str("component", "daemon").Logger(),
		jobs:       make(chan job),
		stopped:    make(chan struct{}),
	}

	controller.SetNotifier(registry)
	d.tracker = usage.NewTracker(usageStore, func(ctx context.Context, domain string) error {
		_, err := controller.Recheck(ctx, domain)
		return err
	}, clock, logger)

	return d
}

// Run reconciles the block set with today's ledger and then processes jobs
// until ctx is cancelled. The current interval is flushed before returning.
func (d *Daemon) Run(ctx context.Context) error {
	defer close(d.stopped)

	// Blocks left over from a previous day must go before limits are
	// re-evaluated against today's totals.
	if err := d.controller.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear blocks at startup: %w", err)
	}
	if err := d.controller.RecheckAll(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Startup recheck incomplete")
	}

	d.clock.TickerFunc(ctx, d.config.FlushInterval, func() error {
		err := d.Submit(ctx, usage.Tick{Name: "flush"})
		if err != nil && !errors.Is(err, ErrStopped) && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("Flush tick failed")
		}
		return nil
	}, "flush")

	d.logger.Info().Dur("flush_interval", d.config.FlushInterval).Msg("Event loop started")

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		case j := <-d.jobs:
			j.done <- d.execute(ctx, j)
		}
	}
}

func (d *Daemon) execute(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
			d.logger.Error().Str("job", j.name).Interface("panic", r).Msg("Recovered from panic in job")
		}
	}()
	return j.fn(ctx)
}

func (d *Daemon) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	if err := d.tracker.Flush(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Final flush failed")
	}
	d.logger.Info().Msg("Event loop stopped")
}

// Do runs fn on the event loop and waits for it to finish. It must not be
// called from inside another job.
func (d *Daemon) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	j := job{name: name, fn: fn, done: make(chan error, 1)}

	select {
	case d.jobs <- j:
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit applies a host signal to the surface registry and the tracker.
func (d *Daemon) Submit(ctx context.Context, sig usage.Signal) error {
	if sig == nil {
		return fmt.Errorf("nil signal")
	}
	signalType := string(sig.Type())

	return d.Do(ctx, signalType, func(ctx context.Context) error {
		start := time.Now()
		defer func() {
			metrics.SignalDuration.WithLabelValues(signalType).Observe(time.Since(start).Seconds())
		}()
		metrics.SignalsTotal.WithLabelValues(signalType).Inc()

		sig = d.registry.Observe(sig)
		if err := d.tracker.Handle(ctx, sig); err != nil {
			return fmt.Errorf("failed to handle %s: %w", signalType, err)
		}

		d.logger.Debug().
			Str("signal", signalType).
			Str("state", d.tracker.State().String()).
			Str("domain", d.tracker.Session().Domain).
			Msg("Handled signal")
		return nil
	})
}

// Reset empties the block set for the new day.
func (d *Daemon) Reset(ctx context.Context) error {
	return d.Do(ctx, "reset", func(ctx context.Context) error {
		if err := d.controller.ClearAll(ctx); err != nil {
			return err
		}
		metrics.DailyResets.Inc()
		return nil
	})
}

// Recheck re-evaluates one domain, typically after its limit changed.
func (d *Daemon) Recheck(ctx context.Context, domain string) (*enforce.Status, error) {
	var status *enforce.Status
	err := d.Do(ctx, "recheck", func(ctx context.Context) error {
		var err error
		status, err = d.controller.Recheck(ctx, domain)
		return err
	})
	return status, err
}

// Prune removes ledger dates older than the pruner's retention window.
func (d *Daemon) Prune(ctx context.Context, pruner *usage.Pruner) (int, error) {
	var deleted int
	err := d.Do(ctx, "retention", func(ctx context.Context) error {
		var err error
		deleted, err = pruner.Prune(ctx)
		return err
	})
	return deleted, err
}

// Session returns the tracker state and session as seen by the loop.
func (d *Daemon) Session(ctx context.Context) (usage.State, usage.Session, error) {
	var (
		state   usage.State
		session usage.Session
	)
	err := d.Do(ctx, "session", func(context.Context) error {
		state = d.tracker.State()
		session = d.tracker.Session()
		return nil
	})
	return state, session, err
}
