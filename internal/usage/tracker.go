package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/goodtune/sitelimit/internal/metrics"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/rs/zerolog"
)

// State is the tracker's position in its state machine.
type State int

const (
	// StateIdle means no domain is current.
	StateIdle State = iota
	// StateTracking means a domain is current and its clock is running.
	StateTracking
	// StatePaused means a domain is current but the user is away or the host
	// lost focus.
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateTracking:
		return "tracking"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Session is the transient tracking state. A zero StartedAt means the clock
// is stopped.
type Session struct {
	Domain      string    `json:"domain,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	UserPresent bool      `json:"user_present"`
	HostFocused bool      `json:"host_focused"`
}

// RecheckFunc re-evaluates enforcement for a domain after its usage grew.
type RecheckFunc func(ctx context.Context, domain string) error

// Tracker accounts elapsed time on the current domain into the usage ledger.
// It is not safe for concurrent use; the daemon event loop owns it.
type Tracker struct {
	usageStore storage.UsageStore
	recheck    RecheckFunc
	clock      quartz.Clock
	logger     zerolog.Logger
	session    Session
}

// NewTracker creates a new usage tracker. recheck may be nil.
func NewTracker(usageStore storage.UsageStore, recheck RecheckFunc, clock quartz.Clock, logger zerolog.Logger) *Tracker {
	return &Tracker{
		usageStore: usageStore,
		recheck:    recheck,
		clock:      clock,
		logger:     logger.With().Str("component", "usage-tracker").Logger(),
		session: Session{
			UserPresent: true,
			HostFocused: true,
		},
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	switch {
	case t.session.Domain == "":
		return StateIdle
	case t.session.StartedAt.IsZero():
		return StatePaused
	default:
		return StateTracking
	}
}

// Session returns a copy of the current session.
func (t *Tracker) Session() Session {
	return t.session
}

// Handle applies a signal to the session.
func (t *Tracker) Handle(ctx context.Context, sig Signal) error {
	switch s := sig.(type) {
	case TabActivated:
		t.switchTo(ctx, s.URL, s.IconURL)

	case TabNavigated:
		// Background tabs never move the session.
		if s.Active {
			t.switchTo(ctx, s.URL, s.IconURL)
		}

	case IconChanged:
		if s.Active && s.IconURL != "" && t.session.Domain != "" && ExtractDomain(s.URL) == t.session.Domain {
			t.session.Icon = s.IconURL
		}

	case TabClosed:
		// Closing the active tab is followed by a TabActivated for its
		// successor, so there is nothing to do here.

	case WindowFocusChanged:
		if !s.Focused {
			t.session.HostFocused = false
			t.pause(ctx)
			return nil
		}
		t.session.HostFocused = true
		if s.URL != "" {
			t.switchTo(ctx, s.URL, s.IconURL)
		} else {
			t.resume()
		}

	case IdleStateChanged:
		if !s.State.Valid() {
			return fmt.Errorf("unknown idle state: %q", s.State)
		}
		if s.State == IdleActive {
			t.session.UserPresent = true
			t.resume()
			return nil
		}
		t.session.UserPresent = false
		t.pause(ctx)

	case Tick:
		if t.State() == StateTracking {
			_ = t.Flush(ctx)
		}

	case HostSnapshot:
		t.session.HostFocused = s.Focused
		t.session.UserPresent = s.Idle == "" || s.Idle == IdleActive
		url, icon := "", ""
		for _, tab := range s.Tabs {
			if tab.TabID == s.ActiveTabID {
				url, icon = tab.URL, tab.IconURL
				break
			}
		}
		t.switchTo(ctx, url, icon)
		if !t.session.UserPresent || !t.session.HostFocused {
			t.pause(ctx)
		}

	default:
		return fmt.Errorf("unknown signal type %T", sig)
	}

	return nil
}

// switchTo makes the domain of address current.
func (t *Tracker) switchTo(ctx context.Context, address, icon string) {
	domain := ExtractDomain(address)

	if domain == "" {
		_ = t.Flush(ctx)
		if t.session.Domain != "" {
			t.logger.Debug().Str("domain", t.session.Domain).Msg("Left tracked domain")
		}
		t.session.Domain = ""
		t.session.Icon = ""
		t.session.StartedAt = time.Time{}
		return
	}

	if domain != t.session.Domain {
		_ = t.Flush(ctx)
		if icon == "" {
			icon = DefaultIconURL(domain)
		}
		t.session.Domain = domain
		t.session.Icon = icon
		t.session.StartedAt = time.Time{}
		t.resume()

		t.logger.Debug().
			Str("domain", domain).
			Str("state", t.State().String()).
			Msg("Switched domain")
		return
	}

	if icon != "" {
		t.session.Icon = icon
	}
	t.resume()
}

// resume restarts the clock when there is a domain and nothing holds it.
func (t *Tracker) resume() {
	if t.session.Domain == "" || !t.session.StartedAt.IsZero() {
		return
	}
	if !t.session.UserPresent || !t.session.HostFocused {
		return
	}
	t.session.StartedAt = t.clock.Now()
}

// pause flushes and stops the clock.
func (t *Tracker) pause(ctx context.Context) {
	_ = t.Flush(ctx)
	t.session.StartedAt = time.Time{}
}

// Flush writes the whole seconds elapsed since the session started into
// today's ledger entry and restarts the clock. Less than a second is left to
// accumulate. On a failed write the start is kept, so the next successful
// flush covers the interval.
func (t *Tracker) Flush(ctx context.Context) error {
	if t.session.Domain == "" || t.session.StartedAt.IsZero() {
		return nil
	}

	now := t.clock.Now()
	elapsed := int64(now.Sub(t.session.StartedAt) / time.Second)
	if elapsed < 1 {
		return nil
	}

	domain := t.session.Domain
	date := now.Format(storage.DateFormat)

	entry, err := t.usageStore.AddDailyUsage(ctx, date, domain, elapsed, t.session.Icon)
	if err != nil {
		metrics.Flushes.WithLabelValues("error").Inc()
		t.logger.Error().
			Err(err).
			Str("domain", domain).
			Int64("seconds", elapsed).
			Msg("Failed to save usage")
		return fmt.Errorf("failed to save usage for %s: %w", domain, err)
	}

	t.session.StartedAt = now
	metrics.Flushes.WithLabelValues("ok").Inc()
	metrics.TrackedSeconds.WithLabelValues(domain).Add(float64(elapsed))

	t.logger.Debug().
		Str("date", date).
		Str("domain", domain).
		Int64("seconds", elapsed).
		Int64("total_seconds", entry.TotalSeconds).
		Msg("Saved usage")

	if t.recheck != nil {
		if err := t.recheck(ctx, domain); err != nil {
			t.logger.Error().Err(err).Str("domain", domain).Msg("Failed to recheck limit after save")
		}
	}

	return nil
}
