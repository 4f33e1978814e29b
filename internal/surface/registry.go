package surface

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/sitelimit/internal/metrics"
	"github.com/goodtune/sitelimit/internal/usage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// EventBlockDomain is sent to a surface whose domain was just blocked.
const EventBlockDomain = "block_domain"

// subscriberBuffer is the number of events queued per subscriber before
// further events are dropped.
const subscriberBuffer = 8

// Event is a notification delivered to a surface.
type Event struct {
	Type         string `json:"type"`
	Domain       string `json:"domain"`
	LimitSeconds int64  `json:"limit_seconds"`
}

// Surface is a tab known to the daemon and the domain it currently shows.
type Surface struct {
	TabID     int       `json:"tab_id"`
	WindowID  int       `json:"window_id"`
	URL       string    `json:"url"`
	Domain    string    `json:"domain,omitempty"`
	IconURL   string    `json:"icon_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry tracks open surfaces and the subscribers listening on them.
// The least recently updated surfaces are evicted once the registry is full.
type Registry struct {
	mu          sync.Mutex
	surfaces    *lru.Cache[int, Surface]
	subscribers map[int]map[*Subscription]struct{}
	capacity    int
	logger      zerolog.Logger
}

// NewRegistry creates a registry holding at most size surfaces.
func NewRegistry(size int, logger zerolog.Logger) (*Registry, error) {
	cache, err := lru.New[int, Surface](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create surface cache: %w", err)
	}

	return &Registry{
		surfaces:    cache,
		subscribers: make(map[int]map[*Subscription]struct{}),
		capacity:    size,
		logger:      logger.With().Str("component", "surfaces").Logger(),
	}, nil
}

// Update records the address shown by a tab. An empty iconURL keeps the
// icon already known for the tab when the domain did not change.
func (r *Registry) Update(tabID, windowID int, address, iconURL string) Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(tabID, windowID, address, iconURL)
}

func (r *Registry) update(tabID, windowID int, address, iconURL string) Surface {
	domain := usage.ExtractDomain(address)

	s := Surface{
		TabID:     tabID,
		WindowID:  windowID,
		URL:       address,
		Domain:    domain,
		IconURL:   iconURL,
		UpdatedAt: time.Now(),
	}
	if prev, ok := r.surfaces.Peek(tabID); ok {
		if s.WindowID == 0 {
			s.WindowID = prev.WindowID
		}
		if s.IconURL == "" && prev.Domain == domain {
			s.IconURL = prev.IconURL
		}
	}

	r.surfaces.Add(tabID, s)
	metrics.ActiveSurfaces.Set(float64(r.surfaces.Len()))
	return s
}

// Get returns the surface for a tab.
func (r *Registry) Get(tabID int) (Surface, bool) {
	return r.surfaces.Peek(tabID)
}

// Remove forgets a tab. Its subscribers stay connected until they close.
func (r *Registry) Remove(tabID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surfaces.Remove(tabID)
	metrics.ActiveSurfaces.Set(float64(r.surfaces.Len()))
}

// Reset replaces every known surface with the given tabs.
func (r *Registry) Reset(tabs []usage.TabInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.surfaces.Purge()
	for _, tab := range tabs {
		r.update(tab.TabID, tab.WindowID, tab.URL, tab.IconURL)
	}
	metrics.ActiveSurfaces.Set(float64(r.surfaces.Len()))
}

// ForDomain lists the surfaces currently showing domain.
func (r *Registry) ForDomain(domain string) []Surface {
	var matches []Surface
	for _, tabID := range r.surfaces.Keys() {
		if s, ok := r.surfaces.Peek(tabID); ok && s.Domain == domain {
			matches = append(matches, s)
		}
	}
	return matches
}

// Len returns the number of known surfaces and the registry capacity.
func (r *Registry) Len() (int, int) {
	return r.surfaces.Len(), r.capacity
}

// Observe updates the registry from a host signal and returns the signal
// with any missing tab address filled in from what the registry knows.
func (r *Registry) Observe(sig usage.Signal) usage.Signal {
	switch s := sig.(type) {
	case usage.TabActivated:
		if s.URL == "" {
			if known, ok := r.Get(s.TabID); ok {
				s.URL = known.URL
				if s.IconURL == "" {
					s.IconURL = known.IconURL
				}
			}
			return s
		}
		r.Update(s.TabID, s.WindowID, s.URL, s.IconURL)
		return s
	case usage.TabNavigated:
		r.Update(s.TabID, s.WindowID, s.URL, s.IconURL)
	case usage.IconChanged:
		r.Update(s.TabID, 0, s.URL, s.IconURL)
	case usage.TabClosed:
		r.Remove(s.TabID)
	case usage.WindowFocusChanged:
		if s.Focused && s.TabID != 0 && s.URL != "" {
			r.Update(s.TabID, s.WindowID, s.URL, s.IconURL)
		}
	case usage.HostSnapshot:
		r.Reset(s.Tabs)
	}
	return sig
}

// Subscription receives events addressed to one tab.
type Subscription struct {
	TabID int
	C     <-chan Event

	ch       chan Event
	registry *Registry
	once     sync.Once
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		r := s.registry
		r.mu.Lock()
		defer r.mu.Unlock()

		if subs, ok := r.subscribers[s.TabID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(r.subscribers, s.TabID)
			}
		}
		close(s.ch)
		metrics.SurfaceSubscribers.Dec()
	})
}

// Subscribe registers a listener for events addressed to tabID.
func (r *Registry) Subscribe(tabID int) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{TabID: tabID, C: ch, ch: ch, registry: r}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribers[tabID] == nil {
		r.subscribers[tabID] = make(map[*Subscription]struct{})
	}
	r.subscribers[tabID][sub] = struct{}{}
	metrics.SurfaceSubscribers.Inc()
	return sub
}

// NotifyBlocked sends a block_domain event to every subscriber of a surface
// showing domain and returns the number of surfaces reached.
func (r *Registry) NotifyBlocked(_ context.Context, domain string, limitSeconds int64) int {
	event := Event{Type: EventBlockDomain, Domain: domain, LimitSeconds: limitSeconds}

	r.mu.Lock()
	defer r.mu.Unlock()

	reached := 0
	for _, s := range r.ForDomain(domain) {
		delivered := false
		for sub := range r.subscribers[s.TabID] {
			select {
			case sub.ch <- event:
				delivered = true
			default:
				r.logger.Warn().Int("tab_id", s.TabID).Str("domain", domain).Msg("Subscriber queue full, dropping event")
			}
		}
		if delivered {
			reached++
		}
	}

	metrics.BlockNotifications.Add(float64(reached))
	r.logger.Debug().Str("domain", domain).Int("surfaces", reached).Msg("Sent block notifications")
	return reached
}
