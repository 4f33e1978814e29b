package surface

import (
	"context"
	"testing"

	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, size int) *Registry {
	t.Helper()
	r, err := NewRegistry(size, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestRegistryUpdateKeepsIconForSameDomain(t *testing.T) {
	r := newTestRegistry(t, 8)

	r.Update(1, 10, "https://github.com/goodtune", "https://github.com/favicon.ico")
	s := r.Update(1, 0, "https://github.com/goodtune/sitelimit", "")
	assert.Equal(t, "github.com", s.Domain)
	assert.Equal(t, 10, s.WindowID)
	assert.Equal(t, "https://github.com/favicon.ico", s.IconURL)

	s = r.Update(1, 0, "https://news.ycombinator.com/", "")
	assert.Equal(t, "news.ycombinator.com", s.Domain)
	assert.Empty(t, s.IconURL)
}

func TestRegistryEvictsOldestSurface(t *testing.T) {
	r := newTestRegistry(t, 2)

	r.Update(1, 1, "https://a.example/", "")
	r.Update(2, 1, "https://b.example/", "")
	r.Update(3, 1, "https://c.example/", "")

	_, ok := r.Get(1)
	assert.False(t, ok)
	n, capacity := r.Len()
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, capacity)
}

func TestObserveFillsActivatedTab(t *testing.T) {
	r := newTestRegistry(t, 8)

	r.Observe(usage.TabNavigated{TabID: 7, WindowID: 1, URL: "https://reddit.com/r/golang", IconURL: "https://reddit.com/icon.png"})

	sig := r.Observe(usage.TabActivated{TabID: 7, WindowID: 1})
	activated, ok := sig.(usage.TabActivated)
	require.True(t, ok)
	assert.Equal(t, "https://reddit.com/r/golang", activated.URL)
	assert.Equal(t, "https://reddit.com/icon.png", activated.IconURL)

	r.Observe(usage.TabClosed{TabID: 7})
	_, ok = r.Get(7)
	assert.False(t, ok)
}

func TestObserveSnapshotReplacesSurfaces(t *testing.T) {
	r := newTestRegistry(t, 8)
	r.Update(1, 1, "https://old.example/", "")

	r.Observe(usage.HostSnapshot{
		ActiveTabID: 3,
		Focused:     true,
		Tabs: []usage.TabInfo{
			{TabID: 2, WindowID: 1, URL: "https://github.com/"},
			{TabID: 3, WindowID: 1, URL: "https://youtube.com/watch"},
		},
	})

	_, ok := r.Get(1)
	assert.False(t, ok)
	s, ok := r.Get(3)
	require.True(t, ok)
	assert.Equal(t, "youtube.com", s.Domain)
}

func TestNotifyBlockedReachesMatchingSurfaces(t *testing.T) {
	r := newTestRegistry(t, 8)
	r.Update(1, 1, "https://reddit.com/", "")
	r.Update(2, 1, "https://reddit.com/r/golang", "")
	r.Update(3, 1, "https://github.com/", "")

	sub1 := r.Subscribe(1)
	defer sub1.Close()
	sub3 := r.Subscribe(3)
	defer sub3.Close()

	// Tab 2 has no subscriber, so only tab 1 is reached.
	reached := r.NotifyBlocked(context.Background(), "reddit.com", 3600)
	assert.Equal(t, 1, reached)

	select {
	case event := <-sub1.C:
		assert.Equal(t, Event{Type: EventBlockDomain, Domain: "reddit.com", LimitSeconds: 3600}, event)
	default:
		t.Fatal("expected a block_domain event for tab 1")
	}

	select {
	case event := <-sub3.C:
		t.Fatalf("unexpected event for tab 3: %+v", event)
	default:
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, 8)
	sub := r.Subscribe(1)
	sub.Close()
	sub.Close()

	_, open := <-sub.C
	assert.False(t, open)
	assert.Empty(t, r.subscribers)
}

func TestNotifyBlockedDropsWhenQueueFull(t *testing.T) {
	r := newTestRegistry(t, 8)
	r.Update(1, 1, "https://reddit.com/", "")
	sub := r.Subscribe(1)
	defer sub.Close()

	for i := 0; i < subscriberBuffer; i++ {
		assert.Equal(t, 1, r.NotifyBlocked(context.Background(), "reddit.com", 60))
	}
	assert.Equal(t, 0, r.NotifyBlocked(context.Background(), "reddit.com", 60))
}

func TestNotifyBlockedReachesFullyQualifiedHost(t *testing.T) {
	r := newTestRegistry(t, 8)
	s := r.Update(1, 1, "https://x.example./page", "")
	assert.Equal(t, "x.example", s.Domain)

	sub := r.Subscribe(1)
	defer sub.Close()

	assert.Equal(t, 1, r.NotifyBlocked(context.Background(), "x.example", 60))
	select {
	case event := <-sub.C:
		assert.Equal(t, "x.example", event.Domain)
	default:
		t.Fatal("expected a block_domain event for tab 1")
	}
}
