package usage

// SignalType names a host environment signal on the wire.
type SignalType string

const (
	SignalTabActivated       SignalType = "tab_activated"
	SignalTabNavigated       SignalType = "tab_navigated"
	SignalIconChanged        SignalType = "icon_changed"
	SignalTabClosed          SignalType = "tab_closed"
	SignalWindowFocusChanged SignalType = "window_focus_changed"
	SignalIdleStateChanged   SignalType = "idle_state_changed"
	SignalHostSnapshot       SignalType = "host_snapshot"
	SignalTick               SignalType = "tick"
)

// Signal is one observation about the host environment. The concrete types
// below are the only implementations.
type Signal interface {
	Type() SignalType
}

// TabActivated reports that the user switched to a tab. URL and IconURL may
// be empty when the host only knows the tab id; the daemon fills them in from
// the surface registry.
type TabActivated struct {
	TabID    int    `json:"tab_id"`
	WindowID int    `json:"window_id"`
	URL      string `json:"url,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

// TabNavigated reports that a tab's address changed.
type TabNavigated struct {
	TabID    int    `json:"tab_id"`
	WindowID int    `json:"window_id"`
	URL      string `json:"url"`
	IconURL  string `json:"icon_url,omitempty"`
	Active   bool   `json:"active"`
}

// IconChanged reports a new site icon for a tab.
type IconChanged struct {
	TabID   int    `json:"tab_id"`
	URL     string `json:"url"`
	IconURL string `json:"icon_url"`
	Active  bool   `json:"active"`
}

// TabClosed reports that a tab went away.
type TabClosed struct {
	TabID int `json:"tab_id"`
}

// WindowFocusChanged reports that the host gained or lost input focus.
// When focus is gained the active tab of the focused window is included.
type WindowFocusChanged struct {
	WindowID int    `json:"window_id"`
	Focused  bool   `json:"focused"`
	TabID    int    `json:"tab_id,omitempty"`
	URL      string `json:"url,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

// IdleState is the user presence reported by the host.
type IdleState string

const (
	IdleActive IdleState = "active"
	IdleIdle   IdleState = "idle"
	IdleLocked IdleState = "locked"
)

// Valid reports whether s is a known presence state.
func (s IdleState) Valid() bool {
	switch s {
	case IdleActive, IdleIdle, IdleLocked:
		return true
	}
	return false
}

// IdleStateChanged reports a user presence transition.
type IdleStateChanged struct {
	State IdleState `json:"state"`
}

// Tick is an internal timer signal. Name identifies the timer.
type Tick struct {
	Name string `json:"name"`
}

// TabInfo describes one open tab in a HostSnapshot.
type TabInfo struct {
	TabID    int    `json:"tab_id"`
	WindowID int    `json:"window_id"`
	URL      string `json:"url"`
	IconURL  string `json:"icon_url,omitempty"`
}

// HostSnapshot is the full host state, sent when the host connects so the
// daemon can rebuild its transient session.
type HostSnapshot struct {
	ActiveTabID int       `json:"active_tab_id"`
	Focused     bool      `json:"focused"`
	Idle        IdleState `json:"idle,omitempty"`
	Tabs        []TabInfo `json:"tabs"`
}

func (TabActivated) Type() SignalType       { return SignalTabActivated }
func (TabNavigated) Type() SignalType       { return SignalTabNavigated }
func (IconChanged) Type() SignalType        { return SignalIconChanged }
func (TabClosed) Type() SignalType          { return SignalTabClosed }
func (WindowFocusChanged) Type() SignalType { return SignalWindowFocusChanged }
func (IdleStateChanged) Type() SignalType   { return SignalIdleStateChanged }
func (Tick) Type() SignalType               { return SignalTick }
func (HostSnapshot) Type() SignalType       { return SignalHostSnapshot }
