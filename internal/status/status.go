// Package status provides a thread-safe status tracker for the button-sensor daemon.
// It is read by HTTP handlers and used to build system event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Session     string
	Mode        string
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Button is the state of one button.
type Button struct {
	Name           string
	Pin            int
	Active         bool
	State          logic.State
	ClickCount     int
	KeepaliveCount int
	Counts         logic.EventCounts
	LastEvent      logic.EventKind
	LastEventAt    time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Buttons       []Button
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Button returns the named button and whether it exists.
func (s Snapshot) Button(name string) (Button, bool) {
	for _, b := range s.Buttons {
		if b.Name == name {
			return b, true
		}
	}
	return Button{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker for the given buttons. Each entry of buttons
// carries the name and pin; live fields are filled by Update and Record.
func NewTracker(startTime time.Time, cfg Config, buttons []Button) *Tracker {
	bs := make([]Button, len(buttons))
	for i, b := range buttons {
		bs[i] = Button{Name: b.Name, Pin: b.Pin, State: logic.StateInit}
	}
	return &Tracker{
		snap: Snapshot{
			Buttons:   bs,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update copies live state from the engine inputs, which must be in the
// same order as the buttons passed to NewTracker. Called from the run loop.
func (t *Tracker) Update(inputs []*logic.Input) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, in := range inputs {
		if i >= len(t.snap.Buttons) {
			break
		}
		b := &t.snap.Buttons[i]
		b.Active = in.IsActive()
		b.State = in.State()
		b.ClickCount = in.ClickCount()
		b.KeepaliveCount = in.KeepaliveCount()
	}
}

// Record counts a delivered event.
func (t *Tracker) Record(e logic.Event, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Counts.Add(e.Type)
	for i := range t.snap.Buttons {
		b := &t.snap.Buttons[i]
		if b.Name != e.Button {
			continue
		}
		b.Counts.Add(e.Type)
		b.LastEvent = e.Type
		b.LastEventAt = at
		return
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = append([]Button(nil), t.snap.Buttons...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

// Heartbeat schedules periodic heartbeat events.
type Heartbeat struct {
	// Interval between heartbeats; <= 0 disables them.
	Interval time.Duration
	last     time.Time
}

// NewHeartbeat creates a Heartbeat whose first beat is due one interval after start.
func NewHeartbeat(interval time.Duration, start time.Time) *Heartbeat {
	return &Heartbeat{Interval: interval, last: start}
}

// Due reports whether a heartbeat should be sent at now, and if so starts the next interval.
func (h *Heartbeat) Due(now time.Time) bool {
	if h.Interval <= 0 {
		return false
	}
	if now.Sub(h.last) < h.Interval {
		return false
	}
	h.last = now
	return true
}
