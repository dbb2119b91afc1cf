// Package logic contains the pure button event detection logic.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected as a millisecond counter by the caller.
package logic

// Millis is a monotonic millisecond counter supplied by the caller on every
// tick. It is allowed to wrap; all intervals are computed with unsigned
// subtraction and must stay below half the counter range.
type Millis uint32

// elapsed returns now-since, tolerant of counter wraparound.
func elapsed(now, since Millis) Millis {
	return now - since
}

// EventKind identifies an event emitted for an input.
type EventKind string

const (
	EventPress     EventKind = "PRESS"
	EventRelease   EventKind = "RELEASE"
	EventClick     EventKind = "CLICK"
	EventKeepalive EventKind = "KEEPALIVE"
)

// State is the detection state of a single input.
type State uint8

const (
	// StateInit waits for the first inactive sample.
	StateInit State = iota
	// StateIdle is released; a click sequence may be pending its timeout.
	StateIdle
	// StatePressPending has an active raw level with the press debounce running.
	StatePressPending
	// StateActive is a confirmed press.
	StateActive
	// StateReleasePending has an inactive raw level while still confirmed.
	StateReleasePending
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateIdle:
		return "IDLE"
	case StatePressPending:
		return "PRESS_PENDING"
	case StateActive:
		return "ACTIVE"
	case StateReleasePending:
		return "RELEASE_PENDING"
	default:
		return "UNKNOWN"
	}
}

// rawActive reports the last sampled level encoded by the state.
func (s State) rawActive() bool {
	return s == StatePressPending || s == StateActive
}

// confirmed reports whether a debounced press is in effect.
func (s State) confirmed() bool {
	return s == StateActive || s == StateReleasePending
}

// stateFor maps a sampled level and confirmed flag to a state.
func stateFor(level, confirmed bool) State {
	switch {
	case level && confirmed:
		return StateActive
	case level:
		return StatePressPending
	case confirmed:
		return StateReleasePending
	default:
		return StateIdle
	}
}

// SampleMode selects where an input's level comes from on each tick.
type SampleMode uint8

const (
	// SampleCallback always asks the group's LevelSource.
	SampleCallback SampleMode = iota
	// SampleManual uses the level last stored with Group.SetLevel.
	SampleManual
	// SampleEither uses the stored level for inputs that had SetLevel called,
	// and the LevelSource for the rest.
	SampleEither
)

// LevelSource reports the current level of an input; true means active.
type LevelSource interface {
	Level(g *Group, in *Input) bool
}

// LevelSourceFunc adapts a function to LevelSource.
type LevelSourceFunc func(g *Group, in *Input) bool

// Level calls f(g, in).
func (f LevelSourceFunc) Level(g *Group, in *Input) bool {
	return f(g, in)
}

// EventSink receives events synchronously from the engine. Counters on the
// input are already updated when HandleEvent runs.
type EventSink interface {
	HandleEvent(g *Group, in *Input, kind EventKind)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(g *Group, in *Input, kind EventKind)

// HandleEvent calls f(g, in, kind).
func (f EventSinkFunc) HandleEvent(g *Group, in *Input, kind EventKind) {
	f(g, in, kind)
}
