package logic

// Input tracks the detection state of one button.
// An Input must only be advanced from one goroutine at a time.
type Input struct {
	// Data is passed through to sinks and sources untouched.
	Data any

	// Timing overrides the group default when set before NewGroup.
	Timing *Timing

	timing Timing
	state  State

	// initConfirmed holds the confirmed flag across a reset until an
	// inactive level is observed.
	initConfirmed bool

	manual      bool
	manualLevel bool

	timeRawChange       Millis
	timeConfirmedChange Millis

	keepaliveLast  Millis
	keepaliveCount int

	clickLast  Millis
	clickCount int
}

// NewInput creates an input carrying data.
func NewInput(data any) *Input {
	return &Input{Data: data}
}

// State returns the current detection state.
func (in *Input) State() State {
	return in.state
}

// IsActive reports whether a debounced press is in effect.
func (in *Input) IsActive() bool {
	if in == nil {
		return false
	}
	if in.state == StateInit {
		return in.initConfirmed
	}
	return in.state.confirmed()
}

// ClickCount returns the consecutive click count. During a CLICK event it is
// the number of clicks being reported.
func (in *Input) ClickCount() int {
	return in.clickCount
}

// KeepaliveCount returns the number of keepalive events since the press was confirmed.
func (in *Input) KeepaliveCount() int {
	return in.keepaliveCount
}

// EffectiveTiming returns the resolved timing in use.
func (in *Input) EffectiveTiming() Timing {
	return in.timing
}

// SetTiming replaces the input's timing at runtime.
func (in *Input) SetTiming(t Timing) {
	in.timing = t.normalized()
}

// Reset forces the input to observe an inactive level before any new press
// is confirmed. Counters are left untouched, and a press in effect stays
// active until that inactive level arrives.
func (in *Input) Reset() {
	if in == nil || in.state == StateInit {
		return
	}
	in.initConfirmed = in.state.confirmed()
	in.state = StateInit
}

// advance runs one tick of the state machine with an already sampled level.
func (in *Input) advance(g *Group, level bool, now Millis) {
	if in.state == StateInit {
		if level {
			return
		}
		in.initConfirmed = false
		in.state = StateIdle
	}

	t := &in.timing
	raw := in.state.rawActive()
	confirmed := in.state.confirmed()

	switch {
	case level != raw:
		in.timeRawChange = now

	case level && !confirmed:
		if elapsed(now, in.timeRawChange) >= t.DebouncePress {
			if !t.FlushMaxOnRelease && in.clickCount > 0 && in.clickCount == t.MaxConsecutive {
				g.emit(in, EventClick)
				in.clickCount = 0
			}
			confirmed = true
			in.keepaliveCount = 0
			in.keepaliveLast = now
			in.timeConfirmedChange = now
			in.state = StateActive
			g.emit(in, EventPress)
		}

	case level:
		if t.KeepalivePeriod == 0 {
			break
		}
		for elapsed(now, in.keepaliveLast) >= t.KeepalivePeriod {
			in.keepaliveLast += t.KeepalivePeriod
			in.keepaliveCount++
			g.emit(in, EventKeepalive)
			if in.state == StateInit {
				return
			}
		}

	case confirmed:
		if elapsed(now, in.timeRawChange) >= t.DebounceRelease {
			confirmed = false
			in.state = StateIdle
			g.emit(in, EventRelease)

			in.aggregateClick(g, elapsed(now, in.timeConfirmedChange), now)
			if t.FlushMaxOnRelease && in.clickCount > 0 && in.clickCount == t.MaxConsecutive {
				g.emit(in, EventClick)
				in.clickCount = 0
			}
			in.timeConfirmedChange = now
		}

	default:
		if in.clickCount > 0 && elapsed(now, in.clickLast) >= t.ClickMultiMax {
			g.emit(in, EventClick)
			in.clickCount = 0
		}
	}

	// A sink may have reset the input while handling an event.
	if in.state == StateInit {
		return
	}
	in.state = stateFor(level, confirmed)
}
