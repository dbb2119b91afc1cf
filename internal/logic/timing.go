package logic

// Default thresholds, in milliseconds.
const (
	DefaultDebouncePress   Millis = 20
	DefaultDebounceRelease Millis = 0
	DefaultClickMin        Millis = 20
	DefaultClickMax        Millis = 300
	DefaultClickMultiMax   Millis = 400
	DefaultKeepalivePeriod Millis = 1000
	DefaultMaxConsecutive         = 3
)

// Timing holds the thresholds and policies applied to one input.
// A zero threshold is always satisfied. A zero KeepalivePeriod disables
// keepalive events.
type Timing struct {
	// DebouncePress is how long an active level must be stable before a press is confirmed.
	DebouncePress Millis
	// DebounceRelease is how long an inactive level must be stable before a release is confirmed.
	DebounceRelease Millis
	// ClickMin and ClickMax bound the held time of a press that counts as a click (inclusive).
	ClickMin Millis
	ClickMax Millis
	// ClickMultiMax is the maximum gap between clicks of one sequence.
	ClickMultiMax Millis
	// KeepalivePeriod is the interval of keepalive events while pressed.
	KeepalivePeriod Millis
	// MaxConsecutive caps the click count of one sequence.
	MaxConsecutive int
	// FlushMaxOnRelease reports a saturated sequence on the release that
	// reached MaxConsecutive. When false it is reported on the next press.
	FlushMaxOnRelease bool
	// KeepAfterShortPress reports the pending sequence when a press shorter
	// than ClickMin ends it, instead of dropping it silently.
	KeepAfterShortPress bool
}

// DefaultTiming returns the stock thresholds.
func DefaultTiming() Timing {
	return Timing{
		DebouncePress:     DefaultDebouncePress,
		DebounceRelease:   DefaultDebounceRelease,
		ClickMin:          DefaultClickMin,
		ClickMax:          DefaultClickMax,
		ClickMultiMax:     DefaultClickMultiMax,
		KeepalivePeriod:   DefaultKeepalivePeriod,
		MaxConsecutive:    DefaultMaxConsecutive,
		FlushMaxOnRelease: true,
	}
}

// normalized clamps values the engine cannot honour as given.
func (t Timing) normalized() Timing {
	if t.MaxConsecutive < 1 {
		t.MaxConsecutive = 1
	}
	return t
}

// ResolveTiming returns the timing for an input: the override when present,
// otherwise the group default.
func ResolveTiming(group Timing, override *Timing) Timing {
	if override != nil {
		return override.normalized()
	}
	return group.normalized()
}

// validClick reports whether held falls inside the click window.
func (t Timing) validClick(held Millis) bool {
	return held >= t.ClickMin && held <= t.ClickMax
}
