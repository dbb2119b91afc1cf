package logic

// Event is a delivered event captured as a value, for publishing or logging.
type Event struct {
	Button string
	Type   EventKind
	// Count is the click count for CLICK and the keepalive count for KEEPALIVE.
	Count int
	At    Millis
}

// NewEvent captures kind for in at now. The payload count is read from the input.
func NewEvent(button string, in *Input, kind EventKind, now Millis) Event {
	e := Event{Button: button, Type: kind, At: now}
	switch kind {
	case EventClick:
		e.Count = in.ClickCount()
	case EventKeepalive:
		e.Count = in.KeepaliveCount()
	}
	return e
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Press     int
	Release   int
	Click     int
	Keepalive int
}

// Add counts one event of the given type.
func (c *EventCounts) Add(kind EventKind) {
	switch kind {
	case EventPress:
		c.Press++
	case EventRelease:
		c.Release++
	case EventClick:
		c.Click++
	case EventKeepalive:
		c.Keepalive++
	}
}

// Recorder is an EventSink that keeps every event in order.
// Name maps an input to the button name stored in each Event; when nil the
// name is taken from Data if it is a string.
type Recorder struct {
	Name   func(in *Input) string
	Events []Event
	Counts EventCounts

	now Millis
}

// Tick sets the timestamp stamped on events recorded until the next Tick.
func (r *Recorder) Tick(now Millis) {
	r.now = now
}

// HandleEvent records the event.
func (r *Recorder) HandleEvent(_ *Group, in *Input, kind EventKind) {
	r.Events = append(r.Events, NewEvent(r.name(in), in, kind, r.now))
	r.Counts.Add(kind)
}

// Reset clears recorded events.
func (r *Recorder) Reset() {
	r.Events = nil
	r.Counts = EventCounts{}
}

func (r *Recorder) name(in *Input) string {
	if r.Name != nil {
		return r.Name(in)
	}
	if s, ok := in.Data.(string); ok {
		return s
	}
	return ""
}
