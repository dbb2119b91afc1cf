package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
)

const tick = 5 * time.Millisecond

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// bench wires the default configuration file to fakes the way the daemon
// wires it to hardware: read, set levels, process, publish.
type bench struct {
	cfg      config.Config
	inputs   []*logic.Input
	group    *logic.Group
	rec      *logic.Recorder
	reader   *gpio.FakeReader
	pub      *mqtt.FakePublisher
	tracker  *status.Tracker
	nextTick int
}

func newBench(t *testing.T, samples [][]bool) *bench {
	t.Helper()
	cfg, err := config.Parse(config.DefaultFile)
	if err != nil {
		t.Fatalf("parse default config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	buttonName := func(in *logic.Input) string {
		return in.Data.(config.Button).Name
	}
	b := &bench{
		cfg:    cfg,
		inputs: cfg.Inputs(),
		rec:    &logic.Recorder{Name: buttonName},
		reader: gpio.NewFakeReader(samples),
		pub:    mqtt.NewFakePublisher(),
	}
	buttons := make([]status.Button, len(cfg.Buttons))
	for i, btn := range cfg.Buttons {
		buttons[i] = status.Button{Name: btn.Name, Pin: btn.Pin}
	}
	b.tracker = status.NewTracker(startTime, status.Config{Session: "bench", Mode: cfg.Mode}, buttons)

	b.group, err = logic.NewGroup(logic.GroupConfig{
		Inputs: b.inputs,
		Sink:   b.rec,
		Mode:   logic.SampleManual,
		Timing: cfg.GroupTiming(),
	})
	if err != nil {
		t.Fatalf("new group: %v", err)
	}
	return b
}

// run advances n poll intervals and publishes whatever the engine reports.
func (b *bench) run(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		now := time.Duration(b.nextTick) * tick
		b.nextTick++

		levels, err := b.reader.Read()
		if err != nil {
			t.Fatalf("tick %d: gpio read error: %v", b.nextTick, err)
		}
		for j, in := range b.inputs {
			b.group.SetLevel(in, levels[j])
		}

		b.rec.Tick(logic.Millis(now.Milliseconds()))
		before := len(b.rec.Events)
		b.group.ProcessAll(logic.Millis(now.Milliseconds()))

		at := startTime.Add(now)
		for _, e := range b.rec.Events[before:] {
			// Don't crash on publish failure
			_ = b.pub.Publish(mqtt.Event{Event: e, Timestamp: at})
			b.tracker.Record(e, at)
		}
		b.tracker.Update(b.inputs)
	}
}

// run holds both buttons at fixed levels for n ticks.
type run struct {
	n           int
	door, light bool
}

// script builds per-tick samples for [doorbell, light] from runs of ticks.
func script(runs ...run) [][]bool {
	var out [][]bool
	for _, r := range runs {
		for i := 0; i < r.n; i++ {
			out = append(out, []bool{r.door, r.light})
		}
	}
	return out
}

type wantEvent struct {
	button string
	kind   logic.EventKind
	count  int
	at     logic.Millis
}

func checkEvents(t *testing.T, pub *mqtt.FakePublisher, want []wantEvent) {
	t.Helper()
	if len(pub.Events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), pub.EventTypes())
	}
	for i, w := range want {
		e := pub.Events[i]
		if e.Button != w.button || e.Type != w.kind || e.Count != w.count || e.At != w.at {
			t.Errorf("event %d: got %s %s(%d)@%d, want %s %s(%d)@%d",
				i, e.Button, e.Type, e.Count, e.At, w.button, w.kind, w.count, w.at)
		}
	}
}

// TestIntegrationDoubleClickFlushesAtMax uses the light's per-button limit of
// two clicks: the sequence is reported on the second release.
func TestIntegrationDoubleClickFlushesAtMax(t *testing.T) {
	b := newBench(t, script(
		run{10, false, false}, // 0..45
		run{20, false, true},  // 50..145
		run{20, false, false}, // 150..245
		run{20, false, true},  // 250..345
		run{1, false, false},  // 350..
	))
	b.run(t, 200)

	checkEvents(t, b.pub, []wantEvent{
		{"light", logic.EventPress, 0, 70},
		{"light", logic.EventRelease, 0, 155},
		{"light", logic.EventPress, 0, 270},
		{"light", logic.EventRelease, 0, 355},
		{"light", logic.EventClick, 2, 355},
	})

	if ts := b.pub.Events[4].Timestamp; !ts.Equal(startTime.Add(355 * time.Millisecond)) {
		t.Errorf("click timestamp: got %v", ts)
	}
}

func TestIntegrationDoorbellWaitsForTimeout(t *testing.T) {
	// The doorbell inherits max_consecutive=3, so two clicks wait out the
	// 400ms multi-click window.
	b := newBench(t, script(
		run{10, false, false},
		run{20, true, false},
		run{20, false, false},
		run{20, true, false},
		run{1, false, false},
	))
	b.run(t, 200)

	checkEvents(t, b.pub, []wantEvent{
		{"doorbell", logic.EventPress, 0, 70},
		{"doorbell", logic.EventRelease, 0, 155},
		{"doorbell", logic.EventPress, 0, 270},
		{"doorbell", logic.EventRelease, 0, 355},
		{"doorbell", logic.EventClick, 2, 755},
	})
}

func TestIntegrationLongPressKeepalive(t *testing.T) {
	// light keepalive_period_ms = 500; held 50..1245.
	b := newBench(t, script(
		run{10, false, false},
		run{240, false, true},
		run{1, false, false},
	))
	b.run(t, 400)

	checkEvents(t, b.pub, []wantEvent{
		{"light", logic.EventPress, 0, 70},
		{"light", logic.EventKeepalive, 1, 570},
		{"light", logic.EventKeepalive, 2, 1070},
		{"light", logic.EventRelease, 0, 1255},
	})
}

func TestIntegrationButtonsAreIndependent(t *testing.T) {
	// Both pressed together: one PRESS each, reported in button order.
	b := newBench(t, script(
		run{10, false, false},
		run{20, true, true},
		run{1, false, false},
	))
	b.run(t, 200)

	got := b.pub.EventTypes()
	want := []string{
		"doorbell:PRESS", "light:PRESS",
		"doorbell:RELEASE", "light:RELEASE",
		"doorbell:CLICK", "light:CLICK",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestIntegrationNoEventsWhileHeldAtStartup(t *testing.T) {
	b := newBench(t, script(run{1, true, true}))
	b.run(t, 600)

	if len(b.pub.Events) != 0 {
		t.Errorf("expected 0 events, got %v", b.pub.EventTypes())
	}
}

func TestIntegrationBounceRejection(t *testing.T) {
	// 15ms spikes are shorter than the 20ms press debounce.
	b := newBench(t, script(
		run{10, false, false},
		run{3, true, true},
		run{10, false, false},
		run{3, true, true},
		run{1, false, false},
	))
	b.run(t, 200)

	if len(b.pub.Events) != 0 {
		t.Errorf("expected 0 events (bounce rejected), got %v", b.pub.EventTypes())
	}
}

func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	b := newBench(t, script(
		run{10, false, false},
		run{20, true, false},
		run{1, false, false},
	))
	b.pub.PublishError = errors.New("broker unavailable")
	b.run(t, 200)

	if len(b.pub.Events) != 0 {
		t.Errorf("expected nothing recorded by a failing publisher, got %d", len(b.pub.Events))
	}
	if got := b.tracker.Snapshot().Counts.Click; got != 1 {
		t.Errorf("tracker clicks: got %d, want 1", got)
	}
}

func TestIntegrationPayloadFormat(t *testing.T) {
	b := newBench(t, script(
		run{10, false, false},
		run{20, true, false},
		run{1, false, false},
	))
	b.run(t, 200)

	if len(b.pub.Payloads) != 3 {
		t.Fatalf("expected 3 payloads, got %d", len(b.pub.Payloads))
	}
	var click mqtt.Payload
	if err := json.Unmarshal(b.pub.Payloads[2], &click); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if click.Button.Name != "doorbell" || click.Button.Event != "CLICK" || click.Button.Count != 1 {
		t.Errorf("unexpected click payload: %+v", click.Button)
	}
	if click.Button.Timestamp == "" {
		t.Error("missing timestamp")
	}

	var press map[string]map[string]any
	if err := json.Unmarshal(b.pub.Payloads[0], &press); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := press["button"]["count"]; ok {
		t.Error("PRESS payload should omit count")
	}
}

func TestIntegrationStatusAfterEvents(t *testing.T) {
	b := newBench(t, script(
		run{10, false, false},
		run{20, false, true},
		run{20, false, false},
		run{20, false, true},
		run{1, false, false},
	))
	b.run(t, 200)

	var doc status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(b.tracker.Snapshot()), &doc); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	s := doc.Status
	if s.Session != "bench" {
		t.Errorf("session: got %q", s.Session)
	}
	if s.Counts.Press != 2 || s.Counts.Release != 2 || s.Counts.Click != 1 {
		t.Errorf("counts: got %+v", s.Counts)
	}
	if len(s.Buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(s.Buttons))
	}
	light := s.Buttons[1]
	if light.Name != "light" || light.Pin != 27 {
		t.Errorf("light button: got %+v", light)
	}
	if light.LastEvent != "CLICK" {
		t.Errorf("light last event: got %q", light.LastEvent)
	}
	if light.State != "IDLE" || light.Active {
		t.Errorf("light state: got %s active=%v", light.State, light.Active)
	}
	if door := s.Buttons[0]; door.Counts.Press != 0 {
		t.Errorf("doorbell counts: got %+v", door.Counts)
	}
}

func TestIntegrationResetAllowsFreshPress(t *testing.T) {
	b := newBench(t, script(
		run{10, false, false},
		run{30, true, false}, // PRESS at 70
	))
	b.run(t, 40)
	b.group.Reset()

	// Still held: nothing until the line is seen released.
	b.reader.Samples = script(run{20, true, false}, run{20, false, false}, run{20, true, false}, run{1, false, false})
	b.reader.Reset()
	b.run(t, 200)

	got := b.pub.EventTypes()
	want := []string{"doorbell:PRESS", "doorbell:PRESS", "doorbell:RELEASE", "doorbell:CLICK"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}
