// Package scenario replays scripted button level traces through the event
// engine and checks the resulting events.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/logic"
)

// maxLength bounds segments plus tail so replay times stay below the
// engine's half-range for wrapping millisecond arithmetic.
const maxLength = 1<<31 - 1

// Scenario is a level trace for a single button.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Timing      *config.Timing `yaml:"timing,omitempty"`
	// StepMs is the interval between processing calls; 0 means 1.
	StepMs   uint32     `yaml:"step_ms,omitempty"`
	Segments []Segment  `yaml:"segments"`
	TailMs   uint32     `yaml:"tail_ms,omitempty"`
	Expect   []Expected `yaml:"expect,omitempty"`
}

// Segment holds one level for a duration.
type Segment struct {
	Active bool   `yaml:"active"`
	Ms     uint32 `yaml:"ms"`
}

// Expected is one event the replay must produce.
type Expected struct {
	At    uint32 `yaml:"at"`
	Event string `yaml:"event"`
	Count int    `yaml:"count,omitempty"`
}

// Load reads a scenario file. Unknown fields are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate checks required fields.
func (s *Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("missing name"))
	}
	if len(s.Segments) == 0 {
		errs = append(errs, errors.New("no segments"))
	}
	for i, seg := range s.Segments {
		if seg.Ms == 0 {
			errs = append(errs, fmt.Errorf("segment %d: ms must be positive", i))
		}
	}
	if n := s.length(); n > maxLength {
		errs = append(errs, fmt.Errorf("segments and tail_ms total %d ms, max %d", n, maxLength))
	}
	if s.Timing != nil {
		if err := s.Timing.Validate(logic.DefaultTiming()); err != nil {
			errs = append(errs, fmt.Errorf("timing: %w", err))
		}
	}
	for i, e := range s.Expect {
		switch logic.EventKind(e.Event) {
		case logic.EventPress, logic.EventRelease, logic.EventClick, logic.EventKeepalive:
		default:
			errs = append(errs, fmt.Errorf("expect %d: unknown event %q", i, e.Event))
		}
	}
	return errors.Join(errs...)
}

// Duration returns the total length of the segments.
func (s *Scenario) Duration() uint64 {
	var total uint64
	for _, seg := range s.Segments {
		total += uint64(seg.Ms)
	}
	return total
}

func (s *Scenario) length() uint64 {
	return s.Duration() + uint64(s.TailMs)
}

// LevelAt returns the level at t: the first segment whose cumulative end is
// at or after t. Past the last segment the level is inactive.
func (s *Scenario) LevelAt(t uint32) bool {
	var end uint64
	for _, seg := range s.Segments {
		end += uint64(seg.Ms)
		if uint64(t) <= end {
			return seg.Active
		}
	}
	return false
}

// Result is the outcome of a replay.
type Result struct {
	Name   string
	Events []logic.Event
	// Mismatch describes the first difference from Expect; empty when the
	// events match or nothing was expected.
	Mismatch string
}

// Passed reports whether the replay met its expectations.
func (r *Result) Passed() bool {
	return r.Mismatch == ""
}

// Run replays s. base is the timing used for thresholds the scenario does not set.
func Run(s *Scenario, base logic.Timing) (*Result, error) {
	end := s.length()
	if end > maxLength {
		return nil, fmt.Errorf("scenario %q: %d ms exceeds %d", s.Name, end, maxLength)
	}
	timing := base
	if s.Timing != nil {
		timing = s.Timing.Apply(base)
	}

	var level bool
	in := logic.NewInput(s.Name)
	rec := &logic.Recorder{}
	g, err := logic.NewGroup(logic.GroupConfig{
		Inputs: []*logic.Input{in},
		Source: logic.LevelSourceFunc(func(*logic.Group, *logic.Input) bool { return level }),
		Sink:   rec,
		Mode:   logic.SampleCallback,
		Timing: timing,
	})
	if err != nil {
		return nil, fmt.Errorf("build group: %w", err)
	}

	step := uint64(s.StepMs)
	if step == 0 {
		step = 1
	}
	for t := uint64(0); t <= end; t += step {
		level = s.LevelAt(uint32(t))
		rec.Tick(logic.Millis(t))
		g.ProcessAll(logic.Millis(t))
	}

	r := &Result{Name: s.Name, Events: rec.Events}
	if len(s.Expect) > 0 {
		r.Mismatch = compare(s.Expect, rec.Events)
	}
	return r, nil
}

func compare(want []Expected, got []logic.Event) string {
	for i := 0; i < len(want) || i < len(got); i++ {
		switch {
		case i >= len(got):
			return fmt.Sprintf("event %d: missing %s", i, describeExpected(want[i]))
		case i >= len(want):
			return fmt.Sprintf("event %d: unexpected %s", i, describe(got[i]))
		}
		w, g := want[i], got[i]
		if logic.Millis(w.At) != g.At || logic.EventKind(w.Event) != g.Type || w.Count != g.Count {
			return fmt.Sprintf("event %d: want %s, got %s", i, describeExpected(w), describe(g))
		}
	}
	return ""
}

func describe(e logic.Event) string {
	if e.Count > 0 {
		return fmt.Sprintf("%s(%d)@%d", e.Type, e.Count, e.At)
	}
	return fmt.Sprintf("%s@%d", e.Type, e.At)
}

func describeExpected(e Expected) string {
	if e.Count > 0 {
		return fmt.Sprintf("%s(%d)@%d", e.Event, e.Count, e.At)
	}
	return fmt.Sprintf("%s@%d", e.Event, e.At)
}
