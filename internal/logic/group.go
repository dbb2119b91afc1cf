package logic

import (
	"errors"
	"fmt"
)

// Construction errors returned by NewGroup.
var (
	ErrNoInputs = errors.New("no inputs")
	ErrNilInput = errors.New("nil input")
	ErrNoSink   = errors.New("no event sink")
	ErrNoSource = errors.New("no level source")
)

// GroupConfig describes a group of inputs sharing one sink and one sampling strategy.
type GroupConfig struct {
	Inputs []*Input
	Source LevelSource
	Sink   EventSink
	Mode   SampleMode
	// Timing is the default for inputs without their own Timing.
	Timing Timing
}

// Group processes a set of independent inputs.
type Group struct {
	inputs []*Input
	source LevelSource
	sink   EventSink
	mode   SampleMode
	sample func(in *Input) bool
}

// NewGroup validates cfg and prepares its inputs. On error no input is modified.
func NewGroup(cfg GroupConfig) (*Group, error) {
	if len(cfg.Inputs) == 0 {
		return nil, ErrNoInputs
	}
	for i, in := range cfg.Inputs {
		if in == nil {
			return nil, fmt.Errorf("input %d: %w", i, ErrNilInput)
		}
	}
	if cfg.Sink == nil {
		return nil, ErrNoSink
	}
	if cfg.Mode == SampleCallback && cfg.Source == nil {
		return nil, ErrNoSource
	}

	g := &Group{
		inputs: cfg.Inputs,
		source: cfg.Source,
		sink:   cfg.Sink,
		mode:   cfg.Mode,
	}
	g.sample = g.sampler()

	for _, in := range cfg.Inputs {
		*in = Input{
			Data:   in.Data,
			Timing: in.Timing,
			timing: ResolveTiming(cfg.Timing, in.Timing),
		}
	}
	return g, nil
}

// sampler resolves the sampling strategy once for the group.
func (g *Group) sampler() func(in *Input) bool {
	switch g.mode {
	case SampleManual:
		return func(in *Input) bool { return in.manualLevel }
	case SampleCallback:
		return func(in *Input) bool { return g.source.Level(g, in) }
	default:
		return func(in *Input) bool {
			if in.manual {
				return in.manualLevel
			}
			if g.source != nil {
				return g.source.Level(g, in)
			}
			return false
		}
	}
}

// Inputs returns the group's inputs in processing order.
func (g *Group) Inputs() []*Input {
	return g.inputs
}

// Mode returns the sampling mode.
func (g *Group) Mode() SampleMode {
	return g.mode
}

// ProcessAll advances every input with the same timestamp.
func (g *Group) ProcessAll(now Millis) {
	for _, in := range g.inputs {
		in.advance(g, g.sample(in), now)
	}
}

// ProcessOne advances a single input, typically from an edge interrupt.
// It returns false without side effects when in is nil.
func (g *Group) ProcessOne(in *Input, now Millis) bool {
	if in == nil {
		return false
	}
	in.advance(g, g.sample(in), now)
	return true
}

// SetLevel stores an externally observed level for the next tick.
// It returns false when the group only samples through its LevelSource.
func (g *Group) SetLevel(in *Input, active bool) bool {
	if in == nil || g.mode == SampleCallback {
		return false
	}
	in.manual = true
	in.manualLevel = active
	return true
}

// Reset re-arms the first-inactive guard on every input.
func (g *Group) Reset() {
	for _, in := range g.inputs {
		in.Reset()
	}
}

func (g *Group) emit(in *Input, kind EventKind) {
	g.sink.HandleEvent(g, in, kind)
}
