// Package config loads the button-sensor configuration file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "/etc/button-sensor.toml"

// Sampling modes.
const (
	ModePoll = "poll"
	ModeEdge = "edge"
)

// Config is the daemon configuration.
type Config struct {
	Chip        string `toml:"chip"`
	Mode        string `toml:"mode"`
	PollMs      int64  `toml:"poll_ms"`
	HeartbeatMs int64  `toml:"heartbeat_ms"`
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	HTTP        string `toml:"http"`

	Timing  Timing   `toml:"timing"`
	Buttons []Button `toml:"button"`
}

// Button configures one input line.
type Button struct {
	Name      string  `toml:"name"`
	Pin       int     `toml:"pin"`
	ActiveLow bool    `toml:"active_low"`
	Bias      string  `toml:"bias"`
	Timing    *Timing `toml:"timing"`
}

// Timing holds optional threshold overrides. Unset fields inherit.
type Timing struct {
	DebouncePressMs     *int64 `toml:"debounce_press_ms" yaml:"debounce_press_ms,omitempty"`
	DebounceReleaseMs   *int64 `toml:"debounce_release_ms" yaml:"debounce_release_ms,omitempty"`
	ClickMinMs          *int64 `toml:"click_min_ms" yaml:"click_min_ms,omitempty"`
	ClickMaxMs          *int64 `toml:"click_max_ms" yaml:"click_max_ms,omitempty"`
	ClickMultiMaxMs     *int64 `toml:"click_multi_max_ms" yaml:"click_multi_max_ms,omitempty"`
	KeepalivePeriodMs   *int64 `toml:"keepalive_period_ms" yaml:"keepalive_period_ms,omitempty"`
	MaxConsecutive      *int   `toml:"max_consecutive" yaml:"max_consecutive,omitempty"`
	FlushOnRelease      *bool  `toml:"flush_on_release" yaml:"flush_on_release,omitempty"`
	KeepAfterShortPress *bool  `toml:"keep_after_short_press" yaml:"keep_after_short_press,omitempty"`
}

// Default returns the configuration used when the file omits a setting.
func Default() Config {
	return Config{
		Chip:        gpio.DefaultChip,
		Mode:        ModePoll,
		PollMs:      5,
		HeartbeatMs: 15 * 60 * 1000,
		Broker:      "tcp://192.168.1.200:1883",
		ClientID:    "button-sensor",
		HTTP:        ":80",
	}
}

// Load reads path on top of Default. Unknown keys are an error.
func Load(path string) (Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML text on top of Default.
func Parse(data string) (Config, error) {
	c := Default()
	md, err := toml.Decode(data, &c)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func checkUndecoded(md toml.MetaData) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return fmt.Errorf("unknown keys: %s", strings.Join(names, ", "))
}

// Validate reports every problem in the configuration.
func (c Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModePoll, ModeEdge:
	default:
		errs = append(errs, fmt.Errorf("mode %q: must be %q or %q", c.Mode, ModePoll, ModeEdge))
	}
	if c.PollMs <= 0 {
		errs = append(errs, fmt.Errorf("poll_ms must be positive, got %d", c.PollMs))
	}
	if c.HeartbeatMs < 0 {
		errs = append(errs, fmt.Errorf("heartbeat_ms must not be negative, got %d", c.HeartbeatMs))
	}
	if err := c.Timing.Validate(logic.DefaultTiming()); err != nil {
		errs = append(errs, fmt.Errorf("timing: %w", err))
	}

	if len(c.Buttons) == 0 {
		errs = append(errs, errors.New("no buttons configured"))
	}
	names := make(map[string]bool, len(c.Buttons))
	pins := make(map[int]string, len(c.Buttons))
	group := c.GroupTiming()
	for i, b := range c.Buttons {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("button #%d: missing name", i))
		} else if names[b.Name] {
			errs = append(errs, fmt.Errorf("button %q: duplicate name", b.Name))
		}
		names[b.Name] = true

		if b.Pin < 0 {
			errs = append(errs, fmt.Errorf("button %q: invalid pin %d", b.Name, b.Pin))
		} else if other, ok := pins[b.Pin]; ok {
			errs = append(errs, fmt.Errorf("button %q: pin %d already used by %q", b.Name, b.Pin, other))
		}
		pins[b.Pin] = b.Name

		switch gpio.Bias(b.Bias) {
		case gpio.BiasNone, gpio.BiasPullUp, gpio.BiasPullDown, gpio.BiasDisabled:
		default:
			errs = append(errs, fmt.Errorf("button %q: unknown bias %q", b.Name, b.Bias))
		}
		if b.Timing != nil {
			if err := b.Timing.Validate(group); err != nil {
				errs = append(errs, fmt.Errorf("button %q timing: %w", b.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}

// Poll returns the polling interval.
func (c Config) Poll() time.Duration {
	return time.Duration(c.PollMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval; zero disables heartbeats.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

// GroupTiming returns the default timing for all buttons.
func (c Config) GroupTiming() logic.Timing {
	return c.Timing.Apply(logic.DefaultTiming())
}

// Lines returns the GPIO line configuration in button order.
func (c Config) Lines() []gpio.Line {
	lines := make([]gpio.Line, len(c.Buttons))
	for i, b := range c.Buttons {
		lines[i] = gpio.Line{Offset: b.Pin, ActiveLow: b.ActiveLow, Bias: gpio.Bias(b.Bias)}
	}
	return lines
}

// Inputs builds one engine input per button. Each input carries its Button
// as Data and its own timing when the button overrides any threshold.
func (c Config) Inputs() []*logic.Input {
	group := c.GroupTiming()
	inputs := make([]*logic.Input, len(c.Buttons))
	for i := range c.Buttons {
		b := c.Buttons[i]
		in := logic.NewInput(b)
		if b.Timing != nil {
			t := b.Timing.Apply(group)
			in.Timing = &t
		}
		inputs[i] = in
	}
	return inputs
}

// Apply returns base with every set field replaced.
func (t Timing) Apply(base logic.Timing) logic.Timing {
	ms := func(v *int64, dst *logic.Millis) {
		if v != nil {
			*dst = logic.Millis(*v)
		}
	}
	ms(t.DebouncePressMs, &base.DebouncePress)
	ms(t.DebounceReleaseMs, &base.DebounceRelease)
	ms(t.ClickMinMs, &base.ClickMin)
	ms(t.ClickMaxMs, &base.ClickMax)
	ms(t.ClickMultiMaxMs, &base.ClickMultiMax)
	ms(t.KeepalivePeriodMs, &base.KeepalivePeriod)
	if t.MaxConsecutive != nil {
		base.MaxConsecutive = *t.MaxConsecutive
	}
	if t.FlushOnRelease != nil {
		base.FlushMaxOnRelease = *t.FlushOnRelease
	}
	if t.KeepAfterShortPress != nil {
		base.KeepAfterShortPress = *t.KeepAfterShortPress
	}
	return base
}

// maxMillis keeps intervals below half the counter range.
const maxMillis = 1<<31 - 1

// Validate checks the set fields and the click window they produce over base.
func (t Timing) Validate(base logic.Timing) error {
	var errs []error
	for _, f := range []struct {
		name string
		v    *int64
	}{
		{"debounce_press_ms", t.DebouncePressMs},
		{"debounce_release_ms", t.DebounceReleaseMs},
		{"click_min_ms", t.ClickMinMs},
		{"click_max_ms", t.ClickMaxMs},
		{"click_multi_max_ms", t.ClickMultiMaxMs},
		{"keepalive_period_ms", t.KeepalivePeriodMs},
	} {
		if f.v != nil && (*f.v < 0 || *f.v > maxMillis) {
			errs = append(errs, fmt.Errorf("%s out of range: %d", f.name, *f.v))
		}
	}
	if t.MaxConsecutive != nil && *t.MaxConsecutive < 1 {
		errs = append(errs, fmt.Errorf("max_consecutive must be at least 1, got %d", *t.MaxConsecutive))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	resolved := t.Apply(base)
	if resolved.ClickMin > resolved.ClickMax {
		return fmt.Errorf("click_min_ms (%d) exceeds click_max_ms (%d)", resolved.ClickMin, resolved.ClickMax)
	}
	return nil
}
