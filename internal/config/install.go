package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFile is written by Install.
const DefaultFile = `# button-sensor configuration
#
# Pins are line offsets on the GPIO chip (BCM numbers on a Raspberry Pi).

chip = "gpiochip0"

# "poll" samples every poll_ms; "edge" processes a button on each GPIO edge
# and still ticks every poll_ms to finish debounce, keepalive and click timeouts.
mode = "poll"
poll_ms = 5

# Heartbeat interval for the system topic (0 disables).
heartbeat_ms = 900000

broker = "tcp://192.168.1.200:1883"
client_id = "button-sensor"

# HTTP status page (empty disables).
http = ":80"

# Defaults for every button, in milliseconds.
[timing]
debounce_press_ms = 20
debounce_release_ms = 0
click_min_ms = 20
click_max_ms = 300
click_multi_max_ms = 400
keepalive_period_ms = 1000
max_consecutive = 3
# Report a sequence that reached max_consecutive on its last release
# instead of on the next press.
flush_on_release = true
# A press shorter than click_min_ms reports the pending sequence
# instead of dropping it.
keep_after_short_press = false

[[button]]
name = "doorbell"
pin = 17
active_low = true
bias = "pull-up"

[[button]]
name = "light"
pin = 27
active_low = true
bias = "pull-up"
	# Per-button overrides; unset values inherit [timing].
	[button.timing]
	max_consecutive = 2
	keepalive_period_ms = 500
`

// Install writes DefaultFile to path. An existing file is kept unless reset is set.
func Install(path string, reset bool) error {
	if !reset {
		if _, err := os.Stat(path); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultFile), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
