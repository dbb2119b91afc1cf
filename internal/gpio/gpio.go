// Package gpio provides button line reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// DefaultChip is the GPIO chip used when none is configured.
const DefaultChip = "gpiochip0"

// Bias selects the line's internal pull resistor.
type Bias string

const (
	BiasNone     Bias = ""
	BiasPullUp   Bias = "pull-up"
	BiasPullDown Bias = "pull-down"
	BiasDisabled Bias = "disabled"
)

// Line describes one button input.
type Line struct {
	// Offset is the line offset on the chip (BCM number on a Raspberry Pi).
	Offset int
	// ActiveLow reports a pressed button when the raw line reads 0.
	ActiveLow bool
	Bias      Bias
}

// Edge is a level change reported by a watched line.
type Edge struct {
	// Index is the position of the line in the slice passed to the reader.
	Index  int
	Active bool
}

// Reader reads button levels.
type Reader interface {
	// Read returns the logical level of every line, in configuration order.
	// true means pressed; active-low inversion is already applied.
	Read() ([]bool, error)

	// Close releases GPIO resources.
	Close() error
}
