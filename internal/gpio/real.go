//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads button lines from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealReader requests every line as an input on the named chip.
// When onEdge is non-nil both edges are watched and onEdge is called from the
// gpiocdev event goroutine for each one.
func NewRealReader(chipName string, lines []Line, onEdge func(Edge)) (*RealReader, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: chip}
	for i, l := range lines {
		line, err := chip.RequestLine(l.Offset, lineOptions(i, l, onEdge)...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request pin %d: %w", l.Offset, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

func lineOptions(index int, l Line, onEdge func(Edge)) []gpiocdev.LineReqOption {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	if l.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	switch l.Bias {
	case BiasPullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case BiasPullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	case BiasDisabled:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}
	if onEdge != nil {
		// Edge types are reported against the logical (active-low adjusted) value.
		opts = append(opts,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				onEdge(Edge{Index: index, Active: evt.Type == gpiocdev.LineEventRisingEdge})
			}),
		)
	}
	return opts
}

// Read returns the logical level of every line.
func (r *RealReader) Read() ([]bool, error) {
	levels := make([]bool, len(r.lines))
	for i, line := range r.lines {
		v, err := line.Value()
		if err != nil {
			return nil, fmt.Errorf("read pin %d: %w", line.Offset(), err)
		}
		levels[i] = v == 1
	}
	return levels, nil
}

// Close releases all lines and the chip.
func (r *RealReader) Close() error {
	var errs []error
	for _, line := range r.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", line.Offset(), err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}
	return errors.Join(errs...)
}
