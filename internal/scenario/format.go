package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// TraceJSON is the JSON form of a replay.
type TraceJSON struct {
	Name     string      `json:"name"`
	Passed   bool        `json:"passed"`
	Mismatch string      `json:"mismatch,omitempty"`
	Events   []EventJSON `json:"events"`
}

// EventJSON is one replayed event.
type EventJSON struct {
	At    uint32 `json:"at"`
	Event string `json:"event"`
	Count int    `json:"count,omitempty"`
}

// Text renders r as one line per event.
func Text(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Name)
	for _, e := range r.Events {
		if e.Count > 0 {
			fmt.Fprintf(&b, "%8d  %-9s %d\n", e.At, e.Type, e.Count)
		} else {
			fmt.Fprintf(&b, "%8d  %s\n", e.At, e.Type)
		}
	}
	if r.Mismatch != "" {
		fmt.Fprintf(&b, "FAIL: %s\n", r.Mismatch)
	}
	return b.String()
}

// JSON renders r as indented JSON.
func JSON(r *Result) ([]byte, error) {
	t := TraceJSON{
		Name:     r.Name,
		Passed:   r.Passed(),
		Mismatch: r.Mismatch,
		Events:   make([]EventJSON, len(r.Events)),
	}
	for i, e := range r.Events {
		t.Events[i] = EventJSON{At: uint32(e.At), Event: string(e.Type), Count: e.Count}
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write renders r to w in the given format.
func Write(w io.Writer, r *Result, format string) error {
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, Text(r))
		return err
	case FormatJSON:
		data, err := JSON(r)
		if err != nil {
			return fmt.Errorf("encode trace: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
