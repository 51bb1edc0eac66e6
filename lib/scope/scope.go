// Package scope holds the oscilloscope console's knob state and the sources
// that produce traces for it.
package scope

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gotmc/remotelab"
)

// Timebases are the selectable horizontal scales in seconds per division.
var Timebases = []float64{
	1e-6, 2e-6, 5e-6,
	10e-6, 20e-6, 50e-6,
	100e-6, 200e-6, 500e-6,
	1e-3, 2e-3, 5e-3,
	10e-3, 20e-3, 50e-3,
	100e-3, 200e-3, 500e-3,
	1,
}

// VerticalScales are the selectable vertical scales in volts per division.
var VerticalScales = []float64{
	0.01, 0.02, 0.05,
	0.1, 0.2, 0.5,
	1, 2, 5,
}

// AveragingChoices are the supported acquisition counts for averaging.
// 1 means no averaging.
var AveragingChoices = []int{1, 4, 16, 32, 64, 128}

// Divisions on the screen grid.
const (
	HorizontalDivisions = 10
	VerticalDivisions   = 8
)

// Edge is a trigger slope.
type Edge int

// Trigger slopes.
const (
	Rising Edge = iota
	Falling
)

func (e Edge) String() string {
	if e == Falling {
		return "falling"
	}
	return "rising"
}

// ParseEdge parses "rising" or "falling".
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising", "pos", "+":
		return Rising, nil
	case "falling", "neg", "-":
		return Falling, nil
	}
	return Rising, fmt.Errorf("unknown trigger edge %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (e Edge) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Edge) UnmarshalText(b []byte) error {
	v, err := ParseEdge(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Trigger selects the trigger source, slope and level.
type Trigger struct {
	Channel int     `yaml:"channel"` // 1 or 2
	Edge    Edge    `yaml:"edge"`
	Level   float64 `yaml:"level"` // volts
}

// Settings is the scope's front panel: the knob positions for the timebase
// and the two vertical channels, the trigger and averaging.
type Settings struct {
	TimebaseIdx int            `yaml:"timebase_idx"`
	Y1Idx       int            `yaml:"y1_idx"`
	Y2Idx       int            `yaml:"y2_idx"`
	Trigger     Trigger        `yaml:"trigger"`
	Averages    int            `yaml:"averages"`
	Mode        remotelab.Mode `yaml:"mode"`
}

// DefaultSettings returns 1 ms/div, 1 V/div on both channels, rising edge
// trigger on channel 1 at 0 V and no averaging.
func DefaultSettings() Settings {
	return Settings{
		TimebaseIdx: 9,
		Y1Idx:       6,
		Y2Idx:       6,
		Trigger:     Trigger{Channel: 1, Edge: Rising},
		Averages:    1,
	}
}

// Timebase returns the selected seconds per division.
func (s Settings) Timebase() float64 { return Timebases[clamp(s.TimebaseIdx, len(Timebases))] }

// Y1Scale returns channel 1 volts per division.
func (s Settings) Y1Scale() float64 { return VerticalScales[clamp(s.Y1Idx, len(VerticalScales))] }

// Y2Scale returns channel 2 volts per division.
func (s Settings) Y2Scale() float64 { return VerticalScales[clamp(s.Y2Idx, len(VerticalScales))] }

// TimebaseUp turns the timebase knob one step towards slower sweeps.
func (s *Settings) TimebaseUp() { s.TimebaseIdx = clamp(s.TimebaseIdx+1, len(Timebases)) }

// TimebaseDown turns the timebase knob one step towards faster sweeps.
func (s *Settings) TimebaseDown() { s.TimebaseIdx = clamp(s.TimebaseIdx-1, len(Timebases)) }

// Y1Up increases channel 1 volts per division.
func (s *Settings) Y1Up() { s.Y1Idx = clamp(s.Y1Idx+1, len(VerticalScales)) }

// Y1Down decreases channel 1 volts per division.
func (s *Settings) Y1Down() { s.Y1Idx = clamp(s.Y1Idx-1, len(VerticalScales)) }

// Y2Up increases channel 2 volts per division.
func (s *Settings) Y2Up() { s.Y2Idx = clamp(s.Y2Idx+1, len(VerticalScales)) }

// Y2Down decreases channel 2 volts per division.
func (s *Settings) Y2Down() { s.Y2Idx = clamp(s.Y2Idx-1, len(VerticalScales)) }

// SetAverages selects the averaging count; it must be one of
// AveragingChoices.
func (s *Settings) SetAverages(n int) error {
	for _, c := range AveragingChoices {
		if c == n {
			s.Averages = n
			return nil
		}
	}
	return fmt.Errorf("unsupported averaging count %d (want one of %v)", n, AveragingChoices)
}

// TriggerLevelLimits returns the range the trigger level may take on the
// trigger channel's current scale.
func (s Settings) TriggerLevelLimits() (lo, hi float64) {
	scale := s.Y1Scale()
	if s.Trigger.Channel == 2 {
		scale = s.Y2Scale()
	}
	half := scale * VerticalDivisions / 2
	return -half, half
}

// Validate checks the trigger channel and level.
func (s Settings) Validate() error {
	if s.Trigger.Channel != 1 && s.Trigger.Channel != 2 {
		return fmt.Errorf("invalid trigger channel %d (must be 1 or 2)", s.Trigger.Channel)
	}
	lo, hi := s.TriggerLevelLimits()
	if s.Trigger.Level < lo || s.Trigger.Level > hi {
		return fmt.Errorf("trigger level %g V outside [%g, %g]", s.Trigger.Level, lo, hi)
	}
	return nil
}

// Session derives the plot session for the current knob state. The y axis
// spans the vertical grid of channel 1 in YT mode; in XY mode both axes
// follow their channel's scale.
func (s Settings) Session(title string) remotelab.Session {
	y1 := s.Y1Scale() * VerticalDivisions / 2
	sess := remotelab.Session{
		Title:  fmt.Sprintf("%s  %s/div  ch1 %s/div  ch2 %s/div", title, FormatSeconds(s.Timebase()), FormatVolts(s.Y1Scale()), FormatVolts(s.Y2Scale())),
		Mode:   s.Mode,
		Grid:   true,
		XLabel: "sample",
		YLabel: "V",
		YRange: remotelab.Range{Min: -y1, Max: y1},
	}
	if s.Mode == remotelab.ModeXY {
		y2 := s.Y2Scale() * VerticalDivisions / 2
		sess.XLabel = "ch1 [V]"
		sess.YLabel = "ch2 [V]"
		sess.XRange = remotelab.Range{Min: -y1, Max: y1}
		sess.YRange = remotelab.Range{Min: -y2, Max: y2}
	}
	return sess
}

// FormatSeconds renders a time per division with an engineering prefix.
func FormatSeconds(v float64) string { return engineering(v, "s") }

// FormatVolts renders a voltage with an engineering prefix.
func FormatVolts(v float64) string { return engineering(v, "V") }

func engineering(v float64, unit string) string {
	prefixes := []struct {
		scale  float64
		prefix string
	}{
		{1, ""}, {1e-3, "m"}, {1e-6, "µ"}, {1e-9, "n"},
	}
	for _, p := range prefixes {
		if v >= p.scale || p.prefix == "n" {
			return strconv.FormatFloat(v/p.scale, 'g', 4, 64) + " " + p.prefix + unit
		}
	}
	return strconv.FormatFloat(v, 'g', 4, 64) + " " + unit
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
