// Package wavegen drives a SCPI function generator such as the Keysight
// 33220A.
package wavegen

import (
	"fmt"
	"math"
	"strings"

	"github.com/gotmc/query"

	"github.com/gotmc/remotelab"
)

// Shape is a generator output function.
type Shape string

// Supported shapes, named by their SCPI mnemonic.
const (
	Sine   Shape = "SIN"
	Square Shape = "SQU"
	Ramp   Shape = "RAMP"
	DC     Shape = "DC"
)

// ParseShape accepts the SCPI mnemonic or the long name, ignoring case.
func ParseShape(s string) (Shape, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SIN", "SINE", "SINUSOID":
		return Sine, nil
	case "SQU", "SQUARE":
		return Square, nil
	case "RAMP", "TRIANGLE":
		return Ramp, nil
	case "DC":
		return DC, nil
	}
	return "", fmt.Errorf("unknown waveform shape %q", s)
}

// Waveform is what the generator should put out.
type Waveform struct {
	Shape     Shape
	Frequency float64 // Hz, ignored for DC
	Amplitude float64 // volts peak to peak
	Offset    float64 // volts
}

// Validate rejects waveforms no generator accepts.
func (w Waveform) Validate() error {
	if w.Shape != DC && w.Frequency <= 0 {
		return fmt.Errorf("frequency must be positive, got %g Hz", w.Frequency)
	}
	if w.Amplitude < 0 {
		return fmt.Errorf("amplitude must not be negative, got %g Vpp", w.Amplitude)
	}
	return nil
}

// Sample returns one period of w as a single trace of n points, for
// previewing on the plotter.
func (w Waveform) Sample(n int) remotelab.Series {
	tr := make([]float64, n)
	half := w.Amplitude / 2
	for i := range tr {
		x := float64(i) / float64(n) // fraction of a period
		var v float64
		switch w.Shape {
		case Sine:
			v = half * math.Sin(2*math.Pi*x)
		case Square:
			v = half
			if x >= 0.5 {
				v = -half
			}
		case Ramp:
			v = half * (2*x - 1)
		}
		tr[i] = v + w.Offset
	}
	return remotelab.Series{tr}
}

// Instrument is a connection able to send commands and answer queries.
type Instrument interface {
	query.Querier
	Command(format string, a ...any) error
}

// Generator controls one function generator.
type Generator struct {
	inst Instrument
}

// New wraps inst.
func New(inst Instrument) *Generator { return &Generator{inst: inst} }

// Identify returns the generator's *IDN? response.
func (g *Generator) Identify() (string, error) {
	return query.String(g.inst, "*IDN?")
}

// Remote puts the generator under remote control, or returns control to the
// front panel.
func (g *Generator) Remote(on bool) error {
	if on {
		return g.inst.Command("SYST:REM")
	}
	return g.inst.Command("SYST:LOC")
}

// Apply configures the output function in one APPLy command.
func (g *Generator) Apply(w Waveform) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.Shape == DC {
		return g.inst.Command("APPL:DC DEF,DEF,%g", w.Offset)
	}
	return g.inst.Command("APPL:%s %g,%g,%g", w.Shape, w.Frequency, w.Amplitude, w.Offset)
}

// Output enables or disables the output.
func (g *Generator) Output(on bool) error {
	if on {
		return g.inst.Command("OUTP ON")
	}
	return g.inst.Command("OUTP OFF")
}

// OutputEnabled queries the output state.
func (g *Generator) OutputEnabled() (bool, error) {
	return query.Bool(g.inst, "OUTP?")
}

// Frequency reads back the output frequency.
func (g *Generator) Frequency() (float64, error) {
	return query.Float64(g.inst, "FREQ?")
}
