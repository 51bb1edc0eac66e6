package wavegen

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGen struct {
	cmds    []string
	answers map[string]string
}

func (f *fakeGen) Command(format string, a ...any) error {
	if a != nil {
		format = fmt.Sprintf(format, a...)
	}
	f.cmds = append(f.cmds, format)
	return nil
}

func (f *fakeGen) Query(q string) (string, error) {
	if v, ok := f.answers[q]; ok {
		return v, nil
	}
	return "", errors.New("no answer for " + q)
}

func TestApply(t *testing.T) {
	inst := &fakeGen{}
	g := New(inst)
	require.NoError(t, g.Remote(true))
	require.NoError(t, g.Apply(Waveform{Shape: Sine, Frequency: 100, Amplitude: 0.5}))
	require.NoError(t, g.Apply(Waveform{Shape: DC, Offset: 1.5}))
	require.NoError(t, g.Output(true))
	require.NoError(t, g.Remote(false))
	require.Equal(t, []string{
		"SYST:REM",
		"APPL:SIN 100,0.5,0",
		"APPL:DC DEF,DEF,1.5",
		"OUTP ON",
		"SYST:LOC",
	}, inst.cmds)
}

func TestApplyRejectsInvalid(t *testing.T) {
	inst := &fakeGen{}
	g := New(inst)
	require.Error(t, g.Apply(Waveform{Shape: Square, Frequency: 0, Amplitude: 1}))
	require.Error(t, g.Apply(Waveform{Shape: Sine, Frequency: 1, Amplitude: -1}))
	require.Empty(t, inst.cmds)
}

func TestQueries(t *testing.T) {
	g := New(&fakeGen{answers: map[string]string{
		"*IDN?": "Agilent Technologies,33220A,MY0000,2.02",
		"FREQ?": "1.000000000000000E+03",
	}})
	idn, err := g.Identify()
	require.NoError(t, err)
	require.Contains(t, idn, "33220A")

	f, err := g.Frequency()
	require.NoError(t, err)
	require.Equal(t, 1000.0, f)
}

func TestParseShape(t *testing.T) {
	s, err := ParseShape("square")
	require.NoError(t, err)
	require.Equal(t, Square, s)
	_, err = ParseShape("noise")
	require.Error(t, err)
}

func TestSample(t *testing.T) {
	s := Waveform{Shape: Square, Frequency: 1, Amplitude: 2, Offset: 1}.Sample(4)
	require.Equal(t, []float64{2, 2, 0, 0}, s[0])

	s = Waveform{Shape: Ramp, Frequency: 1, Amplitude: 2}.Sample(4)
	require.Equal(t, []float64{-1, -0.5, 0, 0.5}, s[0])

	s = Waveform{Shape: DC, Offset: 0.25}.Sample(3)
	require.Equal(t, []float64{0.25, 0.25, 0.25}, s[0])
}
