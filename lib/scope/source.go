package scope

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gotmc/query"

	"github.com/gotmc/remotelab"
)

// Source produces one acquisition of every enabled channel.
type Source interface {
	Acquire(ctx context.Context) (remotelab.Series, error)
}

// Instrument is a connection able to send commands and answer queries,
// such as *instrument.Link.
type Instrument interface {
	query.Querier
	Command(format string, a ...any) error
}

// QuerySource acquires traces from a SCPI oscilloscope.
type QuerySource struct {
	Inst     Instrument
	Channels []int
}

// Identify returns the instrument's *IDN? response.
func (qs *QuerySource) Identify() (string, error) {
	return query.String(qs.Inst, "*IDN?")
}

// Apply pushes the knob state to the scope.
func (qs *QuerySource) Apply(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	slope := "POS"
	if s.Trigger.Edge == Falling {
		slope = "NEG"
	}
	cmds := []string{
		fmt.Sprintf(":TIM:SCAL %g", s.Timebase()),
		fmt.Sprintf(":CHAN1:SCAL %g", s.Y1Scale()),
		fmt.Sprintf(":CHAN2:SCAL %g", s.Y2Scale()),
		fmt.Sprintf(":TRIG:EDGE:SOUR CHAN%d", s.Trigger.Channel),
		":TRIG:EDGE:SLOP " + slope,
		fmt.Sprintf(":TRIG:EDGE:LEV %g", s.Trigger.Level),
	}
	for _, cmd := range cmds {
		if err := qs.Inst.Command("%s", cmd); err != nil {
			return fmt.Errorf("sending %q: %w", cmd, err)
		}
	}
	return nil
}

// Timebase reads back the scope's horizontal scale.
func (qs *QuerySource) Timebase() (float64, error) {
	return query.Float64(qs.Inst, ":TIM:SCAL?")
}

// Acquire reads each channel's waveform as comma separated volts.
func (qs *QuerySource) Acquire(ctx context.Context) (remotelab.Series, error) {
	s := make(remotelab.Series, 0, len(qs.Channels))
	for _, ch := range qs.Channels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := query.String(qs.Inst, fmt.Sprintf(":WAV:DATA? CHAN%d", ch))
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		tr, err := parseCSV(resp)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		s = append(s, tr)
	}
	return s, nil
}

func parseCSV(resp string) ([]float64, error) {
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return nil, nil
	}
	fields := strings.Split(resp, ",")
	tr := make([]float64, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		tr = append(tr, v)
	}
	return tr, nil
}

// SineSource synthesizes two channels, a sine on channel 1 and a cosine on
// channel 2, advancing the phase on every acquisition. It stands in for a
// scope in demo mode.
type SineSource struct {
	Points    int
	Cycles    float64 // periods shown across Points samples
	Amplitude float64
	PhaseStep float64 // radians added per acquisition

	phase float64
}

// Acquire returns the next synthetic acquisition.
func (ss *SineSource) Acquire(ctx context.Context) (remotelab.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := ss.Points
	if n <= 0 {
		n = 500
	}
	s := remotelab.Series{make([]float64, n), make([]float64, n)}
	for i := 0; i < n; i++ {
		x := 2*math.Pi*ss.Cycles*float64(i)/float64(n) + ss.phase
		s[0][i] = ss.Amplitude * math.Sin(x)
		s[1][i] = ss.Amplitude * math.Cos(x)
	}
	ss.phase += ss.PhaseStep
	return s, nil
}

// Averager returns the running mean of the last N acquisitions. It starts
// over whenever the shape of the incoming series changes.
type Averager struct {
	n    int
	ring []remotelab.Series
	next int
}

// NewAverager averages over n acquisitions; n < 2 disables averaging.
func NewAverager(n int) *Averager {
	return &Averager{n: max(n, 1)}
}

// N returns the averaging count.
func (a *Averager) N() int { return a.n }

// Reset drops the acquisitions collected so far.
func (a *Averager) Reset() {
	a.ring = a.ring[:0]
	a.next = 0
}

// Add stores s and returns the mean of everything stored.
func (a *Averager) Add(s remotelab.Series) remotelab.Series {
	if a.n == 1 {
		return s
	}
	if len(a.ring) > 0 && !sameShape(a.ring[0], s) {
		a.Reset()
	}
	if len(a.ring) < a.n {
		a.ring = append(a.ring, s)
	} else {
		a.ring[a.next] = s
	}
	a.next = (a.next + 1) % a.n

	mean := make(remotelab.Series, len(s))
	for j := range s {
		mean[j] = make([]float64, len(s[j]))
		for _, acq := range a.ring {
			for i, v := range acq[j] {
				mean[j][i] += v
			}
		}
		for i := range mean[j] {
			mean[j][i] /= float64(len(a.ring))
		}
	}
	return mean
}

func sameShape(a, b remotelab.Series) bool {
	if len(a) != len(b) {
		return false
	}
	for j := range a {
		if len(a[j]) != len(b[j]) {
			return false
		}
	}
	return true
}
