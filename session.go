// Copyright (c) 2020–2024 The remotelab developers. All rights reserved.
// Project site: https://github.com/gotmc/remotelab
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package remotelab

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gotmc/remotelab/lib/metrics"
)

// Mode selects how traces are drawn.
type Mode int

// Available display modes.
const (
	ModeYT Mode = iota // every trace against the sample index
	ModeXY             // trace 1 on the x axis, trace 2 on the y axis
)

var modeDesc = map[Mode]string{
	ModeYT: "yt",
	ModeXY: "xy",
}

func (m Mode) String() string {
	if d, ok := modeDesc[m]; ok {
		return d
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses "yt" or "xy", ignoring case.
func ParseMode(s string) (Mode, error) {
	for m, d := range modeDesc {
		if strings.EqualFold(strings.TrimSpace(s), d) {
			return m, nil
		}
	}
	return ModeYT, fmt.Errorf("unknown display mode %q (want yt or xy)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Range is an axis range. The zero value means autoscale.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Auto reports whether the axis is autoscaled.
func (r Range) Auto() bool { return r.Min == r.Max }

// Session carries the display state of one plotting session. It is passed
// into every update instead of living in globals, so a paused or saving
// console is just a different Session value.
type Session struct {
	Title      string `yaml:"title"`
	Mode       Mode   `yaml:"mode"`
	Paused     bool   `yaml:"paused"`
	XLabel     string `yaml:"xlabel"`
	YLabel     string `yaml:"ylabel"`
	XRange     Range  `yaml:"xrange"`
	YRange     Range  `yaml:"yrange"`
	Grid       bool   `yaml:"grid"`
	OutputFile string `yaml:"output_file"`

	// SaveNext requests that the next update is also written to
	// OutputFile. Update clears it.
	SaveNext bool `yaml:"-"`
}

// Directives returns the gnuplot setup lines for s.
func (s Session) Directives() string {
	var b strings.Builder
	if s.Title != "" {
		fmt.Fprintf(&b, "set title %s\n", quote(s.Title))
	}
	if s.XLabel != "" {
		fmt.Fprintf(&b, "set xlabel %s\n", quote(s.XLabel))
	}
	if s.YLabel != "" {
		fmt.Fprintf(&b, "set ylabel %s\n", quote(s.YLabel))
	}
	writeRange(&b, "x", s.XRange)
	writeRange(&b, "y", s.YRange)
	if s.Grid {
		b.WriteString("set grid\n")
	} else {
		b.WriteString("unset grid\n")
	}
	return b.String()
}

// Style returns the plot clause matching the display mode.
func (s Session) Style() string {
	if s.Mode == ModeXY {
		return "using 1:2 with lines title 'XY'"
	}
	return DefaultStyle
}

func writeRange(b *strings.Builder, axis string, r Range) {
	if r.Auto() {
		fmt.Fprintf(b, "set autoscale %s\n", axis)
		return
	}
	fmt.Fprintf(b, "set %srange [%g:%g]\n", axis, r.Min, r.Max)
}

// quote returns s as a single quoted gnuplot string.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Plotter serializes updates to a Channel so an acquisition goroutine and a
// user facing goroutine can share one plot window.
type Plotter struct {
	mu      sync.Mutex
	ch      *Channel
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// PlotterOption applies an option to the plotter.
type PlotterOption func(*Plotter)

// WithPlotterLogger sets the logger for the plotter.
func WithPlotterLogger(log *zap.SugaredLogger) PlotterOption {
	return func(p *Plotter) { p.log = log }
}

// WithMetrics records every update in m.
func WithMetrics(m *metrics.Metrics) PlotterOption {
	return func(p *Plotter) { p.metrics = m }
}

// NewPlotter wraps ch. The plotter takes ownership of ch; release it with
// Plotter.Close.
func NewPlotter(ch *Channel, opts ...PlotterOption) *Plotter {
	p := Plotter{ch: ch, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&p)
	}
	return &p
}

// Update redraws the plot with s using the display state in sess. Nothing is
// sent while sess is paused. Once the plot window has gone away Update
// returns an error wrapping ErrPlotClosed, and the caller should stop
// updating.
func (p *Plotter) Update(sess *Session, s Series) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch.Closed() || p.ch.Broken() {
		return ErrPlotClosed
	}
	if sess.Paused {
		return nil
	}
	req := PlotRequest{
		Directives: sess.Directives(),
		Style:      sess.Style(),
		Series:     s,
	}
	if sess.SaveNext && sess.OutputFile != "" {
		req.Output = sess.OutputFile
		sess.SaveNext = false
	}
	st, err := p.ch.plot(req)
	if p.metrics != nil {
		p.metrics.ObservePlot(st.String(), s.Rows())
	}
	switch st {
	case StatusWriteFailed:
		p.log.Warnw("plot window gone, disabling updates", "error", err)
		return fmt.Errorf("%w: %w", ErrPlotClosed, err)
	case StatusSaveFailed:
		return fmt.Errorf("save %s: %w", req.Output, err)
	}
	if req.Output != "" {
		p.log.Infow("waveform saved", "file", req.Output, "rows", s.Rows())
	}
	return nil
}

// Command sends a raw plotter command, such as "replot".
func (p *Plotter) Command(format string, a ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Command(format, a...); err != nil {
		if errors.Is(err, ErrWriteFailed) {
			return fmt.Errorf("%w: %w", ErrPlotClosed, err)
		}
		return err
	}
	return nil
}

// Close tears down the plotter process. It is safe to call more than once.
func (p *Plotter) Close() (ExitStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, err := p.ch.Close()
	if p.metrics != nil {
		p.metrics.ObserveTeardown(st.AlreadyGone, err)
	}
	return st, err
}
