package remotelab

import (
	"bufio"
	"errors"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gotmc/remotelab/lib/metrics"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" XY ")
	require.NoError(t, err)
	require.Equal(t, ModeXY, m)

	_, err = ParseMode("polar")
	require.Error(t, err)
	require.Equal(t, "mode(7)", Mode(7).String())
}

func TestSessionYAML(t *testing.T) {
	in := Session{Title: "bench", Mode: ModeXY, YRange: Range{Min: -4, Max: 4}, Grid: true, SaveNext: true}
	data, err := yaml.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(data), "mode: xy")
	require.NotContains(t, string(data), "savenext")

	var out Session
	require.NoError(t, yaml.Unmarshal(data, &out))
	in.SaveNext = false
	require.Equal(t, in, out)
}

func TestDirectives(t *testing.T) {
	s := Session{
		Title:  "Bob's scope",
		XLabel: "sample",
		YLabel: "V",
		YRange: Range{Min: -2, Max: 2},
		Grid:   true,
	}
	require.Equal(t, "set title 'Bob''s scope'\n"+
		"set xlabel 'sample'\n"+
		"set ylabel 'V'\n"+
		"set autoscale x\n"+
		"set yrange [-2:2]\n"+
		"set grid\n", s.Directives())

	require.Equal(t, "set autoscale x\nset autoscale y\nunset grid\n", Session{}.Directives())
}

func TestSessionStyle(t *testing.T) {
	require.Equal(t, DefaultStyle, Session{}.Style())
	require.Equal(t, "using 1:2 with lines title 'XY'", Session{Mode: ModeXY}.Style())
}

func newCatPlotter(t *testing.T, opts ...PlotterOption) (*Plotter, *bufio.Scanner) {
	t.Helper()
	c, err := Open(WithProgram("cat"))
	require.NoError(t, err)
	p := NewPlotter(c, opts...)
	t.Cleanup(func() { p.Close() })
	return p, bufio.NewScanner(c.Reader())
}

// skipTo advances sc past the line want.
func skipTo(t *testing.T, sc *bufio.Scanner, want string) {
	t.Helper()
	for sc.Scan() {
		if sc.Text() == want {
			return
		}
	}
	t.Fatalf("never saw %q", want)
}

func TestPlotterUpdate(t *testing.T) {
	m := metrics.New()
	p, sc := newCatPlotter(t, WithMetrics(m))

	sess := Session{Title: "Ch1"}
	require.NoError(t, p.Update(&sess, Series{{1, 2, 3}}))
	require.True(t, sc.Scan())
	require.Equal(t, "set title 'Ch1'", sc.Text())
	skipTo(t, sc, "plot $waveform using 0:1 with lines title 'ch1'")

	require.Equal(t, 1.0, testutil.ToFloat64(m.Plots.WithLabelValues("ok")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.Samples))
}

func TestPlotterPaused(t *testing.T) {
	p, sc := newCatPlotter(t)

	sess := Session{Paused: true}
	require.NoError(t, p.Update(&sess, Series{{1}}))
	require.NoError(t, p.Command("replot"))

	// Nothing was sent ahead of the command.
	require.True(t, sc.Scan())
	require.Equal(t, "replot", sc.Text())
}

func TestPlotterSaveNext(t *testing.T) {
	p, _ := newCatPlotter(t)
	out := filepath.Join(t.TempDir(), "wave.dat")

	sess := Session{OutputFile: out, SaveNext: true}
	require.NoError(t, p.Update(&sess, Series{{1, 2}}))
	require.False(t, sess.SaveNext)
	got, err := LoadDataBlock(out)
	require.NoError(t, err)
	require.Equal(t, Series{{1, 2}}, got)

	// Without SaveNext the file is left alone.
	require.NoError(t, p.Update(&sess, Series{{9}}))
	got, err = LoadDataBlock(out)
	require.NoError(t, err)
	require.Equal(t, Series{{1, 2}}, got)
}

func TestPlotterSaveFailed(t *testing.T) {
	m := metrics.New()
	p, _ := newCatPlotter(t, WithMetrics(m))
	sess := Session{OutputFile: filepath.Join(t.TempDir(), "missing", "wave.dat"), SaveNext: true}

	err := p.Update(&sess, Series{{1}})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrPlotClosed))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Plots.WithLabelValues("save failed")))
}

func TestPlotterWindowClosed(t *testing.T) {
	m := metrics.New()
	c, err := Open(WithProgram("cat"))
	require.NoError(t, err)
	p := NewPlotter(c, WithMetrics(m))
	require.NoError(t, syscall.Kill(c.PID(), syscall.SIGKILL))

	var sess Session
	big := Series{make([]float64, 1000)}
	require.Eventually(t, func() bool {
		return errors.Is(p.Update(&sess, big), ErrPlotClosed)
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Plots.WithLabelValues("write failed")))

	// Later updates are refused without touching the pipe.
	require.ErrorIs(t, p.Update(&sess, big), ErrPlotClosed)
	require.ErrorIs(t, p.Command("replot"), ErrWriteFailed)

	st, err := p.Close()
	require.NoError(t, err)
	require.True(t, st.Signaled)

	st, err = p.Close()
	require.NoError(t, err)
	require.True(t, st.AlreadyGone)
	teardowns := testutil.ToFloat64(m.Teardowns.WithLabelValues("terminated")) +
		testutil.ToFloat64(m.Teardowns.WithLabelValues("already_gone"))
	require.Equal(t, 2.0, teardowns)
	require.ErrorIs(t, p.Update(&sess, big), ErrPlotClosed)
}
