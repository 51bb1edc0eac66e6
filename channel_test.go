package remotelab

import (
	"bufio"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// openCat starts cat as a stand-in plotter: every line written comes back
// on Reader.
func openCat(t *testing.T, opts ...ChannelOption) *Channel {
	t.Helper()
	c, err := Open(append([]ChannelOption{WithProgram("cat")}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpenMissingProgram(t *testing.T) {
	_, err := Open(WithProgram("remotelab-no-such-plotter"))
	require.Error(t, err)

	var spawnErr *ProcessSpawnError
	require.True(t, errors.As(err, &spawnErr))
	require.Equal(t, "remotelab-no-such-plotter", spawnErr.Program)
	require.Contains(t, err.Error(), "spawn remotelab-no-such-plotter")
}

func TestOpen(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := openCat(t, WithLogger(zap.New(core).Sugar()))

	require.Positive(t, c.PID())
	require.False(t, c.Broken())
	require.False(t, c.Closed())
	require.NotNil(t, c.Writer())
	require.Equal(t, 1, logs.FilterMessage("plotter started").Len())
}

func TestCommand(t *testing.T) {
	c := openCat(t)
	require.NoError(t, c.Command("set title '%s'", "Ch1"))
	require.NoError(t, c.Command("  replot  "))
	require.NoError(t, c.Command("%s", "100%"))

	sc := bufio.NewScanner(c.Reader())
	for _, want := range []string{"set title 'Ch1'", "replot", "100%"} {
		require.True(t, sc.Scan())
		require.Equal(t, want, sc.Text())
	}
}

func TestCommandAfterClose(t *testing.T) {
	c := openCat(t)
	_, err := c.Close()
	require.NoError(t, err)
	require.ErrorIs(t, c.Command("replot"), ErrWriteFailed)
}

func TestDebugLogsCommands(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := openCat(t, WithLogger(zap.New(core).Sugar()), WithDebug())
	require.NoError(t, c.Command("replot"))
	require.Equal(t, 1, logs.FilterMessage("plotter cmd").Len())
}

func TestWriteBeforeChildReads(t *testing.T) {
	// sleep never reads stdin; the pipe buffer takes the first write.
	c, err := Open(WithProgram("sleep", "60"))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Command("set grid"))
	require.Equal(t, StatusOK, c.Plot(PlotRequest{Series: Series{{1, 2}}}))
}
