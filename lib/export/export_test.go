package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gotmc/remotelab"
)

func TestScript(t *testing.T) {
	r := Renderer{Width: 640, Height: 480, Title: "Bob's scope"}
	got := r.Script("in.dat", "out.png", 2)
	require.Equal(t, strings.Join([]string{
		"set terminal png size 640,480",
		"set output 'out.png'",
		"set title 'Bob''s scope'",
		"set grid",
		"plot 'in.dat' using 0:1 with lines title 'ch1', 'in.dat' using 0:2 with lines title 'ch2'",
		"unset output",
		"",
	}, "\n"), got)
}

func TestFilename(t *testing.T) {
	require.Equal(t, "capture.dat", Filename("capture", ".dat", false))
	name := Filename("capture", ".dat", true)
	require.True(t, strings.HasPrefix(name, "capture_"))
	require.True(t, strings.HasSuffix(name, ".dat"))
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "wave.dat")
	out := filepath.Join(dir, "wave.png")
	script := filepath.Join(dir, "script.gp")
	require.NoError(t, remotelab.SaveDataBlock(in, remotelab.Series{{1, 2, 3}}))

	// Stand-in plotter: keep the script and produce the output file.
	r := Renderer{Program: "sh", Args: []string{"-c", `cat > "$0" && touch "$1"`, script, out}}
	require.NoError(t, r.Render(context.Background(), in, out))

	data, err := os.ReadFile(script)
	require.NoError(t, err)
	require.Contains(t, string(data), "using 0:1 with lines")
	_, err = os.Stat(out)
	require.NoError(t, err)
}

func TestRenderErrors(t *testing.T) {
	dir := t.TempDir()
	r := Renderer{Program: "true"}
	require.Error(t, r.Render(context.Background(), filepath.Join(dir, "missing.dat"), "x.png"))

	empty := filepath.Join(dir, "empty.dat")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0o644))
	require.Error(t, r.Render(context.Background(), empty, "x.png"))

	in := filepath.Join(dir, "wave.dat")
	require.NoError(t, remotelab.SaveDataBlock(in, remotelab.Series{{1}}))
	r.Program = "false"
	require.Error(t, r.Render(context.Background(), in, filepath.Join(dir, "x.png")))
}
