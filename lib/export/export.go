// Package export turns saved waveform files into images by running the
// plotting program once in batch mode.
package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gotmc/remotelab"
)

// Renderer runs a one-shot plotter to draw a data file into a PNG.
type Renderer struct {
	Program string   // defaults to remotelab.DefaultProgram
	Args    []string // extra arguments before the script is read from stdin
	Width   int
	Height  int
	Title   string
	Log     *zap.SugaredLogger
}

// Filename returns prefix plus, if stamp is set, the current time, plus ext.
// Stamping avoids overwriting earlier captures.
func Filename(prefix, ext string, stamp bool) string {
	name := prefix
	if stamp {
		name += "_" + time.Now().Format("02Jan_15_04_05.000")
	}
	return name + ext
}

// Script returns the batch script drawing traces columns of in into out.
func (r Renderer) Script(in, out string, traces int) string {
	w, h := r.Width, r.Height
	if w <= 0 || h <= 0 {
		w, h = 1024, 768
	}
	var b strings.Builder
	fmt.Fprintf(&b, "set terminal png size %d,%d\n", w, h)
	fmt.Fprintf(&b, "set output '%s'\n", escape(out))
	if r.Title != "" {
		fmt.Fprintf(&b, "set title '%s'\n", escape(r.Title))
	}
	b.WriteString("set grid\n")
	clauses := make([]string, 0, traces)
	for j := 1; j <= traces; j++ {
		clauses = append(clauses, fmt.Sprintf("'%s' using 0:%d with lines title 'ch%d'", escape(in), j, j))
	}
	if len(clauses) > 0 {
		b.WriteString("plot " + strings.Join(clauses, ", ") + "\n")
	}
	b.WriteString("unset output\n")
	return b.String()
}

// Render draws the data file in (as written by remotelab.SaveDataBlock) into
// the PNG file out.
func (r Renderer) Render(ctx context.Context, in, out string) error {
	log := r.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s, err := remotelab.LoadDataBlock(in)
	if err != nil {
		return fmt.Errorf("reading %s: %w", in, err)
	}
	if len(s) == 0 {
		return fmt.Errorf("%s holds no traces", in)
	}

	prog := r.Program
	if prog == "" {
		prog = remotelab.DefaultProgram
	}
	cli := exec.CommandContext(ctx, prog, r.Args...)
	cli.Stdin = strings.NewReader(r.Script(in, out, len(s)))
	cli.Stdout, cli.Stderr = os.Stderr, os.Stderr
	log.Debugw("running", "args", cli.Args)
	if err := cli.Run(); err != nil {
		return fmt.Errorf("%s: %w", prog, err)
	}

	fi, err := os.Stat(out)
	if err != nil {
		return err
	}
	log.Infow("rendered", "file", out, "size", fi.Size())
	return nil
}

// escape doubles single quotes for a gnuplot single quoted string.
func escape(s string) string { return strings.ReplaceAll(s, "'", "''") }
