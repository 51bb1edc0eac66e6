// Copyright (c) 2020–2024 The remotelab developers. All rights reserved.
// Project site: https://github.com/gotmc/remotelab
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package remotelab

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gotmc/remotelab/lib/cmdlog"
)

// Status is the result of a plot call.
type Status int

// Plot results. Anything other than StatusOK is non-zero.
const (
	StatusOK Status = iota
	StatusWriteFailed
	StatusSaveFailed
)

var statusDesc = map[Status]string{
	StatusOK:          "ok",
	StatusWriteFailed: "write failed",
	StatusSaveFailed:  "save failed",
}

func (s Status) String() string {
	if d, ok := statusDesc[s]; ok {
		return d
	}
	return fmt.Sprintf("status(%d)", int(s))
}

const (
	// DataBlockName names the gnuplot datablock holding the samples.
	DataBlockName = "$waveform"
	// EndOfData terminates the datablock.
	EndOfData = "EOD"
	// DefaultStyle is used when a request has no style.
	DefaultStyle = "with lines"
)

// PlotRequest bundles everything needed for one redraw.
type PlotRequest struct {
	// Directives are setup lines sent verbatim before the data.
	Directives string
	// Style is appended to every per-trace plot clause, e.g. "with points".
	// A style starting with "using" is taken as the whole plot clause and
	// is emitted once, which is how an XY plot selects its columns.
	Style string
	// Output, when set, names a file that receives a copy of the data.
	Output string
	Series Series
}

// Plot sends directives, the data block for s and a plot command to w, then
// flushes w if it is buffered. When output is not empty the data is also
// saved to that file.
//
// Plot never panics on a closed plotter: a failed write, typically because
// the plot window was closed, is reported as StatusWriteFailed.
func Plot(w io.Writer, directives, style, output string, s Series) Status {
	st, _ := plot(w, PlotRequest{Directives: directives, Style: style, Output: output, Series: s})
	return st
}

func plot(w io.Writer, req PlotRequest) (Status, error) {
	var saveErr error
	if req.Output != "" {
		saveErr = SaveDataBlock(req.Output, req.Series)
	}
	if err := writeScript(w, req); err != nil {
		return StatusWriteFailed, err
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return StatusWriteFailed, err
		}
	}
	if saveErr != nil {
		return StatusSaveFailed, saveErr
	}
	return StatusOK, nil
}

func writeScript(w io.Writer, req PlotRequest) error {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	if d := strings.TrimSpace(req.Directives); d != "" {
		bw.WriteString(d)
		bw.WriteByte('\n')
	}
	fmt.Fprintf(bw, "%s << %s\n", DataBlockName, EndOfData)
	if err := WriteDataBlock(bw, req.Series); err != nil {
		return err
	}
	bw.WriteString(EndOfData + "\n")
	if cmd := plotCommand(req.Style, req.Series); cmd != "" {
		bw.WriteString(cmd)
		bw.WriteByte('\n')
	}
	if !ok {
		return bw.Flush()
	}
	// bufio.Writer errors are sticky; this reports any from the writes above.
	_, err := bw.Write(nil)
	return err
}

// plotCommand returns the plot line for the traces in s, or "" when s has
// no samples at all.
func plotCommand(style string, s Series) string {
	if s.Rows() == 0 {
		return ""
	}
	n := len(s)
	style = strings.TrimSpace(style)
	if style == "" {
		style = DefaultStyle
	}
	if strings.HasPrefix(style, "using") {
		return fmt.Sprintf("plot %s %s", DataBlockName, style)
	}
	clauses := make([]string, 0, n)
	for j := 1; j <= n; j++ {
		clauses = append(clauses,
			fmt.Sprintf("%s using 0:%d %s title 'ch%d'", DataBlockName, j, style, j))
	}
	return "plot " + strings.Join(clauses, ", ")
}

// Plot sends req to the plotter. Once a write has failed the channel is
// marked broken and further calls return StatusWriteFailed immediately.
func (c *Channel) Plot(req PlotRequest) Status {
	st, err := c.plot(req)
	if err != nil && st == StatusSaveFailed {
		c.log.Errorw("saving waveform", "file", req.Output, "error", err)
	}
	return st
}

func (c *Channel) plot(req PlotRequest) (Status, error) {
	if c.closed || c.broken {
		return StatusWriteFailed, ErrWriteFailed
	}
	if c.debug {
		cmdlog.Script(c.log, req.Directives)
		cmdlog.Script(c.log, plotCommand(req.Style, req.Series))
	}
	st, err := plot(c.w, req)
	if st == StatusWriteFailed {
		return st, c.fail(err)
	}
	return st, err
}
