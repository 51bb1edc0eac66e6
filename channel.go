// Copyright (c) 2020–2024 The remotelab developers. All rights reserved.
// Project site: https://github.com/gotmc/remotelab
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package remotelab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultProgram is the plotting program started by Open. It is resolved
// using the executable search path.
const DefaultProgram = "gnuplot"

// Channel models one running plotting process connected through a pair of
// pipes: one feeding its standard input, one draining its standard output.
//
// A Channel has a single owner. It is not safe for concurrent writers; use a
// Plotter when updates come from more than one goroutine. Every Channel
// returned by Open must be released with exactly one call to Close.
type Channel struct {
	program string
	args    []string
	stderr  io.Writer
	log     *zap.SugaredLogger
	debug   bool

	cmd    *exec.Cmd
	stdin  *os.File // parent end, written by us
	stdout *os.File // parent end, read by us
	w      *bufio.Writer
	pid    int

	broken bool
	closed bool
	status ExitStatus
}

// ChannelOption applies an option to the channel.
type ChannelOption func(*Channel)

// WithProgram replaces DefaultProgram. Extra args are passed through
// unchanged; the plotter itself never gets flags from this package.
func WithProgram(name string, args ...string) ChannelOption {
	return func(c *Channel) {
		c.program = name
		c.args = args
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(log *zap.SugaredLogger) ChannelOption {
	return func(c *Channel) { c.log = log }
}

// WithDebug causes every script sent to the plotter to be logged.
func WithDebug() ChannelOption { return func(c *Channel) { c.debug = true } }

// WithStderr sets where the plotter's standard error goes. By default it is
// shared with the calling process so gnuplot diagnostics stay visible.
func WithStderr(w io.Writer) ChannelOption {
	return func(c *Channel) { c.stderr = w }
}

// Open starts the plotting program with its standard input and standard
// output redirected to freshly created pipes. The returned channel's Writer
// feeds the program and Reader drains whatever it prints.
//
// On failure the error is a *ProcessSpawnError and every pipe end created so
// far has been closed.
func Open(opts ...ChannelOption) (*Channel, error) {
	c := Channel{
		program: DefaultProgram,
		stderr:  os.Stderr,
		log:     zap.NewNop().Sugar(),
		pid:     -1,
	}
	for _, opt := range opts {
		opt(&c)
	}

	// childIn is read by the child, c.stdin is written by us.
	childIn, parentIn, err := os.Pipe()
	if err != nil {
		return nil, &ProcessSpawnError{Program: c.program, Err: fmt.Errorf("stdin pipe: %w", err)}
	}
	// parentOut is read by us, childOut is written by the child.
	parentOut, childOut, err := os.Pipe()
	if err != nil {
		err = multierr.Append(fmt.Errorf("stdout pipe: %w", err),
			multierr.Combine(childIn.Close(), parentIn.Close()))
		return nil, &ProcessSpawnError{Program: c.program, Err: err}
	}

	cmd := exec.Command(c.program, c.args...)
	cmd.Stdin = childIn
	cmd.Stdout = childOut
	cmd.Stderr = c.stderr
	if err := cmd.Start(); err != nil {
		err = multierr.Append(err, multierr.Combine(
			childIn.Close(), parentIn.Close(),
			parentOut.Close(), childOut.Close(),
		))
		c.log.Errorw("plotter failed to start", "program", c.program, "error", err)
		return nil, &ProcessSpawnError{Program: c.program, Err: err}
	}

	// The child holds its own copies now. Dropping ours lets the child see
	// EOF on stdin and lets writes fail with EPIPE once the child is gone.
	if err := multierr.Combine(childIn.Close(), childOut.Close()); err != nil {
		c.log.Warnw("closing child pipe ends", "error", err)
	}

	c.cmd = cmd
	c.stdin = parentIn
	c.stdout = parentOut
	c.w = bufio.NewWriter(parentIn)
	c.pid = cmd.Process.Pid
	c.log.Infow("plotter started", "program", c.program, "pid", c.pid)
	return &c, nil
}

// PID returns the process identifier of the plotter, or -1 once the channel
// has been closed.
func (c *Channel) PID() int { return c.pid }

// Writer returns the buffered stream feeding the plotter's standard input.
// Buffered data reaches the plotter only after Flush.
func (c *Channel) Writer() *bufio.Writer { return c.w }

// Reader returns the stream carrying the plotter's standard output.
func (c *Channel) Reader() io.Reader { return c.stdout }

// Broken reports whether a write to the plotter has failed.
func (c *Channel) Broken() bool { return c.broken }

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool { return c.closed }

// Command formats according to a format specifier if arguments are given and
// sends a single command line to the plotter, flushing it immediately.
func (c *Channel) Command(format string, a ...any) error {
	if c.closed || c.broken {
		return ErrWriteFailed
	}
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = strings.TrimSpace(cmd) + "\n"
	if c.debug {
		c.log.Debugw("plotter cmd", "cmd", cmd)
	}
	if _, err := c.w.WriteString(cmd); err != nil {
		return c.fail(err)
	}
	if err := c.w.Flush(); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Channel) fail(err error) error {
	c.broken = true
	c.log.Warnw("plotter stopped accepting input", "pid", c.pid, "error", err)
	return fmt.Errorf("%w: %w", ErrWriteFailed, err)
}
