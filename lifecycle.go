// Copyright (c) 2020–2024 The remotelab developers. All rights reserved.
// Project site: https://github.com/gotmc/remotelab
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package remotelab

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/multierr"
)

// ExitStatus describes how the plotting process ended.
type ExitStatus struct {
	PID      int
	Exited   bool // the process called exit
	Code     int  // exit code, -1 when signaled or unknown
	Signaled bool
	Signal   syscall.Signal

	// AlreadyGone is set when the process was no longer there to be
	// terminated: it had been reaped already, or Close was called before.
	AlreadyGone bool
}

func (s ExitStatus) String() string {
	var desc string
	switch {
	case s.Signaled:
		desc = fmt.Sprintf("pid %d killed by %s", s.PID, s.Signal)
	case s.Exited:
		desc = fmt.Sprintf("pid %d exited with code %d", s.PID, s.Code)
	default:
		desc = fmt.Sprintf("pid %d", s.PID)
	}
	if s.AlreadyGone {
		desc += " (already gone)"
	}
	return desc
}

// Close flushes and closes the plotter's input, asks the plotter to
// terminate with SIGTERM and waits for it to exit.
//
// A plotter that is already gone is not an error: the returned status has
// AlreadyGone set. Calling Close a second time does the same. The only
// failure specific to teardown is a *TerminationError from the wait itself.
func (c *Channel) Close() (ExitStatus, error) {
	if c.closed {
		st := c.status
		st.AlreadyGone = true
		return st, nil
	}
	c.closed = true
	pid := c.pid
	c.pid = -1

	var errs error
	if err := c.w.Flush(); err != nil && !isBrokenPipe(err) {
		errs = multierr.Append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := c.stdin.Close(); err != nil && !isBrokenPipe(err) {
		errs = multierr.Append(errs, fmt.Errorf("close stdin: %w", err))
	}

	st := ExitStatus{PID: pid, Code: -1}
	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			st.AlreadyGone = true
		} else {
			c.log.Warnw("signalling plotter", "pid", pid, "error", err)
		}
	}

	var exitErr *exec.ExitError
	switch err := c.cmd.Wait(); {
	case err == nil || errors.As(err, &exitErr):
		st.fill(c.cmd.ProcessState)
	case errors.Is(err, syscall.ECHILD):
		st.AlreadyGone = true
	default:
		errs = multierr.Append(errs, &TerminationError{PID: pid, Err: err})
	}

	if err := c.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = multierr.Append(errs, fmt.Errorf("close stdout: %w", err))
	}

	c.status = st
	c.log.Infow("plotter stopped", "status", st.String())
	return st, errs
}

func (s *ExitStatus) fill(ps *os.ProcessState) {
	if ps == nil {
		return
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		s.Exited = ps.Exited()
		s.Code = ps.ExitCode()
		return
	}
	switch {
	case ws.Signaled():
		s.Signaled = true
		s.Signal = ws.Signal()
	case ws.Exited():
		s.Exited = true
		s.Code = ws.ExitStatus()
	}
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}
