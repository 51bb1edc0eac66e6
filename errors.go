// Copyright (c) 2020–2024 The remotelab developers. All rights reserved.
// Project site: https://github.com/gotmc/remotelab
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package remotelab

import (
	"errors"
	"fmt"
)

var (
	// ErrWriteFailed is returned when the plotter stopped accepting input,
	// usually because the plot window was closed.
	ErrWriteFailed = errors.New("write to plotter failed")

	// ErrPlotClosed is returned by Plotter.Update once the channel is broken
	// or closed. Callers should stop issuing updates.
	ErrPlotClosed = errors.New("plot channel closed")
)

// ProcessSpawnError reports that the plotting program could not be started.
type ProcessSpawnError struct {
	Program string
	Err     error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %s", e.Program, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error { return e.Err }

// TerminationError reports that waiting for the plotting program failed for
// a reason other than the process being already gone.
type TerminationError struct {
	PID int
	Err error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("terminate pid %d: %s", e.PID, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }
