// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package process supervises external build and flash tools: it spawns
// commands, captures their stdout and stderr as one sequenced line stream,
// and terminates whole process groups on cancellation.
package process

import (
	"context"
	"fmt"
)

// StreamID distinguishes the origin pipe of a captured line.
type StreamID int

const (
	Stdout StreamID = iota
	Stderr
)

func (s StreamID) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// OutputEvent is one captured line of process output. Seq is strictly
// increasing across both streams of one process, in the order the supervisor
// observed the lines.
type OutputEvent struct {
	Seq    uint64
	Stream StreamID
	Text   string
}

// Exit describes how a supervised process finished.
type Exit struct {
	// Code is the process exit code, -1 when the process was ended by a
	// signal.
	Code int
	// Cancelled reports that the exit was forced by Cancel or by context
	// cancellation rather than the process finishing on its own.
	Cancelled bool
}

// Command names one executable invocation. Path is used as given; callers
// resolve tools against their composed PATH beforehand.
type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string
}

// SpawnError reports that a process could not be started at all, as opposed
// to starting and failing.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Handle tracks one running process.
//
// Events must be drained; the channel is closed once both output pipes reach
// EOF. Wait and Cancel may be called from any goroutine.
type Handle interface {
	// Events returns the merged stdout/stderr line stream.
	Events() <-chan OutputEvent
	// Wait blocks until the process exits or ctx is done.
	Wait(ctx context.Context) (Exit, error)
	// Cancel asks the process group to terminate, escalating to a forced
	// kill after a grace period. Safe to call multiple times.
	Cancel()
}

// Supervisor starts external processes under output capture.
type Supervisor interface {
	// Spawn starts cmd. Startup failures are reported synchronously as a
	// *SpawnError with no handle. Cancelling ctx cancels the process.
	Spawn(ctx context.Context, cmd Command) (Handle, error)
}
