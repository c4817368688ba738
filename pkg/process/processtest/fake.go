// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package processtest provides a scripted Supervisor for exercising job
// control without spawning real tools.
package processtest

import (
	"context"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/google/boardsmith/pkg/process"
)

// Line is one scripted output line.
type Line struct {
	Stream process.StreamID
	Text   string
}

// Script describes the behavior of one expected Spawn.
type Script struct {
	// SpawnErr, when set, fails the Spawn synchronously.
	SpawnErr error
	// Lines are emitted in order before the exit is reported.
	Lines []Line
	// ExitCode is the scripted exit status.
	ExitCode int
	// BlockUntilCancel keeps the process "running" after its lines until
	// Cancel or context cancellation; the exit then reports Cancelled.
	BlockUntilCancel bool
}

// Fake is a scripted Supervisor. Scripts are consumed in Spawn order, and a
// Spawn beyond the scripted list fails.
type Fake struct {
	mu      sync.Mutex
	scripts []Script
	spawned []process.Command
}

func NewFake(scripts ...Script) *Fake {
	return &Fake{scripts: scripts}
}

// Spawned returns the commands observed so far.
func (f *Fake) Spawned() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.spawned)
}

func (f *Fake) Spawn(ctx context.Context, cmd process.Command) (process.Handle, error) {
	f.mu.Lock()
	if len(f.scripts) == 0 {
		f.mu.Unlock()
		return nil, &process.SpawnError{Path: cmd.Path, Err: errors.New("no script for command")}
	}
	s := f.scripts[0]
	f.scripts = f.scripts[1:]
	f.spawned = append(f.spawned, cmd)
	f.mu.Unlock()

	if s.SpawnErr != nil {
		return nil, &process.SpawnError{Path: cmd.Path, Err: s.SpawnErr}
	}
	h := &fakeHandle{
		events: make(chan process.OutputEvent, len(s.Lines)),
		done:   make(chan struct{}),
		cancel: make(chan struct{}),
	}
	for i, l := range s.Lines {
		h.events <- process.OutputEvent{Seq: uint64(i + 1), Stream: l.Stream, Text: l.Text}
	}
	close(h.events)
	go func() {
		exit := process.Exit{Code: s.ExitCode}
		if s.BlockUntilCancel {
			select {
			case <-h.cancel:
				exit = process.Exit{Code: -1, Cancelled: true}
			case <-ctx.Done():
				exit = process.Exit{Code: -1, Cancelled: true}
			}
		}
		h.exit = exit
		close(h.done)
	}()
	return h, nil
}

type fakeHandle struct {
	events     chan process.OutputEvent
	done       chan struct{}
	cancel     chan struct{}
	cancelOnce sync.Once
	exit       process.Exit
}

func (h *fakeHandle) Events() <-chan process.OutputEvent { return h.events }

func (h *fakeHandle) Wait(ctx context.Context) (process.Exit, error) {
	select {
	case <-h.done:
		return h.exit, nil
	case <-ctx.Done():
		return process.Exit{}, ctx.Err()
	}
}

func (h *fakeHandle) Cancel() {
	h.cancelOnce.Do(func() { close(h.cancel) })
}
