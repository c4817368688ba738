// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Firmware builds occasionally emit very long single lines (linker maps,
// progress bars rewritten without newlines).
const maxLineSize = 1024 * 1024

// Local runs commands on the host. Children are placed in their own process
// group so that cancellation reaches the whole build tree.
type Local struct {
	// GracePeriod bounds how long a cancelled process gets between the
	// termination request and a forced kill.
	GracePeriod time.Duration
}

// NewLocal returns a Local supervisor with a 5 second termination grace
// period.
func NewLocal() *Local {
	return &Local{GracePeriod: 5 * time.Second}
}

func (l *Local) Spawn(ctx context.Context, cmd Command) (Handle, error) {
	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	setProcessGroup(c)
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}
	if err := c.Start(); err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}
	h := &localHandle{
		cmd:    c,
		grace:  l.GracePeriod,
		events: make(chan OutputEvent, 64),
		done:   make(chan struct{}),
	}
	h.wg.Add(2)
	go h.capture(stdout, Stdout)
	go h.capture(stderr, Stderr)
	go h.reap()
	go h.watch(ctx)
	return h, nil
}

type localHandle struct {
	cmd    *exec.Cmd
	grace  time.Duration
	events chan OutputEvent

	emitMu sync.Mutex
	seq    uint64
	wg     sync.WaitGroup

	cancelOnce sync.Once
	cancelled  atomic.Bool

	exit Exit
	done chan struct{}
}

func (h *localHandle) Events() <-chan OutputEvent { return h.events }

// capture scans one pipe line-wise. Stamping and sending happen under a
// shared lock so that channel order agrees with sequence order.
func (h *localHandle) capture(pipe io.Reader, stream StreamID) {
	defer h.wg.Done()
	s := bufio.NewScanner(pipe)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for s.Scan() {
		h.emitMu.Lock()
		h.seq++
		h.events <- OutputEvent{Seq: h.seq, Stream: stream, Text: s.Text()}
		h.emitMu.Unlock()
	}
}

// reap closes the event stream once both pipes drain, then collects the exit
// status. Pipes must be fully consumed before exec.Cmd.Wait.
func (h *localHandle) reap() {
	h.wg.Wait()
	close(h.events)
	err := h.cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		}
	}
	h.exit = Exit{Code: code, Cancelled: h.cancelled.Load()}
	close(h.done)
}

func (h *localHandle) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		h.Cancel()
	case <-h.done:
	}
}

func (h *localHandle) Wait(ctx context.Context) (Exit, error) {
	select {
	case <-h.done:
		return h.exit, nil
	case <-ctx.Done():
		return Exit{}, ctx.Err()
	}
}

func (h *localHandle) Cancel() {
	h.cancelOnce.Do(func() {
		h.cancelled.Store(true)
		terminate(h.cmd.Process)
		go func() {
			select {
			case <-h.done:
			case <-time.After(h.grace):
				kill(h.cmd.Process)
			}
		}()
	})
}
