// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package tailbuf retains the most recent lines of a line stream. Job
// control feeds it every captured output line and derives the diagnostic
// tail of a finished stage from its contents.
package tailbuf

import (
	"strings"
	"sync"
)

// Buffer is a thread-safe ring of the most recent lines appended to it.
// Appending beyond capacity evicts the oldest retained line.
type Buffer struct {
	mu    sync.Mutex
	lines []string
	max   int
	next  int
	full  bool
}

// New creates a Buffer retaining at most max lines.
func New(max int) *Buffer {
	if max <= 0 {
		panic("capacity must be positive")
	}
	return &Buffer{lines: make([]string, max), max: max}
}

// Append records one line.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[b.next] = line
	b.next = (b.next + 1) % b.max
	if b.next == 0 {
		b.full = true
	}
}

// Lines returns the retained lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// Join returns the retained lines, oldest first, joined with newlines.
func (b *Buffer) Join() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.snapshot(), "\n")
}

// Last returns the most recent non-blank line, or "" when none is retained.
func (b *Buffer) Last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := b.snapshot()
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

// Len returns the number of retained lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return b.max
	}
	return b.next
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = 0
	b.full = false
}

func (b *Buffer) snapshot() []string {
	if !b.full {
		return append([]string(nil), b.lines[:b.next]...)
	}
	out := make([]string, 0, b.max)
	out = append(out, b.lines[b.next:]...)
	return append(out, b.lines[:b.next]...)
}
