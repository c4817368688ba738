// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassifySuccess(t *testing.T) {
	got := DefaultBuildTable().Classify(0, "error: this line must be ignored\n")
	if diff := cmp.Diff(Finding{}, got); diff != "" {
		t.Errorf("Classify mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyBuildFailures(t *testing.T) {
	testCases := []struct {
		name string
		tail string
		want Category
	}{
		{
			name: "missing cross compiler",
			tail: "make: entering directory\nsh: 1: arm-none-eabi-gcc: command not found\nmake: *** [all] Error 127",
			want: ToolchainMissing,
		},
		{
			name: "windows missing tool",
			tail: "'avr-gcc' is not recognized as an internal or external command,\noperable program or batch file.",
			want: ToolchainMissing,
		},
		{
			name: "execvp missing binary",
			tail: "make: avr-objcopy: No such file or directory",
			want: ToolchainMissing,
		},
		{
			name: "submodule fetch offline",
			tail: "fatal: unable to access 'https://github.com/lib/lufa/': Could not resolve host: github.com",
			want: DependencyResolutionFailed,
		},
		{
			name: "pip resolution failure",
			tail: "ERROR: No matching distribution found for milc>=1.4.2",
			want: DependencyResolutionFailed,
		},
		{
			name: "compile error",
			tail: "keyboards/atreus/keymap.c:12:3: error: 'KC_FOO' undeclared here",
			want: CompilationFailed,
		},
		{
			name: "rust compile error",
			tail: "error[E0432]: unresolved import `embedded_hal::digital`",
			want: CompilationFailed,
		},
		{
			name: "linker failure",
			tail: "main.c:(.text+0x1c): undefined reference to `matrix_init_user'\ncollect2: ld returned 1 exit status",
			want: CompilationFailed,
		},
		{
			name: "unmatched output falls back",
			tail: "make: *** [firmware.hex] Error 2",
			want: UnknownBuildError,
		},
		{
			name: "empty tail falls back",
			tail: "",
			want: UnknownBuildError,
		},
	}
	table := DefaultBuildTable()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := table.Classify(2, tc.tail)
			if got.Category != tc.want {
				t.Errorf("Classify category = %q, want %q (line %q)", got.Category, tc.want, got.Line)
			}
		})
	}
}

func TestClassifyFlashFailures(t *testing.T) {
	testCases := []struct {
		name string
		tail string
		want Category
	}{
		{
			name: "dfu-util no device",
			tail: "dfu-util 0.11\nNo DFU capable USB device available",
			want: DeviceNotFound,
		},
		{
			name: "bootloader absent",
			tail: "Bootloader not found. Trying again in 5s.",
			want: DeviceNotFound,
		},
		{
			name: "serial port missing",
			tail: `avrdude: ser_open(): can't open device "/dev/ttyACM0": No such file or directory`,
			want: DeviceNotFound,
		},
		{
			name: "udev permissions",
			tail: `avrdude: ser_open(): can't open device "/dev/ttyACM0": Permission denied`,
			want: FlashPermissionDenied,
		},
		{
			name: "stk500 out of sync",
			tail: "avrdude: stk500_recv(): programmer is not responding\navrdude: stk500_getsync() attempt 1 of 10: not in sync: resp=0x00",
			want: FlashProtocolError,
		},
		{
			name: "verification mismatch",
			tail: "Verification failed at address 0x0800",
			want: FlashProtocolError,
		},
		{
			name: "unmatched output falls back",
			tail: "flash tool exploded in a novel way",
			want: UnknownFlashError,
		},
	}
	table := DefaultFlashTable()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := table.Classify(1, tc.tail)
			if got.Category != tc.want {
				t.Errorf("Classify category = %q, want %q (line %q)", got.Category, tc.want, got.Line)
			}
		})
	}
}

func TestClassifyRuleOrderWins(t *testing.T) {
	// The tail carries both a compiler diagnostic and a missing-toolchain
	// line; the earlier toolchain rule must win even though the compile rule
	// would also match.
	tail := "config.h:3:10: error: missing terminator\nsh: qmk: command not found"
	got := DefaultBuildTable().Classify(1, tail)
	if got.Category != ToolchainMissing {
		t.Errorf("Classify category = %q, want %q", got.Category, ToolchainMissing)
	}
}

func TestClassifyReportsMatchingLine(t *testing.T) {
	tail := "before\n  sh: 1: cmake: command not found  \nafter"
	got := DefaultBuildTable().Classify(1, tail)
	want := Finding{Category: ToolchainMissing, Line: "sh: 1: cmake: command not found"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify mismatch (-want +got):\n%s", diff)
	}
}

func TestKnown(t *testing.T) {
	if !Known(DeviceNotFound) {
		t.Error("Known(DeviceNotFound) = false")
	}
	if Known(Category("made_up")) {
		t.Error(`Known("made_up") = true`)
	}
	if Known(Category("")) {
		t.Error(`Known("") = true`)
	}
}
