// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package classify

import (
	"strings"
	"testing"
)

func TestLoadTable(t *testing.T) {
	content := `
fallback: unknown_flash_error
rules:
  - pattern: "(?i)jtag chain broken"
    category: flash_protocol_error
  - pattern: "(?i)target voltage too low"
    category: device_not_found
`
	table, err := LoadTable(strings.NewReader(content))
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if table.Fallback != UnknownFlashError {
		t.Errorf("Fallback = %q, want %q", table.Fallback, UnknownFlashError)
	}
	if len(table.Rules) != 2 {
		t.Fatalf("len(Rules) = %d, want 2", len(table.Rules))
	}

	got := table.Classify(1, "Error: JTAG chain broken at TAP 0")
	if got.Category != FlashProtocolError {
		t.Errorf("Classify category = %q, want %q", got.Category, FlashProtocolError)
	}
	got = table.Classify(1, "something else entirely")
	if got.Category != UnknownFlashError {
		t.Errorf("Classify category = %q, want %q", got.Category, UnknownFlashError)
	}
}

func TestLoadTableErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing fallback",
			content: "rules:\n  - pattern: x\n    category: device_not_found\n",
			want:    "fallback category is required",
		},
		{
			name:    "unknown fallback",
			content: "fallback: nope\n",
			want:    "unknown fallback category",
		},
		{
			name:    "unknown category",
			content: "fallback: unknown_build_error\nrules:\n  - pattern: x\n    category: nope\n",
			want:    "unknown category",
		},
		{
			name:    "bad pattern",
			content: "fallback: unknown_build_error\nrules:\n  - pattern: \"[\"\n    category: compilation_failed\n",
			want:    "compiling pattern",
		},
		{
			name:    "missing pattern",
			content: "fallback: unknown_build_error\nrules:\n  - category: compilation_failed\n",
			want:    "pattern is required",
		},
		{
			name:    "unknown field",
			content: "fallback: unknown_build_error\nextra: true\n",
			want:    "decoding rule table",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadTable(strings.NewReader(tc.content))
			if err == nil {
				t.Fatal("LoadTable succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestLoadTableFileMissing(t *testing.T) {
	if _, err := LoadTableFile(t.TempDir() + "/absent.yaml"); err == nil {
		t.Fatal("LoadTableFile succeeded, want error")
	}
}
