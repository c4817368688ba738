// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package classify reduces the exit status and diagnostic output of finished
// build and flash stages to structured failure categories using ordered,
// data-driven rule tables.
package classify

import (
	"regexp"
	"strings"
)

// Category identifies the structured failure kind of a finished job. The
// empty category means success.
type Category string

const (
	// Source preparation failures.
	SourceNetworkUnavailable Category = "source_network_unavailable"
	SourceRevisionNotFound   Category = "source_revision_not_found"
	SourceFilesystemError    Category = "source_filesystem_error"

	// Process startup failures.
	ToolchainMissing Category = "toolchain_missing"
	SpawnFailed      Category = "spawn_failed"

	// Build failures.
	DependencyResolutionFailed Category = "dependency_resolution_failed"
	CompilationFailed          Category = "compilation_failed"
	ArtifactMissing            Category = "artifact_missing"
	UnknownBuildError          Category = "unknown_build_error"

	// Flash failures.
	DeviceNotFound        Category = "device_not_found"
	FlashPermissionDenied Category = "flash_permission_denied"
	FlashProtocolError    Category = "flash_protocol_error"
	UnknownFlashError     Category = "unknown_flash_error"

	// Job lifecycle.
	Cancelled Category = "cancelled"
)

var known = map[Category]bool{
	SourceNetworkUnavailable:   true,
	SourceRevisionNotFound:     true,
	SourceFilesystemError:      true,
	ToolchainMissing:           true,
	SpawnFailed:                true,
	DependencyResolutionFailed: true,
	CompilationFailed:          true,
	ArtifactMissing:            true,
	UnknownBuildError:          true,
	DeviceNotFound:             true,
	FlashPermissionDenied:      true,
	FlashProtocolError:         true,
	UnknownFlashError:          true,
	Cancelled:                  true,
}

// Known reports whether c is one of the defined categories.
func Known(c Category) bool {
	return known[c]
}

// Rule maps an output pattern to a failure category.
type Rule struct {
	Pattern  *regexp.Regexp
	Category Category
}

// Table is an ordered rule list with a fallback for unmatched failures.
// Earlier rules take precedence over later ones.
type Table struct {
	Rules    []Rule
	Fallback Category
}

// Finding is the outcome of classifying one finished stage.
type Finding struct {
	Category Category
	// Line is the output line the winning rule matched, empty when the
	// fallback applied or the stage succeeded.
	Line string
}

// Classify reduces an exit code and the retained output tail to a Finding.
// Exit code zero classifies as success regardless of output. Otherwise rules
// are consulted in table order against each line of the tail; the first rule
// with a matching line wins, and an unmatched tail yields the fallback.
func (t Table) Classify(exitCode int, tail string) Finding {
	if exitCode == 0 {
		return Finding{}
	}
	lines := strings.Split(tail, "\n")
	for _, r := range t.Rules {
		for _, line := range lines {
			if r.Pattern.MatchString(line) {
				return Finding{Category: r.Category, Line: strings.TrimSpace(line)}
			}
		}
	}
	return Finding{Category: t.Fallback}
}
