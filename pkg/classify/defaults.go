// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

package classify

import "regexp"

func rule(pattern string, c Category) Rule {
	return Rule{Pattern: regexp.MustCompile(pattern), Category: c}
}

// DefaultBuildTable classifies firmware build failures. Rule order is match
// precedence: toolchain presence before dependency fetching before compiler
// diagnostics, so that a missing cross-compiler is never misread as a
// compile error.
func DefaultBuildTable() Table {
	return Table{
		Fallback: UnknownBuildError,
		Rules: []Rule{
			rule(`(?i)command not found`, ToolchainMissing),
			rule(`(?i)not recognized as an internal or external command`, ToolchainMissing),
			rule(`(?i)(gcc|g\+\+|ld|objcopy|cmake|ninja|make): [^:]*No such file or directory`, ToolchainMissing),
			rule(`(?i)(could not resolve host|connection (refused|reset|timed out)|temporary failure in name resolution)`, DependencyResolutionFailed),
			rule(`(?i)(failed to (fetch|download)|no matching distribution found|unable to locate package|cannot find module)`, DependencyResolutionFailed),
			rule(`(?i)undefined reference to`, CompilationFailed),
			rule(`(?i)ld returned \d+ exit status`, CompilationFailed),
			rule(`(?i)error(\[E\d+\])?: `, CompilationFailed),
		},
	}
}

// DefaultFlashTable classifies flash tool failures. Permission diagnostics
// outrank device-presence ones: a device the tool cannot open for lack of
// permissions is present.
func DefaultFlashTable() Table {
	return Table{
		Fallback: UnknownFlashError,
		Rules: []Rule{
			rule(`(?i)(permission denied|access denied|operation not permitted|insufficient permissions)`, FlashPermissionDenied),
			rule(`(?i)no dfu capable usb device`, DeviceNotFound),
			rule(`(?i)(device|programmer|board|bootloader) not (found|present|detected|connected)`, DeviceNotFound),
			rule(`(?i)(can't|cannot|could not|unable to|failed to) (find|open|locate|access) (the )?([a-z0-9]+ )?(device|port)`, DeviceNotFound),
			rule(`(?i)no such device`, DeviceNotFound),
			rule(`(?i)(verification|verify|checksum) (failed|mismatch)`, FlashProtocolError),
			rule(`(?i)(protocol error|unexpected (reply|response)|handshake fail|time[d ]?out waiting)`, FlashProtocolError),
			rule(`(?i)(not in sync|resp=0x)`, FlashProtocolError),
		},
	}
}
