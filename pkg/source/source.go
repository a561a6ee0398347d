// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package source provides dependency-free text utilities for the crispy
// script convention: extracting the embedded CRISPY_PARAMS macro, stripping
// the shebang and macro lines before a source file is handed to the
// compiler, and shell-expanding the macro's value.
package source

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// paramsDirective is the literal text the extractor scans for, anywhere in
// a source file. It is not valid Go syntax, which is exactly why it must be
// stripped before the source reaches `go build` -- the same reason the
// original C implementation strips it before handing source to gcc.
const paramsDirective = "#define CRISPY_PARAMS"

// ExtractParams scans src line by line for the first line whose
// non-whitespace prefix matches "#define CRISPY_PARAMS" and returns the
// contents of the quoted string literal that follows on that line. The
// second return value is false if no such line exists ("not present" per
// spec.md §4.3).
func ExtractParams(src []byte) (string, bool) {
	for _, line := range splitLinesKeepEnds(src) {
		trimmed := strings.TrimSpace(string(line))
		if !strings.HasPrefix(trimmed, paramsDirective) {
			continue
		}
		rest := strings.TrimSpace(trimmed[len(paramsDirective):])
		val, ok := extractQuoted(rest)
		if !ok {
			return "", false
		}
		return val, true
	}
	return "", false
}

// extractQuoted returns the contents of the first "..." string literal in s.
func extractQuoted(s string) (string, bool) {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return "", false
	}
	return s[start+1 : start+1+end], true
}

// StripHeader returns a copy of src with two specific lines removed, in
// this order: the first line if it starts with "#!" (a shebang), and the
// first subsequent line containing the CRISPY_PARAMS directive. Every
// other line, including its trailing newline, is preserved verbatim. This
// is what is handed to the Go compiler in place of the original source.
func StripHeader(src []byte) []byte {
	lines := splitLinesKeepEnds(src)
	var out bytes.Buffer

	i := 0
	if i < len(lines) && bytes.HasPrefix(lines[i], []byte("#!")) {
		i++
	}
	strippedParams := false
	for ; i < len(lines); i++ {
		line := lines[i]
		if !strippedParams && strings.Contains(strings.TrimSpace(string(line)), paramsDirective) {
			strippedParams = true
			continue
		}
		out.Write(line)
	}
	return out.Bytes()
}

// splitLinesKeepEnds splits src into lines, each retaining its trailing
// newline (if any), so StripHeader can reassemble the remainder byte for
// byte.
func splitLinesKeepEnds(src []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range src {
		if b == '\n' {
			lines = append(lines, src[start:i+1])
			start = i + 1
		}
	}
	if start < len(src) {
		lines = append(lines, src[start:])
	}
	return lines
}

// ShellExpand shell-expands params through `/bin/sh -c "printf '%s ' <params>"`
// and returns the result trimmed of trailing whitespace. An empty or
// missing params value returns the empty string without invoking a shell.
// The trailing space in the printf format preserves word boundaries from
// command substitutions (e.g. pkg-config-style output) -- this is the
// fixed form mandated by spec.md §9, replacing the original's inconsistent
// use of "%s " in one code path and "%s" in another.
func ShellExpand(ctx context.Context, params string) (string, error) {
	if strings.TrimSpace(params) == "" {
		return "", nil
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", "printf '%s ' "+params) //nolint:gosec // G204: intentional shell expansion of CRISPY_PARAMS
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimRight(stdout.String(), " \t\r\n"), nil
}
