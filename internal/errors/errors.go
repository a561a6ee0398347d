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

// Package errors implements crispy's error taxonomy: a UserError carrying
// a short title, a longer detail string, an actionable suggestion, and an
// optional underlying cause, plus a FatalError helper that formats and
// exits. Every fallible core operation returns a *UserError of one of the
// kinds below instead of a bare error, so the CLI can print a consistent
// "Error: <title>" line regardless of which package raised it.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind identifies which part of the pipeline produced a UserError.
type Kind string

const (
	KindCompile          Kind = "compile"
	KindLoad             Kind = "load"
	KindNoMain           Kind = "no-main"
	KindIO               Kind = "io"
	KindParams           Kind = "params"
	KindCache            Kind = "cache"
	KindCompilerNotFound Kind = "compiler-not-found"
	KindPlugin           Kind = "plugin"
	KindConfig           Kind = "config"
	// KindInternal is not part of spec.md's taxonomy; AsUserError uses it
	// to wrap an error from outside the UserError hierarchy (a bug, not a
	// user-facing failure mode) rather than silently losing its message.
	KindInternal Kind = "internal"
)

// UserError is the error type returned by every fallible crispy operation.
type UserError struct {
	Kind       Kind
	Title      string
	Detail     string
	Suggestion string
	Cause      error
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func (e *UserError) Unwrap() error { return e.Cause }

// Format renders the error either as a human-readable multi-line message
// or, when json is true, as a single JSON object (used by --json CLI mode
// so a failing compile never corrupts machine-readable output).
func (e *UserError) Format(jsonOutput bool) string {
	if jsonOutput {
		payload := map[string]string{
			"kind":       string(e.Kind),
			"title":      e.Title,
			"detail":     e.Detail,
			"suggestion": e.Suggestion,
		}
		if e.Cause != nil {
			payload["cause"] = e.Cause.Error()
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return e.Error()
		}
		return string(b)
	}
	msg := fmt.Sprintf("Error: %s\n  %s", e.Title, e.Detail)
	if e.Suggestion != "" {
		msg += fmt.Sprintf("\n  Suggestion: %s", e.Suggestion)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf("\n  Cause: %v", e.Cause)
	}
	return msg
}

func newError(kind Kind, title, detail, suggestion string, cause error) *UserError {
	return &UserError{Kind: kind, Title: title, Detail: detail, Suggestion: suggestion, Cause: cause}
}

func NewCompileError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindCompile, title, detail, suggestion, cause)
}

func NewLoadError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindLoad, title, detail, suggestion, cause)
}

func NewNoMainError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindNoMain, title, detail, suggestion, cause)
}

func NewIOError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindIO, title, detail, suggestion, cause)
}

func NewParamsError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindParams, title, detail, suggestion, cause)
}

func NewCacheError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindCache, title, detail, suggestion, cause)
}

func NewCompilerNotFoundError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindCompilerNotFound, title, detail, suggestion, cause)
}

func NewPluginError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindPlugin, title, detail, suggestion, cause)
}

func NewConfigError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindConfig, title, detail, suggestion, cause)
}

func NewInternalError(title, detail, suggestion string, cause error) *UserError {
	return newError(KindInternal, title, detail, suggestion, cause)
}

// AsUserError unwraps err into a *UserError, wrapping it as an internal
// error if it is some other error type.
func AsUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	if ue, ok := err.(*UserError); ok {
		return ue
	}
	return NewInternalError("Unexpected error", err.Error(), "This is a bug, please report it", err)
}

// FatalError prints err (formatted as JSON when jsonOutput is true) to
// stderr and exits the process with status 1. It is the terminal point for
// every command-level failure that is not itself a script's own exit code.
func FatalError(err error, jsonOutput bool) {
	ue := AsUserError(err)
	fmt.Fprintln(os.Stderr, ue.Format(jsonOutput))
	os.Exit(1)
}

// Warning prints a non-fatal warning line to stderr.
func Warning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
