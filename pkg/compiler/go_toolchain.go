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

package compiler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	crispyerrors "github.com/crispyrun/crispy/internal/errors"
)

// sharedModeFlags select buildmode=plugin, the Go analogue of gcc's
// "-shared -fPIC": a position-independent artifact loadable with
// plugin.Open.
var sharedModeFlags = []string{"-buildmode=plugin"}

// executableModeFlags disable optimization and inlining so a debugger can
// step through the script faithfully -- the Go analogue of gcc's "-g -O0".
var executableModeFlags = []string{"-gcflags=all=-N -l"}

// GoToolchainCompiler drives `go build` as a subprocess. It is the default,
// and only shipped, Compiler implementation.
type GoToolchainCompiler struct {
	goBin  string
	logger *slog.Logger
}

// NewGoToolchainCompiler returns a compiler that invokes goBin (typically
// "go", resolved via PATH) as a subprocess.
func NewGoToolchainCompiler(goBin string, logger *slog.Logger) *GoToolchainCompiler {
	if goBin == "" {
		goBin = "go"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoToolchainCompiler{goBin: goBin, logger: logger}
}

// Version implements Compiler by running `go version`.
func (c *GoToolchainCompiler) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "version")
	if err != nil {
		return "", notFoundOr(err, out)
	}
	return strings.TrimSpace(out), nil
}

// BaseFlags implements Compiler by reading `go env GOFLAGS`, the
// idiomatic-Go stand-in for the original's pkg-config-derived base flags:
// a uniform set of flags every compile should carry regardless of the
// individual script.
func (c *GoToolchainCompiler) BaseFlags(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "env", "GOFLAGS")
	if err != nil {
		return "", notFoundOr(err, out)
	}
	return strings.TrimSpace(out), nil
}

// CompileShared implements Compiler.
func (c *GoToolchainCompiler) CompileShared(ctx context.Context, sourcePath, outputPath, extraFlags string) error {
	return c.compile(ctx, sharedModeFlags, sourcePath, outputPath, extraFlags)
}

// CompileExecutable implements Compiler.
func (c *GoToolchainCompiler) CompileExecutable(ctx context.Context, sourcePath, outputPath, extraFlags string) error {
	return c.compile(ctx, executableModeFlags, sourcePath, outputPath, extraFlags)
}

// DescribeShared implements Compiler.
func (c *GoToolchainCompiler) DescribeShared(sourcePath, outputPath, extraFlags string) string {
	return c.describe(sharedModeFlags, sourcePath, outputPath, extraFlags)
}

// DescribeExecutable implements Compiler.
func (c *GoToolchainCompiler) DescribeExecutable(sourcePath, outputPath, extraFlags string) string {
	return c.describe(executableModeFlags, sourcePath, outputPath, extraFlags)
}

func (c *GoToolchainCompiler) describe(modeFlags []string, sourcePath, outputPath, extraFlags string) string {
	return c.goBin + " " + strings.Join(c.buildArgs(modeFlags, sourcePath, outputPath, extraFlags), " ")
}

func (c *GoToolchainCompiler) buildArgs(modeFlags []string, sourcePath, outputPath, extraFlags string) []string {
	args := []string{"build"}
	args = append(args, modeFlags...)
	if extraFlags != "" {
		args = append(args, strings.Fields(extraFlags)...)
	}
	args = append(args, "-o", outputPath, sourcePath)
	return args
}

func (c *GoToolchainCompiler) compile(ctx context.Context, modeFlags []string, sourcePath, outputPath, extraFlags string) error {
	args := c.buildArgs(modeFlags, sourcePath, outputPath, extraFlags)

	cmd := exec.CommandContext(ctx, c.goBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	commandLine := c.goBin + " " + strings.Join(args, " ")
	c.logger.Debug("compiler.compile", "cmd", commandLine)

	if err := cmd.Run(); err != nil {
		return crispyerrors.NewCompileError(
			"Compilation failed",
			stderr.String(),
			"Check the script for syntax errors and retry with --dry-run to inspect the command",
			fmt.Errorf("%s: %w", commandLine, err),
		)
	}
	return nil
}

func (c *GoToolchainCompiler) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.goBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stderr.String(), err
	}
	return stdout.String(), nil
}

func notFoundOr(err error, stderr string) error {
	if _, ok := err.(*exec.Error); ok {
		return crispyerrors.NewCompilerNotFoundError(
			"Go toolchain not found",
			"The `go` binary could not be located on PATH",
			"Install Go and make sure the go binary is on PATH",
			err,
		)
	}
	return crispyerrors.NewCompileError("Compiler query failed", stderr, "", err)
}
