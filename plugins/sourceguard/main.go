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

// Package main is the source-guard example plugin: it rejects scripts
// that call a short list of dangerous functions. Build as a Go plugin
// with:
//
//	go build -buildmode=plugin -o sourceguard.so ./plugins/sourceguard
package main

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/crispyrun/crispy/internal/errors"
	crispyplugin "github.com/crispyrun/crispy/pkg/plugin"
)

// Info is the mandatory metadata symbol every plugin exports.
var Info = crispyplugin.Info{
	Name:        "source-guard",
	Description: "Rejects scripts containing dangerous function calls",
	Version:     "0.1.0",
	Author:      "Crispy Project",
	License:     "AGPLv3",
}

// forbidden lists the callee names this plugin rejects. Ported from
// examples/plugins/plugin-source-guard.c's substring list, but matched
// structurally below so a string literal containing "exec(" no longer
// trips a false positive.
var forbidden = map[string]bool{
	"system":       true,
	"popen":        true,
	"exec":         true,
	"execvp":       true,
	"execve":       true,
	"execl":        true,
	"execlp":       true,
	"fork":         true,
	"StartProcess": true,
	"Command":      true,
}

// OnSourceLoaded walks the parsed Go AST of the script for call
// expressions whose callee resolves to one of the forbidden names.
func OnSourceLoaded(ctx *crispyplugin.HookContext) crispyplugin.HookResult {
	source := ctx.SourceContent
	if len(source) == 0 {
		return crispyplugin.Continue
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		// Can't parse -- leave the verdict to the compiler itself.
		return crispyplugin.Continue
	}
	defer tree.Close()

	if name, ok := findForbiddenCall(tree.RootNode(), source); ok {
		origin := ctx.SourcePath
		if origin == "" {
			origin = "<inline>"
		}
		ctx.Err = errors.NewPluginError(
			"Script contains a forbidden call",
			fmt.Sprintf("source-guard: script contains forbidden call '%s(' (source: %s)", name, origin),
			"Remove or replace the flagged call if the script does not need it",
			nil,
		)
		return crispyplugin.Abort
	}
	return crispyplugin.Continue
}

func findForbiddenCall(node *sitter.Node, source []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	if node.Type() == "call_expression" {
		if funcNode := node.ChildByFieldName("function"); funcNode != nil {
			if name, ok := calleeName(funcNode, source); ok && forbidden[name] {
				return name, true
			}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if name, ok := findForbiddenCall(node.Child(i), source); ok {
			return name, true
		}
	}
	return "", false
}

func calleeName(node *sitter.Node, source []byte) (string, bool) {
	switch node.Type() {
	case "identifier":
		return string(source[node.StartByte():node.EndByte()]), true
	case "selector_expression":
		if field := node.ChildByFieldName("field"); field != nil {
			return string(source[field.StartByte():field.EndByte()]), true
		}
	}
	return "", false
}

func main() {}
