// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package translate

import (
	"fmt"
	"strings"

	"github.com/pedronobrol/tau/services/tau/lang"
)

// bodyTranslator carries the per-function state a statement walk needs: the
// shared ref-cell context, the loop contract to attach, and a loop counter
// that spans nested blocks so a second loop anywhere in the function is
// rejected.
type bodyTranslator struct {
	ctx       *Context
	loop      *LoopContract
	loopsSeen int
}

// Body translates an ordered statement sequence into one WhyML imperative
// body. The first assignment to a name introduces a reference cell; later
// assignments become stores and later reads become dereferences.
func Body(stmts []lang.Stmt, ctx *Context, loop *LoopContract) (string, error) {
	bt := &bodyTranslator{ctx: ctx, loop: loop}
	return bt.translate(stmts)
}

func (bt *bodyTranslator) translate(stmts []lang.Stmt) (string, error) {
	var lines []string

	for _, stmt := range stmts {
		switch node := stmt.(type) {
		case *lang.AssignStmt:
			value, err := Expr(node.Value, bt.ctx)
			if err != nil {
				return "", err
			}
			if bt.ctx.Refs[node.Target] {
				lines = append(lines, fmt.Sprintf("%s := %s;", node.Target, value))
			} else {
				lines = append(lines, fmt.Sprintf("let %s = ref %s in", node.Target, value))
				bt.ctx.Refs[node.Target] = true
			}

		case *lang.IfStmt:
			condition, err := Expr(node.Cond, bt.ctx)
			if err != nil {
				return "", err
			}
			if len(node.Else) == 0 {
				return "", fmt.Errorf("translate: line %d: %w", node.Line, ErrMissingElseBranch)
			}
			thenBody, err := bt.translate(node.Then)
			if err != nil {
				return "", err
			}
			elseBody, err := bt.translate(node.Else)
			if err != nil {
				return "", err
			}
			lines = append(lines, fmt.Sprintf(
				"if %s then (\n%s\n) else (\n%s\n)",
				condition, indentBlock(thenBody), indentBlock(elseBody)))

		case *lang.WhileStmt:
			if bt.loopsSeen > 0 {
				return "", fmt.Errorf("translate: line %d: %w", node.Line, ErrMultipleLoops)
			}
			bt.loopsSeen++

			condition, err := Expr(node.Cond, bt.ctx)
			if err != nil {
				return "", err
			}
			body, err := bt.translate(node.Body)
			if err != nil {
				return "", err
			}

			// Invariants and the variant come immediately after "do", in the
			// order supplied, then the body and an explicit terminator.
			loopParts := []string{fmt.Sprintf("while %s do", condition)}
			if bt.loop != nil {
				for _, invariant := range bt.loop.Invariants {
					loopParts = append(loopParts, fmt.Sprintf("  invariant { %s }", invariant))
				}
				if bt.loop.Variant != "" {
					loopParts = append(loopParts, fmt.Sprintf("  variant { %s }", bt.loop.Variant))
				}
			}
			loopParts = append(loopParts, indentBlock(body), "done;")
			lines = append(lines, strings.Join(loopParts, "\n"))

		case *lang.ReturnStmt:
			value, err := Expr(node.Value, bt.ctx)
			if err != nil {
				return "", err
			}
			lines = append(lines, value)

		default:
			return "", fmt.Errorf("translate: %w: statement %T", ErrUnsupportedConstruct, stmt)
		}
	}

	return strings.Join(lines, "\n"), nil
}

// indentBlock indents every non-blank line by two spaces.
func indentBlock(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}
