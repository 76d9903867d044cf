// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package translate lowers the parsed source subset to WhyML: expressions to
// fully parenthesized expression strings, statement sequences to an
// imperative body over reference cells.
package translate

import (
	"fmt"
	"strings"

	"github.com/pedronobrol/tau/services/tau/lang"
)

var binOpToWhy = map[string]string{
	"+":  "+",
	"-":  "-",
	"*":  "*",
	"//": "div",
	"%":  "mod",
}

var cmpOpToWhy = map[string]string{
	"==": "=",
	"!=": "<>",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// Expr translates one expression against the context's current ref-cell set.
// Every composite form is parenthesized in the output, so operator precedence
// never has to be inferred from the text.
func Expr(e lang.Expr, ctx *Context) (string, error) {
	switch node := e.(type) {
	case *lang.NameExpr:
		if ctx.Refs[node.ID] {
			return "!" + node.ID, nil
		}
		return node.ID, nil

	case *lang.IntLit:
		return node.Value, nil

	case *lang.BoolLit:
		if node.Value {
			return "true", nil
		}
		return "false", nil

	case *lang.StringLit:
		return fmt.Sprintf("%q", node.Value), nil

	case *lang.UnaryExpr:
		operand, err := Expr(node.Operand, ctx)
		if err != nil {
			return "", err
		}
		switch node.Op {
		case "-":
			return "(-" + operand + ")", nil
		case "+":
			return operand, nil
		case "not":
			return "(not " + operand + ")", nil
		}
		return "", fmt.Errorf("translate: %w: unary operator %s", ErrUnsupportedConstruct, node.Op)

	case *lang.BinaryExpr:
		left, err := Expr(node.Left, ctx)
		if err != nil {
			return "", err
		}
		right, err := Expr(node.Right, ctx)
		if err != nil {
			return "", err
		}
		op, ok := binOpToWhy[node.Op]
		if !ok {
			return "", fmt.Errorf("translate: %w: binary operator %s", ErrUnsupportedConstruct, node.Op)
		}
		return fmt.Sprintf("(%s %s %s)", left, op, right), nil

	case *lang.BoolExpr:
		parts := make([]string, len(node.Values))
		for i, v := range node.Values {
			part, err := Expr(v, ctx)
			if err != nil {
				return "", err
			}
			parts[i] = part
		}
		return "(" + strings.Join(parts, " "+node.Op+" ") + ")", nil

	case *lang.CompareExpr:
		if len(node.Ops) != 1 || len(node.Comparators) != 1 {
			return "", fmt.Errorf("translate: %w", ErrChainedComparison)
		}
		left, err := Expr(node.Left, ctx)
		if err != nil {
			return "", err
		}
		right, err := Expr(node.Comparators[0], ctx)
		if err != nil {
			return "", err
		}
		op, ok := cmpOpToWhy[node.Ops[0]]
		if !ok {
			return "", fmt.Errorf("translate: %w: comparison %s", ErrUnsupportedConstruct, node.Ops[0])
		}
		return fmt.Sprintf("(%s %s %s)", left, op, right), nil

	case *lang.CondExpr:
		test, err := Expr(node.Cond, ctx)
		if err != nil {
			return "", err
		}
		then, err := Expr(node.Then, ctx)
		if err != nil {
			return "", err
		}
		orelse, err := Expr(node.Else, ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(if %s then %s else %s)", test, then, orelse), nil

	case *lang.CallExpr:
		if !ctx.Known[node.Func] {
			if _, ok := ctx.External[node.Func]; !ok {
				return "", fmt.Errorf("translate: %w: %s", ErrUnknownFunction, node.Func)
			}
		}
		args := make([]string, len(node.Args))
		for i, a := range node.Args {
			arg, err := Expr(a, ctx)
			if err != nil {
				return "", err
			}
			args[i] = arg
		}
		return node.Func + "(" + strings.Join(args, ", ") + ")", nil
	}

	return "", fmt.Errorf("translate: %w: expression %T", ErrUnsupportedConstruct, e)
}
