// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedronobrol/tau/services/tau/lang"
)

func parseExpr(t *testing.T, src string) lang.Expr {
	t.Helper()
	fn, err := lang.ParseFunction("def probe():\n    return " + src + "\n")
	require.NoError(t, err)
	return fn.Body[0].(*lang.ReturnStmt).Value
}

func parseBody(t *testing.T, src string) []lang.Stmt {
	t.Helper()
	fn, err := lang.ParseFunction(src)
	require.NoError(t, err)
	return fn.Body
}

func TestExprForms(t *testing.T) {
	ctx := NewContext(map[string]bool{"g": true}, nil)
	ctx.Refs["i"] = true

	cases := []struct {
		src  string
		want string
	}{
		{"42", "42"},
		{"True", "true"},
		{"False", "false"},
		{"n", "n"},
		{"i", "!i"},
		{"-n", "(-n)"},
		{"+n", "n"},
		{"not b", "(not b)"},
		{"a + b", "(a + b)"},
		{"a - b", "(a - b)"},
		{"a * b", "(a * b)"},
		{"a // b", "(a div b)"},
		{"a % b", "(a mod b)"},
		{"a == b", "(a = b)"},
		{"a != b", "(a <> b)"},
		{"a < b", "(a < b)"},
		{"a <= b", "(a <= b)"},
		{"a and b and c", "(a and b and c)"},
		{"a or b", "(a or b)"},
		{"a if c else b", "(if c then a else b)"},
		{"g(a, i)", "g(a, !i)"},
		{"i + 1", "(!i + 1)"},
		{"(a + b) * c", "((a + b) * c)"},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			got, err := Expr(parseExpr(t, tc.src), ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExprDeterministic(t *testing.T) {
	ctx := NewContext(nil, nil)
	node := parseExpr(t, "a + b * 2 - (c if a < b else 0)")
	first, err := Expr(node, ctx)
	require.NoError(t, err)
	second, err := Expr(node, ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExprChainedComparisonRejected(t *testing.T) {
	ctx := NewContext(nil, nil)
	_, err := Expr(parseExpr(t, "a < b < c"), ctx)
	require.ErrorIs(t, err, ErrChainedComparison)
}

func TestExprUnknownFunctionRejected(t *testing.T) {
	ctx := NewContext(map[string]bool{"known": true}, nil)
	_, err := Expr(parseExpr(t, "mystery(1)"), ctx)
	require.ErrorIs(t, err, ErrUnknownFunction)
	assert.Contains(t, err.Error(), "mystery")
}

func TestExprExternalContractAllowsCall(t *testing.T) {
	ctx := NewContext(nil, map[string]ExternalContract{
		"sqrt_floor": {ReturnType: "int", Requires: "x >= 0", Ensures: "result >= 0"},
	})
	got, err := Expr(parseExpr(t, "sqrt_floor(9)"), ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqrt_floor(9)", got)
}

func TestBodyRefIntroductionAndUpdate(t *testing.T) {
	ctx := NewContext(nil, nil)
	body, err := Body(parseBody(t, "def f(n):\n    c = 0\n    c = c + 1\n    return c\n"), ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "let c = ref 0 in\nc := (!c + 1);\n!c", body)
	assert.True(t, ctx.Refs["c"])
}

func TestBodyParametersNeverDereferenced(t *testing.T) {
	ctx := NewContext(nil, nil)
	body, err := Body(parseBody(t, "def f(n):\n    c = n\n    return c + n\n"), ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "let c = ref n in\n(!c + n)", body)
}

func TestBodyIfRequiresElse(t *testing.T) {
	stmts := parseBody(t, "def f(x):\n    if x > 0:\n        x = 1\n    return x\n")
	_, err := Body(stmts, NewContext(nil, nil), nil)
	require.ErrorIs(t, err, ErrMissingElseBranch)
}

func TestBodyIfElseSharesRefSet(t *testing.T) {
	src := `
def f(x: int) -> int:
    r = 0
    if x < 0:
        r = -x
    else:
        r = x
    return r
`
	ctx := NewContext(nil, nil)
	body, err := Body(parseBody(t, src), ctx, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"let r = ref 0 in\nif (x < 0) then (\n  r := (-x);\n) else (\n  r := x;\n)\n!r",
		body)
}

func TestBodySecondLoopRejected(t *testing.T) {
	src := `
def f(n: int) -> int:
    i = 0
    while i < n:
        i = i + 1
    j = 0
    while j < n:
        j = j + 1
    return i
`
	_, err := Body(parseBody(t, src), NewContext(nil, nil), nil)
	require.ErrorIs(t, err, ErrMultipleLoops)
}

func TestBodyLoopContractOrdering(t *testing.T) {
	src := `
def count_to(n: int) -> int:
    c = 0
    i = 0
    while i < n:
        c = c + 1
        i = i + 1
    return c
`
	loop := &LoopContract{
		Invariants: []string{"0 <= !i <= n", "!c = !i"},
		Variant:    "n - !i",
	}
	body, err := Body(parseBody(t, src), NewContext(nil, nil), loop)
	require.NoError(t, err)

	want := "let c = ref 0 in\n" +
		"let i = ref 0 in\n" +
		"while (!i < n) do\n" +
		"  invariant { 0 <= !i <= n }\n" +
		"  invariant { !c = !i }\n" +
		"  variant { n - !i }\n" +
		"  c := (!c + 1);\n" +
		"  i := (!i + 1);\n" +
		"done;\n" +
		"!c"
	assert.Equal(t, want, body)
}

func TestBodyLoopWithoutContractOmitsClauses(t *testing.T) {
	src := "def f(n):\n    i = 0\n    while i < n:\n        i = i + 1\n    return i\n"
	body, err := Body(parseBody(t, src), NewContext(nil, nil), nil)
	require.NoError(t, err)
	assert.NotContains(t, body, "invariant")
	assert.NotContains(t, body, "variant")
}
