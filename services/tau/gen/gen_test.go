// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedronobrol/tau/services/tau/lang"
	"github.com/pedronobrol/tau/services/tau/translate"
)

const countToSource = `
def count_to(n: int) -> int:
    c = 0
    i = 0
    while i < n:
        c = c + 1
        i = i + 1
    return c
`

func countToSpecs() map[string]Spec {
	return map[string]Spec{
		"count_to": {
			Requires:   "n >= 0",
			Ensures:    "result = n",
			Invariants: []string{"0 <= !i <= n", "!c = !i"},
			Variant:    "n - !i",
		},
	}
}

func TestModuleCountTo(t *testing.T) {
	source, contracts, modName, err := Module(countToSource, countToSpecs(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "M_count_to", modName)
	require.Len(t, contracts, 1)

	assert.True(t, strings.HasPrefix(source, "module M_count_to\n"))
	assert.Contains(t, source, "use int.Int")
	assert.Contains(t, source, "use ref.Ref")
	assert.Contains(t, source, "use int.ComputerDivision")
	assert.Contains(t, source, "let count_to (n:int) : int =")
	assert.Contains(t, source, "  requires { n >= 0 }")
	assert.Contains(t, source, "  ensures  { result = n }")
	assert.True(t, strings.HasSuffix(source, "end"))

	// Loop header, then invariants in order, then the variant.
	doIdx := strings.Index(source, "while (!i < n) do")
	inv1 := strings.Index(source, "invariant { 0 <= !i <= n }")
	inv2 := strings.Index(source, "invariant { !c = !i }")
	variant := strings.Index(source, "variant { n - !i }")
	done := strings.Index(source, "done;")
	require.True(t, doIdx >= 0 && inv1 >= 0 && inv2 >= 0 && variant >= 0 && done >= 0)
	assert.True(t, doIdx < inv1 && inv1 < inv2 && inv2 < variant && variant < done)
}

func TestModuleDeterministic(t *testing.T) {
	first, _, _, err := Module(countToSource, countToSpecs(), nil, "")
	require.NoError(t, err)
	second, _, _, err := Module(countToSource, countToSpecs(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestModuleDefaultSpecs(t *testing.T) {
	source, contracts, _, err := Module("def f(n):\n    return n\n", nil, nil, "")
	require.NoError(t, err)
	assert.Contains(t, source, "  requires { true }")
	assert.Contains(t, source, "  ensures  { true }")
	assert.Nil(t, contracts[0].Loop)
}

func TestModuleExternalDeclaredBeforeDefinitions(t *testing.T) {
	external := map[string]translate.ExternalContract{
		"sqrt_floor": {
			Params:     []lang.Param{{Name: "x", Type: "int"}},
			ReturnType: "int",
			Requires:   "x >= 0",
			Ensures:    "result * result <= x",
		},
	}
	src := "def f(n):\n    return sqrt_floor(n)\n"
	source, _, _, err := Module(src, nil, external, "M_ext")
	require.NoError(t, err)

	val := strings.Index(source, "val sqrt_floor (x:int) : int")
	def := strings.Index(source, "let f (n:int) : int =")
	require.True(t, val >= 0 && def >= 0)
	assert.Less(t, val, def)
	assert.Contains(t, source, "sqrt_floor(n)")
}

func TestModuleNamedModule(t *testing.T) {
	source, _, modName, err := Module("def f(n):\n    return n\n", nil, nil, "MyModule")
	require.NoError(t, err)
	assert.Equal(t, "MyModule", modName)
	assert.True(t, strings.HasPrefix(source, "module MyModule\n"))
}

func TestModuleTranslationErrorNamesFunction(t *testing.T) {
	src := "def bad(a, b, c):\n    return a < b < c\n"
	_, _, _, err := Module(src, nil, nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, translate.ErrChainedComparison)
	assert.Contains(t, err.Error(), "bad")
}

func TestProofSkeleton(t *testing.T) {
	_, contracts, modName, err := Module(countToSource, countToSpecs(), nil, "")
	require.NoError(t, err)

	skeleton := ProofSkeleton(contracts, modName)
	assert.Contains(t, skeleton, "-- Lean theorems for M_count_to")
	assert.Contains(t, skeleton, "-- requires: n >= 0")
	assert.Contains(t, skeleton, "-- ensures: result = n")
	assert.Contains(t, skeleton, "theorem count_to_correct (n : Int) : Prop := by")
	assert.Contains(t, skeleton, "  admit")
}
