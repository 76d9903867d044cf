// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proofs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const countToSource = `def count_to(n):
    c = 0
    i = 0
    while i < n:
        c = c + 1
        i = i + 1
    return c
`

// Same function with different whitespace, a comment, and a docstring.
const countToReformatted = `def count_to(n):
    "Count up to n."
    # counter
    c = 0

    i = 0
    while i < n:
            c = c + 1
            i = i + 1
    return c
`

func countToInfo() FunctionInfo {
	return FunctionInfo{
		Name:       "count_to",
		Source:     countToSource,
		Requires:   "n >= 0",
		Ensures:    "result = n",
		Invariants: []string{"0 <= !i <= n", "!c = !i"},
		Variant:    "n - !i",
	}
}

func TestFullHashIgnoresFormatting(t *testing.T) {
	a := countToInfo()
	b := countToInfo()
	b.Source = countToReformatted

	assert.Equal(t, FullHash(a), FullHash(b))
	assert.Equal(t, BodyHash(a), BodyHash(b))
	// The literal text did change.
	assert.NotEqual(t, SourceHash(a), SourceHash(b))
}

func TestFullHashChangesWithSpecs(t *testing.T) {
	a := countToInfo()
	b := countToInfo()
	b.Ensures = "result >= n"

	assert.NotEqual(t, FullHash(a), FullHash(b))
	// The body did not change.
	assert.Equal(t, BodyHash(a), BodyHash(b))
}

func TestHashChangesWithBody(t *testing.T) {
	a := countToInfo()
	b := countToInfo()
	b.Source = `def count_to(n):
    c = 0
    i = 0
    while i <= n:
        c = c + 1
        i = i + 1
    return c
`

	assert.NotEqual(t, FullHash(a), FullHash(b))
	assert.NotEqual(t, BodyHash(a), BodyHash(b))
}

func TestHashDeterministic(t *testing.T) {
	info := countToInfo()
	assert.Equal(t, FullHash(info), FullHash(info))
	assert.Len(t, FullHash(info), 64)
}

func TestHashFallsBackOnUnparsableSource(t *testing.T) {
	info := FunctionInfo{Name: "broken", Source: "def broken(:\n"}
	// Text fallback still yields stable hashes.
	assert.Equal(t, FullHash(info), FullHash(info))
	assert.Equal(t, FullHash(info), SourceHash(info))
	assert.Len(t, BodyHash(info), 64)
}
