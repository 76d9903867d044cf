// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContractStrictSchema(t *testing.T) {
	lc, err := parseContract(`{"invariants": ["0 <= !i <= n", "!c = !i"], "variant": "n - !i"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"0 <= !i <= n", "!c = !i"}, lc.Invariants)
	assert.Equal(t, "n - !i", lc.Variant)
}

func TestParseContractToleratesSurroundingProse(t *testing.T) {
	lc, err := parseContract("Here you go:\n```json\n{\"invariants\": [\"true\"], \"variant\": \"0\"}\n```\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"true"}, lc.Invariants)
}

func TestParseContractRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"no json":               "I cannot answer that.",
		"missing invariants":    `{"variant": "0"}`,
		"missing variant":       `{"invariants": ["true"]}`,
		"invariants not a list": `{"invariants": "true", "variant": "0"}`,
		"variant not a string":  `{"invariants": ["true"], "variant": 0}`,
		"not an object":         `[1, 2]`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseContract(text)
			assert.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestParseBugAnalysis(t *testing.T) {
	a, err := parseBugAnalysis(`{"bug_detected": true, "bug_type": "off_by_one", "explanation": "loop runs n+1 times"}`)
	require.NoError(t, err)
	assert.True(t, a.BugDetected)
	assert.Equal(t, "off_by_one", a.BugType)

	b, err := parseBugAnalysis(`{"bug_detected": false, "suggested_invariants": ["!c = !i"]}`)
	require.NoError(t, err)
	assert.False(t, b.BugDetected)
	assert.Equal(t, []string{"!c = !i"}, b.SuggestedInvariants)
}

func TestParseBugAnalysisCoercesQuotedBoolean(t *testing.T) {
	a, err := parseBugAnalysis(`{"bug_detected": "True", "bug_type": "other"}`)
	require.NoError(t, err)
	assert.True(t, a.BugDetected)
}

func TestParseBugAnalysisRejectsMissingVerdict(t *testing.T) {
	_, err := parseBugAnalysis(`{"analysis": "hard to say"}`)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestHeuristicPatterns(t *testing.T) {
	h := NewHeuristic(nil)
	ctx := context.Background()

	cases := []struct {
		name           string
		source         string
		wantInvariants []string
		wantVariant    string
	}{
		{
			name:           "counter loop",
			source:         "def count_to(n):\n    c = 0\n    i = 0\n    while i < n:\n        c = c + 1\n        i = i + 1\n    return c\n",
			wantInvariants: []string{"0 <= !i <= n", "!c = !i"},
			wantVariant:    "n - !i",
		},
		{
			name:           "plain strict loop",
			source:         "def f(n):\n    i = 0\n    while i < n:\n        i = i + 1\n    return i\n",
			wantInvariants: []string{"0 <= !i <= n"},
			wantVariant:    "n - !i",
		},
		{
			name:           "inclusive loop",
			source:         "def f(n):\n    i = 0\n    while i <= n:\n        i = i + 1\n    return i\n",
			wantInvariants: []string{"0 <= !i <= n + 1"},
			wantVariant:    "n - !i",
		},
		{
			name:           "no loop pattern",
			source:         "def f(x):\n    return x\n",
			wantInvariants: []string{"true"},
			wantVariant:    "0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lc, err := h.Propose(ctx, ContractRequest{FunctionName: "f", Source: tc.source})
			require.NoError(t, err)
			assert.Equal(t, tc.wantInvariants, lc.Invariants)
			assert.Equal(t, tc.wantVariant, lc.Variant)
		})
	}
}

func TestHeuristicCannotRefineOrClassify(t *testing.T) {
	h := NewHeuristic(nil)
	_, err := h.Refine(context.Background(), RefineRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = h.Classify(context.Background(), ClassifyRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSelectFallsBackWithoutKey(t *testing.T) {
	o := Select(Config{})
	assert.IsType(t, &Heuristic{}, o)

	o = Select(Config{APIKey: "sk-test"})
	assert.IsType(t, &Client{}, o)
}

func TestTruncateTail(t *testing.T) {
	assert.Equal(t, "cde", truncateTail("abcde", 3))
	assert.Equal(t, "ab", truncateTail("ab", 3))
}
