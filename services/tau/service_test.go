// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tau

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedronobrol/tau/services/tau/feedback"
	"github.com/pedronobrol/tau/services/tau/oracle"
	"github.com/pedronobrol/tau/services/tau/proofs"
	"github.com/pedronobrol/tau/services/tau/prover"
	"github.com/pedronobrol/tau/services/tau/translate"
)

const countToSource = `def count_to(n):
    c = 0
    i = 0
    while i < n:
        c = c + 1
        i = i + 1
    return c
`

// Off-by-one variant: the loop runs one extra iteration.
const countToBuggy = `def count_to(n):
    c = 0
    i = 0
    while i <= n:
        c = c + 1
        i = i + 1
    return c
`

// scriptedProver fails its first failFirst calls and proves afterwards.
type scriptedProver struct {
	failFirst int
	calls     int
}

func (p *scriptedProver) Prove(_ context.Context, whyFile string) (*prover.Result, error) {
	p.calls++
	if p.calls <= p.failFirst {
		return &prover.Result{Output: "Timeout\ngoal count_to'vc: Unknown"}, nil
	}
	return &prover.Result{Output: "Prover result is: Valid", Proved: true}, nil
}

// downProver simulates a missing why3 binary.
type downProver struct {
	calls int
}

func (p *downProver) Prove(context.Context, string) (*prover.Result, error) {
	p.calls++
	return &prover.Result{Output: "Why3 not found. Install with: opam install why3"},
		prover.ErrProverNotFound
}

// scriptedOracle proposes like the heuristic, always refines to the known
// good contract, and classifies per the scripted verdict.
type scriptedOracle struct {
	bug *oracle.BugAnalysis
}

func (s *scriptedOracle) Propose(ctx context.Context, req oracle.ContractRequest) (*translate.LoopContract, error) {
	return oracle.NewHeuristic(nil).Propose(ctx, req)
}

func (s *scriptedOracle) Refine(context.Context, oracle.RefineRequest) (*translate.LoopContract, error) {
	return &translate.LoopContract{
		Invariants: []string{"0 <= !i <= n", "!c = !i"},
		Variant:    "n - !i",
	}, nil
}

func (s *scriptedOracle) Classify(context.Context, oracle.ClassifyRequest) (*oracle.BugAnalysis, error) {
	if s.bug == nil {
		return nil, oracle.ErrUnavailable
	}
	return s.bug, nil
}

func testService(t *testing.T, o oracle.Oracle, p feedback.Prover) *Service {
	t.Helper()
	store, err := proofs.Open(proofs.Config{Dir: t.TempDir(), InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	loop := feedback.New(feedback.Config{MaxRounds: 3, OutputDir: t.TempDir()}, o, p)
	return NewService(store, loop, nil)
}

func TestVerifyFunctionFirstRound(t *testing.T) {
	svc := testService(t, &scriptedOracle{}, &scriptedProver{})
	ctx := context.Background()

	resp, err := svc.VerifyFunction(ctx, VerifyRequest{
		Source: countToSource,
		FunctionSpec: FunctionSpec{
			Requires: "n >= 0",
			Ensures:  "result = n",
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.False(t, resp.Cached)
	assert.Equal(t, "count_to", resp.FunctionName)
	assert.Equal(t, 1, resp.Rounds)
	assert.Len(t, resp.Hash, 64)
	assert.Contains(t, resp.WhymlSource, "module M_count_to")
	// The heuristic recognizes the counter loop.
	assert.Contains(t, resp.WhymlSource, "invariant { !c = !i }")
}

func TestVerifyFunctionCachesAndShortCircuits(t *testing.T) {
	p := &scriptedProver{}
	svc := testService(t, &scriptedOracle{}, p)
	ctx := context.Background()

	req := VerifyRequest{
		Source:       countToSource,
		FunctionSpec: FunctionSpec{Requires: "n >= 0", Ensures: "result = n"},
	}

	first, err := svc.VerifyFunction(ctx, req)
	require.NoError(t, err)
	require.True(t, first.Verified)
	assert.Equal(t, 1, p.calls)

	second, err := svc.VerifyFunction(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Verified)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Hash, second.Hash)
	// The prover never ran again.
	assert.Equal(t, 1, p.calls)
}

func TestVerifyFunctionCacheKeyedOnSpec(t *testing.T) {
	p := &scriptedProver{}
	svc := testService(t, &scriptedOracle{}, p)
	ctx := context.Background()

	base := VerifyRequest{
		Source:       countToSource,
		FunctionSpec: FunctionSpec{Requires: "n >= 0", Ensures: "result = n"},
	}
	_, err := svc.VerifyFunction(ctx, base)
	require.NoError(t, err)

	stronger := base
	stronger.Ensures = "result = n && result >= 0"
	resp, err := svc.VerifyFunction(ctx, stronger)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, p.calls)
}

func TestVerifyFunctionRetriesCachedFailure(t *testing.T) {
	// First attempt exhausts the rounds; the stored failed certificate must
	// not block a retry.
	p := &scriptedProver{failFirst: 10}
	svc := testService(t, oracle.NewHeuristic(nil), p)
	ctx := context.Background()

	req := VerifyRequest{
		Source:       countToSource,
		FunctionSpec: FunctionSpec{Requires: "n >= 0", Ensures: "result = n"},
	}
	first, err := svc.VerifyFunction(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Verified)
	assert.Equal(t, 3, p.calls)

	p.failFirst = 0
	second, err := svc.VerifyFunction(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Verified)
	assert.False(t, second.Cached)
}

func TestVerifyFunctionStoresBestEffortOnProverFailure(t *testing.T) {
	// A missing prover binary aborts verification, but the attempt's
	// certificate and artifacts must still land in the cache.
	p := &downProver{}
	svc := testService(t, &scriptedOracle{}, p)
	ctx := context.Background()

	query := ProofQueryRequest{
		Source:       countToSource,
		FunctionSpec: FunctionSpec{Requires: "n >= 0", Ensures: "result = n"},
	}
	_, err := svc.VerifyFunction(ctx, VerifyRequest{
		Source:       countToSource,
		FunctionSpec: query.FunctionSpec,
	})
	require.ErrorIs(t, err, prover.ErrProverNotFound)
	assert.Equal(t, 1, p.calls)

	check, err := svc.CheckProof(ctx, query)
	require.NoError(t, err)
	require.True(t, check.Cached)
	require.NotNil(t, check.Certificate)
	assert.False(t, check.Certificate.Verified)
	assert.Equal(t, "prover unavailable", check.Certificate.Reason)
	assert.NotEmpty(t, check.Certificate.WhymlFile)
}

func TestVerifyFunctionBugHalts(t *testing.T) {
	o := &scriptedOracle{bug: &oracle.BugAnalysis{
		BugDetected: true,
		BugType:     "off_by_one",
		Explanation: "loop executes n+1 iterations, so result = n + 1",
	}}
	p := &scriptedProver{failFirst: 10}
	svc := testService(t, o, p)

	resp, err := svc.VerifyFunction(context.Background(), VerifyRequest{
		Source:       countToBuggy,
		FunctionSpec: FunctionSpec{Requires: "n >= 0", Ensures: "result = n"},
	})
	require.NoError(t, err)
	assert.False(t, resp.Verified)
	require.NotNil(t, resp.Bug)
	assert.Equal(t, "off_by_one", resp.Bug.BugType)
	assert.Contains(t, resp.Reason, "bug detected")
	// Classification halted after the first round.
	assert.Equal(t, 1, p.calls)
}

func TestVerifyFunctionResolvesNames(t *testing.T) {
	svc := testService(t, &scriptedOracle{}, &scriptedProver{})
	ctx := context.Background()

	_, err := svc.VerifyFunction(ctx, VerifyRequest{
		Source:       countToSource,
		FunctionName: "no_such_function",
	})
	assert.ErrorIs(t, err, ErrFunctionNotFound)

	_, err = svc.VerifyFunction(ctx, VerifyRequest{Source: "   \n"})
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestVerifyAll(t *testing.T) {
	two := countToSource + "\ndef identity(x):\n    return x\n"
	svc := testService(t, &scriptedOracle{}, &scriptedProver{})

	resp, err := svc.VerifyAll(context.Background(), VerifyAllRequest{
		Source: two,
		Specs: map[string]FunctionSpec{
			"count_to": {Requires: "n >= 0", Ensures: "result = n"},
			"identity": {Ensures: "result = x"},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.AllVerified)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results["count_to"].Verified)
	assert.True(t, resp.Results["identity"].Verified)
}

func TestCheckProofAndFindByBody(t *testing.T) {
	svc := testService(t, &scriptedOracle{}, &scriptedProver{})
	ctx := context.Background()

	query := ProofQueryRequest{
		Source:       countToSource,
		FunctionSpec: FunctionSpec{Requires: "n >= 0", Ensures: "result = n"},
	}

	check, err := svc.CheckProof(ctx, query)
	require.NoError(t, err)
	assert.False(t, check.Cached)

	_, err = svc.VerifyFunction(ctx, VerifyRequest{
		Source:       countToSource,
		FunctionSpec: query.FunctionSpec,
	})
	require.NoError(t, err)

	check, err = svc.CheckProof(ctx, query)
	require.NoError(t, err)
	assert.True(t, check.Cached)
	require.NotNil(t, check.Certificate)
	assert.True(t, check.Certificate.Verified)

	// Same body under a different spec is still discoverable.
	other := query
	other.Ensures = "result >= 0"
	certs, err := svc.FindProofsByBody(ctx, other)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, check.Certificate.Hash, certs[0].Hash)
}

func TestVerifyAllPropagatesTranslationErrors(t *testing.T) {
	svc := testService(t, &scriptedOracle{}, &scriptedProver{})

	src := "def no_else(x):\n    if x > 0:\n        x = 1\n    return x\n"
	_, err := svc.VerifyAll(context.Background(), VerifyAllRequest{Source: src})
	require.Error(t, err)
	assert.ErrorIs(t, err, translate.ErrMissingElseBranch)
	assert.True(t, strings.Contains(err.Error(), "no_else"))
}
