// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedronobrol/tau/services/tau/oracle"
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

// stubOracle scripts the three capabilities independently.
type stubOracle struct {
	proposals []*translate.LoopContract
	refined   []*translate.LoopContract
	bug       *oracle.BugAnalysis

	proposeCalls  int
	refineCalls   int
	classifyCalls int
}

func (s *stubOracle) Propose(context.Context, oracle.ContractRequest) (*translate.LoopContract, error) {
	s.proposeCalls++
	if len(s.proposals) == 0 {
		return nil, oracle.ErrUnavailable
	}
	lc := s.proposals[0]
	s.proposals = s.proposals[1:]
	return lc, nil
}

func (s *stubOracle) Refine(context.Context, oracle.RefineRequest) (*translate.LoopContract, error) {
	s.refineCalls++
	if len(s.refined) == 0 {
		return nil, oracle.ErrUnavailable
	}
	lc := s.refined[0]
	s.refined = s.refined[1:]
	return lc, nil
}

func (s *stubOracle) Classify(context.Context, oracle.ClassifyRequest) (*oracle.BugAnalysis, error) {
	s.classifyCalls++
	if s.bug == nil {
		return nil, oracle.ErrUnavailable
	}
	return s.bug, nil
}

// stubProver returns scripted outcomes in order, repeating the last one.
// A non-nil entry in errs takes precedence over the outcome at that call.
type stubProver struct {
	outcomes []bool
	errs     []error
	calls    int
	files    []string
}

func (p *stubProver) Prove(_ context.Context, whyFile string) (*prover.Result, error) {
	p.files = append(p.files, whyFile)
	call := p.calls
	p.calls++

	if len(p.errs) > 0 {
		if err := p.errs[min(call, len(p.errs)-1)]; err != nil {
			return &prover.Result{Output: err.Error()}, err
		}
	}
	proved := p.outcomes[min(call, len(p.outcomes)-1)]
	out := "Timeout"
	if proved {
		out = "Prover result is: Valid"
	}
	return &prover.Result{Output: out, Proved: proved}, nil
}

func testLoop(t *testing.T, o oracle.Oracle, p Prover, cfg Config) *Loop {
	t.Helper()
	cfg.OutputDir = t.TempDir()
	return New(cfg, o, p)
}

func baseRequest() Request {
	return Request{
		FunctionName: "count_to",
		Source:       countToSource,
		Requires:     "n >= 0",
		Ensures:      "result = n",
	}
}

func TestRunProvesFirstRound(t *testing.T) {
	o := &stubOracle{proposals: []*translate.LoopContract{
		{Invariants: []string{"0 <= !i <= n", "!c = !i"}, Variant: "n - !i"},
	}}
	p := &stubProver{outcomes: []bool{true}}
	loop := testLoop(t, o, p, Config{})

	res, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 1, res.FinalRound)
	assert.Equal(t, 1, o.proposeCalls)
	assert.Zero(t, o.classifyCalls)
	assert.Zero(t, o.refineCalls)
	assert.Contains(t, res.WhymlSource, "module M_count_to")
	assert.Contains(t, res.WhymlSource, "invariant { !c = !i }")
	assert.Contains(t, res.LeanSource, "theorem count_to_correct")
	require.Len(t, p.files, 1)
	assert.Contains(t, p.files[0], "count_to_round01.mlw")
}

func TestRunRefinesThenProves(t *testing.T) {
	o := &stubOracle{
		proposals: []*translate.LoopContract{{Invariants: []string{"true"}, Variant: "0"}},
		refined: []*translate.LoopContract{
			{Invariants: []string{"0 <= !i <= n", "!c = !i"}, Variant: "n - !i"},
		},
	}
	p := &stubProver{outcomes: []bool{false, true}}
	loop := testLoop(t, o, p, Config{})

	res, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 2, res.FinalRound)
	require.Len(t, res.Rounds, 2)
	assert.False(t, res.Rounds[0].Proved)
	assert.True(t, res.Rounds[0].Refined)
	assert.True(t, res.Rounds[1].Proved)
	assert.Equal(t, []string{"0 <= !i <= n", "!c = !i"}, res.Contract.Invariants)
	// Classification ran once, on the first failure.
	assert.Equal(t, 1, o.classifyCalls)
}

func TestRunBoundedByMaxRounds(t *testing.T) {
	o := &stubOracle{proposals: []*translate.LoopContract{{Invariants: []string{"true"}, Variant: "0"}}}
	p := &stubProver{outcomes: []bool{false}}
	loop := testLoop(t, o, p, Config{MaxRounds: 3})

	res, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, 3, res.FinalRound)
	assert.Contains(t, res.Reason, "3 rounds")
	// Refinement was attempted between rounds, never after the last.
	assert.Equal(t, 2, o.refineCalls)
}

func TestRunHaltsOnBugVerdict(t *testing.T) {
	o := &stubOracle{
		proposals: []*translate.LoopContract{{Invariants: []string{"true"}, Variant: "0"}},
		bug: &oracle.BugAnalysis{
			BugDetected: true,
			BugType:     "off_by_one",
			Explanation: "loop runs one extra iteration",
		},
	}
	p := &stubProver{outcomes: []bool{false}}
	loop := testLoop(t, o, p, Config{MaxRounds: 5})

	res, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 1, p.calls)
	require.NotNil(t, res.Bug)
	assert.Equal(t, "off_by_one", res.Bug.BugType)
	assert.Contains(t, res.Reason, "loop runs one extra iteration")
	assert.Zero(t, o.refineCalls)
}

func TestRunKeepsContractWhenRefinementUnavailable(t *testing.T) {
	o := &stubOracle{proposals: []*translate.LoopContract{
		{Invariants: []string{"0 <= !i"}, Variant: "n - !i"},
	}}
	p := &stubProver{outcomes: []bool{false}}
	loop := testLoop(t, o, p, Config{MaxRounds: 2})

	res, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Len(t, res.Rounds, 2)
	assert.False(t, res.Rounds[0].Refined)
	assert.Equal(t, res.Rounds[0].Contract, res.Rounds[1].Contract)
}

func TestRunUsesDeclaredContractWithoutProposing(t *testing.T) {
	o := &stubOracle{}
	p := &stubProver{outcomes: []bool{true}}
	loop := testLoop(t, o, p, Config{})

	req := baseRequest()
	req.Invariants = []string{"0 <= !i <= n", "!c = !i"}
	req.Variant = "n - !i"

	res, err := loop.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Zero(t, o.proposeCalls)
}

func TestRunTrivialContractWhenProposalFails(t *testing.T) {
	o := &stubOracle{} // Propose returns ErrUnavailable.
	p := &stubProver{outcomes: []bool{true}}
	loop := testLoop(t, o, p, Config{})

	res, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"true"}, res.Rounds[0].Contract.Invariants)
	assert.Equal(t, "0", res.Rounds[0].Contract.Variant)
}

func TestRunBugCheckEveryRound(t *testing.T) {
	o := &stubOracle{
		proposals: []*translate.LoopContract{{Invariants: []string{"true"}, Variant: "0"}},
	}
	p := &stubProver{outcomes: []bool{false}}
	loop := testLoop(t, o, p, Config{MaxRounds: 3, BugCheckEveryRound: true})

	_, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, o.classifyCalls)
}

func TestRunTimeoutCountsAsFailedRound(t *testing.T) {
	o := &stubOracle{proposals: []*translate.LoopContract{{Invariants: []string{"true"}, Variant: "0"}}}
	p := &stubProver{
		outcomes: []bool{false},
		errs:     []error{prover.ErrProverTimeout},
	}
	loop := testLoop(t, o, p, Config{MaxRounds: 3})

	res, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, 3, res.FinalRound)
	require.Len(t, res.Rounds, 3)
	assert.False(t, res.Rounds[0].Proved)
	assert.Contains(t, res.Reason, "3 rounds")
}

func TestRunTimeoutThenProves(t *testing.T) {
	o := &stubOracle{proposals: []*translate.LoopContract{{Invariants: []string{"true"}, Variant: "0"}}}
	p := &stubProver{
		outcomes: []bool{false, true},
		errs:     []error{prover.ErrProverTimeout, nil},
	}
	loop := testLoop(t, o, p, Config{MaxRounds: 3})

	res, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 2, res.FinalRound)
	assert.Equal(t, 2, p.calls)
}

func TestRunProverNotFoundAbortsWithResult(t *testing.T) {
	o := &stubOracle{proposals: []*translate.LoopContract{{Invariants: []string{"true"}, Variant: "0"}}}
	p := &stubProver{
		outcomes: []bool{false},
		errs:     []error{prover.ErrProverNotFound},
	}
	loop := testLoop(t, o, p, Config{MaxRounds: 3})

	res, err := loop.Run(context.Background(), baseRequest())
	require.ErrorIs(t, err, prover.ErrProverNotFound)
	require.NotNil(t, res)
	assert.Equal(t, 1, p.calls)
	assert.False(t, res.Verified)
	assert.Equal(t, "prover unavailable", res.Reason)
	require.Len(t, res.Rounds, 1)
	assert.NotEmpty(t, res.WhymlSource)
}

func TestRunTranslationErrorIsFatal(t *testing.T) {
	o := &stubOracle{proposals: []*translate.LoopContract{{Invariants: []string{"true"}, Variant: "0"}}}
	p := &stubProver{outcomes: []bool{true}}
	loop := testLoop(t, o, p, Config{})

	req := baseRequest()
	req.FunctionName = "no_else"
	req.Source = "def no_else(x):\n    if x > 0:\n        x = 1\n    return x\n"

	_, err := loop.Run(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, translate.ErrMissingElseBranch)
	assert.Zero(t, p.calls)
}

func TestRunRoundArtifactsAreTagged(t *testing.T) {
	o := &stubOracle{proposals: []*translate.LoopContract{{Invariants: []string{"true"}, Variant: "0"}}}
	p := &stubProver{outcomes: []bool{false, true}}
	loop := testLoop(t, o, p, Config{})

	res, err := loop.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Len(t, p.files, 2)
	assert.True(t, strings.HasSuffix(p.files[0], "count_to_round01.mlw"))
	assert.True(t, strings.HasSuffix(p.files[1], "count_to_round02.mlw"))
	assert.True(t, strings.HasSuffix(res.LeanFile, "count_to_round02.lean"))
}
