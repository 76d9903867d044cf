// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package feedback drives the verify/refine loop: propose a loop contract,
// generate WhyML, submit to the prover, and on failure either halt (the code
// is buggy) or ask the oracle for a stronger contract, up to a round bound.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pedronobrol/tau/services/tau/gen"
	"github.com/pedronobrol/tau/services/tau/oracle"
	"github.com/pedronobrol/tau/services/tau/prover"
	"github.com/pedronobrol/tau/services/tau/translate"
)

var tracer = otel.Tracer("tau.feedback")

// Prover submits one WhyML file for verification. *prover.Adapter satisfies
// this; tests substitute stubs.
type Prover interface {
	Prove(ctx context.Context, whyFile string) (*prover.Result, error)
}

// Config bounds and shapes the loop.
type Config struct {
	// MaxRounds caps prover submissions per attempt. Default: 3.
	MaxRounds int

	// BugCheckEveryRound runs bug classification after every failed round
	// instead of only the first. The first-round-only default keeps one
	// classification call per attempt; a weak refined contract failing in
	// round 2 is far more often an invariant problem than a new bug.
	BugCheckEveryRound bool

	// OutputDir receives per-round .mlw/.lean artifacts, grouped per run.
	// Default: "output".
	OutputDir string

	// ModuleName overrides the generated WhyML module name.
	ModuleName string

	Logger *slog.Logger
}

// DefaultConfig returns the loop defaults.
func DefaultConfig() Config {
	return Config{MaxRounds: 3, OutputDir: "output"}
}

// Request is one function to verify, with its specification and an optional
// starting contract. When Invariants and Variant are both empty the oracle
// proposes the initial contract.
type Request struct {
	FunctionName string
	Source       string
	Requires     string
	Ensures      string
	Invariants   []string
	Variant      string

	// External declares callable helpers by contract only.
	External map[string]translate.ExternalContract

	// ModuleName overrides Config.ModuleName for this request.
	ModuleName string
}

// Round records one prover submission.
type Round struct {
	Number       int                    `json:"number"`
	Contract     translate.LoopContract `json:"contract"`
	Proved       bool                   `json:"proved"`
	Refined      bool                   `json:"refined"`
	ProverOutput string                 `json:"prover_output"`
	Duration     time.Duration          `json:"duration"`
	WhyFile      string                 `json:"why_file"`
}

// Result is the loop's terminal state. Verified false always comes with a
// Reason; Bug is set when classification halted the loop.
type Result struct {
	Verified bool                `json:"verified"`
	Reason   string              `json:"reason,omitempty"`
	Bug      *oracle.BugAnalysis `json:"bug,omitempty"`

	Rounds     []Round                `json:"rounds"`
	FinalRound int                    `json:"final_round"`
	Contract   translate.LoopContract `json:"contract"`

	WhymlSource  string        `json:"whyml_source"`
	LeanSource   string        `json:"lean_source"`
	WhyFile      string        `json:"why_file"`
	LeanFile     string        `json:"lean_file"`
	ProverOutput string        `json:"prover_output"`
	ProverTime   time.Duration `json:"prover_time"`

	Functions []*translate.FunctionContract `json:"-"`
}

// Loop composes the oracle and the prover.
type Loop struct {
	cfg    Config
	oracle oracle.Oracle
	prover Prover
	logger *slog.Logger
}

// New builds a loop, filling unset Config fields with defaults.
func New(cfg Config, o oracle.Oracle, p Prover) *Loop {
	def := DefaultConfig()
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{cfg: cfg, oracle: o, prover: p, logger: cfg.Logger}
}

// Run drives one verification attempt to a terminal state. Translation
// failures and a missing prover binary return an error alongside the
// best-effort Result; a prover timeout counts as a failed round and the loop
// continues. An unproved function within the round limit is a normal Result
// with Verified false.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "feedback.Run")
	defer span.End()
	span.SetAttributes(attribute.String("function", req.FunctionName))

	runID := uuid.NewString()[:8]
	runDir := filepath.Join(l.cfg.OutputDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("feedback: creating run directory: %w", err)
	}

	contract := l.initialContract(ctx, req)
	result := &Result{}

	for round := 1; round <= l.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("feedback: %w", err)
		}

		result.Contract = *contract.Clone()
		if err := l.generate(req, contract, runDir, round, result); err != nil {
			return nil, err
		}

		res, perr := l.prover.Prove(ctx, result.WhyFile)
		rec := Round{
			Number:   round,
			Contract: *contract.Clone(),
			WhyFile:  result.WhyFile,
		}
		if res != nil {
			rec.Proved = res.Proved
			rec.ProverOutput = res.Output
			rec.Duration = res.Duration
			result.ProverOutput = res.Output
			result.ProverTime += res.Duration
		}
		result.Rounds = append(result.Rounds, rec)
		result.FinalRound = round

		if perr != nil {
			if !errors.Is(perr, prover.ErrProverTimeout) {
				result.Reason = "prover unavailable"
				l.finish(span, result, "prover_error")
				return result, perr
			}
			// A timed-out round is a failed round: a refined contract may
			// prove within the timeout next time.
			l.logger.Warn("prover timed out, counting round as failed",
				"function", req.FunctionName, "round", round, "run", runID)
		} else if res.Proved {
			result.Verified = true
			result.Reason = "proved"
			l.logger.Info("function verified",
				"function", req.FunctionName, "round", round, "run", runID)
			l.finish(span, result, "verified")
			return result, nil
		} else {
			l.logger.Info("round failed",
				"function", req.FunctionName, "round", round, "run", runID)
		}

		if round == 1 || l.cfg.BugCheckEveryRound {
			if bug := l.classify(ctx, req, rec.ProverOutput); bug != nil {
				result.Reason = bugReason(bug)
				result.Bug = bug
				l.finish(span, result, "bug")
				return result, nil
			}
		}

		if round == l.cfg.MaxRounds {
			break
		}

		refined := l.refine(ctx, req, contract, rec.ProverOutput)
		if refined != nil {
			contract = refined
			result.Rounds[len(result.Rounds)-1].Refined = true
		}
	}

	result.Reason = fmt.Sprintf("not proved after %d rounds", l.cfg.MaxRounds)
	l.finish(span, result, "exhausted")
	return result, nil
}

func (l *Loop) finish(span trace.Span, result *Result, outcome string) {
	loopOutcomes.WithLabelValues(outcome).Inc()
	loopRounds.Observe(float64(result.FinalRound))
	span.SetAttributes(
		attribute.Bool("verified", result.Verified),
		attribute.Int("rounds", result.FinalRound),
		attribute.String("outcome", outcome),
	)
}

// initialContract uses the request's declared contract when present and asks
// the oracle otherwise. A failed proposal degrades to the trivial contract
// rather than aborting: the prover may still discharge loop-free bodies.
func (l *Loop) initialContract(ctx context.Context, req Request) *translate.LoopContract {
	if len(req.Invariants) > 0 || req.Variant != "" {
		return &translate.LoopContract{Invariants: req.Invariants, Variant: req.Variant}
	}

	lc, err := l.oracle.Propose(ctx, oracle.ContractRequest{
		FunctionName: req.FunctionName,
		Source:       req.Source,
		Requires:     req.Requires,
		Ensures:      req.Ensures,
	})
	if err != nil {
		l.logger.Warn("contract proposal failed, using trivial contract",
			"function", req.FunctionName, "error", err)
		return &translate.LoopContract{Invariants: []string{"true"}, Variant: "0"}
	}
	l.logger.Debug("contract proposed",
		"function", req.FunctionName, "invariants", len(lc.Invariants))
	return lc
}

func (l *Loop) generate(req Request, contract *translate.LoopContract, runDir string, round int, result *Result) error {
	specs := map[string]gen.Spec{
		req.FunctionName: {
			Requires:   req.Requires,
			Ensures:    req.Ensures,
			Invariants: contract.Invariants,
			Variant:    contract.Variant,
		},
	}
	moduleName := req.ModuleName
	if moduleName == "" {
		moduleName = l.cfg.ModuleName
	}
	whyml, contracts, modName, err := gen.Module(req.Source, specs, req.External, moduleName)
	if err != nil {
		return fmt.Errorf("feedback: %w", err)
	}
	lean := gen.ProofSkeleton(contracts, modName)

	base := fmt.Sprintf("%s_round%02d", req.FunctionName, round)
	whyFile := filepath.Join(runDir, base+".mlw")
	leanFile := filepath.Join(runDir, base+".lean")
	if err := os.WriteFile(whyFile, []byte(whyml+"\n"), 0o644); err != nil {
		return fmt.Errorf("feedback: writing whyml: %w", err)
	}
	if err := os.WriteFile(leanFile, []byte(lean+"\n"), 0o644); err != nil {
		return fmt.Errorf("feedback: writing lean skeleton: %w", err)
	}

	result.WhymlSource = whyml
	result.LeanSource = lean
	result.WhyFile = whyFile
	result.LeanFile = leanFile
	result.Functions = contracts
	return nil
}

// classify returns a verdict only when the oracle positively detects a bug.
// No oracle, a schema violation, or a bug-free verdict all mean "keep
// refining".
func (l *Loop) classify(ctx context.Context, req Request, proverOutput string) *oracle.BugAnalysis {
	analysis, err := l.oracle.Classify(ctx, oracle.ClassifyRequest{
		ContractRequest: oracle.ContractRequest{
			FunctionName: req.FunctionName,
			Source:       req.Source,
			Requires:     req.Requires,
			Ensures:      req.Ensures,
		},
		ProverOutput: proverOutput,
	})
	if err != nil {
		if !errors.Is(err, oracle.ErrUnavailable) {
			l.logger.Warn("bug classification failed", "function", req.FunctionName, "error", err)
		}
		return nil
	}
	if !analysis.BugDetected {
		return nil
	}
	l.logger.Info("bug detected, halting refinement",
		"function", req.FunctionName, "bug_type", analysis.BugType)
	return analysis
}

// refine returns the revised contract, or nil when the oracle cannot help;
// the caller then resubmits with the previous contract.
func (l *Loop) refine(ctx context.Context, req Request, current *translate.LoopContract, proverOutput string) *translate.LoopContract {
	lc, err := l.oracle.Refine(ctx, oracle.RefineRequest{
		ContractRequest: oracle.ContractRequest{
			FunctionName: req.FunctionName,
			Source:       req.Source,
			Requires:     req.Requires,
			Ensures:      req.Ensures,
		},
		Current:      *current.Clone(),
		ProverOutput: proverOutput,
	})
	if err != nil {
		l.logger.Warn("refinement unavailable, keeping contract",
			"function", req.FunctionName, "error", err)
		return nil
	}
	return lc
}

func bugReason(bug *oracle.BugAnalysis) string {
	if bug.Explanation != "" {
		return "bug detected: " + bug.Explanation
	}
	if bug.BugType != "" {
		return "bug detected: " + bug.BugType
	}
	return "bug detected"
}
