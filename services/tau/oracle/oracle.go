// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package oracle proposes, refines, and sanity-checks loop contracts.
//
// The Oracle is a capability interface with two implementations: a live
// LLM-backed client and a deterministic heuristic. Callers select one by
// availability (see Select) instead of branching on "is the LLM up" inside
// business logic.
package oracle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pedronobrol/tau/services/tau/translate"
)

var (
	// ErrUnavailable indicates the oracle backend cannot serve the request
	// (no API key, network failure, empty response). Callers degrade: fall
	// back to the heuristic, or keep the previous contract.
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrSchema indicates the backend responded but the payload violated
	// the strict response schema. The response is discarded.
	ErrSchema = errors.New("oracle response violates schema")
)

// ContractRequest carries everything a proposal needs.
type ContractRequest struct {
	FunctionName string
	Source       string
	Requires     string
	Ensures      string
}

// RefineRequest adds the failing contract and the prover's raw output.
type RefineRequest struct {
	ContractRequest
	Current      translate.LoopContract
	ProverOutput string
}

// ClassifyRequest asks whether a verification failure is a genuine bug.
type ClassifyRequest struct {
	ContractRequest
	ProverOutput string
}

// BugAnalysis is the classification verdict. BugDetected true means the
// code does not match its specification under any invariant, so refinement
// is pointless.
type BugAnalysis struct {
	BugDetected         bool     `json:"bug_detected"`
	BugType             string   `json:"bug_type,omitempty"`
	Explanation         string   `json:"explanation,omitempty"`
	ActualBehavior      string   `json:"actual_behavior,omitempty"`
	ExpectedBehavior    string   `json:"expected_behavior,omitempty"`
	Analysis            string   `json:"analysis,omitempty"`
	SuggestedInvariants []string `json:"suggested_invariants,omitempty"`
}

// Oracle generates and refines loop contracts and classifies failures.
type Oracle interface {
	// Propose suggests invariants and a variant from source and spec.
	Propose(ctx context.Context, req ContractRequest) (*translate.LoopContract, error)

	// Refine revises a contract given prover feedback. Implementations that
	// cannot refine return ErrUnavailable; the caller keeps the previous
	// contract.
	Refine(ctx context.Context, req RefineRequest) (*translate.LoopContract, error)

	// Classify decides bug-vs-weak-invariant. ErrUnavailable means no
	// verdict; the caller continues refining.
	Classify(ctx context.Context, req ClassifyRequest) (*BugAnalysis, error)
}

// Config configures the live oracle client.
type Config struct {
	// APIKey authenticates against the LLM service. Empty selects the
	// heuristic oracle.
	APIKey string

	// BaseURL overrides the service endpoint, for OpenAI-compatible
	// gateways and local servers.
	BaseURL string

	// Model defaults to "gpt-4o-mini".
	Model string

	// MaxTokens defaults to 600.
	MaxTokens int

	// Temperature defaults to 0.2.
	Temperature float32

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Select returns the live oracle when an API key is configured and the
// heuristic otherwise.
func Select(cfg Config) Oracle {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		logger.Warn("LLM oracle not configured, using heuristic")
		return NewHeuristic(logger)
	}
	client, err := NewClient(cfg)
	if err != nil {
		logger.Warn("LLM oracle unavailable, using heuristic", "error", err)
		return NewHeuristic(logger)
	}
	return client
}
