// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pedronobrol/tau/services/tau/translate"
)

// Heuristic is the deterministic fallback oracle. It recognizes the common
// counting-loop shapes and otherwise proposes the trivial contract. It
// cannot refine or classify.
type Heuristic struct {
	logger *slog.Logger
}

// NewHeuristic builds the fallback oracle.
func NewHeuristic(logger *slog.Logger) *Heuristic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heuristic{logger: logger}
}

// Propose pattern-matches the source against the known loop shapes.
func (h *Heuristic) Propose(_ context.Context, req ContractRequest) (*translate.LoopContract, error) {
	clean := strings.ReplaceAll(req.Source, " ", "")
	clean = strings.ReplaceAll(clean, "\n", " ")

	switch {
	case strings.Contains(clean, "whilei<n") && strings.Contains(clean, "c=c+1"):
		return &translate.LoopContract{
			Invariants: []string{"0 <= !i <= n", "!c = !i"},
			Variant:    "n - !i",
		}, nil
	case strings.Contains(clean, "whilei<n"):
		return &translate.LoopContract{
			Invariants: []string{"0 <= !i <= n"},
			Variant:    "n - !i",
		}, nil
	case strings.Contains(clean, "whilei<=n"):
		return &translate.LoopContract{
			Invariants: []string{"0 <= !i <= n + 1"},
			Variant:    "n - !i",
		}, nil
	}

	h.logger.Debug("no loop pattern matched, proposing trivial contract", "function", req.FunctionName)
	return &translate.LoopContract{Invariants: []string{"true"}, Variant: "0"}, nil
}

// Refine cannot improve a contract; the caller keeps the previous one.
func (h *Heuristic) Refine(_ context.Context, _ RefineRequest) (*translate.LoopContract, error) {
	return nil, ErrUnavailable
}

// Classify has no verdict; the caller continues refining.
func (h *Heuristic) Classify(_ context.Context, _ ClassifyRequest) (*BugAnalysis, error) {
	return nil, ErrUnavailable
}
