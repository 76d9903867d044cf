// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package prover invokes the external Why3 prover on generated WhyML modules
// and classifies its textual output.
package prover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrProverNotFound indicates the why3 binary is not installed or not
	// on PATH.
	ErrProverNotFound = errors.New("why3 not found")

	// ErrProverTimeout indicates the prover did not finish within the
	// configured timeout.
	ErrProverTimeout = errors.New("why3 verification timed out")
)

var (
	proveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tau_prover_duration_seconds",
		Help:    "Wall-clock time of why3 prove invocations",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
	})

	proveOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tau_prover_outcomes_total",
		Help: "Prover invocation outcomes",
	}, []string{"outcome"})
)

// Classifier decides whether raw prover output means "proved".
type Classifier func(output string) bool

// DefaultClassifier requires both the generic success token and the exact
// success phrase. A looser substring match risks false positives from
// partial output. Swap in a structured classifier here if a prover version
// exposes a non-textual success signal.
func DefaultClassifier(output string) bool {
	return strings.Contains(output, "Valid") &&
		strings.Contains(output, "Prover result is: Valid")
}

// Config configures the adapter.
type Config struct {
	// Binary is the why3 executable. Default: "why3".
	Binary string

	// Prover is the why3 prover identifier. Default: "Alt-Ergo,2.6.2".
	Prover string

	// Timeout is the per-goal prover timeout in seconds. The process itself
	// is given a small grace period on top. Default: 10.
	Timeout int

	// Classify overrides DefaultClassifier when set.
	Classify Classifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the defaults used by the source system.
func DefaultConfig() Config {
	return Config{
		Binary:  "why3",
		Prover:  "Alt-Ergo,2.6.2",
		Timeout: 10,
	}
}

// Result is one prover invocation's outcome. Output always carries whatever
// text the prover produced, including on failure.
type Result struct {
	Output   string
	Proved   bool
	Duration time.Duration
}

// Adapter runs why3 as an external process. Safe for concurrent use.
type Adapter struct {
	cfg    Config
	logger *slog.Logger
}

// New builds an adapter, filling unset Config fields with defaults.
func New(cfg Config) *Adapter {
	def := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.Prover == "" {
		cfg.Prover = def.Prover
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Classify == nil {
		cfg.Classify = DefaultClassifier
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cfg: cfg, logger: logger}
}

// Prove runs `why3 prove` on the given module file and returns the combined
// stdout+stderr text. A missing binary and a timeout are distinct, reported
// outcomes: the returned Result still carries output text, and the error is
// ErrProverNotFound or ErrProverTimeout respectively.
func (a *Adapter) Prove(ctx context.Context, whyFile string) (*Result, error) {
	cctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Timeout+5)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cctx, a.cfg.Binary,
		"prove", whyFile,
		"--prover", a.cfg.Prover,
		"-t", strconv.Itoa(a.cfg.Timeout))

	a.logger.Debug("invoking prover", "file", whyFile, "prover", a.cfg.Prover, "timeout_s", a.cfg.Timeout)

	start := time.Now()
	raw, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	proveDuration.Observe(elapsed.Seconds())

	result := &Result{Output: string(raw), Duration: elapsed}

	if err != nil {
		var execErr *exec.Error
		switch {
		case errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound):
			result.Output = "Why3 not found. Install with: opam install why3"
			proveOutcomes.WithLabelValues("not_found").Inc()
			return result, fmt.Errorf("prover: %w", ErrProverNotFound)
		case cctx.Err() == context.DeadlineExceeded:
			result.Output = fmt.Sprintf("Why3 verification timed out after %ds\n%s", a.cfg.Timeout, result.Output)
			proveOutcomes.WithLabelValues("timeout").Inc()
			return result, fmt.Errorf("prover: %w", ErrProverTimeout)
		}
		// why3 exits nonzero when goals fail to prove; that is a normal,
		// classifiable outcome, not an invocation error.
		a.logger.Debug("prover exited nonzero", "error", err)
	}

	result.Proved = a.cfg.Classify(result.Output)
	if result.Proved {
		proveOutcomes.WithLabelValues("proved").Inc()
	} else {
		proveOutcomes.WithLabelValues("unproved").Inc()
	}
	a.logger.Info("prover finished", "file", whyFile, "proved", result.Proved, "duration", elapsed)
	return result, nil
}
