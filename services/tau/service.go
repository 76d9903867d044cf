// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tau is the verification service: it turns a restricted Python-like
// function plus a specification into a WhyML module, drives the prover
// through the oracle-assisted refinement loop, and caches proof certificates
// so verified functions are never re-proved.
package tau

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pedronobrol/tau/services/tau/config"
	"github.com/pedronobrol/tau/services/tau/feedback"
	"github.com/pedronobrol/tau/services/tau/lang"
	"github.com/pedronobrol/tau/services/tau/oracle"
	"github.com/pedronobrol/tau/services/tau/proofs"
	"github.com/pedronobrol/tau/services/tau/prover"
)

// ServiceVersion is the tau service version.
const ServiceVersion = "0.1.0"

// maxParallelVerify caps concurrent prover processes in VerifyAll.
const maxParallelVerify = 4

// Service composes the proof cache and the feedback loop.
type Service struct {
	store  *proofs.Store
	loop   *feedback.Loop
	logger *slog.Logger
}

// NewService wires a service from already-built components. Tests inject a
// loop with stub oracle and prover here.
func NewService(store *proofs.Store, loop *feedback.Loop, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, loop: loop, logger: logger}
}

// FromConfig builds the production service: badger-backed cache, why3
// adapter, and the configured oracle (live when an API key is present,
// heuristic otherwise).
func FromConfig(cfg config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := proofs.Open(proofs.Config{Dir: cfg.Proofs.Dir, Logger: logger})
	if err != nil {
		return nil, err
	}

	o := oracle.Select(oracle.Config{
		APIKey:  cfg.APIKey(),
		BaseURL: cfg.Oracle.BaseURL,
		Model:   cfg.Oracle.Model,
		Logger:  logger,
	})
	p := prover.New(prover.Config{
		Binary:  cfg.Prover.Binary,
		Prover:  cfg.Prover.Prover,
		Timeout: cfg.Prover.Timeout,
		Logger:  logger,
	})
	loop := feedback.New(feedback.Config{
		MaxRounds:          cfg.Feedback.MaxRounds,
		BugCheckEveryRound: cfg.Feedback.BugCheckEveryRound,
		OutputDir:          cfg.Feedback.OutputDir,
		Logger:             logger,
	}, o, p)

	return NewService(store, loop, logger), nil
}

// Close releases the proof cache.
func (s *Service) Close() error {
	return s.store.Close()
}

// Proofs exposes the certificate store for cache-management operations.
func (s *Service) Proofs() *proofs.Store {
	return s.store
}

// VerifyFunction verifies one function, consulting the cache first. A stored
// verified certificate short-circuits the prover entirely; a stored failure
// is retried, since a better contract may yet be found. When the loop fails
// hard (prover missing) the best-effort certificate is still stored before
// the error is returned.
func (s *Service) VerifyFunction(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	fnName, err := s.resolveFunction(req.Source, req.FunctionName)
	if err != nil {
		return nil, err
	}

	info := proofs.FunctionInfo{
		Name:       fnName,
		Source:     req.Source,
		Requires:   req.Requires,
		Ensures:    req.Ensures,
		Invariants: req.Invariants,
		Variant:    req.Variant,
	}

	if !req.SkipCache {
		cert, err := s.store.Lookup(ctx, info)
		if err != nil {
			return nil, err
		}
		if cert != nil && cert.Verified {
			s.logger.Info("serving cached proof", "function", fnName, "hash", cert.Hash)
			return &VerifyResponse{
				FunctionName:    fnName,
				Verified:        true,
				Cached:          true,
				Reason:          "proved (cached)",
				Hash:            cert.Hash,
				DurationSeconds: cert.Duration,
			}, nil
		}
	}

	result, runErr := s.loop.Run(ctx, feedback.Request{
		FunctionName: fnName,
		Source:       req.Source,
		Requires:     req.Requires,
		Ensures:      req.Ensures,
		Invariants:   req.Invariants,
		Variant:      req.Variant,
		External:     req.External,
		ModuleName:   req.ModuleName,
	})
	if result == nil {
		return nil, runErr
	}

	cert, err := s.store.Store(ctx, info, proofs.Outcome{
		Verified: result.Verified,
		Reason:   result.Reason,
		Duration: result.ProverTime,
	}, proofs.Artifacts{
		Whyml:     result.WhymlSource,
		Lean:      result.LeanSource,
		ProverLog: result.ProverOutput,
	})
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		// The best-effort certificate and artifacts are persisted above;
		// the caller still learns the prover was unusable.
		return nil, runErr
	}

	return &VerifyResponse{
		FunctionName:    fnName,
		Verified:        result.Verified,
		Reason:          result.Reason,
		Hash:            cert.Hash,
		Rounds:          result.FinalRound,
		RoundDetails:    result.Rounds,
		Bug:             result.Bug,
		WhymlSource:     result.WhymlSource,
		LeanSource:      result.LeanSource,
		ProverOutput:    result.ProverOutput,
		DurationSeconds: result.ProverTime.Seconds(),
	}, nil
}

// VerifyAll verifies every function in the source module, bounding prover
// parallelism. The first hard failure (parse error, prover missing) aborts
// the batch; unproved functions are normal per-function results.
func (s *Service) VerifyAll(ctx context.Context, req VerifyAllRequest) (*VerifyAllResponse, error) {
	mod, err := parseSource(req.Source)
	if err != nil {
		return nil, err
	}

	resp := &VerifyAllResponse{
		AllVerified: true,
		Results:     make(map[string]*VerifyResponse, len(mod.Functions)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelVerify)
	for _, fn := range mod.Functions {
		spec := req.Specs[fn.Name]
		vreq := VerifyRequest{
			Source:       req.Source,
			FunctionName: fn.Name,
			FunctionSpec: spec,
			External:     req.External,
			SkipCache:    req.SkipCache,
		}
		g.Go(func() error {
			r, err := s.VerifyFunction(gctx, vreq)
			if err != nil {
				return fmt.Errorf("%s: %w", vreq.FunctionName, err)
			}
			mu.Lock()
			resp.Results[vreq.FunctionName] = r
			if !r.Verified {
				resp.AllVerified = false
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resp, nil
}

// CheckProof looks up a certificate without running the prover.
func (s *Service) CheckProof(ctx context.Context, req ProofQueryRequest) (*ProofCheckResponse, error) {
	fnName, err := s.resolveFunction(req.Source, req.FunctionName)
	if err != nil {
		return nil, err
	}
	cert, err := s.store.Lookup(ctx, proofs.FunctionInfo{
		Name:       fnName,
		Source:     req.Source,
		Requires:   req.Requires,
		Ensures:    req.Ensures,
		Invariants: req.Invariants,
		Variant:    req.Variant,
	})
	if err != nil {
		return nil, err
	}
	return &ProofCheckResponse{Cached: cert != nil, Certificate: cert}, nil
}

// StoreProof records an externally produced verification result as a
// certificate, bypassing the prover.
func (s *Service) StoreProof(ctx context.Context, req StoreProofRequest) (*proofs.Certificate, error) {
	fnName, err := s.resolveFunction(req.Source, req.FunctionName)
	if err != nil {
		return nil, err
	}
	return s.store.Store(ctx, proofs.FunctionInfo{
		Name:       fnName,
		Source:     req.Source,
		Requires:   req.Requires,
		Ensures:    req.Ensures,
		Invariants: req.Invariants,
		Variant:    req.Variant,
	}, proofs.Outcome{
		Verified: req.Verified,
		Reason:   req.Reason,
		Duration: time.Duration(req.DurationSeconds * float64(time.Second)),
	}, proofs.Artifacts{
		Whyml:     req.Whyml,
		Lean:      req.Lean,
		ProverLog: req.ProverLog,
	})
}

// FindProofsByBody returns every certificate sharing the function's body,
// regardless of specification.
func (s *Service) FindProofsByBody(ctx context.Context, req ProofQueryRequest) ([]*proofs.Certificate, error) {
	fnName, err := s.resolveFunction(req.Source, req.FunctionName)
	if err != nil {
		return nil, err
	}
	return s.store.FindByBody(ctx, proofs.FunctionInfo{Name: fnName, Source: req.Source})
}

// resolveFunction defaults to the first function and validates an explicit
// name against the source.
func (s *Service) resolveFunction(source, name string) (string, error) {
	mod, err := parseSource(source)
	if err != nil {
		return "", err
	}
	if name == "" {
		return mod.Functions[0].Name, nil
	}
	for _, fn := range mod.Functions {
		if fn.Name == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
}

func parseSource(source string) (*lang.Module, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}
	return lang.Parse(source)
}
