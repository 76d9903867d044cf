// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tau

import (
	"github.com/pedronobrol/tau/services/tau/feedback"
	"github.com/pedronobrol/tau/services/tau/oracle"
	"github.com/pedronobrol/tau/services/tau/proofs"
	"github.com/pedronobrol/tau/services/tau/translate"
)

// FunctionSpec is the specification supplied with a function: the
// pre/postcondition pair and an optional starting loop contract.
type FunctionSpec struct {
	Requires   string   `json:"requires"`
	Ensures    string   `json:"ensures"`
	Invariants []string `json:"invariants,omitempty"`
	Variant    string   `json:"variant,omitempty"`
}

// VerifyRequest verifies one function.
type VerifyRequest struct {
	Source string `json:"source" binding:"required"`

	// FunctionName defaults to the first function in Source.
	FunctionName string `json:"function_name,omitempty"`

	FunctionSpec

	// External declares callable helpers by contract only.
	External map[string]translate.ExternalContract `json:"external,omitempty"`

	// ModuleName overrides the generated WhyML module name.
	ModuleName string `json:"module_name,omitempty"`

	// SkipCache forces a fresh prover run.
	SkipCache bool `json:"skip_cache,omitempty"`
}

// VerifyResponse is the terminal verification state of one function.
type VerifyResponse struct {
	FunctionName string `json:"function_name"`
	Verified     bool   `json:"verified"`
	Cached       bool   `json:"cached"`
	Reason       string `json:"reason,omitempty"`
	Hash         string `json:"hash"`

	Rounds       int              `json:"rounds,omitempty"`
	RoundDetails []feedback.Round `json:"round_details,omitempty"`

	Bug *oracle.BugAnalysis `json:"bug,omitempty"`

	WhymlSource     string  `json:"whyml_source,omitempty"`
	LeanSource      string  `json:"lean_source,omitempty"`
	ProverOutput    string  `json:"prover_output,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// VerifyAllRequest verifies every function in one source module. Functions
// absent from Specs get the default true/true contract.
type VerifyAllRequest struct {
	Source    string                                `json:"source" binding:"required"`
	Specs     map[string]FunctionSpec               `json:"specs,omitempty"`
	External  map[string]translate.ExternalContract `json:"external,omitempty"`
	SkipCache bool                                  `json:"skip_cache,omitempty"`
}

// VerifyAllResponse maps function names to their results.
type VerifyAllResponse struct {
	AllVerified bool                       `json:"all_verified"`
	Results     map[string]*VerifyResponse `json:"results"`
}

// ProofQueryRequest identifies a function for cache queries.
type ProofQueryRequest struct {
	Source       string `json:"source" binding:"required"`
	FunctionName string `json:"function_name,omitempty"`
	FunctionSpec
}

// StoreProofRequest records an externally produced verification result,
// for importing proofs run outside this service.
type StoreProofRequest struct {
	Source       string `json:"source" binding:"required"`
	FunctionName string `json:"function_name,omitempty"`
	FunctionSpec

	Verified        bool    `json:"verified"`
	Reason          string  `json:"reason,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	Whyml     string `json:"whyml,omitempty"`
	Lean      string `json:"lean,omitempty"`
	ProverLog string `json:"prover_log,omitempty"`
}

// ProofCheckResponse reports whether a certificate exists.
type ProofCheckResponse struct {
	Cached      bool                `json:"cached"`
	Certificate *proofs.Certificate `json:"certificate,omitempty"`
}

// ProofListResponse lists certificate summaries.
type ProofListResponse struct {
	Proofs []proofs.Summary `json:"proofs"`
	Count  int              `json:"count"`
}

// CleanupResponse reports a cache sweep.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// ErrorResponse is the error payload for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
